// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

// roomtalk is a terminal client for a Topic Room: it connects to the
// broker, backfills one page of history, streams live messages, and
// sends stdin lines as chat messages.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/roomtalk/roomtalk/chat"
	"github.com/roomtalk/roomtalk/lib/config"
	"github.com/roomtalk/roomtalk/transport"
)

var (
	mineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	otherStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		roomID     int64
		userID     int64
	)
	flag.StringVar(&configPath, "config", "", "path to the config file")
	flag.Int64Var(&roomID, "room", 0, "room ID to join")
	flag.Int64Var(&userID, "user", 0, "your user ID (for message ownership)")
	flag.Parse()

	// A .env next to the binary may carry ROOMTALK_TOKEN; missing is fine.
	godotenv.Load()
	token := os.Getenv("ROOMTALK_TOKEN")
	if token == "" {
		return fmt.Errorf("ROOMTALK_TOKEN is not set")
	}
	if roomID == 0 {
		return fmt.Errorf("--room is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	})))

	manager, err := chat.NewManager(chat.ManagerConfig{
		BrokerURL:     cfg.Broker.URL,
		Dialer:        &transport.WebSocketDialer{},
		RetryInterval: cfg.Broker.RetryInterval,
	})
	if err != nil {
		return err
	}
	history, err := chat.NewHistoryClient(chat.HistoryClientConfig{
		BaseURL: cfg.History.URL,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	room, err := chat.OpenRoom(ctx, chat.RoomConfig{
		Identity: chat.RoomIdentity{RoomID: roomID, AuthToken: token},
		UserID:   userID,
		Manager:  manager,
		History:  history,
		PageSize: cfg.History.PageSize,
	})
	if err != nil {
		return err
	}
	defer room.Close()

	if err := room.LoadOlder(ctx); err != nil {
		slog.Warn("history backfill failed", "error", err)
	}

	go renderLoop(room)

	fmt.Println(statusStyle.Render(fmt.Sprintf("joined room %d — type to chat, /quit to leave", roomID)))
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "/quit" {
			break
		}
		if !room.Send(line) {
			fmt.Println(statusStyle.Render(fmt.Sprintf("not sent (connection %s)", room.Status())))
		}
	}
	return scanner.Err()
}

// renderLoop prints timeline entries as they arrive. Reconciliation
// replaces entries in place, so printing is by position: only entries
// beyond the last printed position are new.
func renderLoop(room *chat.Room) {
	printed := 0
	lastStatus := room.Status()
	for range room.Updates() {
		if status := room.Status(); status != lastStatus {
			lastStatus = status
			fmt.Println(statusStyle.Render("connection " + string(status)))
		}
		timeline := room.Timeline()
		for ; printed < len(timeline); printed++ {
			fmt.Println(renderMessage(timeline[printed]))
		}
	}
}

func renderMessage(msg chat.UIMessage) string {
	name := msg.SenderName
	style := otherStyle
	if msg.Origin == chat.OriginMine {
		name = "me"
		style = mineStyle
	}
	if name == "" {
		name = "?"
	}
	line := style.Render(name) + " " + msg.Text
	if msg.DisplayTime != "" {
		line += " " + timeStyle.Render(msg.DisplayTime)
	}
	return line
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
