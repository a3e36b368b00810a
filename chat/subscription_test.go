// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/roomtalk/roomtalk/transport"
)

func newRegistryConn(t *testing.T) (*Registry, *transport.MemoryBroker, transport.Conn) {
	t.Helper()
	broker := transport.NewMemoryBroker()
	broker.Authorize("tok1", transport.BrokerUser{ID: 3, Name: "me"})
	conn, err := broker.DialContext(context.Background(), "mem://broker")
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	err = conn.WriteFrame(&transport.Frame{
		Command: transport.CommandConnect,
		Headers: map[string]string{transport.HeaderAuthorization: "Bearer tok1"},
	})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if _, err := conn.ReadFrame(); err != nil {
		t.Fatalf("read connect reply: %v", err)
	}

	registry := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return registry, broker, conn
}

func TestRegistrySubscribeOnce(t *testing.T) {
	registry, broker, conn := newRegistryConn(t)

	sub, err := registry.Subscribe(conn, transport.RoomTopic(7))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if sub.ID == "" {
		t.Error("subscription has no ID")
	}
	if sub.TopicPath != "/sub/chat/room/7" {
		t.Errorf("topic = %q", sub.TopicPath)
	}
	if registry.Active() != sub {
		t.Error("Active does not return the live subscription")
	}
	if count := broker.SubscriptionCount(); count != 1 {
		t.Errorf("broker subscriptions = %d, want 1", count)
	}

	// Double subscribe is a protocol violation, not a silent replace.
	if _, err := registry.Subscribe(conn, transport.RoomTopic(9)); err == nil {
		t.Error("double subscribe accepted")
	}
}

func TestRegistryUnsubscribe(t *testing.T) {
	registry, broker, conn := newRegistryConn(t)

	first, err := registry.Subscribe(conn, transport.RoomTopic(7))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	registry.Unsubscribe(conn)
	if registry.Active() != nil {
		t.Error("subscription still active after Unsubscribe")
	}
	if count := broker.SubscriptionCount(); count != 0 {
		t.Errorf("broker subscriptions = %d, want 0", count)
	}

	// Idempotent.
	registry.Unsubscribe(conn)

	// Resubscribing generates a fresh ID, never a reuse.
	second, err := registry.Subscribe(conn, transport.RoomTopic(7))
	if err != nil {
		t.Fatalf("resubscribe failed: %v", err)
	}
	if second.ID == first.ID {
		t.Errorf("subscription ID %q reused", second.ID)
	}
}

func TestRegistryUnsubscribeDeadConn(t *testing.T) {
	registry, _, conn := newRegistryConn(t)

	if _, err := registry.Subscribe(conn, transport.RoomTopic(7)); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	conn.Close()

	// The frame write fails, but local state is still cleared so the
	// next connection subscribes clean.
	registry.Unsubscribe(conn)
	if registry.Active() != nil {
		t.Error("subscription still active after Unsubscribe on dead conn")
	}

	registry.Unsubscribe(nil)
}
