// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Compile-time interface checks.
var (
	_ Dialer = (*WebSocketDialer)(nil)
	_ Conn   = (*webSocketConn)(nil)
)

// defaultPingInterval is how often the client writes a websocket-level
// ping on an otherwise idle connection. Must be well under typical load
// balancer idle timeouts — a ping at the boundary races and loses.
const defaultPingInterval = 15 * time.Second

// defaultHandshakeTimeout bounds the websocket upgrade handshake.
const defaultHandshakeTimeout = 10 * time.Second

// writeTimeout bounds a single frame or ping write. A peer that stops
// draining its receive window would otherwise block the writer forever.
const writeTimeout = 10 * time.Second

// WebSocketDialer opens broker connections over websocket (wss:// in
// production). The zero value is ready to use.
type WebSocketDialer struct {
	// HandshakeTimeout bounds the upgrade handshake. Zero means the
	// 10-second default.
	HandshakeTimeout time.Duration

	// PingInterval is the keepalive ping cadence. Zero means the
	// 15-second default.
	PingInterval time.Duration
}

// DialContext establishes the websocket connection and starts the
// keepalive ticker. The connection carries no credentials yet — the
// caller sends the CONNECT frame.
func (d *WebSocketDialer) DialContext(ctx context.Context, brokerURL string) (Conn, error) {
	handshakeTimeout := d.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	socket, _, err := dialer.DialContext(ctx, brokerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", brokerURL, err)
	}

	conn := &webSocketConn{
		socket: socket,
		done:   make(chan struct{}),
	}

	pingInterval := d.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	go conn.keepalive(pingInterval)

	return conn, nil
}

// webSocketConn adapts a gorilla websocket connection to the Conn
// interface. gorilla permits one concurrent reader and one concurrent
// writer; writeMu serializes frame writes with keepalive pings.
type webSocketConn struct {
	socket  *websocket.Conn
	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

func (c *webSocketConn) ReadFrame() (*Frame, error) {
	_, data, err := c.socket.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("transport: read frame: %w", err)
	}
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("transport: decode frame: %w", err)
	}
	return &frame, nil
}

func (c *webSocketConn) WriteFrame(frame *Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("transport: encode frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.socket.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("transport: write frame: %w", err)
	}
	return nil
}

func (c *webSocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.socket.Close()
	})
	return err
}

// keepalive writes websocket pings until the connection closes. A failed
// ping means the connection is dead; closing it unblocks the read loop
// so the owner can begin reconnecting.
func (c *webSocketConn) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.socket.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.Close()
				return
			}
		}
	}
}
