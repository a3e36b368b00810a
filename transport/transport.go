// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
)

// Frame is one broker protocol unit, encoded as a single JSON text
// message on the socket. Which fields are meaningful depends on the
// command: SUBSCRIBE and SEND carry a destination, SUBSCRIBE,
// UNSUBSCRIBE and MESSAGE carry a subscription ID, CONNECT carries the
// bearer credential in its headers.
type Frame struct {
	// Command identifies the frame type (one of the Command constants).
	Command string `json:"command"`

	// Destination is the topic path the frame targets: the per-room
	// subscribe topic for SUBSCRIBE, the fixed publish topic for SEND.
	Destination string `json:"destination,omitempty"`

	// Subscription is the client-chosen subscription ID. The broker tags
	// every delivered MESSAGE frame with the subscription it belongs to,
	// which lets clients discard deliveries for stale subscriptions.
	Subscription string `json:"subscription,omitempty"`

	// Headers carries connection-level metadata. CONNECT uses it for the
	// Authorization header; ERROR frames use it for a message header.
	Headers map[string]string `json:"headers,omitempty"`

	// Body is the JSON payload: a send payload for SEND, a wire message
	// for MESSAGE.
	Body json.RawMessage `json:"body,omitempty"`
}

// Broker frame commands.
const (
	// Client to broker.
	CommandConnect     = "CONNECT"
	CommandSubscribe   = "SUBSCRIBE"
	CommandUnsubscribe = "UNSUBSCRIBE"
	CommandSend        = "SEND"

	// Broker to client.
	CommandConnected = "CONNECTED"
	CommandMessage   = "MESSAGE"
	CommandError     = "ERROR"
)

// HeaderAuthorization is the CONNECT header carrying the bearer
// credential ("Bearer <token>").
const HeaderAuthorization = "Authorization"

// HeaderMessage is the ERROR header carrying a human-readable reason.
const HeaderMessage = "message"

// Conn is a single established broker connection. ReadFrame blocks until
// a frame arrives or the connection fails. Implementations must allow
// WriteFrame and Close to be called concurrently with a blocked
// ReadFrame; Close unblocks any pending read.
type Conn interface {
	ReadFrame() (*Frame, error)
	WriteFrame(frame *Frame) error
	Close() error
}

// Dialer establishes broker connections. The returned Conn is not yet
// authenticated — the caller performs the CONNECT handshake.
type Dialer interface {
	DialContext(ctx context.Context, brokerURL string) (Conn, error)
}
