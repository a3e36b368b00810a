// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"encoding/json"
	"fmt"
)

// KindTalk is the message kind for ordinary chat text, the only kind the
// client publishes.
const KindTalk = "TALK"

// MessageID tolerates both JSON encodings the broker has been seen to
// use for message IDs: a string and a bare number. Either way the client
// works with the string form.
type MessageID string

// UnmarshalJSON accepts a JSON string or number.
func (m *MessageID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("chat: empty message ID")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = MessageID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("chat: message ID is neither string nor number: %w", err)
	}
	*m = MessageID(n.String())
	return nil
}

// WireMessage is a chat message as received from the broker, best-effort
// parsed. Text is the only required field. Raw retains the full frame
// body, so fields this client does not know about survive a round trip.
type WireMessage struct {
	MessageID  MessageID `json:"messageId,omitempty"`
	RoomID     int64     `json:"roomId,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Text       string    `json:"message"`
	SenderID   *int64    `json:"senderId,omitempty"`
	SenderName string    `json:"senderName,omitempty"`
	CreatedAt  string    `json:"createdAt,omitempty"`

	// Raw is the undecoded frame body. Unknown fields are preserved
	// here and otherwise ignored.
	Raw json.RawMessage `json:"-"`
}

// DecodeWireMessage parses a broker frame body. It fails closed: any
// parse error or a missing text field returns an error and the caller
// drops the frame. Decode failures are never fatal to the session.
func DecodeWireMessage(body []byte) (*WireMessage, error) {
	var msg WireMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("chat: decode wire message: %w", err)
	}
	if msg.Text == "" {
		return nil, fmt.Errorf("chat: wire message missing text")
	}
	msg.Raw = append(json.RawMessage(nil), body...)
	return &msg, nil
}

// SendPayload is the body of an outbound publish frame.
type SendPayload struct {
	RoomID  int64  `json:"roomId"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewTalkPayload builds the publish body for a plain chat message.
func NewTalkPayload(roomID int64, text string) SendPayload {
	return SendPayload{
		RoomID:  roomID,
		Kind:    KindTalk,
		Message: text,
	}
}

// String implements fmt.Stringer for logging.
func (m MessageID) String() string { return string(m) }
