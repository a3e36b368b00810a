// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Origin tags a timeline entry by ownership, which is what the UI keys
// bubble alignment on.
type Origin string

const (
	// OriginMine marks a message sent by the viewing user.
	OriginMine Origin = "mine"
	// OriginOther marks everyone else's messages.
	OriginOther Origin = "other"
)

// tempIDPrefix marks client-generated message IDs. The reconciler
// recognizes entries by this prefix and replaces them when the server
// echo arrives.
const tempIDPrefix = "tmp_"

// displayTimeLayout is the viewer-facing short time format.
const displayTimeLayout = "3:04 PM"

// createdAtLayouts are the timestamp encodings the broker and the
// history endpoint have been seen to emit; the first that parses wins.
// The zoneless layout is interpreted in the viewer's location.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// UIMessage is the canonical timeline entry handed to the UI layer. ID
// is either a server-issued ID (string-normalized) or a tmp_-prefixed
// client ID pending reconciliation.
type UIMessage struct {
	ID          string
	Origin      Origin
	SenderID    *int64
	SenderName  string
	Text        string
	DisplayTime string
	CreatedAt   string
}

// IsTempID reports whether id is a client-generated temporary ID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// NewTempID generates a temporary message ID for an optimistic send.
// IDs are unique per call so two identical texts in flight stay
// distinguishable.
func NewTempID() string {
	return tempIDPrefix + uuid.NewString()
}

// Normalizer converts wire messages into UI-ready timeline entries. The
// viewer's user ID decides ownership, the location decides the display
// time zone. The zero value is not usable — construct with
// NewNormalizer.
type Normalizer struct {
	userID   int64
	location *time.Location
	now      func() time.Time
}

// NewNormalizer creates a Normalizer for the given viewer. A nil
// location means time.Local.
func NewNormalizer(userID int64, location *time.Location) *Normalizer {
	if location == nil {
		location = time.Local
	}
	return &Normalizer{
		userID:   userID,
		location: location,
		now:      time.Now,
	}
}

// Normalize converts a decoded wire message into a UIMessage. It never
// fails: an unparsable timestamp yields an empty display time, a missing
// message ID falls back to the creation timestamp and then to a
// generated key, so every entry has a stable-enough key for rendering.
func (n *Normalizer) Normalize(msg *WireMessage) UIMessage {
	origin := OriginOther
	if msg.SenderID != nil && *msg.SenderID == n.userID {
		origin = OriginMine
	}

	return UIMessage{
		ID:          n.resolveID(msg),
		Origin:      origin,
		SenderID:    msg.SenderID,
		SenderName:  msg.SenderName,
		Text:        msg.Text,
		DisplayTime: n.formatDisplayTime(msg.CreatedAt),
		CreatedAt:   msg.CreatedAt,
	}
}

// OptimisticMessage builds the timeline entry appended at send time,
// before any server round trip. Stamped with the current wall clock so
// the bubble shows a time immediately.
func (n *Normalizer) OptimisticMessage(tempID, text string) UIMessage {
	now := n.now().In(n.location)
	return UIMessage{
		ID:          tempID,
		Origin:      OriginMine,
		SenderID:    &n.userID,
		Text:        text,
		DisplayTime: now.Format(displayTimeLayout),
		CreatedAt:   now.Format(time.RFC3339),
	}
}

// resolveID picks the timeline key: server message ID, else the creation
// timestamp, else a generated fallback.
func (n *Normalizer) resolveID(msg *WireMessage) string {
	if msg.MessageID != "" {
		return string(msg.MessageID)
	}
	if msg.CreatedAt != "" {
		return msg.CreatedAt
	}
	return "gen_" + n.now().UTC().Format(time.RFC3339Nano) + "_" + uuid.NewString()[:8]
}

// formatDisplayTime renders createdAt as a short local time. Absent or
// unparsable input yields an empty string — never an error.
func (n *Normalizer) formatDisplayTime(createdAt string) string {
	if createdAt == "" {
		return ""
	}
	for _, layout := range createdAtLayouts {
		parsed, err := time.ParseInLocation(layout, createdAt, n.location)
		if err == nil {
			return parsed.In(n.location).Format(displayTimeLayout)
		}
	}
	return ""
}
