// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "strconv"

// RoomIdentity is the tuple a chat session is keyed by: the room and the
// bearer credential used to join it. It is immutable for the life of a
// session — a different room or a rotated token is a new identity, and
// connecting with it fully tears down the old session first.
//
// Modeling the pair as one comparable value means "did identity change"
// is a single equality check instead of field-by-field comparisons
// scattered across call sites.
type RoomIdentity struct {
	RoomID    int64
	AuthToken string
}

// Key returns the string form used to index sessions.
func (id RoomIdentity) Key() string {
	return strconv.FormatInt(id.RoomID, 10) + "|" + id.AuthToken
}

// IsZero reports whether the identity is unset.
func (id RoomIdentity) IsZero() bool {
	return id == RoomIdentity{}
}
