// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "strconv"

// SendDestination is the fixed publish topic for outbound chat messages.
// The room the message belongs to travels in the SEND body, not the
// destination path.
const SendDestination = "/pub/chat/message"

// roomTopicPrefix is the base of the per-room subscribe topic.
const roomTopicPrefix = "/sub/chat/room/"

// RoomTopic returns the subscribe topic path for a room.
func RoomTopic(roomID int64) string {
	return roomTopicPrefix + strconv.FormatInt(roomID, 10)
}
