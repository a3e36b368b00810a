// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat implements the real-time Topic Room client: connection
// and subscription lifecycle against the pub/sub broker, message
// normalization, optimistic-send reconciliation, and the merge of
// paginated history with the live stream into one timeline.
//
// The package provides two core types. [Manager] owns broker sessions:
// it keys each session by [RoomIdentity] so redundant connects are
// suppressed, tears down the previous session (unsubscribe, then
// deactivate) before a new identity connects, and retries the transport
// on a fixed interval after failures. [Room] is the façade the UI layer
// talks to: it composes the Manager, the [Normalizer], the optimistic
// [Reconciler], the [HistoryClient] pager, and the [Timeline] behind
// four operations — open, send, observe, close.
//
// Nothing in the package panics or returns an error across the public
// contract for expected conditions: a malformed frame is dropped and
// logged, a send while disconnected returns false, a failed history
// fetch leaves the already-merged timeline intact and is surfaced as a
// retryable error state. Transport failures appear only as the session
// [Status].
//
// All chat state is in-memory for the life of the room view. Dropping a
// Room without calling Close leaves the broker delivering frames to a
// dead subscription — Close is the only way to stop delivery.
package chat
