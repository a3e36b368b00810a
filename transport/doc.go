// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries broker frames over a persistent socket.
//
// The broker protocol is a small pub/sub framing: JSON text frames with a
// command, an optional destination or subscription ID, headers, and a JSON
// body ([Frame]). Clients authenticate with a CONNECT frame carrying a
// bearer credential, subscribe to per-room topics with client-chosen
// subscription IDs, and publish to a fixed send destination. The broker
// answers CONNECTED or ERROR and delivers MESSAGE frames tagged with the
// subscription ID they belong to.
//
// Two implementations of [Dialer] exist. [WebSocketDialer] is the
// production transport: one gorilla/websocket connection per session, all
// writes serialized through a single lock, with a keepalive ping ticker so
// idle connections survive load-balancer timeouts. [MemoryBroker] is an
// in-process broker for tests — it implements the full CONNECT/SUBSCRIBE/
// SEND/fan-out protocol without any network, records every frame it
// receives in arrival order for call-order assertions, and can drop
// connections to exercise reconnect paths.
package transport
