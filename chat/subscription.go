// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roomtalk/roomtalk/transport"
)

// Subscription is one active broker subscription: the topic it covers
// and the client-chosen ID the broker tags deliveries with.
type Subscription struct {
	TopicPath string
	ID        string
}

// Registry tracks the single active subscription for a session. The
// broker keeps delivering until an explicit UNSUBSCRIBE — merely
// dropping the reference is insufficient — so every teardown and
// reconnect path funnels through Unsubscribe.
//
// Registry is not safe for concurrent use; the owning session serializes
// access.
type Registry struct {
	logger *slog.Logger
	active *Subscription
}

// NewRegistry creates an empty registry. A nil logger means
// slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Subscribe sends a SUBSCRIBE frame with a freshly generated
// subscription ID. IDs are never reused, so the broker can tell
// overlapping subscribe/unsubscribe races apart.
//
// Subscribing while a subscription is active is a protocol violation
// (it would double deliveries) and returns an error rather than being
// papered over.
func (r *Registry) Subscribe(conn transport.Conn, topicPath string) (*Subscription, error) {
	if r.active != nil {
		return nil, fmt.Errorf("chat: subscribe while %q is still subscribed to %s", r.active.ID, r.active.TopicPath)
	}

	sub := &Subscription{
		TopicPath: topicPath,
		ID:        uuid.NewString(),
	}
	err := conn.WriteFrame(&transport.Frame{
		Command:      transport.CommandSubscribe,
		Destination:  sub.TopicPath,
		Subscription: sub.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: subscribe to %s: %w", topicPath, err)
	}

	r.active = sub
	r.logger.Debug("subscribed", "topic", sub.TopicPath, "subscription_id", sub.ID)
	return sub, nil
}

// Unsubscribe sends an UNSUBSCRIBE frame for the active subscription and
// clears it. Idempotent: with nothing subscribed it is a no-op. The
// frame write is best-effort — on a dead connection the broker reaps the
// subscription itself, but local state is always cleared so the next
// subscribe starts clean.
func (r *Registry) Unsubscribe(conn transport.Conn) {
	if r.active == nil {
		return
	}
	sub := r.active
	r.active = nil

	if conn == nil {
		return
	}
	err := conn.WriteFrame(&transport.Frame{
		Command:      transport.CommandUnsubscribe,
		Subscription: sub.ID,
	})
	if err != nil {
		r.logger.Debug("unsubscribe write failed", "subscription_id", sub.ID, "error", err)
		return
	}
	r.logger.Debug("unsubscribed", "topic", sub.TopicPath, "subscription_id", sub.ID)
}

// Active returns the current subscription, or nil.
func (r *Registry) Active() *Subscription {
	return r.active
}
