// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "time"

// ReconcileWindow is how long an optimistic send waits for its server
// echo. After the window the pending entry expires and the optimistic
// timeline entry is final — it is never retroactively replaced.
const ReconcileWindow = 5 * time.Second

// PendingSend is an optimistic send awaiting its echo.
type PendingSend struct {
	TempID string
	Text   string
	SentAt time.Time
}

// ReconcileOutcome is the result of matching an inbound own-message
// against the pending set: either it matched a specific pending send
// (the echo case) or it did not (a genuinely new message, or an echo
// arriving after its window expired). The ambiguous cases are a named
// branch, not an accident of timing.
type ReconcileOutcome struct {
	// TempID is the matched pending send's temporary ID. Empty when
	// unmatched.
	TempID string
}

// Matched reports whether the message reconciled a pending send.
func (o ReconcileOutcome) Matched() bool {
	return o.TempID != ""
}

// Reconciler disambiguates "this frame is the broker echoing my own
// send" from "this is a new incoming message". The broker echoes the
// sender's own message back over the same subscription with no
// echo-specific marker, so matching is by exact text equality within the
// pending window.
//
// When the user sends the same text twice inside one window, content
// matching cannot tell the echoes apart; the policy here is
// FIFO-oldest-pending-match, which is deterministic. This is an inherent
// ambiguity of content-based reconciliation, not a bug.
//
// Reconciler is not safe for concurrent use; the owning Room serializes
// access.
type Reconciler struct {
	window  time.Duration
	now     func() time.Time
	pending []PendingSend
}

// NewReconciler creates a Reconciler. A non-positive window means the
// 5-second default.
func NewReconciler(window time.Duration) *Reconciler {
	if window <= 0 {
		window = ReconcileWindow
	}
	return &Reconciler{
		window: window,
		now:    time.Now,
	}
}

// Track records an optimistic send at the moment it is appended to the
// timeline.
func (r *Reconciler) Track(tempID, text string) {
	r.expire()
	r.pending = append(r.pending, PendingSend{
		TempID: tempID,
		Text:   text,
		SentAt: r.now(),
	})
}

// Reconcile matches an inbound own-origin message against the pending
// set. The oldest unexpired pending send with exactly equal text wins
// and is removed. An unmatched message leaves the pending set untouched.
func (r *Reconciler) Reconcile(text string, receivedAt time.Time) ReconcileOutcome {
	r.expire()
	for i, pending := range r.pending {
		if pending.Text != text {
			continue
		}
		if receivedAt.Sub(pending.SentAt) > r.window {
			continue
		}
		r.pending = append(r.pending[:i], r.pending[i+1:]...)
		return ReconcileOutcome{TempID: pending.TempID}
	}
	return ReconcileOutcome{}
}

// PendingCount returns the number of sends still awaiting an echo.
func (r *Reconciler) PendingCount() int {
	r.expire()
	return len(r.pending)
}

// Clear drops every pending send. Called on room teardown.
func (r *Reconciler) Clear() {
	r.pending = nil
}

// expire removes pending sends older than the window. The pending set
// is FIFO by send time, so expired entries are a prefix.
func (r *Reconciler) expire() {
	cutoff := r.now().Add(-r.window)
	i := 0
	for i < len(r.pending) && r.pending[i].SentAt.Before(cutoff) {
		i++
	}
	if i > 0 {
		r.pending = append([]PendingSend(nil), r.pending[i:]...)
	}
}
