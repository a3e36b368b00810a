// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"testing"
	"time"
)

// fakeClock drives a Reconciler deterministically.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time { return c.current }

func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestReconciler(t *testing.T) (*Reconciler, *fakeClock) {
	t.Helper()
	clock := &fakeClock{current: time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)}
	reconciler := NewReconciler(0)
	reconciler.now = clock.now
	return reconciler, clock
}

func TestReconcileMatch(t *testing.T) {
	reconciler, clock := newTestReconciler(t)

	reconciler.Track("tmp_1", "hello")
	clock.advance(4 * time.Second)

	outcome := reconciler.Reconcile("hello", clock.now())
	if !outcome.Matched() {
		t.Fatal("echo within window did not match")
	}
	if outcome.TempID != "tmp_1" {
		t.Errorf("matched %q, want tmp_1", outcome.TempID)
	}
	if reconciler.PendingCount() != 0 {
		t.Errorf("pending not consumed, count = %d", reconciler.PendingCount())
	}

	// A second identical message is a new message, not the echo again.
	if reconciler.Reconcile("hello", clock.now()).Matched() {
		t.Error("matched twice for one pending send")
	}
}

func TestReconcileTextMismatch(t *testing.T) {
	reconciler, clock := newTestReconciler(t)
	reconciler.Track("tmp_1", "hello")

	if reconciler.Reconcile("hello!", clock.now()).Matched() {
		t.Error("matched despite different text")
	}
	if reconciler.PendingCount() != 1 {
		t.Error("mismatched reconcile consumed the pending send")
	}
}

func TestReconcileWindowExpiry(t *testing.T) {
	reconciler, clock := newTestReconciler(t)
	reconciler.Track("tmp_1", "hi")

	clock.advance(5001 * time.Millisecond)

	// A late echo after the window must not reconcile: the optimistic
	// entry is final and the late copy renders as a distinct message.
	if reconciler.Reconcile("hi", clock.now()).Matched() {
		t.Error("late echo matched after window expiry")
	}
	if reconciler.PendingCount() != 0 {
		t.Errorf("expired pending not removed, count = %d", reconciler.PendingCount())
	}
}

func TestReconcileDuplicateTextIsFIFO(t *testing.T) {
	reconciler, clock := newTestReconciler(t)

	// Two identical texts inside one window: content matching cannot
	// tell the echoes apart, so the policy is oldest-pending first.
	reconciler.Track("tmp_old", "same")
	clock.advance(time.Second)
	reconciler.Track("tmp_new", "same")

	first := reconciler.Reconcile("same", clock.now())
	if first.TempID != "tmp_old" {
		t.Errorf("first echo matched %q, want tmp_old", first.TempID)
	}
	second := reconciler.Reconcile("same", clock.now())
	if second.TempID != "tmp_new" {
		t.Errorf("second echo matched %q, want tmp_new", second.TempID)
	}
}

func TestReconcileExpiryIsSelective(t *testing.T) {
	reconciler, clock := newTestReconciler(t)

	reconciler.Track("tmp_old", "first")
	clock.advance(3 * time.Second)
	reconciler.Track("tmp_new", "second")
	clock.advance(3 * time.Second)

	// tmp_old is now 6s stale, tmp_new only 3s.
	if reconciler.Reconcile("first", clock.now()).Matched() {
		t.Error("expired send matched")
	}
	if !reconciler.Reconcile("second", clock.now()).Matched() {
		t.Error("live send did not match")
	}
}

func TestReconcileClear(t *testing.T) {
	reconciler, clock := newTestReconciler(t)
	reconciler.Track("tmp_1", "a")
	reconciler.Track("tmp_2", "b")

	reconciler.Clear()

	if reconciler.PendingCount() != 0 {
		t.Errorf("pending after clear: %d", reconciler.PendingCount())
	}
	if reconciler.Reconcile("a", clock.now()).Matched() {
		t.Error("matched after clear")
	}
}
