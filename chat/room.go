// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// RoomConfig configures a Room session.
type RoomConfig struct {
	// Identity is the room and bearer credential, resolved by the
	// membership and auth collaborators before the core is invoked.
	Identity RoomIdentity
	// UserID is the viewer's user ID, used for message ownership.
	UserID int64
	// Manager owns the broker connection lifecycle. Required.
	Manager *Manager
	// History fetches paginated message history. Nil disables paging.
	History *HistoryClient
	// PageSize is the history page size. Zero means the default.
	PageSize int
	// ReconcileWindow overrides the 5-second optimistic-echo window.
	ReconcileWindow time.Duration
	// Location is the viewer's time zone for display times. Nil means
	// time.Local.
	Location *time.Location
	// Logger is used for structured logging. If nil, slog.Default().
	Logger *slog.Logger
}

// Room is the session façade the UI layer calls: open, send, observe
// the timeline, close. It composes the connection manager, normalizer,
// optimistic reconciler, history pager, and timeline; no component
// outside the Room reaches into another's state.
type Room struct {
	identity   RoomIdentity
	userID     int64
	manager    *Manager
	history    *HistoryClient
	pageSize   int
	logger     *slog.Logger
	normalizer *Normalizer
	now        func() time.Time

	mu         sync.Mutex
	session    *Session
	reconciler *Reconciler
	timeline   *Timeline
	nextPage   int
	hasMore    bool
	fetching   bool
	fetchErr   error
	closed     bool

	updates chan struct{}
}

// OpenRoom connects to the broker for the identity and returns the live
// room session. A dial or auth failure does not fail OpenRoom — the
// room comes back with Status() == StatusError and the manager keeps
// retrying; the UI drives its "reconnecting" indicator off the status.
func OpenRoom(ctx context.Context, config RoomConfig) (*Room, error) {
	if config.Identity.IsZero() {
		return nil, fmt.Errorf("chat: OpenRoom requires an identity")
	}
	if config.Manager == nil {
		return nil, fmt.Errorf("chat: OpenRoom requires a Manager")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	room := &Room{
		identity:   config.Identity,
		userID:     config.UserID,
		manager:    config.Manager,
		history:    config.History,
		pageSize:   config.PageSize,
		logger:     logger,
		normalizer: NewNormalizer(config.UserID, config.Location),
		now:        time.Now,
		reconciler: NewReconciler(config.ReconcileWindow),
		timeline:   NewTimeline(),
		hasMore:    config.History != nil,
		updates:    make(chan struct{}, 1),
	}

	session, err := config.Manager.Connect(ctx, config.Identity, SessionHooks{
		OnMessage: room.handleMessage,
		OnStatus:  func(Status) { room.notify() },
	})
	if err != nil {
		return nil, err
	}
	room.session = session
	return room, nil
}

// Identity returns the identity the room was opened with.
func (r *Room) Identity() RoomIdentity {
	return r.identity
}

// Status returns the connection state.
func (r *Room) Status() Status {
	return r.session.Status()
}

// Updates signals timeline or status changes. Notifications coalesce:
// one receive may cover several changes, so consumers re-read the
// timeline rather than counting signals.
func (r *Room) Updates() <-chan struct{} {
	return r.updates
}

// Timeline returns a copy of the merged timeline in render order.
func (r *Room) Timeline() []UIMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeline.Messages()
}

// Send publishes a chat message, appending the optimistic entry to the
// timeline before the network round trip. Returns false — with no entry
// created and nothing thrown — for empty or whitespace-only text, or
// when the session is not open.
func (r *Room) Send(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if r.session.Status() != StatusOpen {
		return false
	}

	tempID := NewTempID()
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.reconciler.Track(tempID, text)
	r.timeline.Append(r.normalizer.OptimisticMessage(tempID, text))
	r.mu.Unlock()
	r.notify()

	// Fire and forget: the broker's echo is the only confirmation. A
	// write failure surfaces through the session status, not here.
	if err := r.session.Publish(NewTalkPayload(r.identity.RoomID, text)); err != nil {
		r.logger.Warn("publish failed", "room_id", r.identity.RoomID, "error", err)
	}
	return true
}

// HasMore reports whether older history pages remain.
func (r *Room) HasMore() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasMore
}

// FetchingMore reports whether a history fetch is in flight.
func (r *Room) FetchingMore() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetching
}

// FetchError returns the most recent history fetch failure, cleared by
// the next successful fetch. The UI shows its retry affordance off this.
func (r *Room) FetchError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetchErr
}

// LoadOlder fetches the next older history page and merges it into the
// timeline. A no-op when paging is exhausted or a fetch is already in
// flight. On failure hasMore is left unchanged and the already-merged
// timeline is untouched.
//
// Callers prepending near the top of a visible list must capture a
// [ScrollAnchor] before calling and restore it after, or the view jumps.
func (r *Room) LoadOlder(ctx context.Context) error {
	r.mu.Lock()
	if r.closed || r.history == nil || !r.hasMore || r.fetching {
		r.mu.Unlock()
		return nil
	}
	r.fetching = true
	page := r.nextPage
	r.mu.Unlock()
	r.notify()

	fetched, err := r.history.RoomMessages(ctx, r.identity.RoomID, r.identity.AuthToken, PageOptions{
		Page: page,
		Size: r.pageSize,
	})

	r.mu.Lock()
	r.fetching = false
	if r.closed {
		// Stale response: the room was left while the fetch was in
		// flight. Discard the result.
		r.mu.Unlock()
		return nil
	}
	if err != nil {
		r.fetchErr = err
		r.mu.Unlock()
		r.notify()
		return err
	}
	r.fetchErr = nil
	r.nextPage++

	items := fetched.AscendingItems()
	normalized := make([]UIMessage, 0, len(items))
	for i := range items {
		normalized = append(normalized, r.normalizer.Normalize(&items[i]))
	}
	r.timeline.PrependPage(normalized)

	// Stop on the page that declares itself last, or on an empty page —
	// whichever comes first — so boundary responses never loop.
	if fetched.IsLastPage || len(fetched.Items) == 0 {
		r.hasMore = false
	}
	r.mu.Unlock()
	r.notify()
	return nil
}

// Close tears the room down: unsubscribe, then deactivate the transport,
// then clear the pending-send set — in that order, so the broker stops
// delivering before the socket drops and no ghost echoes linger.
// Idempotent and safe to call from unmount paths.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.manager.Disconnect(r.session)

	r.mu.Lock()
	r.reconciler.Clear()
	r.mu.Unlock()
	r.notify()
}

// handleMessage routes one inbound wire message: an own-origin message
// that matches a pending send within the window is the server echo and
// replaces the optimistic entry in place; everything else appends in
// arrival order, de-duplicated by resolved ID.
func (r *Room) handleMessage(msg *WireMessage) {
	ui := r.normalizer.Normalize(msg)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if ui.Origin == OriginMine {
		outcome := r.reconciler.Reconcile(msg.Text, r.now())
		if outcome.Matched() {
			r.timeline.Replace(outcome.TempID, ui)
			r.mu.Unlock()
			r.notify()
			return
		}
		// Unmatched own-origin message: a send from another device or
		// an echo past its window. Either way it renders as a new
		// entry; the expired optimistic entry is final.
	}
	r.timeline.Append(ui)
	r.mu.Unlock()
	r.notify()
}

// notify coalesces update signals; it never blocks.
func (r *Room) notify() {
	select {
	case r.updates <- struct{}{}:
	default:
	}
}
