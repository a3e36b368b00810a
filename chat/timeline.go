// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package chat

// Timeline is the rendered, de-duplicated message sequence: history
// pages ascending by time at the front, live messages in arrival order
// behind them. The dedup key is the resolved message identity — server
// ID when present, else the synthesized key — and no two entries ever
// share one. Once a temporary ID is reconciled to a server ID, the
// temporary ID never reappears.
//
// Timeline is not safe for concurrent use; the owning Room serializes
// access.
type Timeline struct {
	entries []UIMessage
	index   map[string]int // resolved ID → position in entries
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{index: make(map[string]int)}
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	return len(t.entries)
}

// Messages returns a copy of the entries in render order.
func (t *Timeline) Messages() []UIMessage {
	out := make([]UIMessage, len(t.entries))
	copy(out, t.entries)
	return out
}

// Append adds a live message at the end, preserving arrival order.
// Returns false without modifying anything when an entry with the same
// ID already exists.
func (t *Timeline) Append(msg UIMessage) bool {
	if _, ok := t.index[msg.ID]; ok {
		return false
	}
	t.index[msg.ID] = len(t.entries)
	t.entries = append(t.entries, msg)
	return true
}

// Replace swaps the entry at oldID for msg in place — same position —
// which is how an optimistic entry becomes its server-confirmed
// counterpart without moving on screen. If msg.ID already exists
// elsewhere in the timeline (the server copy arrived through a history
// merge first), the old entry is removed instead of duplicating the ID.
// Returns false when oldID is not present.
func (t *Timeline) Replace(oldID string, msg UIMessage) bool {
	pos, ok := t.index[oldID]
	if !ok {
		return false
	}
	if existing, ok := t.index[msg.ID]; ok && existing != pos {
		t.removeAt(pos)
		return true
	}
	delete(t.index, oldID)
	t.index[msg.ID] = pos
	t.entries[pos] = msg
	return true
}

// PrependPage merges one history page — already reversed to ascending
// time order — in front of the existing entries. Items whose ID is
// already present update the existing entry in place: server data is
// authoritative for anything already echoed. Entries still carrying a
// temporary ID are left alone; they belong to the reconciler. Returns
// the number of entries actually prepended, which is what the
// scroll-anchor caller needs.
func (t *Timeline) PrependPage(items []UIMessage) int {
	fresh := make([]UIMessage, 0, len(items))
	for _, item := range items {
		if pos, ok := t.index[item.ID]; ok {
			if !IsTempID(t.entries[pos].ID) {
				t.entries[pos] = item
			}
			continue
		}
		fresh = append(fresh, item)
	}
	if len(fresh) == 0 {
		return 0
	}

	t.entries = append(fresh, t.entries...)
	for id, pos := range t.index {
		t.index[id] = pos + len(fresh)
	}
	for i, item := range fresh {
		t.index[item.ID] = i
	}
	return len(fresh)
}

// Clear empties the timeline. Called on room change.
func (t *Timeline) Clear() {
	t.entries = nil
	t.index = make(map[string]int)
}

// removeAt deletes the entry at pos and reindexes the tail.
func (t *Timeline) removeAt(pos int) {
	delete(t.index, t.entries[pos].ID)
	t.entries = append(t.entries[:pos], t.entries[pos+1:]...)
	for i := pos; i < len(t.entries); i++ {
		t.index[t.entries[i].ID] = i
	}
}

// ScrollAnchor preserves the visual position of already-read messages
// when an older page is prepended. Capture the scroll metrics before the
// prepend, then ask Restore for the adjusted offset afterwards:
//
//	anchor := chat.CaptureAnchor(contentHeight, offset)
//	// ... prepend the page, remeasure ...
//	offset = anchor.Restore(newContentHeight)
//
// This is a contract of the pager's consumer: skipping it makes the list
// jump by the height of the inserted page.
type ScrollAnchor struct {
	ContentHeight float64
	Offset        float64
}

// CaptureAnchor records the scroll metrics before a prepend.
func CaptureAnchor(contentHeight, offset float64) ScrollAnchor {
	return ScrollAnchor{ContentHeight: contentHeight, Offset: offset}
}

// Restore returns the offset that keeps the anchored content stationary
// after the content height changed.
func (a ScrollAnchor) Restore(newContentHeight float64) float64 {
	return a.Offset + (newContentHeight - a.ContentHeight)
}
