// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"testing"
)

func uiMsg(id, text string) UIMessage {
	return UIMessage{ID: id, Origin: OriginOther, Text: text}
}

func timelineIDs(t *Timeline) []string {
	messages := t.Messages()
	ids := make([]string, len(messages))
	for i, msg := range messages {
		ids[i] = msg.ID
	}
	return ids
}

func assertIDs(t *testing.T, timeline *Timeline, want ...string) {
	t.Helper()
	got := timelineIDs(timeline)
	if len(got) != len(want) {
		t.Fatalf("timeline IDs %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("timeline IDs %v, want %v", got, want)
		}
	}
}

func TestTimelineAppendDeduplicates(t *testing.T) {
	timeline := NewTimeline()

	if !timeline.Append(uiMsg("1", "a")) {
		t.Error("first append rejected")
	}
	if timeline.Append(uiMsg("1", "a again")) {
		t.Error("duplicate ID appended")
	}
	if !timeline.Append(uiMsg("2", "b")) {
		t.Error("distinct ID rejected")
	}
	assertIDs(t, timeline, "1", "2")
}

func TestTimelineReplaceInPlace(t *testing.T) {
	timeline := NewTimeline()
	timeline.Append(uiMsg("1", "before"))
	timeline.Append(UIMessage{ID: "tmp_x", Origin: OriginMine, Text: "optimistic"})
	timeline.Append(uiMsg("2", "after"))

	confirmed := UIMessage{ID: "42", Origin: OriginMine, Text: "optimistic"}
	if !timeline.Replace("tmp_x", confirmed) {
		t.Fatal("replace failed")
	}

	// Same position, server ID, and the temporary ID never reappears.
	assertIDs(t, timeline, "1", "42", "2")
	if timeline.Append(UIMessage{ID: "42", Text: "dup"}) {
		t.Error("server ID duplicated after replace")
	}
	if timeline.Replace("tmp_x", confirmed) {
		t.Error("replaced a reconciled temp ID twice")
	}
}

func TestTimelineReplaceWhenServerIDAlreadyMerged(t *testing.T) {
	// The history pager merged server message 42 before the echo
	// reconciled; replacing must not produce two entries with ID 42.
	timeline := NewTimeline()
	timeline.Append(uiMsg("42", "from history"))
	timeline.Append(UIMessage{ID: "tmp_x", Origin: OriginMine, Text: "from history"})

	timeline.Replace("tmp_x", UIMessage{ID: "42", Origin: OriginMine, Text: "from history"})

	assertIDs(t, timeline, "42")
}

func TestTimelinePrependPage(t *testing.T) {
	timeline := NewTimeline()
	timeline.Append(uiMsg("10", "live"))

	prepended := timeline.PrependPage([]UIMessage{uiMsg("1", "old"), uiMsg("2", "older page end")})
	if prepended != 2 {
		t.Fatalf("prepended = %d, want 2", prepended)
	}
	assertIDs(t, timeline, "1", "2", "10")

	t.Run("live entries stay reachable after reindex", func(t *testing.T) {
		if timeline.Append(uiMsg("10", "dup")) {
			t.Error("live entry duplicated after prepend")
		}
	})
}

func TestTimelinePrependPageDeduplicates(t *testing.T) {
	// A history page containing a message already reconciled into the
	// live timeline yields exactly one entry for that ID.
	timeline := NewTimeline()
	timeline.Append(UIMessage{ID: "42", Origin: OriginMine, Text: "live copy"})

	prepended := timeline.PrependPage([]UIMessage{
		uiMsg("41", "older"),
		{ID: "42", Origin: OriginMine, Text: "server copy", DisplayTime: "9:15 AM"},
	})
	if prepended != 1 {
		t.Fatalf("prepended = %d, want 1", prepended)
	}
	assertIDs(t, timeline, "41", "42")

	// Server data is authoritative for the already-present entry.
	messages := timeline.Messages()
	if messages[1].DisplayTime != "9:15 AM" {
		t.Errorf("history item did not update existing entry: %+v", messages[1])
	}
}

func TestTimelinePrependPageLeavesPendingEntriesAlone(t *testing.T) {
	timeline := NewTimeline()
	timeline.Append(UIMessage{ID: "tmp_x", Origin: OriginMine, Text: "pending"})

	timeline.PrependPage([]UIMessage{{ID: "tmp_x", Text: "impossible history copy"}})

	messages := timeline.Messages()
	if messages[0].Text != "pending" {
		t.Error("unreconciled optimistic entry was overwritten by history")
	}
}

func TestTimelineClear(t *testing.T) {
	timeline := NewTimeline()
	timeline.Append(uiMsg("1", "a"))
	timeline.Clear()

	if timeline.Len() != 0 {
		t.Errorf("len after clear = %d", timeline.Len())
	}
	if !timeline.Append(uiMsg("1", "a")) {
		t.Error("stale index entry survived clear")
	}
}

func TestScrollAnchor(t *testing.T) {
	// 1200px of content, reader 300px down. Prepending grows content to
	// 2000px; the adjusted offset keeps the same messages on screen.
	anchor := CaptureAnchor(1200, 300)
	if got := anchor.Restore(2000); got != 1100 {
		t.Errorf("restored offset = %v, want 1100", got)
	}

	// No height change, no jump.
	if got := anchor.Restore(1200); got != 300 {
		t.Errorf("restored offset = %v, want 300", got)
	}
}
