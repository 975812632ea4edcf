// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package errtrack

import (
	"testing"
	"time"
)

func TestTrackErrorDedupesByComponentAndMessage(t *testing.T) {
	tr := New()
	tr.TrackError("transcribe", "model timeout", map[string]string{"clip_id": "abc"})
	tr.TrackError("transcribe", "model timeout", map[string]string{"clip_id": "def"})

	if got := tr.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	snap := tr.Snapshot()
	if snap[0].Count != 2 {
		t.Errorf("Count = %d, want 2", snap[0].Count)
	}
}

func TestTrackErrorEvictsOldestAtCapacity(t *testing.T) {
	tr := New(WithCapacity(2))
	tr.TrackError("a", "first", nil)
	tr.TrackError("b", "second", nil)
	tr.TrackError("c", "third", nil)

	if got := tr.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	for _, e := range tr.Snapshot() {
		if e.Component == "a" {
			t.Error("expected oldest entry 'a' to be evicted")
		}
	}
}

func TestSweepDropsEntriesOlderThanRetention(t *testing.T) {
	clock := time.Unix(0, 0)
	tr := New(WithRetention(time.Hour), withClock(func() time.Time { return clock }))

	tr.TrackError("stale", "old failure", nil)
	clock = clock.Add(2 * time.Hour)
	tr.TrackError("fresh", "new failure", nil)

	removed := tr.Sweep()
	if removed != 1 {
		t.Fatalf("Sweep() removed %d, want 1", removed)
	}
	if tr.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tr.Len())
	}
	if tr.Snapshot()[0].Component != "fresh" {
		t.Errorf("surviving entry = %q, want %q", tr.Snapshot()[0].Component, "fresh")
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	tr := New()
	tr.TrackError("comp", "msg", map[string]string{"k": "v"})

	snap := tr.Snapshot()
	snap[0].Context["k"] = "mutated"

	if tr.Snapshot()[0].Context["k"] != "v" {
		t.Error("mutating a Snapshot entry's context leaked into the tracker")
	}
}
