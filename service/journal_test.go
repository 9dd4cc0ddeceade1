package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fleetdash/clock"
	"fleetdash/config"
	"fleetdash/models"
)

func TestJournalRecordAndRecent(t *testing.T) {
	db, err := config.InitDatabase(filepath.Join(t.TempDir(), "data", "journal.db"))
	if err != nil {
		t.Fatalf("InitDatabase: %v", err)
	}
	defer db.Close()

	clk := clock.Fake(time.UnixMilli(1700000000000))
	j := NewJournal(db, 10, clk, testLogger())

	j.Record(models.JournalEntry{SessionID: "s", Kind: models.JournalSessionOpen})
	j.Record(models.JournalEntry{SessionID: "s", Kind: models.JournalConnected, DeviceID: "1", Detail: "A"})
	clk.Advance(time.Second)
	j.Record(models.JournalEntry{SessionID: "s", Kind: models.JournalDisconnected, DeviceID: "1", Detail: "A"})
	j.Close()

	// Closed journals drop new entries.
	j.Record(models.JournalEntry{SessionID: "s", Kind: models.JournalSessionClose})

	entries, err := j.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Kind != models.JournalDisconnected || entries[1].Kind != models.JournalConnected {
		t.Errorf("kinds = %q, %q; want newest first", entries[0].Kind, entries[1].Kind)
	}
	if entries[0].Timestamp != 1700000001000 {
		t.Errorf("timestamp = %d, want fake clock time", entries[0].Timestamp)
	}
	if entries[1].DeviceID != "1" || entries[1].Detail != "A" {
		t.Errorf("entry = %+v", entries[1])
	}

	all, err := j.Recent(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("total entries = %d, want 3", len(all))
	}
}

func TestJournalCloseIsIdempotent(t *testing.T) {
	db, err := config.InitDatabase(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	j := NewJournal(db, 0, nil, testLogger())
	j.Close()
	j.Close()
}
