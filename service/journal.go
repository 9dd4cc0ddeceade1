package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"fleetdash/clock"
	"fleetdash/models"
)

// Journal appends presence events to sqlite from a background worker so
// the dashboard loop never waits on disk. It never restores state.
type Journal struct {
	db     *sql.DB
	clock  clock.Clock
	logger *slog.Logger
	queue  chan models.JournalEntry

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewJournal(db *sql.DB, queueSize int, clk clock.Clock, logger *slog.Logger) *Journal {
	if queueSize <= 0 {
		queueSize = 100
	}
	if clk == nil {
		clk = clock.Real()
	}
	j := &Journal{
		db:     db,
		clock:  clk,
		logger: logger,
		queue:  make(chan models.JournalEntry, queueSize),
	}

	// Start queue processor
	j.wg.Add(1)
	go j.processQueue()

	return j
}

// Record queues entry. When the queue is full the entry is dropped and
// logged rather than blocking the caller.
func (j *Journal) Record(entry models.JournalEntry) {
	if entry.Timestamp == 0 {
		entry.Timestamp = j.clock.Now().UnixMilli()
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}

	select {
	case j.queue <- entry:
	default:
		j.logger.Warn("⚠️ journal queue full, dropping entry", "kind", entry.Kind, "device_id", entry.DeviceID)
	}
}

func (j *Journal) processQueue() {
	defer j.wg.Done()
	for entry := range j.queue {
		if err := j.insert(entry); err != nil {
			j.logger.Error("journal write failed", "kind", entry.Kind, "error", err)
		}
	}
}

func (j *Journal) insert(e models.JournalEntry) error {
	_, err := j.db.Exec(
		`INSERT INTO presence_journal (session_id, kind, device_id, detail, timestamp) VALUES (?, ?, ?, ?, ?)`,
		e.SessionID, e.Kind, e.DeviceID, e.Detail, e.Timestamp,
	)
	return err
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]models.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, kind, device_id, detail, timestamp
		 FROM presence_journal ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := make([]models.JournalEntry, 0, limit)
	for rows.Next() {
		var e models.JournalEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.DeviceID, &e.Detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close flushes queued entries and stops the worker. The database
// handle is left to its owner.
func (j *Journal) Close() {
	j.closeOnce.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.queue)
		j.mu.Unlock()
		j.wg.Wait()
	})
}
