package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/tendant/simple-video-pipeline/internal/database"
	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// Ledger counts deliveries of the same upload event
type Ledger interface {
	Record(ctx context.Context, ev pipeline.UploadEvent) (int, error)
}

// Key identifies a delivery. Generation distinguishes re-uploads to the same path.
func Key(ev pipeline.UploadEvent) string {
	key := ev.Bucket + "/" + ev.ObjectPath
	if ev.Generation != "" {
		key += "#" + ev.Generation
	}
	return key
}

// Tracker tracks duplicate event deliveries in the event_deliveries table
type Tracker struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewTracker creates a new dedupe tracker on a migrated database
func NewTracker(db *sql.DB, dialect database.Dialect) *Tracker {
	return &Tracker{db: db, dialect: dialect}
}

// Record records a delivery and returns the seen count
func (t *Tracker) Record(ctx context.Context, ev pipeline.UploadEvent) (int, error) {
	// Upsert: increment seen_count if exists, insert if not
	query := fmt.Sprintf(`
		INSERT INTO event_deliveries (delivery_key, bucket, object_path, first_seen_at, last_seen_at, seen_count)
		VALUES (%s, %s, %s, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, 1)
		ON CONFLICT (delivery_key) DO UPDATE
		SET last_seen_at = CURRENT_TIMESTAMP,
		    seen_count = event_deliveries.seen_count + 1
		RETURNING seen_count
	`, t.dialect.Placeholder(1), t.dialect.Placeholder(2), t.dialect.Placeholder(3))

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, Key(ev), ev.Bucket, ev.ObjectPath).Scan(&seenCount)
	if err != nil {
		return 0, fmt.Errorf("failed to record delivery: %w", err)
	}

	return seenCount, nil
}

// GetSeenCount retrieves the seen count for an event
func (t *Tracker) GetSeenCount(ctx context.Context, ev pipeline.UploadEvent) (int, error) {
	query := fmt.Sprintf(`SELECT seen_count FROM event_deliveries WHERE delivery_key = %s`, t.dialect.Placeholder(1))

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, Key(ev)).Scan(&seenCount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get seen count: %w", err)
	}

	return seenCount, nil
}

// MemoryTracker is an in-process Ledger
type MemoryTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryTracker creates an empty in-process ledger
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{counts: make(map[string]int)}
}

// Record increments and returns the seen count
func (t *MemoryTracker) Record(ctx context.Context, ev pipeline.UploadEvent) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := Key(ev)
	t.counts[k]++
	return t.counts[k], nil
}
