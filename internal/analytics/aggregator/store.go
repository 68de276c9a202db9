// Package aggregator persists analytics snapshots to PostgreSQL so query
// statistics survive a restart of the analytics consumer.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/postgres"
)

const (
	defaultRetain = 1440

	createSnapshots = `
CREATE TABLE IF NOT EXISTS search_analytics_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	data        JSONB NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	createSnapshotsIdx = `
CREATE INDEX IF NOT EXISTS search_analytics_snapshots_captured_idx
	ON search_analytics_snapshots (captured_at DESC)`

	insertSnapshot = `INSERT INTO search_analytics_snapshots (data, captured_at) VALUES ($1, $2)`
	pruneSnapshots = `
DELETE FROM search_analytics_snapshots
WHERE id NOT IN (
	SELECT id FROM search_analytics_snapshots ORDER BY captured_at DESC LIMIT $1
)`
	selectSnapshots = `
SELECT data, captured_at FROM search_analytics_snapshots
ORDER BY captured_at DESC LIMIT $1`
)

// Snapshot is one persisted Stats value.
type Snapshot struct {
	Stats      analytics.AggregatedStats `json:"stats"`
	CapturedAt time.Time                 `json:"captured_at"`
}

// Store writes and reads search_analytics_snapshots rows. Only the newest
// Retain rows are kept.
type Store struct {
	db     *postgres.Client
	retain int
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(db *postgres.Client, retain int) *Store {
	if retain <= 0 {
		retain = defaultRetain
	}
	return &Store{
		db:     db,
		retain: retain,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default().With("component", "analytics-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createSnapshots, createSnapshotsIdx} {
		if _, err := s.db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("preparing snapshot table: %w", err)
		}
	}
	return nil
}

// Save inserts stats and prunes rows beyond the retention limit in one
// transaction.
func (s *Store) Save(ctx context.Context, stats analytics.AggregatedStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	var pruned int64
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertSnapshot, payload, s.now()); err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}
		res, err := tx.ExecContext(ctx, pruneSnapshots, s.retain)
		if err != nil {
			return fmt.Errorf("pruning snapshots: %w", err)
		}
		pruned, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("snapshot saved", "searches", stats.TotalSearches, "pruned", pruned)
	return nil
}

// History returns up to limit snapshots, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 || limit > s.retain {
		limit = s.retain
	}
	rows, err := s.db.DB.QueryContext(ctx, selectSnapshots, limit)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			raw  []byte
			snap Snapshot
		)
		if err := rows.Scan(&raw, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		if err := json.Unmarshal(raw, &snap.Stats); err != nil {
			return nil, fmt.Errorf("decoding snapshot from %s: %w", snap.CapturedAt.Format(time.RFC3339), err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Latest returns the newest snapshot, or nil when none exists.
func (s *Store) Latest(ctx context.Context) (*Snapshot, error) {
	snaps, err := s.History(ctx, 1)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}

// Restore seeds agg from the newest snapshot.
func (s *Store) Restore(ctx context.Context, agg *analytics.Aggregator) error {
	latest, err := s.Latest(ctx)
	if err != nil {
		return err
	}
	if latest == nil {
		s.logger.Info("no analytics snapshot to restore")
		return nil
	}
	agg.Restore(latest.Stats)
	s.logger.Info("analytics restored",
		"searches", latest.Stats.TotalSearches,
		"captured_at", latest.CapturedAt,
	)
	return nil
}

// Run saves a snapshot of agg on every tick and once more when ctx ends.
func (s *Store) Run(ctx context.Context, agg *analytics.Aggregator, every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			if err := s.Save(ctx, agg.Stats()); err != nil {
				s.logger.Error("snapshot failed", "error", err)
			}
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := s.Save(final, agg.Stats()); err != nil {
				s.logger.Error("final snapshot failed", "error", err)
			}
			cancel()
			return
		}
	}
}
