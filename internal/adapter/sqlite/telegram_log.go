package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/hydro-telegram-etl/internal/domain"
)

// LogEntry is one row of the telegram log.
type LogEntry struct {
	ID          int64
	StationCode string
	Status      string
	Kind        string
	Record      []byte
	CreatedAt   time.Time
}

// LoadBatch appends telegram log records. It implements pipeline.BatchLoader.
func (s *Store) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO telegram_log (station_code, status, kind, record, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare telegram log insert: %w", err)
	}
	defer stmt.Close()

	createdAt := s.now().Unix()
	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, string(e.Key), e.Headers["status"], e.Headers["kind"], string(e.Value), createdAt); err != nil {
			return fmt.Errorf("insert telegram log record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit telegram log: %w", err)
	}
	s.logger.Debug("telegram log appended", "records", len(events))
	return nil
}

// RecentTelegrams returns up to limit log entries for a station, newest
// first. An empty code returns entries for all stations.
func (s *Store) RecentTelegrams(ctx context.Context, code string, limit int) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, station_code, status, kind, record, created_at FROM telegram_log
		WHERE ? = '' OR station_code = ?
		ORDER BY id DESC LIMIT ?`,
		code, code, limit)
	if err != nil {
		return nil, fmt.Errorf("query telegram log: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var (
			e       LogEntry
			record  string
			created int64
		)
		if err := rows.Scan(&e.ID, &e.StationCode, &e.Status, &e.Kind, &record, &created); err != nil {
			return nil, fmt.Errorf("scan telegram log: %w", err)
		}
		e.Record = []byte(record)
		e.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
