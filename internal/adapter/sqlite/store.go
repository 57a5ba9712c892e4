// Package sqlite is the local relational store: the station directory, the
// rating-curve history, stored hydrological metrics and the telegram log.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/hydro-telegram-etl/internal/domain"
	"github.com/couchcryptid/hydro-telegram-etl/internal/ratingcurve"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS stations (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	code     TEXT NOT NULL,
	name     TEXT NOT NULL,
	kind     TEXT NOT NULL CHECK (kind IN ('hydro', 'meteo')),
	timezone TEXT NOT NULL DEFAULT 'UTC',
	UNIQUE (code, kind)
);

CREATE TABLE IF NOT EXISTS rating_curves (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	station_id INTEGER NOT NULL REFERENCES stations(id) ON DELETE CASCADE,
	valid_from INTEGER NOT NULL,
	param_a    REAL NOT NULL,
	param_b    REAL NOT NULL,
	param_c    REAL NOT NULL,
	UNIQUE (station_id, valid_from)
);

CREATE TABLE IF NOT EXISTS metrics (
	station_id  INTEGER NOT NULL REFERENCES stations(id) ON DELETE CASCADE,
	metric_name TEXT NOT NULL,
	value_type  TEXT NOT NULL,
	value       REAL NOT NULL,
	timestamp   INTEGER NOT NULL,
	PRIMARY KEY (station_id, metric_name, timestamp)
);

CREATE TABLE IF NOT EXISTS telegram_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	station_code TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	kind         TEXT NOT NULL DEFAULT '',
	record       TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_telegram_log_station ON telegram_log(station_code);`

// Store implements domain.StationDirectory, domain.RatingCurveRepository and
// domain.MetricStore over SQLite. Its LoadBatch makes it a pipeline loader
// for the telegram log.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// PRAGMAs are per connection and :memory: databases are per connection too.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info("station database opened", "path", path)
	return &Store{db: db, logger: logger, now: domain.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- stations ---

// SaveStation inserts or renames a station and returns it with its ID.
func (s *Store) SaveStation(ctx context.Context, st domain.Station) (domain.Station, error) {
	tz := st.Timezone().String()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO stations (code, name, kind, timezone) VALUES (?, ?, ?, ?)
		ON CONFLICT (code, kind) DO UPDATE SET name = excluded.name, timezone = excluded.timezone
		RETURNING id`,
		st.Code, st.Name, string(st.Kind), tz)
	if err := row.Scan(&st.ID); err != nil {
		return domain.Station{}, fmt.Errorf("save station %s (%s): %w", st.Code, st.Kind, err)
	}
	return st, nil
}

func (s *Store) ExistsManualStation(ctx context.Context, code string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stations WHERE code = ?`, code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query station %s: %w", code, err)
	}
	return n > 0, nil
}

func (s *Store) ResolveStation(ctx context.Context, code string, kind domain.StationKind) (domain.Station, error) {
	var (
		st = domain.Station{Code: code, Kind: kind}
		tz string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, timezone FROM stations WHERE code = ? AND kind = ?`,
		code, string(kind)).Scan(&st.ID, &st.Name, &tz)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Station{}, fmt.Errorf("%w: %s station %s", domain.ErrStationNotFound, kind, code)
	}
	if err != nil {
		return domain.Station{}, fmt.Errorf("query %s station %s: %w", kind, code, err)
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return domain.Station{}, fmt.Errorf("station %s timezone %q: %w", code, tz, err)
	}
	st.Location = loc
	return st, nil
}

// --- rating curves ---

// SaveRatingCurve records params as valid from validFrom onwards.
func (s *Store) SaveRatingCurve(ctx context.Context, station domain.Station, validFrom time.Time, p ratingcurve.Params) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rating_curves (station_id, valid_from, param_a, param_b, param_c) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (station_id, valid_from) DO UPDATE SET
			param_a = excluded.param_a, param_b = excluded.param_b, param_c = excluded.param_c`,
		station.ID, validFrom.Unix(), p.A, p.B, p.C)
	if err != nil {
		return fmt.Errorf("save rating curve for station %s: %w", station.Code, err)
	}
	return nil
}

// ActiveCurve returns the latest curve whose validity started at or before at.
func (s *Store) ActiveCurve(ctx context.Context, station domain.Station, at time.Time) (ratingcurve.Params, error) {
	var p ratingcurve.Params
	err := s.db.QueryRowContext(ctx, `
		SELECT param_a, param_b, param_c FROM rating_curves
		WHERE station_id = ? AND valid_from <= ?
		ORDER BY valid_from DESC LIMIT 1`,
		station.ID, at.Unix()).Scan(&p.A, &p.B, &p.C)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("%w %s at %s", domain.ErrNoRatingCurve, station.Code, at.Format(time.RFC3339))
	}
	if err != nil {
		return p, fmt.Errorf("query rating curve for station %s: %w", station.Code, err)
	}
	return p, nil
}

// --- metrics ---

// SaveMetrics upserts metrics for a station in one transaction.
func (s *Store) SaveMetrics(ctx context.Context, station domain.Station, metrics []domain.Metric) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metrics (station_id, metric_name, value_type, value, timestamp) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (station_id, metric_name, timestamp) DO UPDATE SET
			value_type = excluded.value_type, value = excluded.value`)
	if err != nil {
		return fmt.Errorf("prepare metric insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range metrics {
		if _, err := stmt.ExecContext(ctx, station.ID, string(m.Name), string(m.ValueType), m.Value, m.Timestamp.Unix()); err != nil {
			return fmt.Errorf("insert %s for station %s at %s: %w", m.Name, station.Code, m.Timestamp.Format(time.RFC3339), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit metrics: %w", err)
	}
	return nil
}

// GetMetrics returns the station's metrics in [from, to), ordered by time,
// with timestamps in the station's zone.
func (s *Store) GetMetrics(ctx context.Context, station domain.Station, from, to time.Time) ([]domain.Metric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT metric_name, value_type, value, timestamp FROM metrics
		WHERE station_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp, metric_name`,
		station.ID, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("query metrics for station %s: %w", station.Code, err)
	}
	defer rows.Close()

	loc := station.Timezone()
	var out []domain.Metric
	for rows.Next() {
		var (
			m         domain.Metric
			name, vt  string
			timestamp int64
		)
		if err := rows.Scan(&name, &vt, &m.Value, &timestamp); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.Name = domain.MetricName(name)
		m.ValueType = domain.ValueType(vt)
		m.Timestamp = time.Unix(timestamp, 0).In(loc)
		out = append(out, m)
	}
	return out, rows.Err()
}
