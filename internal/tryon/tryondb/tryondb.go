// Package tryondb persists per-frame diagnostics to sqlite so sessions
// can be replayed and tuning regressions compared offline.
package tryondb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/vastravista/tryon/internal/monitoring"
	"github.com/vastravista/tryon/internal/tryon"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// TryonDB wraps the diagnostics database handle.
type TryonDB struct {
	*sql.DB
}

// Open opens (creating if needed) the diagnostics database at path and
// applies any pending migrations.
func Open(path string) (*TryonDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open diagnostics db: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &TryonDB{db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	// Closing m would close the underlying DB connection, so we don't.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// InsertFrame persists one frame record and returns its row id.
func (tdb *TryonDB) InsertFrame(rec tryon.FrameRecord) (int64, error) {
	stmt := `INSERT INTO tryon_frames (session_id, unix_nanos, garment, confidence, usable, frozen, latency_nanos, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tdb.Exec(stmt, rec.SessionID, rec.UnixNanos, string(rec.Garment), rec.Confidence,
		boolToInt(rec.Usable), boolToInt(rec.Frozen), rec.LatencyNanos, rec.Error)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertFrames persists a batch of frame records in one transaction.
func (tdb *TryonDB) InsertFrames(recs []tryon.FrameRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := tdb.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO tryon_frames (session_id, unix_nanos, garment, confidence, usable, frozen, latency_nanos, error)
							 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, rec := range recs {
		if _, err := stmt.Exec(rec.SessionID, rec.UnixNanos, string(rec.Garment), rec.Confidence,
			boolToInt(rec.Usable), boolToInt(rec.Frozen), rec.LatencyNanos, rec.Error); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SessionSummary aggregates a session's recorded frames.
type SessionSummary struct {
	SessionID      string
	Frames         int64
	FrozenFrames   int64
	MeanConfidence float64
	FirstUnixNanos int64
	LastUnixNanos  int64
}

// SessionSummaries reports one row per recorded session, newest first.
func (tdb *TryonDB) SessionSummaries() ([]SessionSummary, error) {
	rows, err := tdb.Query(`SELECT session_id, COUNT(*), SUM(frozen), AVG(confidence), MIN(unix_nanos), MAX(unix_nanos)
							FROM tryon_frames GROUP BY session_id ORDER BY MAX(unix_nanos) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.SessionID, &s.Frames, &s.FrozenFrames, &s.MeanConfidence, &s.FirstUnixNanos, &s.LastUnixNanos); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecentFrames returns up to limit frames for a session, newest first.
func (tdb *TryonDB) RecentFrames(sessionID string, limit int) ([]tryon.FrameRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := tdb.Query(`SELECT session_id, unix_nanos, garment, confidence, usable, frozen, latency_nanos, error
							FROM tryon_frames WHERE session_id = ? ORDER BY unix_nanos DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tryon.FrameRecord
	for rows.Next() {
		var rec tryon.FrameRecord
		var garment string
		var usable, frozen int
		if err := rows.Scan(&rec.SessionID, &rec.UnixNanos, &garment, &rec.Confidence, &usable, &frozen, &rec.LatencyNanos, &rec.Error); err != nil {
			return nil, err
		}
		rec.Garment = tryon.Garment(garment)
		rec.Usable = usable != 0
		rec.Frozen = frozen != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
