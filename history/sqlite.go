package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// SQLite is a [Store] backed by a SQLite database file.
// Timestamps are stored as unix milliseconds.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// OpenSQLite opens (creating if needed) the database at cfg.Path and applies
// the schema.
func OpenSQLite(cfg Config, logger *slog.Logger) (*SQLite, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	applyPragmas(context.Background(), db, cfg.BusyTimeout, logger)

	s := &SQLite{db: db, logger: logger, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}

	logger.Debug("history store opened", "driver", "sqlite", "path", cfg.Path)
	return s, nil
}

// applyPragmas tunes the connection. Failures leave the database usable with
// SQLite defaults, so they are logged rather than returned.
func applyPragmas(ctx context.Context, db *sql.DB, busyTimeout time.Duration, logger *slog.Logger) {
	if busyTimeout > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds())); err != nil {
			logger.Warn("sqlite pragma failed", "pragma", "busy_timeout", "error", err)
		}
	}

	// journal_mode reports the mode in effect, which differs when WAL is refused
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode = WAL").Scan(&mode); err != nil {
		logger.Warn("sqlite pragma failed", "pragma", "journal_mode", "error", err)
	} else if !strings.EqualFold(mode, "wal") {
		logger.Warn("sqlite WAL not enabled", "journal_mode", mode)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL"); err != nil {
		logger.Warn("sqlite pragma failed", "pragma", "synchronous", "error", err)
	}
}

func (s *SQLite) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

// Close closes the database. Safe to call on a nil store.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Save(ctx context.Context, panel string, payload json.RawMessage, at time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	if at.IsZero() {
		at = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO panel_history(panel_name, fetched_at, payload) VALUES(?,?,?)`,
		panel, at.UnixMilli(), string(payload),
	)
	if err != nil {
		return 0, fmt.Errorf("save %s: %w", panel, err)
	}
	return res.LastInsertId()
}

func (s *SQLite) LoadLatest(ctx context.Context, panel string) (Record, bool, error) {
	if s == nil || s.db == nil {
		return Record{}, false, ErrClosed
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, fetched_at, payload FROM panel_history
		 WHERE panel_name = ?
		 ORDER BY fetched_at DESC, id DESC LIMIT 1`,
		panel,
	)
	rec, err := scanRecord(row, panel)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load latest %s: %w", panel, err)
	}
	return rec, true, nil
}

func (s *SQLite) LoadHistory(ctx context.Context, panel string, window time.Duration, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	since := s.now().Add(-window).UnixMilli()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fetched_at, payload FROM panel_history
		 WHERE panel_name = ? AND fetched_at >= ?
		 ORDER BY fetched_at DESC, id DESC LIMIT ?`,
		panel, since, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", panel, err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows, panel)
		if err != nil {
			return nil, fmt.Errorf("load history %s: %w", panel, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLite) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	cutoff := s.now().Add(-olderThan).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM panel_history WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	s.logger.Debug("history pruned", "removed", n, "older_than", olderThan)
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner, panel string) (Record, error) {
	var (
		rec     Record
		ms      int64
		payload string
	)
	if err := sc.Scan(&rec.ID, &ms, &payload); err != nil {
		return Record{}, err
	}
	rec.Panel = panel
	rec.FetchedAt = time.UnixMilli(ms)
	rec.Payload = json.RawMessage(payload)
	return rec, nil
}
