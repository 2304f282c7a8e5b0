// Package persistence provides SQLite-based storage for the engine
// snapshot and the event journal. The engine treats the snapshot as an
// opaque blob it can serialize to and restore from; writes are full
// transactional replaces, so readers never see torn state.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/critterbox/internal/engine"
	"github.com/talgya/critterbox/internal/timeconv"
)

// DB wraps a SQLite connection for snapshot persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS need_levels (
		name TEXT PRIMARY KEY,
		level REAL NOT NULL,
		critical INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS journal (
		id TEXT PRIMARY KEY,
		at INTEGER NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_at ON journal(at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveSnapshot writes the engine snapshot (full replace) and the last
// update instant in one transaction.
func (db *DB) SaveSnapshot(s engine.Snapshot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM need_levels"); err != nil {
		return err
	}

	stmt, err := tx.Preparex("INSERT INTO need_levels (name, level, critical) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, lv := range s.Levels {
		critical := 0
		if lv.Critical {
			critical = 1
		}
		if _, err := stmt.Exec(lv.Name, lv.Level, critical); err != nil {
			return fmt.Errorf("insert level %s: %w", lv.Name, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES ('last_update', ?)",
		strconv.FormatInt(int64(s.LastUpdate), 10),
	); err != nil {
		return fmt.Errorf("save last_update: %w", err)
	}

	return tx.Commit()
}

// LoadSnapshot restores the saved snapshot. ok is false when the
// database holds no prior state (first run).
func (db *DB) LoadSnapshot() (s engine.Snapshot, ok bool, err error) {
	var raw string
	err = db.conn.Get(&raw, "SELECT value FROM meta WHERE key = 'last_update'")
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Snapshot{}, false, nil
	}
	if err != nil {
		return engine.Snapshot{}, false, fmt.Errorf("load last_update: %w", err)
	}
	last, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return engine.Snapshot{}, false, fmt.Errorf("parse last_update %q: %w", raw, err)
	}
	s.LastUpdate = timeconv.CanonicalTime(last)

	rows := []struct {
		Name     string  `db:"name"`
		Level    float64 `db:"level"`
		Critical int     `db:"critical"`
	}{}
	if err := db.conn.Select(&rows, "SELECT name, level, critical FROM need_levels ORDER BY name"); err != nil {
		return engine.Snapshot{}, false, fmt.Errorf("load levels: %w", err)
	}
	for _, r := range rows {
		s.Levels = append(s.Levels, engine.NeedLevel{
			Name:     r.Name,
			Level:    r.Level,
			Critical: r.Critical != 0,
		})
	}
	return s, true, nil
}

// AppendJournal persists drained engine events.
func (db *DB) AppendJournal(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO journal (id, at, category, description) VALUES (?, ?, ?, ?)",
			e.ID.String(), int64(e.At), e.Category, e.Description,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentJournal returns the most recent N journal entries, newest first.
func (db *DB) RecentJournal(limit int) ([]engine.Event, error) {
	rows := []struct {
		ID          string `db:"id"`
		At          int64  `db:"at"`
		Category    string `db:"category"`
		Description string `db:"description"`
	}{}
	err := db.conn.Select(&rows,
		"SELECT id, at, category, description FROM journal ORDER BY at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("journal id %q: %w", r.ID, err)
		}
		out = append(out, engine.Event{
			ID:          id,
			At:          timeconv.CanonicalTime(r.At),
			Category:    r.Category,
			Description: r.Description,
		})
	}
	return out, nil
}
