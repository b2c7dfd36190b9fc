package store

import (
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

// Current schema version
const SchemaVersion = "1"

// SQLite is a SQLite-backed store. Macros are kept as JSON documents,
// with every distinct code body recorded in macro_versions.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite creates a new SQLite store at the given path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS macros (
			name TEXT PRIMARY KEY,
			data TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS macro_versions (
			name TEXT NOT NULL,
			version INTEGER NOT NULL,
			code TEXT NOT NULL,
			ts TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			PRIMARY KEY (name, version)
		);
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating tables")
	}

	s := &SQLite{db: db}

	version, err := s.getMetadataUnlocked("schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}
	switch version {
	case "":
		if err := s.setMetadataUnlocked("schema_version", SchemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	case SchemaVersion:
	default:
		db.Close()
		return nil, errors.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}

	return s, nil
}

// Get retrieves a macro by name.
func (s *SQLite) Get(name string) (*Macro, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data string
	err := s.db.QueryRow("SELECT data FROM macros WHERE name = ?", Key(name)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var m Macro
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, errors.Wrapf(err, "decoding macro %s", name)
	}
	return &m, nil
}

// Put stores a macro and records a new version if its code changed.
func (s *SQLite) Put(m *Macro) error {
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	key := Key(m.Name)
	if _, err := tx.Exec(`
		INSERT INTO macros (name, data) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data
	`, key, string(data)); err != nil {
		return err
	}

	var latest sql.NullString
	var version int
	err = tx.QueryRow(`
		SELECT code, version FROM macro_versions WHERE name = ? ORDER BY version DESC LIMIT 1
	`, key).Scan(&latest, &version)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if !latest.Valid || latest.String != m.Code {
		if _, err := tx.Exec(`
			INSERT INTO macro_versions (name, version, code) VALUES (?, ?, ?)
		`, key, version+1, m.Code); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes a macro by name. Its history is kept.
func (s *SQLite) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM macros WHERE name = ?", Key(name))
	return err
}

// List returns every macro sorted by name.
func (s *SQLite) List() ([]*Macro, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT data FROM macros ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Macro
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var m Macro
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// GetHistory returns stored versions newest first. A limit of 0 returns all.
func (s *SQLite) GetHistory(name string, limit int) ([]VersionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT version, code, ts FROM macro_versions WHERE name = ? ORDER BY version DESC LIMIT ?
	`, Key(name), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VersionEntry
	for rows.Next() {
		var v VersionEntry
		if err := rows.Scan(&v.Version, &v.Code, &v.Ts); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetMetadata retrieves a metadata value by key.
func (s *SQLite) GetMetadata(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMetadataUnlocked(key)
}

// getMetadataUnlocked retrieves metadata without locking (caller must hold lock).
func (s *SQLite) getMetadataUnlocked(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata stores a metadata value by key.
func (s *SQLite) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setMetadataUnlocked(key, value)
}

// setMetadataUnlocked stores metadata without locking (caller must hold lock).
func (s *SQLite) setMetadataUnlocked(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
