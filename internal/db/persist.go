package db

import (
	"database/sql"
	"fmt"

	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"
)

// Mirror is the persistent artifact cache backing warm starts. It stores
// generated code keyed by (file path, fragment kind, fragment name, target)
// so entries survive process restarts and FileID renumbering. Code bodies
// are zstd-compressed; the stored hashes decide reuse, the Mirror itself
// never judges freshness.
type Mirror struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// OpenMirror opens (or creates) the artifact cache at dbPath with WAL mode
// enabled, and applies the schema.
func OpenMirror(dbPath string) (*Mirror, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open artifact cache: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping artifact cache: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		sqlDB.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	m := &Mirror{db: sqlDB, enc: enc, dec: dec}
	if err := m.migrate(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// Close releases the database connection and codec state.
func (m *Mirror) Close() error {
	m.enc.Close()
	m.dec.Close()
	return m.db.Close()
}

func (m *Mirror) migrate() error {
	_, err := m.db.Exec(mirrorDDL)
	if err != nil {
		return fmt.Errorf("migrate artifact cache: %w", err)
	}
	return nil
}

const mirrorDDL = `
CREATE TABLE IF NOT EXISTS artifacts (
  path       TEXT NOT NULL,
  kind       TEXT NOT NULL,
  name       TEXT NOT NULL,
  target     TEXT NOT NULL,
  hash       TEXT NOT NULL,
  deps_hash  TEXT NOT NULL,
  code       BLOB NOT NULL,
  header     BLOB,
  PRIMARY KEY (path, kind, name, target)
);
`

// Put upserts the artifact for its (path, kind, name, target) slot.
func (m *Mirror) Put(path string, a *Artifact) error {
	code := m.enc.EncodeAll([]byte(a.Code), nil)
	var header []byte
	if a.Header != "" {
		header = m.enc.EncodeAll([]byte(a.Header), nil)
	}
	_, err := m.db.Exec(`
		INSERT INTO artifacts (path, kind, name, target, hash, deps_hash, code, header)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, kind, name, target) DO UPDATE SET
		  hash = excluded.hash,
		  deps_hash = excluded.deps_hash,
		  code = excluded.code,
		  header = excluded.header`,
		path, string(a.Frag.Kind), a.Frag.Name, string(a.Target),
		a.Hash, a.DepsHash, code, header)
	if err != nil {
		return fmt.Errorf("mirror put %s/%s: %w", path, a.Frag.Name, err)
	}
	return nil
}

// Get loads the stored artifact for (path, id, target). A missing row is
// (nil, nil); corrupt rows surface as errors.
func (m *Mirror) Get(path string, id FragID, target Target) (*Artifact, error) {
	var hash, depsHash string
	var code, header []byte
	err := m.db.QueryRow(`
		SELECT hash, deps_hash, code, header FROM artifacts
		WHERE path = ? AND kind = ? AND name = ? AND target = ?`,
		path, string(id.Kind), id.Name, string(target)).
		Scan(&hash, &depsHash, &code, &header)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mirror get %s/%s: %w", path, id.Name, err)
	}
	codeRaw, err := m.dec.DecodeAll(code, nil)
	if err != nil {
		return nil, fmt.Errorf("mirror decode %s/%s: %w", path, id.Name, err)
	}
	a := &Artifact{Frag: id, Target: target, Code: string(codeRaw), Hash: hash, DepsHash: depsHash}
	if len(header) > 0 {
		headerRaw, err := m.dec.DecodeAll(header, nil)
		if err != nil {
			return nil, fmt.Errorf("mirror decode %s/%s: %w", path, id.Name, err)
		}
		a.Header = string(headerRaw)
	}
	return a, nil
}
