package fen

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/fenlang/fen/internal/db"
	"github.com/fenlang/fen/internal/indexer"
	"github.com/fenlang/fen/internal/trans"
)

// Session is the long-lived compilation context: one database, one indexer,
// and one lazily-built backend per target. A Session is safe for concurrent
// use; compiles against different targets can overlap.
type Session struct {
	id  string
	log *slog.Logger

	db *db.Database
	ix *indexer.Indexer

	mu       sync.Mutex
	backends map[db.Target]trans.Backend
	parallel bool
	mirror   *db.Mirror

	stats CompileStats
}

// CompileStats accumulates counters across a Session's compiles.
type CompileStats struct {
	Compiles  int
	Generated int
	CacheHits int
	WarmHits  int
	Dirtied   int
}

// Option configures a Session.
type Option func(*Session) error

// WithLogger sets the session logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) error {
		s.log = log
		return nil
	}
}

// WithParallel enables the generation worker pool.
func WithParallel(parallel bool) Option {
	return func(s *Session) error {
		s.parallel = parallel
		return nil
	}
}

// WithArtifactCache attaches a persistent artifact cache at path, enabling
// warm starts across processes.
func WithArtifactCache(path string) Option {
	return func(s *Session) error {
		m, err := db.OpenMirror(path)
		if err != nil {
			return err
		}
		s.mirror = m
		return nil
	}
}

// NewSession creates an empty Session.
func NewSession(opts ...Option) (*Session, error) {
	s := &Session{
		id:       uuid.NewString(),
		log:      slog.Default(),
		backends: make(map[db.Target]trans.Backend),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.db = db.New(s.log)
	s.ix = indexer.New(s.db, s.log)
	if s.mirror != nil {
		s.db.SetMirror(s.mirror)
	}
	s.log.Debug("session created", "id", s.id)
	return s, nil
}

// ID returns the session's run identifier.
func (s *Session) ID() string { return s.id }

// DB exposes the underlying database for queries.
func (s *Session) DB() *db.Database { return s.db }

// Close releases the artifact cache, if any.
func (s *Session) Close() error {
	if s.mirror == nil {
		return nil
	}
	return s.mirror.Close()
}

// Reindex parses path from disk into the database.
func (s *Session) Reindex(path string) (indexer.Stats, error) {
	return s.ix.ReindexFile(path)
}

// ReindexSource parses src under path into the database, without touching
// the filesystem.
func (s *Session) ReindexSource(path string, src []byte) (indexer.Stats, error) {
	return s.ix.ReindexSource(path, src)
}

// Compile reindexes path from disk and generates target code for it.
// Unchanged files skip straight to generation; everything the last edits
// did not reach is served from cache.
func (s *Session) Compile(ctx context.Context, path string, target db.Target) (*trans.Result, error) {
	ixStats, err := s.Reindex(path)
	if err != nil {
		return nil, err
	}
	return s.transpile(ctx, ixStats, target)
}

// CompileSource is Compile over in-memory source.
func (s *Session) CompileSource(ctx context.Context, path string, src []byte, target db.Target) (*trans.Result, error) {
	ixStats, err := s.ReindexSource(path, src)
	if err != nil {
		return nil, err
	}
	return s.transpile(ctx, ixStats, target)
}

func (s *Session) transpile(ctx context.Context, ixStats indexer.Stats, target db.Target) (*trans.Result, error) {
	res, err := s.backend(target).TransIncremental(ctx, ixStats.File)
	if err != nil {
		return res, err
	}

	s.mu.Lock()
	s.stats.Compiles++
	s.stats.Generated += res.Generated
	s.stats.CacheHits += res.CacheHits
	s.stats.WarmHits += res.WarmHits
	s.stats.Dirtied += ixStats.Dirtied
	s.mu.Unlock()

	s.log.Info("compiled",
		"path", s.db.FilePath(ixStats.File),
		"target", string(target),
		"generated", res.Generated,
		"cache_hits", res.CacheHits,
		"warm_hits", res.WarmHits)
	return res, nil
}

// Assemble stitches a compile Result into one source file for target.
func (s *Session) Assemble(path string, target db.Target, res *trans.Result) (string, error) {
	fileID, ok := s.db.FileByPath(path)
	if !ok {
		return "", fmt.Errorf("unknown file %s", path)
	}
	return trans.Assemble(s.db, fileID, target, res), nil
}

// Stats returns the session's accumulated counters.
func (s *Session) Stats() CompileStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Snapshot returns the database's current size counters.
func (s *Session) Snapshot() db.Stats {
	return s.db.Snapshot()
}

func (s *Session) backend(target db.Target) trans.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	be, ok := s.backends[target]
	if !ok {
		switch target {
		case db.TargetRust:
			be = trans.NewRustBackend(s.db, s.log, s.parallel)
		case db.TargetPython:
			be = trans.NewPythonBackend(s.db, s.log, s.parallel)
		default:
			be = trans.NewCBackend(s.db, s.log, s.parallel)
		}
		s.backends[target] = be
	}
	return be
}
