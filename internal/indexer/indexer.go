// Package indexer keeps the compilation database in sync with source text.
// A reindex is the only path that mutates fragment content: it diffs the
// fresh parse against stored fragments by (name, kind), touches only what
// changed, and finishes with transitive dirty propagation so downstream
// fragments regenerate.
package indexer

import (
	"log/slog"
	"os"

	"github.com/fenlang/fen/internal/db"
	"github.com/fenlang/fen/internal/parser"
)

// Indexer parses source files into the database. Parsing happens outside
// the database lock; only the commit of the diff holds it.
type Indexer struct {
	db  *db.Database
	log *slog.Logger
}

// New returns an Indexer over d. A nil logger falls back to slog.Default.
func New(d *db.Database, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{db: d, log: log}
}

// Stats reports what one reindex touched.
type Stats struct {
	File      db.FileID
	Unchanged bool // whole-file hash matched, nothing was done
	Added     int
	Updated   int
	Removed   int
	Dirtied   int // fragments dirtied by propagation, beyond the edits
}

// ReindexFile reads path from disk and indexes its contents.
func (ix *Indexer) ReindexFile(path string) (Stats, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, err
	}
	return ix.ReindexSource(path, src)
}

// ReindexSource indexes src under path. The whole-file hash gate makes
// re-submitting identical content a true no-op. A parse failure marks every
// fragment of the file dirty with the error and keeps the previous ASTs, so
// other files keep resolving against the last good index.
func (ix *Indexer) ReindexSource(path string, src []byte) (Stats, error) {
	fileID := ix.db.InternFile(path)
	stats := Stats{File: fileID}

	newHash := db.HashFile(string(src))
	if newHash == ix.db.FileHash(fileID) {
		stats.Unchanged = true
		return stats, nil
	}

	file, err := parser.Parse(path, string(src))
	if err != nil {
		ix.db.SetParseError(fileID, err.Error())
		ix.log.Warn("parse failed", "path", path, "err", err)
		return stats, err
	}

	old := make(map[db.FragID]bool)
	for _, id := range ix.db.FragmentsByFile(fileID) {
		old[id] = true
	}

	touched := make([]db.FragID, 0, len(file.Decls))
	for _, decl := range file.Decls {
		id := db.FragID{File: fileID, Name: decl.DeclName(), Kind: decl.DeclKind()}
		declHash := db.HashDecl(decl.Text())
		switch {
		case !old[id]:
			ix.db.PutFragment(fileID, decl, declHash)
			stats.Added++
		case declHash != ix.db.FragmentHash(id):
			ix.db.PutFragment(fileID, decl, declHash)
			stats.Updated++
		default:
			// Formatting-only edits land here: same normalized hash,
			// fresh AST handle, state untouched.
			ix.db.RefreshAST(id, decl)
		}
		touched = append(touched, id)
		delete(old, id)
	}
	for id := range old {
		ix.db.RemoveFragment(id)
		stats.Removed++
	}

	// Edges are recomputed for every fragment of the file, not just the
	// edited ones: an added declaration can change what an unchanged
	// neighbor's references resolve to.
	for _, id := range touched {
		decl, ok := ix.db.FragmentAST(id)
		if !ok {
			continue
		}
		ix.db.SetEdges(id, ix.scanDeps(id, decl))
	}

	stats.Dirtied = ix.db.PropagateDirty(fileID)
	ix.db.SetFileMeta(fileID, newHash, file.Imports)

	ix.log.Debug("reindexed",
		"path", path,
		"added", stats.Added, "updated", stats.Updated,
		"removed", stats.Removed, "dirtied", stats.Dirtied)
	return stats, nil
}
