// Package trans holds the transpiler backends. Each backend turns Fen
// declarations into one target language, fragment by fragment, reusing
// cached artifacts for everything the last edit did not reach. Backends
// never mutate fragment content; their only writes are artifact commits.
package trans

import (
	"context"
	"fmt"

	"github.com/fenlang/fen/internal/ast"
	"github.com/fenlang/fen/internal/db"
)

// Output is one fragment's generated code. Header is only used by targets
// with a declaration/definition split (C prototypes and type definitions).
type Output struct {
	Code   string
	Header string
}

// Result reports one incremental generation pass over a file's transitive
// fragment set.
type Result struct {
	Outputs   map[db.FragID]Output
	Generated int // fragments actually regenerated
	CacheHits int // served from the in-memory artifact cache
	WarmHits  int // restored from the persistent mirror
}

// CodegenError is a per-fragment generation failure.
type CodegenError struct {
	Frag   db.FragID
	Target db.Target
	Msg    string
}

func (e *CodegenError) Error() string {
	return fmt.Sprintf("generate %s for %s: %s", e.Target, e.Frag.String(), e.Msg)
}

// Backend generates one target language incrementally.
type Backend interface {
	Target() db.Target

	// TransIncremental generates code for every fragment the file
	// transitively needs. Clean fragments with a valid cached artifact
	// are byte-identical cache hits; only dirty fragments regenerate.
	TransIncremental(ctx context.Context, fileID db.FileID) (*Result, error)
}

// generator is the language-specific half of a backend. genDecl must be
// safe for concurrent use; it reads the database only through the emit
// context's snapshot-style queries.
type generator interface {
	target() db.Target
	genDecl(decl ast.Decl, ec *emitCtx) (Output, error)
}

// emitCtx gives generators read access to cross-fragment facts: what a name
// resolves to, which file defines it, and declaration signatures for call
// sites.
type emitCtx struct {
	db   *db.Database
	file db.FileID
}

// resolveDecl returns the AST of the nearest definition of name, preferring
// the emitting file over imports.
func (ec *emitCtx) resolveDecl(name string) (ast.Decl, db.FragID, bool) {
	candidates := ec.db.Resolve(name)
	if len(candidates) == 0 {
		return nil, db.FragID{}, false
	}
	best := candidates[0]
	for _, c := range candidates {
		if c.File == ec.file {
			best = c
			break
		}
	}
	decl, ok := ec.db.FragmentAST(best)
	return decl, best, ok
}

// definerPath returns the source path of the file defining id.
func (ec *emitCtx) definerPath(id db.FragID) string {
	return ec.db.FilePath(id.File)
}
