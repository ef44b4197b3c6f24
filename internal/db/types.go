package db

import (
	"fmt"

	"github.com/fenlang/fen/internal/ast"
)

// FileID identifies a source file within one Database. IDs are assigned on
// first insert and never reused; they are not stable across processes —
// cross-process identity uses the file path.
type FileID int64

// FragID is a fragment's stable identity: (owning file, declared name,
// kind). It deliberately encodes nothing positional, so edits elsewhere in a
// file never change a fragment's identity.
type FragID struct {
	File FileID
	Name string
	Kind ast.Kind
}

func (id FragID) String() string {
	return fmt.Sprintf("%d/%s:%s", id.File, id.Kind, id.Name)
}

// State is a fragment's compilation state.
type State uint8

const (
	StateClean State = iota
	StateDirty
)

func (s State) String() string {
	if s == StateClean {
		return "clean"
	}
	return "dirty"
}

// Target selects a code-generation backend.
type Target string

const (
	TargetC      Target = "c"
	TargetRust   Target = "rust"
	TargetPython Target = "python"
)

// Fragment is one compilation unit: a single top-level declaration. Owned
// exclusively by the Database; callers read snapshots and mutate only
// through Database methods.
type Fragment struct {
	ID   FragID
	File FileID
	AST  ast.Decl
	Hash string // per-declaration content hash
	state State
	// errMsg is the parse-error sentinel: set when the owning file last
	// failed to parse, so the stale AST handle is known to be stale.
	errMsg string
}

// FileRecord is the per-file bookkeeping the Indexer maintains.
type FileRecord struct {
	ID       FileID
	Path     string
	Hash     string // whole-file content hash
	Frags    []FragID
	Imports  []string
	parseErr string
}

// Artifact is the cached generated output for one (fragment, target) pair.
type Artifact struct {
	Frag   FragID
	Target Target
	Code   string
	Header string // populated by targets with a header/source split
	// Hash is the fragment's content hash at generation time. A stored
	// artifact whose Hash no longer matches the fragment is treated as
	// absent, never as an error.
	Hash string
	// DepsHash covers the fragment's transitive dependency hashes at
	// generation time. Used only to validate warm-start restores from the
	// persistent mirror.
	DepsHash string
}

type artifactKey struct {
	frag   FragID
	target Target
}

// Stats is a point-in-time summary of Database contents.
type Stats struct {
	Files          int
	FragmentsTotal int
	DirtyCount     int
	Edges          int
	Artifacts      int
}
