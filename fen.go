package fen

import (
	"github.com/fenlang/fen/internal/db"
	"github.com/fenlang/fen/internal/indexer"
	"github.com/fenlang/fen/internal/trans"
)

// Target selects an output language.
type Target = db.Target

const (
	TargetC      = db.TargetC
	TargetRust   = db.TargetRust
	TargetPython = db.TargetPython
)

// FragID identifies one fragment: a top-level declaration in one file.
type FragID = db.FragID

// FileID identifies one interned source file.
type FileID = db.FileID

// Result is one incremental generation pass.
type Result = trans.Result

// Output is one fragment's generated code.
type Output = trans.Output

// IndexStats reports what one reindex touched.
type IndexStats = indexer.Stats

// DBStats summarizes database contents.
type DBStats = db.Stats
