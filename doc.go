// Package fen is an incremental transpiler for the Fen language. Source
// files are indexed into per-declaration fragments with content hashes and
// a dependency graph; edits dirty exactly the fragments they reach, and the
// C, Rust, and Python backends regenerate only those, serving cached
// artifacts for the rest.
//
// Typical use:
//
//	s, err := fen.NewSession()
//	if err != nil { ... }
//	defer s.Close()
//
//	res, err := s.Compile(ctx, "app.fen", fen.TargetC)
//	if err != nil { ... }
//	code, err := s.Assemble("app.fen", fen.TargetC, res)
package fen
