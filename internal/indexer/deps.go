package indexer

import (
	"sort"

	"github.com/fenlang/fen/internal/ast"
	"github.com/fenlang/fen/internal/db"
)

// scanDeps extracts the outgoing dependency edges of one declaration: call
// targets, referenced constants, and named types, resolved through the
// database's symbol index. Names bound locally (parameters, let bindings)
// shadow top-level declarations and produce no edge. When a name resolves
// to definitions in several files, every definer gets an edge; depending on
// too much costs a regeneration, depending on too little serves stale code.
func (ix *Indexer) scanDeps(self db.FragID, decl ast.Decl) []db.FragID {
	locals := localNames(decl)

	names := make(map[string]bool)
	ast.WalkExprs(decl, func(e ast.Expr) {
		switch x := e.(type) {
		case *ast.CallExpr:
			names[x.Name] = true
		case *ast.Ident:
			if !locals[x.Name] {
				names[x.Name] = true
			}
		}
	})
	for _, name := range ast.TypeRefs(decl) {
		if !ast.Builtin(name) {
			names[name] = true
		}
	}

	set := make(map[db.FragID]bool)
	for name := range names {
		for _, target := range ix.db.Resolve(name) {
			if target != self {
				set[target] = true
			}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]db.FragID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// localNames collects every name a function binds itself.
func localNames(decl ast.Decl) map[string]bool {
	fn, ok := decl.(*ast.FuncDecl)
	if !ok {
		return nil
	}
	locals := make(map[string]bool)
	for _, p := range fn.Params {
		locals[p.Name] = true
	}
	var walkStmts func(b *ast.Block)
	walkStmts = func(b *ast.Block) {
		if b == nil {
			return
		}
		for _, s := range b.Stmts {
			switch st := s.(type) {
			case *ast.LetStmt:
				locals[st.Name] = true
			case *ast.IfStmt:
				walkStmts(st.Then)
				walkStmts(st.Else)
			case *ast.WhileStmt:
				walkStmts(st.Body)
			}
		}
	}
	walkStmts(fn.Body)
	return locals
}
