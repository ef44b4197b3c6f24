package ast

// WalkExprs visits every expression reachable from d, depth-first. Used by
// the dependency scanner and by backends collecting callee names.
func WalkExprs(d Decl, fn func(Expr)) {
	switch d := d.(type) {
	case *FuncDecl:
		walkBlock(d.Body, fn)
	case *ConstDecl:
		walkExpr(d.Value, fn)
	}
}

func walkBlock(b *Block, fn func(Expr)) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		walkStmt(s, fn)
	}
}

func walkStmt(s Stmt, fn func(Expr)) {
	switch s := s.(type) {
	case *LetStmt:
		walkExpr(s.Value, fn)
	case *AssignStmt:
		walkExpr(s.Value, fn)
	case *ReturnStmt:
		walkExpr(s.Value, fn)
	case *ExprStmt:
		walkExpr(s.X, fn)
	case *IfStmt:
		walkExpr(s.Cond, fn)
		walkBlock(s.Then, fn)
		walkBlock(s.Else, fn)
	case *WhileStmt:
		walkExpr(s.Cond, fn)
		walkBlock(s.Body, fn)
	}
}

func walkExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch e := e.(type) {
	case *CallExpr:
		for _, a := range e.Args {
			walkExpr(a, fn)
		}
	case *BinaryExpr:
		walkExpr(e.X, fn)
		walkExpr(e.Y, fn)
	case *UnaryExpr:
		walkExpr(e.X, fn)
	}
}

// TypeRefs returns the user-declared type names a declaration mentions in
// its signature or fields. Builtin type names are filtered by the caller.
func TypeRefs(d Decl) []string {
	var refs []string
	switch d := d.(type) {
	case *FuncDecl:
		for _, p := range d.Params {
			refs = append(refs, p.Type)
		}
		if d.Ret != "" {
			refs = append(refs, d.Ret)
		}
	case *TypeDecl:
		for _, f := range d.Fields {
			refs = append(refs, f.Type)
		}
	}
	return refs
}

// Builtin reports whether name is a builtin Fen type.
func Builtin(name string) bool {
	switch name {
	case "int", "float", "str", "bool", "void":
		return true
	}
	return false
}
