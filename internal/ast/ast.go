// Package ast defines the syntax tree for Fen source files. The parser
// produces one File per source file; each top-level declaration carries its
// own raw text span so the indexer can hash declarations independently.
package ast

// Kind classifies a top-level declaration. Together with the declared name
// and owning file it forms a fragment's stable identity.
type Kind string

const (
	KindFunc  Kind = "fn"
	KindType  Kind = "type"
	KindTag   Kind = "tag"
	KindConst Kind = "const"
)

// File is the parse result for one source file.
type File struct {
	Path    string
	Imports []string // use paths, in declaration order
	Decls   []Decl
}

// Decl is a top-level declaration: one of FuncDecl, TypeDecl, TagDecl,
// ConstDecl.
type Decl interface {
	DeclName() string
	DeclKind() Kind
	// Text is the declaration's raw source text, used for content hashing.
	Text() string
}

// Param is a function parameter with a declared type name.
type Param struct {
	Name string
	Type string
}

// Field is a struct field with a declared type name.
type Field struct {
	Name string
	Type string
}

type FuncDecl struct {
	Name   string
	Params []Param
	Ret    string // "" means no return value
	Body   *Block
	Line   int
	Src    string
}

func (d *FuncDecl) DeclName() string { return d.Name }
func (d *FuncDecl) DeclKind() Kind   { return KindFunc }
func (d *FuncDecl) Text() string     { return d.Src }

type TypeDecl struct {
	Name   string
	Fields []Field
	Line   int
	Src    string
}

func (d *TypeDecl) DeclName() string { return d.Name }
func (d *TypeDecl) DeclKind() Kind   { return KindType }
func (d *TypeDecl) Text() string     { return d.Src }

// TagDecl declares a closed set of variants (an enum-like tag).
type TagDecl struct {
	Name     string
	Variants []string
	Line     int
	Src      string
}

func (d *TagDecl) DeclName() string { return d.Name }
func (d *TagDecl) DeclKind() Kind   { return KindTag }
func (d *TagDecl) Text() string     { return d.Src }

type ConstDecl struct {
	Name  string
	Value Expr
	Line  int
	Src   string
}

func (d *ConstDecl) DeclName() string { return d.Name }
func (d *ConstDecl) DeclKind() Kind   { return KindConst }
func (d *ConstDecl) Text() string     { return d.Src }

// --- Statements ---

type Stmt interface{ stmtNode() }

type Block struct {
	Stmts []Stmt
}

// LetStmt declares a local with an explicit type annotation.
type LetStmt struct {
	Name  string
	Type  string
	Value Expr
}

type AssignStmt struct {
	Name  string
	Value Expr
}

type ReturnStmt struct {
	Value Expr // nil for bare return
}

type ExprStmt struct {
	X Expr
}

type IfStmt struct {
	Cond Expr
	Then *Block
	Else *Block // nil when absent
}

type WhileStmt struct {
	Cond Expr
	Body *Block
}

func (*LetStmt) stmtNode()    {}
func (*AssignStmt) stmtNode() {}
func (*ReturnStmt) stmtNode() {}
func (*ExprStmt) stmtNode()   {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}

// --- Expressions ---

type Expr interface{ exprNode() }

type IntLit struct {
	Value int64
}

type FloatLit struct {
	Text string // verbatim literal, preserved for codegen
}

type StrLit struct {
	Value string
}

type BoolLit struct {
	Value bool
}

type Ident struct {
	Name string
}

type CallExpr struct {
	Name string
	Args []Expr
}

type BinaryExpr struct {
	Op string
	X  Expr
	Y  Expr
}

type UnaryExpr struct {
	Op string
	X  Expr
}

func (*IntLit) exprNode()     {}
func (*FloatLit) exprNode()   {}
func (*StrLit) exprNode()     {}
func (*BoolLit) exprNode()    {}
func (*Ident) exprNode()      {}
func (*CallExpr) exprNode()   {}
func (*BinaryExpr) exprNode() {}
func (*UnaryExpr) exprNode()  {}
