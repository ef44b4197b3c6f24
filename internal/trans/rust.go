package trans

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fenlang/fen/internal/ast"
	"github.com/fenlang/fen/internal/db"
)

// rustGen emits Rust. Everything is pub so assembled modules can cross-call
// without visibility plumbing; locals are always `let mut` because Fen
// allows reassignment.
type rustGen struct{}

// NewRustBackend returns the Rust backend over d.
func NewRustBackend(d *db.Database, log *slog.Logger, parallel bool) Backend {
	return newRunner(d, log, rustGen{}, parallel)
}

func (rustGen) target() db.Target { return db.TargetRust }

func rustType(t string) string {
	switch t {
	case "int":
		return "i64"
	case "float":
		return "f64"
	case "str":
		return "&str"
	case "bool":
		return "bool"
	default:
		return t
	}
}

func (g rustGen) genDecl(decl ast.Decl, ec *emitCtx) (Output, error) {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		return g.genFunc(d)
	case *ast.TypeDecl:
		var b strings.Builder
		fmt.Fprintf(&b, "pub struct %s {\n", d.Name)
		for _, f := range d.Fields {
			fmt.Fprintf(&b, "    pub %s: %s,\n", f.Name, rustType(f.Type))
		}
		b.WriteString("}\n")
		return Output{Code: b.String()}, nil
	case *ast.TagDecl:
		var b strings.Builder
		fmt.Fprintf(&b, "pub enum %s {\n", d.Name)
		for _, v := range d.Variants {
			fmt.Fprintf(&b, "    %s,\n", v)
		}
		b.WriteString("}\n")
		return Output{Code: b.String()}, nil
	case *ast.ConstDecl:
		val, err := g.expr(d.Value)
		if err != nil {
			return Output{}, err
		}
		return Output{Code: fmt.Sprintf("pub const %s: %s = %s;\n", d.Name, rustConstType(d.Value), val)}, nil
	default:
		return Output{}, &CodegenError{Target: db.TargetRust, Msg: fmt.Sprintf("unsupported declaration %q", decl.DeclName())}
	}
}

// rustConstType infers the const's Rust type from its literal shape.
func rustConstType(e ast.Expr) string {
	switch e.(type) {
	case *ast.FloatLit:
		return "f64"
	case *ast.StrLit:
		return "&str"
	case *ast.BoolLit:
		return "bool"
	default:
		return "i64"
	}
}

func (g rustGen) genFunc(d *ast.FuncDecl) (Output, error) {
	var b strings.Builder
	b.WriteString("pub fn ")
	b.WriteString(d.Name)
	b.WriteByte('(')
	for i, p := range d.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", p.Name, rustType(p.Type))
	}
	b.WriteByte(')')
	if d.Ret != "" {
		fmt.Fprintf(&b, " -> %s", rustType(d.Ret))
	}
	b.WriteString(" {\n")
	if err := g.block(&b, d.Body, 1); err != nil {
		return Output{}, err
	}
	b.WriteString("}\n")
	return Output{Code: b.String()}, nil
}

func (g rustGen) block(b *strings.Builder, blk *ast.Block, depth int) error {
	if blk == nil {
		return nil
	}
	ind := strings.Repeat("    ", depth)
	for _, s := range blk.Stmts {
		switch st := s.(type) {
		case *ast.LetStmt:
			val, err := g.expr(st.Value)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "%slet mut %s: %s = %s;\n", ind, st.Name, rustType(st.Type), val)
		case *ast.AssignStmt:
			val, err := g.expr(st.Value)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "%s%s = %s;\n", ind, st.Name, val)
		case *ast.ReturnStmt:
			if st.Value == nil {
				fmt.Fprintf(b, "%sreturn;\n", ind)
				break
			}
			val, err := g.expr(st.Value)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "%sreturn %s;\n", ind, val)
		case *ast.ExprStmt:
			val, err := g.expr(st.X)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "%s%s;\n", ind, val)
		case *ast.IfStmt:
			cond, err := g.expr(st.Cond)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "%sif %s {\n", ind, cond)
			if err := g.block(b, st.Then, depth+1); err != nil {
				return err
			}
			if st.Else != nil {
				fmt.Fprintf(b, "%s} else {\n", ind)
				if err := g.block(b, st.Else, depth+1); err != nil {
					return err
				}
			}
			fmt.Fprintf(b, "%s}\n", ind)
		case *ast.WhileStmt:
			cond, err := g.expr(st.Cond)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "%swhile %s {\n", ind, cond)
			if err := g.block(b, st.Body, depth+1); err != nil {
				return err
			}
			fmt.Fprintf(b, "%s}\n", ind)
		default:
			return &CodegenError{Target: db.TargetRust, Msg: fmt.Sprintf("unsupported statement %T", s)}
		}
	}
	return nil
}

func (g rustGen) expr(e ast.Expr) (string, error) {
	switch x := e.(type) {
	case *ast.IntLit:
		return strconv.FormatInt(x.Value, 10), nil
	case *ast.FloatLit:
		return x.Text, nil
	case *ast.StrLit:
		return strconv.Quote(x.Value), nil
	case *ast.BoolLit:
		if x.Value {
			return "true", nil
		}
		return "false", nil
	case *ast.Ident:
		return x.Name, nil
	case *ast.CallExpr:
		args := make([]string, len(x.Args))
		for i, a := range x.Args {
			s, err := g.expr(a)
			if err != nil {
				return "", err
			}
			args[i] = s
		}
		return fmt.Sprintf("%s(%s)", x.Name, strings.Join(args, ", ")), nil
	case *ast.BinaryExpr:
		l, err := g.expr(x.X)
		if err != nil {
			return "", err
		}
		r, err := g.expr(x.Y)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", l, x.Op, r), nil
	case *ast.UnaryExpr:
		v, err := g.expr(x.X)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s%s", x.Op, v), nil
	default:
		return "", &CodegenError{Target: db.TargetRust, Msg: fmt.Sprintf("unsupported expression %T", e)}
	}
}
