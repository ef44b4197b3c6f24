package trans

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fenlang/fen/internal/ast"
	"github.com/fenlang/fen/internal/db"
)

// cGen emits C99. Functions produce a prototype (header) and a definition
// (code); types and tags live entirely in the header half; constants become
// defines so they fold at compile time.
type cGen struct{}

// NewCBackend returns the C backend over d.
func NewCBackend(d *db.Database, log *slog.Logger, parallel bool) Backend {
	return newRunner(d, log, cGen{}, parallel)
}

func (cGen) target() db.Target { return db.TargetC }

func cType(t string) string {
	switch t {
	case "int":
		return "long"
	case "float":
		return "double"
	case "str":
		return "const char*"
	case "bool":
		return "bool"
	case "", "void":
		return "void"
	default:
		return t
	}
}

func (g cGen) genDecl(decl ast.Decl, ec *emitCtx) (Output, error) {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		return g.genFunc(d)
	case *ast.TypeDecl:
		var b strings.Builder
		b.WriteString("typedef struct {\n")
		for _, f := range d.Fields {
			fmt.Fprintf(&b, "    %s %s;\n", cType(f.Type), f.Name)
		}
		fmt.Fprintf(&b, "} %s;\n", d.Name)
		return Output{Header: b.String()}, nil
	case *ast.TagDecl:
		var b strings.Builder
		b.WriteString("typedef enum {\n")
		for i, v := range d.Variants {
			sep := ","
			if i == len(d.Variants)-1 {
				sep = ""
			}
			fmt.Fprintf(&b, "    %s%s\n", v, sep)
		}
		fmt.Fprintf(&b, "} %s;\n", d.Name)
		return Output{Header: b.String()}, nil
	case *ast.ConstDecl:
		val, err := g.expr(d.Value)
		if err != nil {
			return Output{}, err
		}
		return Output{Header: fmt.Sprintf("#define %s %s\n", d.Name, val)}, nil
	default:
		return Output{}, &CodegenError{Target: db.TargetC, Msg: fmt.Sprintf("unsupported declaration %q", decl.DeclName())}
	}
}

func (g cGen) genFunc(d *ast.FuncDecl) (Output, error) {
	sig := g.signature(d)
	var b strings.Builder
	b.WriteString(sig)
	b.WriteString(" {\n")
	if err := g.block(&b, d.Body, 1); err != nil {
		return Output{}, err
	}
	b.WriteString("}\n")
	return Output{Code: b.String(), Header: sig + ";\n"}, nil
}

func (g cGen) signature(d *ast.FuncDecl) string {
	var b strings.Builder
	b.WriteString(cType(d.Ret))
	b.WriteByte(' ')
	b.WriteString(d.Name)
	b.WriteByte('(')
	if len(d.Params) == 0 {
		b.WriteString("void")
	}
	for i, p := range d.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(cType(p.Type))
		b.WriteByte(' ')
		b.WriteString(p.Name)
	}
	b.WriteByte(')')
	return b.String()
}

func (g cGen) block(b *strings.Builder, blk *ast.Block, depth int) error {
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
			fmt.Fprintf(b, "%s%s %s = %s;\n", ind, cType(st.Type), st.Name, val)
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
			fmt.Fprintf(b, "%sif (%s) {\n", ind, cond)
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
			fmt.Fprintf(b, "%swhile (%s) {\n", ind, cond)
			if err := g.block(b, st.Body, depth+1); err != nil {
				return err
			}
			fmt.Fprintf(b, "%s}\n", ind)
		default:
			return &CodegenError{Target: db.TargetC, Msg: fmt.Sprintf("unsupported statement %T", s)}
		}
	}
	return nil
}

func (g cGen) expr(e ast.Expr) (string, error) {
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
		return "", &CodegenError{Target: db.TargetC, Msg: fmt.Sprintf("unsupported expression %T", e)}
	}
}
