package trans

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fenlang/fen/internal/ast"
	"github.com/fenlang/fen/internal/db"
)

// pyGen emits Python 3. Types become dataclass-style classes, tags become
// int constants on a holder class, functions carry type hints derived from
// the Fen signature.
type pyGen struct{}

// NewPythonBackend returns the Python backend over d.
func NewPythonBackend(d *db.Database, log *slog.Logger, parallel bool) Backend {
	return newRunner(d, log, pyGen{}, parallel)
}

func (pyGen) target() db.Target { return db.TargetPython }

func pyType(t string) string {
	switch t {
	case "int":
		return "int"
	case "float":
		return "float"
	case "str":
		return "str"
	case "bool":
		return "bool"
	case "", "void":
		return "None"
	default:
		return t
	}
}

func (g pyGen) genDecl(decl ast.Decl, ec *emitCtx) (Output, error) {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		return g.genFunc(d)
	case *ast.TypeDecl:
		var b strings.Builder
		fmt.Fprintf(&b, "class %s:\n", d.Name)
		if len(d.Fields) == 0 {
			b.WriteString("    pass\n")
			return Output{Code: b.String()}, nil
		}
		b.WriteString("    def __init__(self")
		for _, f := range d.Fields {
			fmt.Fprintf(&b, ", %s: %s", f.Name, pyType(f.Type))
		}
		b.WriteString("):\n")
		for _, f := range d.Fields {
			fmt.Fprintf(&b, "        self.%s = %s\n", f.Name, f.Name)
		}
		return Output{Code: b.String()}, nil
	case *ast.TagDecl:
		var b strings.Builder
		fmt.Fprintf(&b, "class %s:\n", d.Name)
		for i, v := range d.Variants {
			fmt.Fprintf(&b, "    %s = %d\n", v, i)
		}
		return Output{Code: b.String()}, nil
	case *ast.ConstDecl:
		val, err := g.expr(d.Value)
		if err != nil {
			return Output{}, err
		}
		return Output{Code: fmt.Sprintf("%s = %s\n", d.Name, val)}, nil
	default:
		return Output{}, &CodegenError{Target: db.TargetPython, Msg: fmt.Sprintf("unsupported declaration %q", decl.DeclName())}
	}
}

func (g pyGen) genFunc(d *ast.FuncDecl) (Output, error) {
	var b strings.Builder
	b.WriteString("def ")
	b.WriteString(d.Name)
	b.WriteByte('(')
	for i, p := range d.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", p.Name, pyType(p.Type))
	}
	fmt.Fprintf(&b, ") -> %s:\n", pyType(d.Ret))
	if d.Body == nil || len(d.Body.Stmts) == 0 {
		b.WriteString("    pass\n")
		return Output{Code: b.String()}, nil
	}
	if err := g.block(&b, d.Body, 1); err != nil {
		return Output{}, err
	}
	return Output{Code: b.String()}, nil
}

func (g pyGen) block(b *strings.Builder, blk *ast.Block, depth int) error {
	ind := strings.Repeat("    ", depth)
	if blk == nil || len(blk.Stmts) == 0 {
		b.WriteString(ind + "pass\n")
		return nil
	}
	for _, s := range blk.Stmts {
		switch st := s.(type) {
		case *ast.LetStmt:
			val, err := g.expr(st.Value)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "%s%s: %s = %s\n", ind, st.Name, pyType(st.Type), val)
		case *ast.AssignStmt:
			val, err := g.expr(st.Value)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "%s%s = %s\n", ind, st.Name, val)
		case *ast.ReturnStmt:
			if st.Value == nil {
				fmt.Fprintf(b, "%sreturn\n", ind)
				break
			}
			val, err := g.expr(st.Value)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "%sreturn %s\n", ind, val)
		case *ast.ExprStmt:
			val, err := g.expr(st.X)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "%s%s\n", ind, val)
		case *ast.IfStmt:
			cond, err := g.expr(st.Cond)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "%sif %s:\n", ind, cond)
			if err := g.block(b, st.Then, depth+1); err != nil {
				return err
			}
			if st.Else != nil {
				fmt.Fprintf(b, "%selse:\n", ind)
				if err := g.block(b, st.Else, depth+1); err != nil {
					return err
				}
			}
		case *ast.WhileStmt:
			cond, err := g.expr(st.Cond)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "%swhile %s:\n", ind, cond)
			if err := g.block(b, st.Body, depth+1); err != nil {
				return err
			}
		default:
			return &CodegenError{Target: db.TargetPython, Msg: fmt.Sprintf("unsupported statement %T", s)}
		}
	}
	return nil
}

func (g pyGen) expr(e ast.Expr) (string, error) {
	switch x := e.(type) {
	case *ast.IntLit:
		return strconv.FormatInt(x.Value, 10), nil
	case *ast.FloatLit:
		return x.Text, nil
	case *ast.StrLit:
		return strconv.Quote(x.Value), nil
	case *ast.BoolLit:
		if x.Value {
			return "True", nil
		}
		return "False", nil
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
		op := x.Op
		switch op {
		case "&&":
			op = "and"
		case "||":
			op = "or"
		}
		return fmt.Sprintf("(%s %s %s)", l, op, r), nil
	case *ast.UnaryExpr:
		v, err := g.expr(x.X)
		if err != nil {
			return "", err
		}
		if x.Op == "!" {
			return fmt.Sprintf("not %s", v), nil
		}
		return fmt.Sprintf("%s%s", x.Op, v), nil
	default:
		return "", &CodegenError{Target: db.TargetPython, Msg: fmt.Sprintf("unsupported expression %T", e)}
	}
}
