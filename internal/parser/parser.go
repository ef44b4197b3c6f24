// Package parser turns Fen source text into the declaration list the
// indexer consumes. It is deliberately small: top-level declarations with
// stable (name, kind) identity, plus enough statement and expression
// structure for the transpiler backends.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fenlang/fen/internal/ast"
)

// ParseError is a per-file parse failure with source position.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

type parser struct {
	path string
	src  string
	toks []token
	pos  int
}

// Parse parses one Fen source file.
func Parse(path, src string) (*ast.File, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, &ParseError{Path: path, Line: lexErrLine(err), Msg: strings.TrimPrefix(err.Error(), fmt.Sprintf("line %d: ", lexErrLine(err)))}
	}
	p := &parser{path: path, src: src, toks: toks}
	file := &ast.File{Path: path}

	for p.cur().kind != tokEOF {
		tok := p.cur()
		if tok.kind != tokIdent {
			return nil, p.errf("expected declaration, found %q", tok.text)
		}
		switch tok.text {
		case "use":
			imp, err := p.parseUse()
			if err != nil {
				return nil, err
			}
			file.Imports = append(file.Imports, imp)
		case "fn", "type", "tag", "const":
			d, err := p.parseDecl()
			if err != nil {
				return nil, err
			}
			file.Decls = append(file.Decls, d)
		default:
			return nil, p.errf("expected declaration keyword, found %q", tok.text)
		}
	}
	return file, nil
}

// lexErrLine pulls the line number out of a lexer error message.
func lexErrLine(err error) int {
	var line int
	fmt.Sscanf(err.Error(), "line %d:", &line)
	return line
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) peek() token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errf(format string, args ...any) error {
	return &ParseError{Path: p.path, Line: p.cur().line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expectPunct(text string) error {
	if p.cur().kind != tokPunct || p.cur().text != text {
		return p.errf("expected %q, found %q", text, p.cur().text)
	}
	p.advance()
	return nil
}

func (p *parser) expectIdent() (string, error) {
	if p.cur().kind != tokIdent {
		return "", p.errf("expected identifier, found %q", p.cur().text)
	}
	return p.advance().text, nil
}

func (p *parser) isPunct(text string) bool {
	return p.cur().kind == tokPunct && p.cur().text == text
}

// parseUse parses `use path` where path is ident { "/" ident }.
func (p *parser) parseUse() (string, error) {
	line := p.cur().line
	p.advance() // use
	seg, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	parts := []string{seg}
	for p.isPunct("/") && p.cur().line == line {
		p.advance()
		seg, err := p.expectIdent()
		if err != nil {
			return "", err
		}
		parts = append(parts, seg)
	}
	return strings.Join(parts, "/"), nil
}

func (p *parser) parseDecl() (ast.Decl, error) {
	start := p.cur().offset
	var (
		d   ast.Decl
		err error
	)
	switch p.cur().text {
	case "fn":
		d, err = p.parseFunc()
	case "type":
		d, err = p.parseType()
	case "tag":
		d, err = p.parseTag()
	case "const":
		d, err = p.parseConst()
	}
	if err != nil {
		return nil, err
	}
	end := p.toks[p.pos-1].end
	src := p.src[start:end]
	switch d := d.(type) {
	case *ast.FuncDecl:
		d.Src = src
	case *ast.TypeDecl:
		d.Src = src
	case *ast.TagDecl:
		d.Src = src
	case *ast.ConstDecl:
		d.Src = src
	}
	return d, nil
}

func (p *parser) parseFunc() (*ast.FuncDecl, error) {
	line := p.cur().line
	p.advance() // fn
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.isPunct(")") {
		if len(params) > 0 {
			if err := p.expectPunct(","); err != nil {
				return nil, err
			}
		}
		pname, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		ptype, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: pname, Type: ptype})
	}
	p.advance() // )

	ret := ""
	if p.cur().kind == tokIdent {
		ret = p.advance().text
		if ret == "void" {
			ret = ""
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{Name: name, Params: params, Ret: ret, Body: body, Line: line}, nil
}

func (p *parser) parseType() (*ast.TypeDecl, error) {
	line := p.cur().line
	p.advance() // type
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var fields []ast.Field
	for !p.isPunct("}") {
		fname, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		ftype, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.Field{Name: fname, Type: ftype})
	}
	p.advance() // }
	return &ast.TypeDecl{Name: name, Fields: fields, Line: line}, nil
}

func (p *parser) parseTag() (*ast.TagDecl, error) {
	line := p.cur().line
	p.advance() // tag
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var variants []string
	for !p.isPunct("}") {
		v, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	p.advance() // }
	if len(variants) == 0 {
		return nil, &ParseError{Path: p.path, Line: line, Msg: fmt.Sprintf("tag %s has no variants", name)}
	}
	return &ast.TagDecl{Name: name, Variants: variants, Line: line}, nil
}

func (p *parser) parseConst() (*ast.ConstDecl, error) {
	line := p.cur().line
	p.advance() // const
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("="); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.ConstDecl{Name: name, Value: value, Line: line}, nil
}

// --- Statements ---

func (p *parser) parseBlock() (*ast.Block, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	b := &ast.Block{}
	for !p.isPunct("}") {
		if p.cur().kind == tokEOF {
			return nil, p.errf("unexpected end of file in block")
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, s)
	}
	p.advance() // }
	return b, nil
}

func (p *parser) parseStmt() (ast.Stmt, error) {
	tok := p.cur()
	if tok.kind == tokIdent {
		switch tok.text {
		case "let":
			p.advance()
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			typ, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("="); err != nil {
				return nil, err
			}
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return &ast.LetStmt{Name: name, Type: typ, Value: value}, nil

		case "return":
			line := tok.line
			p.advance()
			// A bare return ends at the line boundary or the block close.
			if p.isPunct("}") || p.cur().line > line || p.cur().kind == tokEOF {
				return &ast.ReturnStmt{}, nil
			}
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return &ast.ReturnStmt{Value: value}, nil

		case "if":
			p.advance()
			cond, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			then, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			var els *ast.Block
			if p.cur().kind == tokIdent && p.cur().text == "else" {
				p.advance()
				els, err = p.parseBlock()
				if err != nil {
					return nil, err
				}
			}
			return &ast.IfStmt{Cond: cond, Then: then, Else: els}, nil

		case "while":
			p.advance()
			cond, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			body, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			return &ast.WhileStmt{Cond: cond, Body: body}, nil
		}

		// Assignment: ident "=" expr (but not "==").
		if p.peek().kind == tokPunct && p.peek().text == "=" {
			name := p.advance().text
			p.advance() // =
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return &ast.AssignStmt{Name: name, Value: value}, nil
		}
	}

	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.ExprStmt{X: x}, nil
}

// --- Expressions (precedence climbing) ---

var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, "<=": 4, ">": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

func (p *parser) parseExpr() (ast.Expr, error) {
	return p.parseBinary(1)
}

func (p *parser) parseBinary(minPrec int) (ast.Expr, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPunct {
		prec, ok := binaryPrec[p.cur().text]
		if !ok || prec < minPrec {
			break
		}
		op := p.advance().text
		y, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		x = &ast.BinaryExpr{Op: op, X: x, Y: y}
	}
	return x, nil
}

func (p *parser) parseUnary() (ast.Expr, error) {
	if p.isPunct("-") || p.isPunct("!") {
		op := p.advance().text
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: op, X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.kind {
	case tokInt:
		p.advance()
		v, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, p.errf("bad integer literal %q", tok.text)
		}
		return &ast.IntLit{Value: v}, nil

	case tokFloat:
		p.advance()
		return &ast.FloatLit{Text: tok.text}, nil

	case tokString:
		p.advance()
		return &ast.StrLit{Value: tok.text}, nil

	case tokIdent:
		switch tok.text {
		case "true":
			p.advance()
			return &ast.BoolLit{Value: true}, nil
		case "false":
			p.advance()
			return &ast.BoolLit{Value: false}, nil
		}
		name := p.advance().text
		if p.isPunct("(") {
			p.advance()
			var args []ast.Expr
			for !p.isPunct(")") {
				if len(args) > 0 {
					if err := p.expectPunct(","); err != nil {
						return nil, err
					}
				}
				a, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
			}
			p.advance() // )
			return &ast.CallExpr{Name: name, Args: args}, nil
		}
		return &ast.Ident{Name: name}, nil

	case tokPunct:
		if tok.text == "(" {
			p.advance()
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return x, nil
		}
	}
	return nil, p.errf("expected expression, found %q", tok.text)
}
