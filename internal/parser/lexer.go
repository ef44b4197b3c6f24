package parser

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokPunct // single or double-char operators and delimiters
)

type token struct {
	kind   tokenKind
	text   string
	line   int
	offset int // byte offset of the token's first character
	end    int // byte offset just past the token
}

// lexer converts Fen source into a token slice. Line comments (//) and
// whitespace are skipped; the lexer keeps byte offsets so the parser can
// capture each declaration's raw text span.
type lexer struct {
	src  string
	pos  int
	line int
}

func lex(src string) ([]token, error) {
	lx := &lexer{src: src, line: 1}
	var toks []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (lx *lexer) next() (token, error) {
	lx.skipSpace()
	start := lx.pos
	if lx.pos >= len(lx.src) {
		return token{kind: tokEOF, line: lx.line, offset: start, end: start}, nil
	}

	c := lx.src[lx.pos]
	switch {
	case isIdentStart(rune(c)):
		for lx.pos < len(lx.src) && isIdentPart(rune(lx.src[lx.pos])) {
			lx.pos++
		}
		return token{kind: tokIdent, text: lx.src[start:lx.pos], line: lx.line, offset: start, end: lx.pos}, nil

	case c >= '0' && c <= '9':
		kind := tokInt
		for lx.pos < len(lx.src) && lx.src[lx.pos] >= '0' && lx.src[lx.pos] <= '9' {
			lx.pos++
		}
		if lx.pos < len(lx.src) && lx.src[lx.pos] == '.' {
			kind = tokFloat
			lx.pos++
			for lx.pos < len(lx.src) && lx.src[lx.pos] >= '0' && lx.src[lx.pos] <= '9' {
				lx.pos++
			}
		}
		return token{kind: kind, text: lx.src[start:lx.pos], line: lx.line, offset: start, end: lx.pos}, nil

	case c == '"':
		lx.pos++
		var sb strings.Builder
		for {
			if lx.pos >= len(lx.src) {
				return token{}, fmt.Errorf("line %d: unterminated string literal", lx.line)
			}
			ch := lx.src[lx.pos]
			if ch == '\n' {
				return token{}, fmt.Errorf("line %d: unterminated string literal", lx.line)
			}
			if ch == '"' {
				lx.pos++
				break
			}
			if ch == '\\' && lx.pos+1 < len(lx.src) {
				lx.pos++
				switch lx.src[lx.pos] {
				case 'n':
					sb.WriteByte('\n')
				case 't':
					sb.WriteByte('\t')
				case '"':
					sb.WriteByte('"')
				case '\\':
					sb.WriteByte('\\')
				default:
					return token{}, fmt.Errorf("line %d: unknown escape \\%c", lx.line, lx.src[lx.pos])
				}
				lx.pos++
				continue
			}
			sb.WriteByte(ch)
			lx.pos++
		}
		return token{kind: tokString, text: sb.String(), line: lx.line, offset: start, end: lx.pos}, nil
	}

	// Two-char operators first.
	if lx.pos+1 < len(lx.src) {
		two := lx.src[lx.pos : lx.pos+2]
		switch two {
		case "==", "!=", "<=", ">=", "&&", "||":
			lx.pos += 2
			return token{kind: tokPunct, text: two, line: lx.line, offset: start, end: lx.pos}, nil
		}
	}

	switch c {
	case '(', ')', '{', '}', ',', '=', '+', '-', '*', '/', '%', '<', '>', '!':
		lx.pos++
		return token{kind: tokPunct, text: string(c), line: lx.line, offset: start, end: lx.pos}, nil
	}
	return token{}, fmt.Errorf("line %d: unexpected character %q", lx.line, c)
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			lx.line++
			lx.pos++
		case c == ' ' || c == '\t' || c == '\r':
			lx.pos++
		case c == '/' && lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '/':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.pos++
			}
		default:
			return
		}
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
