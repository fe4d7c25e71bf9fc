package asm

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/exp/ebnf"
)

// Position is a location in assembler source.
type Position struct {
	Filename string
	Offset   int
	Line     int
	Column   int
}

func (p Position) String() string {
	if p.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a lexical token with its position.
type Token struct {
	Kind     string
	Literal  string
	Position Position
}

func (t Token) String() string {
	return fmt.Sprintf("%s %s %q", t.Position, t.Kind, t.Literal)
}

// Lexer splits input into the tokens named by a grammar. Each call tries
// the token productions in order and keeps the longest match; on a tie the
// earlier production wins.
type Lexer struct {
	grammar  ebnf.Grammar
	tokens   []string
	input    []byte
	filename string
	pos      int
	line     int
	column   int
}

func NewLexer(grammar ebnf.Grammar, tokens []string, input []byte, filename string) *Lexer {
	return &Lexer{
		grammar:  grammar,
		tokens:   tokens,
		input:    input,
		filename: filename,
		line:     1,
		column:   1,
	}
}

func (l *Lexer) Position() Position {
	return Position{
		Filename: l.filename,
		Offset:   l.pos,
		Line:     l.line,
		Column:   l.column,
	}
}

func (l *Lexer) advance(n int) {
	end := l.pos + n
	for l.pos < end {
		r, size := utf8.DecodeRune(l.input[l.pos:])
		l.pos += size
		if r == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
	}
}

// NextToken returns the next token, or io.EOF at the end of input.
func (l *Lexer) NextToken() (Token, error) {
	start := l.Position()
	if l.pos >= len(l.input) {
		return Token{Kind: "EOF", Position: start}, io.EOF
	}

	var kind string
	best := 0
	for _, name := range l.tokens {
		if n, ok := l.matchName(name, l.pos); ok && n > best {
			best, kind = n, name
		}
	}
	if best == 0 {
		r, _ := utf8.DecodeRune(l.input[l.pos:])
		return Token{Kind: "ERROR", Literal: string(r), Position: start},
			errors.Wrapf(ErrSyntax, "%s: unexpected %q", start, r)
	}

	literal := string(l.input[l.pos : l.pos+best])
	l.advance(best)
	return Token{Kind: kind, Literal: literal, Position: start}, nil
}

// match reports how many bytes expr matches at offset. A successful match
// can be empty, as for an option or a repetition that matched nothing.
func (l *Lexer) match(expr ebnf.Expression, offset int) (int, bool) {
	switch e := expr.(type) {
	case *ebnf.Token:
		return l.matchToken(e.String, offset)

	case *ebnf.Range:
		return l.matchRange(e.Begin.String, e.End.String, offset)

	case ebnf.Sequence:
		pos := offset
		for _, item := range e {
			n, ok := l.match(item, pos)
			if !ok {
				return 0, false
			}
			pos += n
		}
		return pos - offset, true

	case ebnf.Alternative:
		best, found := 0, false
		for _, alt := range e {
			if n, ok := l.match(alt, offset); ok && (!found || n > best) {
				best, found = n, true
			}
		}
		return best, found

	case *ebnf.Repetition:
		pos := offset
		for {
			n, ok := l.match(e.Body, pos)
			if !ok || n == 0 {
				break
			}
			pos += n
		}
		return pos - offset, true

	case *ebnf.Option:
		n, ok := l.match(e.Body, offset)
		if !ok {
			return 0, true
		}
		return n, true

	case *ebnf.Group:
		return l.match(e.Body, offset)

	case *ebnf.Name:
		return l.matchName(e.String, offset)
	}
	return 0, false
}

func (l *Lexer) matchName(name string, offset int) (int, bool) {
	prod, ok := l.grammar[name]
	if !ok || prod.Expr == nil {
		return 0, false
	}
	return l.match(prod.Expr, offset)
}

func (l *Lexer) matchToken(token string, offset int) (int, bool) {
	if bytes.HasPrefix(l.input[offset:], []byte(token)) {
		return len(token), true
	}
	return 0, false
}

// matchRange matches one character between begin and end inclusive.
// Characters are runes, so ranges may reach beyond ASCII.
func (l *Lexer) matchRange(begin, end string, offset int) (int, bool) {
	if offset >= len(l.input) {
		return 0, false
	}
	lo, _ := utf8.DecodeRuneInString(begin)
	hi, _ := utf8.DecodeRuneInString(end)
	r, size := utf8.DecodeRune(l.input[offset:])
	if r >= lo && r <= hi {
		return size, true
	}
	return 0, false
}

// Tokenize reads all tokens up to and including EOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err == io.EOF {
			return append(tokens, tok), nil
		}
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
	}
}
