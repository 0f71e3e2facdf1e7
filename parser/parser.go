// Package parser parses marker annotations out of doc comment text.
//
// A marker occupies a single line and starts with '@':
//
//	@SelfValidation
//	@ValidationFor(*models.User)
//	@CustomValidationExtension
//
// Lines that do not start with '@' are ordinary documentation and are ignored.
package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/scanner"
)

// Annotation is a single parsed marker line. Arg holds the raw text of the
// parenthesized argument, with insignificant whitespace removed. HasArg
// distinguishes "@Foo()" from "@Foo".
type Annotation struct {
	Name   string
	Arg    string
	HasArg bool
	Pos    scanner.Position
}

type ParseError struct {
	err error
	pos scanner.Position
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.pos.Line, e.pos.Column, e.err)
}

func (e *ParseError) Underlying() error {
	return e.err
}

func (e *ParseError) Pos() scanner.Position {
	return e.pos
}

type token struct {
	r    rune
	text string
	pos  scanner.Position
}

type annoLex struct {
	err  error
	next *token
	s    scanner.Scanner
}

func newLexer(filename string, r io.Reader) *annoLex {
	var l annoLex
	l.s.Init(r)
	l.s.Filename = filename
	l.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanStrings | scanner.ScanRawStrings
	l.s.Whitespace = 0
	l.s.Error = func(s *scanner.Scanner, msg string) {
		l.err = errors.New(msg)
	}
	return &l
}

// lex returns the next token, skipping blanks but not newlines.
func (l *annoLex) lex() token {
	if l.next != nil {
		t := *l.next
		l.next = nil
		return t
	}
	for {
		// we handle whitespace ourselves so that we know the *start* position
		// of every token
		pos := l.s.Pos()
		r := l.s.Scan()
		if r == ' ' || r == '\t' || r == '\r' {
			continue
		}
		return token{r: r, text: l.s.TokenText(), pos: pos}
	}
}

func (l *annoLex) unlex(t token) {
	l.next = &t
}

// ParseAnnotations reads all marker annotations from the given comment text.
// Only lines whose first non-blank character is '@' are lexed, so free-form
// documentation never causes an error.
func ParseAnnotations(filename string, r io.Reader) ([]Annotation, *ParseError) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{err: err, pos: scanner.Position{Filename: filename}}
	}
	var res []Annotation
	offset := 0
	for i, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		if !strings.HasPrefix(trimmed, "@") {
			offset += len(line) + 1
			continue
		}
		indent := len(line) - len(trimmed)
		l := newLexer(filename, strings.NewReader(trimmed))
		a, perr := l.parseLine()
		if perr != nil {
			perr.pos = shift(perr.pos, i, indent, offset)
			return nil, perr
		}
		a.Pos = shift(a.Pos, i, indent, offset)
		res = append(res, a)
		offset += len(line) + 1
	}
	return res, nil
}

// shift translates a position within a single trimmed line into a position
// within the whole comment text.
func shift(pos scanner.Position, lineIndex, indent, offset int) scanner.Position {
	pos.Line = lineIndex + 1
	pos.Column += indent
	pos.Offset += offset + indent
	return pos
}

func (l *annoLex) parseLine() (Annotation, *ParseError) {
	t := l.lex()
	if l.err != nil {
		return Annotation{}, &ParseError{err: l.err, pos: t.pos}
	}
	if t.r != '@' {
		return Annotation{}, &ParseError{err: fmt.Errorf("expecting '@', got %s", describe(t)), pos: t.pos}
	}
	return l.parseAnnotation(t.pos)
}

func (l *annoLex) parseAnnotation(at scanner.Position) (Annotation, *ParseError) {
	a := Annotation{Pos: at}
	t := l.lex()
	if t.r != scanner.Ident {
		return a, &ParseError{err: fmt.Errorf("expecting identifier after '@', got %s", describe(t)), pos: t.pos}
	}
	a.Name = t.text
	// allow a package qualifier, e.g. @validgen.SelfValidation
	if t = l.lex(); t.r == '.' {
		t = l.lex()
		if t.r != scanner.Ident {
			return a, &ParseError{err: fmt.Errorf("expecting identifier after '.', got %s", describe(t)), pos: t.pos}
		}
		a.Name = t.text
		t = l.lex()
	}

	if t.r == '(' {
		a.HasArg = true
		arg, perr := l.parseArg(t.pos)
		if perr != nil {
			return a, perr
		}
		a.Arg = arg
		t = l.lex()
	}

	switch t.r {
	case '\n', scanner.EOF:
		l.unlex(t)
		return a, nil
	default:
		return a, &ParseError{err: fmt.Errorf("unexpected %s after annotation @%s", describe(t), a.Name), pos: t.pos}
	}
}

// parseArg collects the tokens up to the matching close paren. Brackets
// inside the argument must balance, so generic instantiations such as
// Box[T] are accepted.
func (l *annoLex) parseArg(open scanner.Position) (string, *ParseError) {
	var sb strings.Builder
	depth := 0
	var prev rune
	for {
		t := l.lex()
		if l.err != nil {
			return "", &ParseError{err: l.err, pos: t.pos}
		}
		switch t.r {
		case '\n', scanner.EOF:
			return "", &ParseError{err: errors.New("unterminated annotation argument"), pos: open}
		case '(', '[', '{':
			depth++
		case ']', '}':
			depth--
		case ')':
			if depth == 0 {
				return strings.TrimSpace(sb.String()), nil
			}
			depth--
		}
		if depth < 0 {
			return "", &ParseError{err: fmt.Errorf("unbalanced %q in annotation argument", t.text), pos: t.pos}
		}
		// identifiers and keywords must stay separated, e.g. "chan int"
		if isWord(prev) && isWord(t.r) {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.text)
		prev = t.r
	}
}

func isWord(r rune) bool {
	return r == scanner.Ident || r == scanner.Int
}

func describe(t token) string {
	switch t.r {
	case scanner.EOF:
		return "end of input"
	case '\n':
		return "end-of-line"
	case scanner.Ident:
		return fmt.Sprintf("identifier %q", t.text)
	case scanner.Int:
		return fmt.Sprintf("int literal %s", t.text)
	case scanner.String, scanner.RawString:
		return "string literal"
	default:
		return fmt.Sprintf("%q", t.text)
	}
}
