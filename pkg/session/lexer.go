// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session wires together the lexer/parser/binder stand-in for the
// parser/binder collaborator of spec.md §6.1, pkg/planner/optimize, and
// pkg/executor into the client-facing Run(sql) contract of spec.md §6.4.
// The grammar covers only the statement forms spec.md §8's end-to-end
// scenarios exercise; full PostgreSQL-compatible SQL is the parser/binder
// collaborator's job, outside this package's scope.
package session

import (
	"strings"

	"github.com/egraph-db/secondary/pkg/common/engineerr"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lexer splits sql into a flat token stream; keywords surface as tokIdent
// and are matched case-insensitively by the parser, mirroring how
// identifiers and keywords share one lexical class in most hand-rolled SQL
// front ends.
type lexer struct {
	src []rune
	pos int
}

func newLexer(sql string) *lexer {
	return &lexer{src: []rune(sql)}
}

func (l *lexer) tokenize() ([]token, error) {
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}
	c := l.src[l.pos]
	switch {
	case isDigit(c):
		return l.lexNumber(), nil
	case c == '\'':
		return l.lexString()
	case isIdentStart(c):
		return l.lexIdent(), nil
	case c == '"':
		return l.lexQuotedIdent()
	default:
		return l.lexPunct()
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			l.pos++
			continue
		}
		if c == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '-' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		break
	}
}

func isDigit(c rune) bool { return c >= '0' && c <= '9' }

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || isDigit(c)
}

func (l *lexer) lexNumber() token {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	return token{kind: tokNumber, text: string(l.src[start:l.pos]), pos: start}
}

func (l *lexer) lexString() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token{}, engineerr.NewParse("unterminated string literal starting at %d", start)
		}
		c := l.src[l.pos]
		if c == '\'' {
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '\'' {
				sb.WriteRune('\'')
				l.pos += 2
				continue
			}
			l.pos++
			break
		}
		sb.WriteRune(c)
		l.pos++
	}
	return token{kind: tokString, text: sb.String(), pos: start}, nil
}

func (l *lexer) lexIdent() token {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	return token{kind: tokIdent, text: string(l.src[start:l.pos]), pos: start}
}

func (l *lexer) lexQuotedIdent() (token, error) {
	start := l.pos
	l.pos++
	s := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != '"' {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{}, engineerr.NewParse("unterminated quoted identifier starting at %d", start)
	}
	text := string(l.src[s:l.pos])
	l.pos++
	return token{kind: tokIdent, text: text, pos: start}, nil
}

func (l *lexer) lexPunct() (token, error) {
	start := l.pos
	two := ""
	if l.pos+1 < len(l.src) {
		two = string(l.src[l.pos : l.pos+2])
	}
	switch two {
	case "<>", "!=", "<=", ">=":
		l.pos += 2
		return token{kind: tokPunct, text: two, pos: start}, nil
	}
	c := l.src[l.pos]
	switch c {
	case '(', ')', ',', '.', '+', '-', '*', '/', '%', '=', '<', '>', ';':
		l.pos++
		return token{kind: tokPunct, text: string(c), pos: start}, nil
	default:
		return token{}, engineerr.NewParse("unexpected character %q at %d", c, start)
	}
}
