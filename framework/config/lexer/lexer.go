/*
Maddy Mail Server - Composable all-in-one email server.
Copyright © 2019-2020 Max Mazurov <fox.cpp@disroot.org>, Maddy Mail Server contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package lexer splits configuration text into whitespace-separated tokens.
package lexer

import (
	"bufio"
	"fmt"
	"io"
	"unicode"
)

// Token represents a single parsable unit.
type Token struct {
	File string
	Line int
	Text string

	// Quoted is set for tokens enclosed in double quotes. Quoted braces are
	// plain arguments and never open or close a block.
	Quoted bool
}

// IsOpenBrace reports whether the token opens a block.
func (t Token) IsOpenBrace() bool {
	return !t.Quoted && t.Text == "{"
}

// IsCloseBrace reports whether the token closes a block.
func (t Token) IsCloseBrace() bool {
	return !t.Quoted && t.Text == "}"
}

// Tokenize reads the entire input and returns all tokens in order.
//
// A token is delimited by whitespace, unless the token starts with a quotes
// character (") in which case the token goes until the closing quotes (the
// enclosing quotes are not included). Inside quoted strings, quotes may be
// escaped with a preceding \ character. No other chars may be escaped.
//
// The rest of the line is skipped if a "#" character is read outside of
// quotes. A leading byte order mark is discarded.
func Tokenize(input io.Reader, file string) ([]Token, error) {
	rd := bufio.NewReader(input)

	firstCh, _, err := rd.ReadRune()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	if firstCh != 0xFEFF {
		if err := rd.UnreadRune(); err != nil {
			return nil, err
		}
	}

	var (
		tokens  []Token
		val     []rune
		tok     Token
		line    = 1
		started bool
		comment bool
		quoted  bool
		escaped bool
	)

	emit := func() {
		tok.Text = string(val)
		tokens = append(tokens, tok)
		val = val[:0]
		started = false
	}

	for {
		ch, _, err := rd.ReadRune()
		if err != nil {
			if err != io.EOF {
				return nil, err
			}
			if quoted {
				return nil, fmt.Errorf("%s:%d: unterminated quoted string", file, tok.Line)
			}
			if started {
				emit()
			}
			return tokens, nil
		}

		if quoted {
			if !escaped {
				if ch == '\\' {
					escaped = true
					continue
				} else if ch == '"' {
					quoted = false
					emit()
					continue
				}
			}
			if ch == '\n' {
				line++
			}
			if escaped && ch != '"' {
				val = append(val, '\\')
			}
			val = append(val, ch)
			escaped = false
			continue
		}

		if unicode.IsSpace(ch) {
			if ch == '\n' {
				line++
				comment = false
			}
			if started {
				emit()
			}
			continue
		}

		if ch == '#' && !started {
			comment = true
		}
		if comment {
			continue
		}

		if !started {
			started = true
			tok = Token{File: file, Line: line}
			if ch == '"' {
				quoted = true
				tok.Quoted = true
				continue
			}
		}

		val = append(val, ch)
	}
}
