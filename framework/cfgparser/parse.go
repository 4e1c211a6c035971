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

// Package parser turns configuration text into a tree of directives.
//
// The syntax is line-oriented:
//
//	name arg0 arg1 {
//	    child0 arg
//	    child1
//	}
//
// A trailing \ joins the next line to the current directive. Arguments of the
// form {env:VAR} are replaced with the value of the environment variable VAR,
// {env_split:VAR} expands into several arguments split at commas.
package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/foxcpp/readback/framework/config/lexer"
)

// Node struct describes a parsed configuration block or a simple directive.
type Node struct {
	// Name is the first string at node's line.
	Name string
	// Args are any strings placed after the node name.
	Args []string

	// Children slice contains all children blocks if node is a block. Can be
	// nil.
	Children []Node

	// File is the name of node's source file.
	File string

	// Line is the line number where the directive is located in the source
	// file. For blocks this is the line where "block header" (name + args)
	// resides.
	Line int
}

const maxNesting = 255

type parseContext struct {
	toks []lexer.Token
	pos  int
}

func validateNodeName(s string) error {
	if len(s) == 0 {
		return errors.New("empty directive name")
	}

	if unicode.IsDigit([]rune(s)[0]) {
		return errors.New("directive name cannot start with a digit")
	}

	allowedPunct := map[rune]bool{'.': true, '-': true, '_': true}

	for _, ch := range s {
		if !unicode.IsLetter(ch) &&
			!unicode.IsDigit(ch) &&
			!allowedPunct[ch] {
			return errors.New("character not allowed in directive name: " + string(ch))
		}
	}

	return nil
}

func NodeErr(node Node, f string, args ...interface{}) error {
	if node.File == "" {
		return fmt.Errorf(f, args...)
	}
	return fmt.Errorf("%s:%d: %s", node.File, node.Line, fmt.Sprintf(f, args...))
}

func tokenErr(tok lexer.Token, f string, args ...interface{}) error {
	return fmt.Errorf("%s:%d: %s", tok.File, tok.Line, fmt.Sprintf(f, args...))
}

func (ctx *parseContext) peek() (lexer.Token, bool) {
	if ctx.pos >= len(ctx.toks) {
		return lexer.Token{}, false
	}
	return ctx.toks[ctx.pos], true
}

// readNodes reads directives until the closing brace of the current block
// (consumed) or EOF. closeLine is the line of the closing brace, 0 at EOF.
func (ctx *parseContext) readNodes(nesting int) (nodes []Node, closeLine int, err error) {
	if nesting > maxNesting {
		tok, _ := ctx.peek()
		return nil, 0, tokenErr(tok, "nesting limit reached")
	}

	for {
		tok, ok := ctx.peek()
		if !ok {
			if nesting > 0 {
				return nodes, 0, errors.New("unexpected EOF when looking for }")
			}
			return nodes, 0, nil
		}

		if tok.IsCloseBrace() {
			if nesting == 0 {
				return nodes, 0, tokenErr(tok, "unexpected }")
			}
			ctx.pos++
			return nodes, tok.Line, nil
		}

		node, err := ctx.readNode(nesting)
		if err != nil {
			return nodes, 0, err
		}
		nodes = append(nodes, node)
	}
}

// readNode reads a directive starting at the current token. It stops before
// the first token of the next logical line or before a } closing the
// enclosing block.
func (ctx *parseContext) readNode(nesting int) (Node, error) {
	tok := ctx.toks[ctx.pos]
	ctx.pos++

	if tok.IsOpenBrace() {
		return Node{}, tokenErr(tok, "block header expected before {")
	}
	node := Node{
		Name: tok.Text,
		Args: []string{},
		File: tok.File,
		Line: tok.Line,
	}
	if err := validateNodeName(node.Name); err != nil {
		return node, NodeErr(node, "%v", err)
	}

	line := tok.Line
	for {
		next, ok := ctx.peek()
		if !ok {
			return node, nil
		}

		if next.Line != line {
			// Continue reading the same Node if the \ was used to escape the
			// newline.
			last := len(node.Args) - 1
			if last < 0 || !strings.HasSuffix(node.Args[last], `\`) {
				return node, nil
			}
			node.Args[last] = strings.TrimSuffix(node.Args[last], `\`)
			if node.Args[last] == "" {
				node.Args = node.Args[:last]
			}
			line = next.Line
			continue
		}

		if next.IsCloseBrace() {
			return node, nil
		}

		ctx.pos++
		if next.IsOpenBrace() {
			children, closeLine, err := ctx.readNodes(nesting + 1)
			if err != nil {
				return node, err
			}
			if children == nil {
				children = []Node{}
			}
			node.Children = children

			if after, ok := ctx.peek(); ok && after.Line == closeLine && !after.IsCloseBrace() {
				return node, tokenErr(after, "newline is required after closing brace")
			}
			return node, nil
		}

		node.Args = append(node.Args, next.Text)
	}
}

// Read parses the configuration from r. location is used in error messages
// and stored in Node.File.
func Read(r io.Reader, location string) ([]Node, error) {
	toks, err := lexer.Tokenize(r, location)
	if err != nil {
		return nil, err
	}

	ctx := parseContext{toks: toks}
	nodes, _, err := ctx.readNodes(0)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []Node{}
	}
	return expandEnvironment(nodes), nil
}
