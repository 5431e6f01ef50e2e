// SPDX-License-Identifier: Apache-2.0

// Copyright 2025 Binaek Sarkar
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package parser implements Corint's expression mini-language: a
// precedence-climbing recursive-descent parser over the token stream
// produced by package lexer (spec §4.1). The precedence ladder, lowest to
// highest, is: ternary, ||/&&, keyword operators (not in/contains/in/
// starts_with/ends_with/regex), comparison, +/-, * /%, unary, primary.
package parser

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/lexer"
	"github.com/corint-sh/corint/tokens"
	"github.com/corint-sh/corint/value"
)

// ErrInvalidExpression is raised for malformed expression source.
var ErrInvalidExpression = errors.New("invalid expression")

// ErrInvalidOperator is raised when an operator token appears where none of
// the grammar productions expects one.
var ErrInvalidOperator = errors.New("invalid operator")

type Parser struct {
	toks []tokens.Instance
	pos  int
	src  string
}

// Parse parses a trimmed expression source string into an Expression AST.
func Parse(src string) (ast.Expression, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return nil, errors.Wrap(ErrInvalidExpression, "empty expression")
	}
	lx := lexer.NewLexer(trimmed, "<expr>")
	toks, err := lx.Tokenize()
	if err != nil {
		return nil, err
	}
	for _, t := range toks {
		if t.Kind == tokens.Error {
			return nil, errors.Wrapf(ErrInvalidExpression, "%s at %s", t.Value, t.Range)
		}
	}
	p := &Parser{toks: toks, src: trimmed}
	expr, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, errors.Wrapf(ErrInvalidExpression, "unexpected trailing input at %s", p.cur().Range)
	}
	return expr, nil
}

func (p *Parser) cur() tokens.Instance {
	if p.pos >= len(p.toks) {
		return tokens.Instance{Kind: tokens.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekAt(n int) tokens.Instance {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return tokens.Instance{Kind: tokens.EOF}
	}
	return p.toks[idx]
}

func (p *Parser) atEOF() bool { return p.cur().Kind == tokens.EOF }

func (p *Parser) advance() tokens.Instance {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k tokens.Kind) (tokens.Instance, error) {
	if p.cur().Kind != k {
		return tokens.Instance{}, errors.Wrapf(ErrInvalidExpression, "expected %s, got %s at %s", k, p.cur().Kind, p.cur().Range)
	}
	return p.advance(), nil
}

// isWord reports whether the current token is an identifier with the given
// lowercase spelling — used to recognise bareword operators without giving
// the lexer a bespoke keyword table.
func (p *Parser) isWord(word string) bool {
	t := p.cur()
	return t.Kind == tokens.Ident && t.Value == word
}

// --- precedence ladder ---

func (p *Parser) parseTernary() (ast.Expression, error) {
	cond, err := p.parseLogical()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == tokens.TokenQuestion {
		p.advance()
		then, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokens.PunctColon); err != nil {
			return nil, err
		}
		els, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return &ast.Ternary{Cond: cond, Then: then, Else: els}, nil
	}
	return cond, nil
}

// parseLogical handles level 1: `||` and `&&`, left-associative.
func (p *Parser) parseLogical() (ast.Expression, error) {
	left, err := p.parseKeywordOp()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == tokens.TokenAnd || p.cur().Kind == tokens.TokenOr {
		opTok := p.advance()
		right, err := p.parseKeywordOp()
		if err != nil {
			return nil, err
		}
		op := ast.OpAnd
		if opTok.Kind == tokens.TokenOr {
			op = ast.OpOr
		}
		left = &ast.Binary{Left: left, Op: op, Right: right}
	}
	return left, nil
}

// parseKeywordOp handles level 2: not in / in / contains / starts_with /
// ends_with / regex. `not in` must be recognised before `in` (spec §4.1).
func (p *Parser) parseKeywordOp() (ast.Expression, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isWord("not") && p.peekAt(1).Kind == tokens.Ident && p.peekAt(1).Value == "in":
			p.advance()
			p.advance()
			right, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			left = &ast.Binary{Left: left, Op: ast.OpNotIn, Right: right}
		case p.isWord("in"):
			p.advance()
			right, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			left = &ast.Binary{Left: left, Op: ast.OpIn, Right: right}
		case p.isWord("contains"):
			p.advance()
			right, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			left = &ast.Binary{Left: left, Op: ast.OpContains, Right: right}
		case p.isWord("starts_with"):
			p.advance()
			right, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			left = &ast.Binary{Left: left, Op: ast.OpStartsWith, Right: right}
		case p.isWord("ends_with"):
			p.advance()
			right, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			left = &ast.Binary{Left: left, Op: ast.OpEndsWith, Right: right}
		case p.isWord("regex") || p.cur().Kind == tokens.TokenRegexOp:
			p.advance()
			right, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			left = &ast.Binary{Left: left, Op: ast.OpRegex, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseComparison() (ast.Expression, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.Op
		switch p.cur().Kind {
		case tokens.TokenEq:
			op = ast.OpEq
		case tokens.TokenNeq:
			op = ast.OpNeq
		case tokens.TokenLte:
			op = ast.OpLte
		case tokens.TokenGte:
			op = ast.OpGte
		case tokens.TokenLt:
			op = ast.OpLt
		case tokens.TokenGt:
			op = ast.OpGt
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Left: left, Op: op, Right: right}
	}
}

func (p *Parser) parseAdd() (ast.Expression, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == tokens.TokenPlus || p.cur().Kind == tokens.TokenMinus {
		opTok := p.advance()
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		op := ast.OpAdd
		if opTok.Kind == tokens.TokenMinus {
			op = ast.OpSub
		}
		left = &ast.Binary{Left: left, Op: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMul() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == tokens.TokenMul || p.cur().Kind == tokens.TokenDiv || p.cur().Kind == tokens.TokenMod {
		opTok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		var op ast.Op
		switch opTok.Kind {
		case tokens.TokenMul:
			op = ast.OpMul
		case tokens.TokenDiv:
			op = ast.OpDiv
		default:
			op = ast.OpMod
		}
		left = &ast.Binary{Left: left, Op: op, Right: right}
	}
	return left, nil
}

// parseUnary handles `!` and unary `-`. Per spec §4.1 the unary minus does
// not fold into a negative number literal: `-5` is Unary{-, Literal(5)}.
func (p *Parser) parseUnary() (ast.Expression, error) {
	switch p.cur().Kind {
	case tokens.TokenBang:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: ast.OpNot, Operand: operand}, nil
	case tokens.TokenMinus:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: ast.OpNegate, Operand: operand}, nil
	default:
		if p.isWord("not") {
			p.advance()
			operand, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &ast.Unary{Op: ast.OpNot, Operand: operand}, nil
		}
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	t := p.cur()
	switch t.Kind {
	case tokens.Number:
		p.advance()
		n, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidExpression, "invalid number %q", t.Value)
		}
		return &ast.Literal{Value: value.Number(n)}, nil
	case tokens.String:
		p.advance()
		return &ast.Literal{Value: value.String(t.Value)}, nil
	case tokens.PunctLeftParen:
		p.advance()
		inner, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokens.PunctRightParen); err != nil {
			return nil, err
		}
		return inner, nil
	case tokens.PunctLeftBrack:
		return p.parseArrayLiteral()
	case tokens.Ident:
		return p.parseIdentLed()
	}
	return nil, errors.Wrapf(ErrInvalidExpression, "unexpected token %s at %s", t.Kind, t.Range)
}

func (p *Parser) parseArrayLiteral() (ast.Expression, error) {
	if _, err := p.expect(tokens.PunctLeftBrack); err != nil {
		return nil, err
	}
	var items []ast.Expression
	for p.cur().Kind != tokens.PunctRightBrack {
		item, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur().Kind == tokens.PunctComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokens.PunctRightBrack); err != nil {
		return nil, err
	}
	return &ast.ArrayLiteral{Items: items}, nil
}

// parseIdentLed handles everything that starts with a bareword: boolean /
// null literals, `list.ID`, `result.FIELD` / `result.RULESET.FIELD`,
// function calls (including the `any(...)`/`all(...)` logical group sugar),
// and plain field-access paths.
func (p *Parser) parseIdentLed() (ast.Expression, error) {
	first := p.advance()

	switch first.Value {
	case "true":
		return &ast.Literal{Value: value.Bool(true)}, nil
	case "false":
		return &ast.Literal{Value: value.Bool(false)}, nil
	case "null":
		return &ast.Literal{Value: value.Null}, nil
	}

	// function call: name(args...)
	if p.cur().Kind == tokens.PunctLeftParen {
		p.advance()
		var args []ast.Expression
		for p.cur().Kind != tokens.PunctRightParen {
			arg, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur().Kind == tokens.PunctComma {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(tokens.PunctRightParen); err != nil {
			return nil, err
		}
		if first.Value == "any" || first.Value == "all" {
			op := ast.GroupAny
			if first.Value == "all" {
				op = ast.GroupAll
			}
			return &ast.LogicalGroup{Op: op, Conditions: args}, nil
		}
		return &ast.FunctionCall{Name: first.Value, Args: args}, nil
	}

	// list.ID reference
	if first.Value == "list" && p.cur().Kind == tokens.TokenDot {
		p.advance()
		idTok, err := p.expect(tokens.Ident)
		if err != nil {
			return nil, err
		}
		return &ast.ListReference{ListID: idTok.Value}, nil
	}

	// result.FIELD or result.RULESET.FIELD
	if first.Value == "result" && p.cur().Kind == tokens.TokenDot {
		p.advance()
		seg1, err := p.expect(tokens.Ident)
		if err != nil {
			return nil, err
		}
		if p.cur().Kind == tokens.TokenDot {
			p.advance()
			seg2, err := p.expect(tokens.Ident)
			if err != nil {
				return nil, err
			}
			return &ast.ResultAccess{RulesetID: seg1.Value, Field: seg2.Value}, nil
		}
		return &ast.ResultAccess{Field: seg1.Value}, nil
	}

	// plain field access path: a.b.c
	path := []string{first.Value}
	for p.cur().Kind == tokens.TokenDot {
		p.advance()
		seg, err := p.expect(tokens.Ident)
		if err != nil {
			return nil, err
		}
		path = append(path, seg.Value)
	}
	return &ast.FieldAccess{Path: path}, nil
}

// ParseCondition parses a leaf condition string inside a WhenBlock; it is
// indistinguishable from Parse except for the error context it reports.
func ParseCondition(src string) (ast.Expression, error) {
	expr, err := Parse(src)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid condition %q", src)
	}
	return expr, nil
}
