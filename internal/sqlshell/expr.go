package sqlshell

import (
	"fmt"

	"github.com/dbufdb/dbufdb/internal/dbquery"
	"github.com/dbufdb/dbufdb/internal/dbval"
)

// Precedence climbs low to high: || , && , comparisons , + - , * / ,
// unary, then postfix `.field`, matching SPEC_FULL.md §6.2's table.

func parseExpr(c *cursor) (*dbquery.Expr, error) { return parseOr(c) }

func parseOr(c *cursor) (*dbquery.Expr, error) {
	left, err := parseAnd(c)
	if err != nil {
		return nil, err
	}
	for c.cur().kind == tokSymbol && c.cur().text == "||" {
		c.advance()
		right, err := parseAnd(c)
		if err != nil {
			return nil, err
		}
		left = dbquery.Bin(dbquery.OpOr, left, right)
	}
	return left, nil
}

func parseAnd(c *cursor) (*dbquery.Expr, error) {
	left, err := parseComparison(c)
	if err != nil {
		return nil, err
	}
	for c.cur().kind == tokSymbol && c.cur().text == "&&" {
		c.advance()
		right, err := parseComparison(c)
		if err != nil {
			return nil, err
		}
		left = dbquery.Bin(dbquery.OpAnd, left, right)
	}
	return left, nil
}

func parseComparison(c *cursor) (*dbquery.Expr, error) {
	left, err := parseAdditive(c)
	if err != nil {
		return nil, err
	}
	for c.cur().kind == tokSymbol {
		var op dbquery.BinOp
		switch c.cur().text {
		case "==":
			op = dbquery.OpEq
		case "!=":
			op = dbquery.OpNeq
		case "<":
			op = dbquery.OpLt
		case ">":
			op = dbquery.OpGt
		default:
			return left, nil
		}
		c.advance()
		right, err := parseAdditive(c)
		if err != nil {
			return nil, err
		}
		left = dbquery.Bin(op, left, right)
	}
	return left, nil
}

func parseAdditive(c *cursor) (*dbquery.Expr, error) {
	left, err := parseMultiplicative(c)
	if err != nil {
		return nil, err
	}
	for c.cur().kind == tokSymbol && (c.cur().text == "+" || c.cur().text == "-") {
		op := dbquery.OpAdd
		if c.cur().text == "-" {
			op = dbquery.OpSub
		}
		c.advance()
		right, err := parseMultiplicative(c)
		if err != nil {
			return nil, err
		}
		left = dbquery.Bin(op, left, right)
	}
	return left, nil
}

func parseMultiplicative(c *cursor) (*dbquery.Expr, error) {
	left, err := parseUnary(c)
	if err != nil {
		return nil, err
	}
	for c.cur().kind == tokSymbol && (c.cur().text == "*" || c.cur().text == "/") {
		op := dbquery.OpMul
		if c.cur().text == "/" {
			op = dbquery.OpDiv
		}
		c.advance()
		right, err := parseUnary(c)
		if err != nil {
			return nil, err
		}
		left = dbquery.Bin(op, left, right)
	}
	return left, nil
}

func parseUnary(c *cursor) (*dbquery.Expr, error) {
	if c.cur().kind == tokSymbol && c.cur().text == "!" {
		c.advance()
		e, err := parseUnary(c)
		if err != nil {
			return nil, err
		}
		return dbquery.Not(e), nil
	}
	if c.cur().kind == tokSymbol && c.cur().text == "-" {
		c.advance()
		e, err := parseUnary(c)
		if err != nil {
			return nil, err
		}
		return dbquery.Negate(e), nil
	}
	return parsePostfix(c)
}

func parsePostfix(c *cursor) (*dbquery.Expr, error) {
	e, err := parsePrimary(c)
	if err != nil {
		return nil, err
	}
	for c.cur().kind == tokSymbol && c.cur().text == "." {
		c.advance()
		field, err := c.expectIdentAny()
		if err != nil {
			return nil, err
		}
		e = dbquery.MessageField(e, field)
	}
	return e, nil
}

func parsePrimary(c *cursor) (*dbquery.Expr, error) {
	t := c.cur()

	switch t.kind {
	case tokInt:
		c.advance()
		i, err := parseIntLiteral(t.text)
		if err != nil {
			return nil, fmt.Errorf("sqlshell: invalid integer literal %q: %w", t.text, err)
		}
		return dbquery.Lit(dbval.Int(i)), nil

	case tokFloat:
		c.advance()
		f, err := parseFloatLiteral(t.text)
		if err != nil {
			return nil, fmt.Errorf("sqlshell: invalid float literal %q: %w", t.text, err)
		}
		return dbquery.Lit(dbval.Double(f)), nil

	case tokString:
		c.advance()
		return dbquery.Lit(dbval.String(t.text)), nil

	case tokSymbol:
		if t.text == "(" {
			c.advance()
			e, err := parseExpr(c)
			if err != nil {
				return nil, err
			}
			if err := c.expectSymbol(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
		if t.text == "[" {
			return parseBracketedLiteral(c)
		}
		return nil, fmt.Errorf("sqlshell: unexpected token %q", t.text)

	case tokIdent:
		switch t.text {
		case "true":
			c.advance()
			return dbquery.Lit(dbval.Bool(true)), nil
		case "false":
			c.advance()
			return dbquery.Lit(dbval.Bool(false)), nil
		case "MATCH":
			return parseMatch(c)
		}
		// EnumName::VariantName (bare, zero-field variant) vs plain ColumnRef.
		if c.toks[c.pos+1].kind == tokSymbol && c.toks[c.pos+1].text == "::" {
			enumName := t.text
			c.advance()
			c.advance()
			variant, err := c.expectIdentAny()
			if err != nil {
				return nil, err
			}
			return dbquery.Lit(dbval.Variant(enumName, variant)), nil
		}
		c.advance()
		return dbquery.Col(t.text), nil

	default:
		return nil, fmt.Errorf("sqlshell: unexpected end of expression")
	}
}

// parseBracketedLiteral parses `[Type { v1, v2, ... }]` (message literal)
// or `[Enum::Variant { v1, v2, ... }]` (variant literal; the list may be
// empty, as in `[Enum::Variant {}]`).
func parseBracketedLiteral(c *cursor) (*dbquery.Expr, error) {
	if err := c.expectSymbol("["); err != nil {
		return nil, err
	}
	name, err := c.expectIdentAny()
	if err != nil {
		return nil, err
	}

	var variant string
	isVariant := false
	if c.cur().kind == tokSymbol && c.cur().text == "::" {
		c.advance()
		isVariant = true
		variant, err = c.expectIdentAny()
		if err != nil {
			return nil, err
		}
	}

	if err := c.expectSymbol("{"); err != nil {
		return nil, err
	}
	var values []dbval.Value
	if !(c.cur().kind == tokSymbol && c.cur().text == "}") {
		for {
			v, err := parseLiteralValue(c)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
			if c.cur().kind == tokSymbol && c.cur().text == "," {
				c.advance()
				continue
			}
			break
		}
	}
	if err := c.expectSymbol("}"); err != nil {
		return nil, err
	}
	if err := c.expectSymbol("]"); err != nil {
		return nil, err
	}

	if isVariant {
		return dbquery.Lit(dbval.Variant(name, variant, values...)), nil
	}
	return dbquery.Lit(dbval.Message(name, values...)), nil
}

// parseLiteralValue parses one value inside an INSERT/message/variant
// literal list. Per spec.md §6, these positions accept only literals, no
// column references, so this is a restricted subset of parsePrimary.
func parseLiteralValue(c *cursor) (dbval.Value, error) {
	t := c.cur()
	switch t.kind {
	case tokInt:
		c.advance()
		i, err := parseIntLiteral(t.text)
		if err != nil {
			return dbval.Value{}, fmt.Errorf("sqlshell: invalid integer literal %q: %w", t.text, err)
		}
		return dbval.Int(i), nil
	case tokFloat:
		c.advance()
		f, err := parseFloatLiteral(t.text)
		if err != nil {
			return dbval.Value{}, fmt.Errorf("sqlshell: invalid float literal %q: %w", t.text, err)
		}
		return dbval.Double(f), nil
	case tokString:
		c.advance()
		return dbval.String(t.text), nil
	case tokIdent:
		switch t.text {
		case "true":
			c.advance()
			return dbval.Bool(true), nil
		case "false":
			c.advance()
			return dbval.Bool(false), nil
		}
		if c.toks[c.pos+1].kind == tokSymbol && c.toks[c.pos+1].text == "::" {
			enumName := t.text
			c.advance()
			c.advance()
			variant, err := c.expectIdentAny()
			if err != nil {
				return dbval.Value{}, err
			}
			return dbval.Variant(enumName, variant), nil
		}
		return dbval.Value{}, fmt.Errorf("sqlshell: bare column references are not allowed in literal positions, found %q", t.text)
	case tokSymbol:
		if t.text == "[" {
			e, err := parseBracketedLiteral(c)
			if err != nil {
				return dbval.Value{}, err
			}
			return e.Literal, nil
		}
		return dbval.Value{}, fmt.Errorf("sqlshell: unexpected token %q in literal position", t.text)
	default:
		return dbval.Value{}, fmt.Errorf("sqlshell: unexpected end of input in literal position")
	}
}

// parseMatch parses `MATCH <expr> { Enum::Variant => expr, ... }`.
func parseMatch(c *cursor) (*dbquery.Expr, error) {
	if err := c.expectIdent("MATCH"); err != nil {
		return nil, err
	}
	operand, err := parsePostfix(c)
	if err != nil {
		return nil, err
	}
	if err := c.expectSymbol("{"); err != nil {
		return nil, err
	}

	var cases []dbquery.MatchCase
	for {
		if c.cur().kind == tokSymbol && c.cur().text == "}" {
			break
		}
		enumName, err := c.expectIdentAny()
		if err != nil {
			return nil, err
		}
		if err := c.expectSymbol("::"); err != nil {
			return nil, err
		}
		variantName, err := c.expectIdentAny()
		if err != nil {
			return nil, err
		}
		if err := c.expectSymbol("=>"); err != nil {
			return nil, err
		}
		body, err := parseExpr(c)
		if err != nil {
			return nil, err
		}
		cases = append(cases, dbquery.MatchCase{EnumName: enumName, VariantName: variantName, Body: body})

		if c.cur().kind == tokSymbol && c.cur().text == "," {
			c.advance()
			continue
		}
		break
	}
	if err := c.expectSymbol("}"); err != nil {
		return nil, err
	}
	return dbquery.EnumMatch(operand, cases), nil
}
