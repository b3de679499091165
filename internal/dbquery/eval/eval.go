// Package eval implements the Evaluator (E) of spec.md §4.7: a pure
// reduction of a type-checked dbquery.Expr against a row to a dbval.Value.
package eval

import (
	"fmt"

	"github.com/dbufdb/dbufdb/internal/dberr"
	"github.com/dbufdb/dbufdb/internal/dbquery"
	"github.com/dbufdb/dbufdb/internal/dbval"
)

// Row binds column names to their values, extended during EnumMatch with
// the matched variant's own fields (per spec.md §4.7's binding rule, read
// literally to extend rather than replace the outer context).
type Row map[string]dbval.Value

// Eval reduces e against row to a Value. e must already have passed
// typer.Type under a row context conforming to row; that guarantee is what
// lets the arithmetic and field-access cases below assume well-typed
// operands and panic rather than return an error on an invariant breach.
func Eval(row Row, e *dbquery.Expr) (dbval.Value, error) {
	switch e.Kind {
	case dbquery.ExprLiteral:
		return e.Literal, nil

	case dbquery.ExprColumnRef:
		v, ok := row[e.Column]
		if !ok {
			panic(fmt.Sprintf("eval: unbound column %q reached evaluator after typing", e.Column))
		}
		return v, nil

	case dbquery.ExprBinary:
		return evalBinary(row, e)

	case dbquery.ExprUnaryNot:
		v, err := Eval(row, e.Operand)
		if err != nil {
			return dbval.Value{}, err
		}
		if v.Kind != dbval.KindBool {
			panic("eval: ! applied to non-Bool after typing")
		}
		return dbval.Bool(!v.B), nil

	case dbquery.ExprUnaryNegate:
		v, err := Eval(row, e.Operand)
		if err != nil {
			return dbval.Value{}, err
		}
		switch v.Kind {
		case dbval.KindInt:
			return dbval.Int(-v.I), nil
		case dbval.KindDouble:
			return dbval.Double(-v.F), nil
		default:
			panic("eval: - applied to non-numeric after typing")
		}

	case dbquery.ExprMessageField:
		return evalMessageField(row, e)

	case dbquery.ExprEnumMatch:
		return evalEnumMatch(row, e)

	default:
		panic("eval: malformed expression reached evaluator")
	}
}

func evalBinary(row Row, e *dbquery.Expr) (dbval.Value, error) {
	if e.Op == dbquery.OpAnd {
		l, err := Eval(row, e.Left)
		if err != nil {
			return dbval.Value{}, err
		}
		if !l.B {
			return dbval.Bool(false), nil
		}
		r, err := Eval(row, e.Right)
		if err != nil {
			return dbval.Value{}, err
		}
		return dbval.Bool(r.B), nil
	}
	if e.Op == dbquery.OpOr {
		l, err := Eval(row, e.Left)
		if err != nil {
			return dbval.Value{}, err
		}
		if l.B {
			return dbval.Bool(true), nil
		}
		r, err := Eval(row, e.Right)
		if err != nil {
			return dbval.Value{}, err
		}
		return dbval.Bool(r.B), nil
	}

	l, err := Eval(row, e.Left)
	if err != nil {
		return dbval.Value{}, err
	}
	r, err := Eval(row, e.Right)
	if err != nil {
		return dbval.Value{}, err
	}

	switch e.Op {
	case dbquery.OpAdd:
		if l.Kind == dbval.KindString {
			return dbval.String(l.S + r.S), nil
		}
		return numericBinOp(l, r, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })
	case dbquery.OpSub:
		return numericBinOp(l, r, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	case dbquery.OpMul:
		return numericBinOp(l, r, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })
	case dbquery.OpDiv:
		if l.Kind == dbval.KindInt {
			if r.I == 0 {
				return dbval.Value{}, dberr.New(dberr.KindDivisionByZero, "division by zero")
			}
			return dbval.Int(l.I / r.I), nil
		}
		if r.F == 0 {
			return dbval.Value{}, dberr.New(dberr.KindDivisionByZero, "division by zero")
		}
		return dbval.Double(l.F / r.F), nil
	case dbquery.OpEq:
		return dbval.Bool(dbval.Equal(l, r)), nil
	case dbquery.OpNeq:
		return dbval.Bool(!dbval.Equal(l, r)), nil
	case dbquery.OpLt:
		return compareLess(l, r)
	case dbquery.OpGt:
		lt, err := compareLess(r, l)
		return lt, err
	default:
		panic("eval: malformed binary operator")
	}
}

func numericBinOp(l, r dbval.Value, onInt func(int64, int64) int64, onFloat func(float64, float64) float64) (dbval.Value, error) {
	if l.Kind == dbval.KindInt {
		return dbval.Int(onInt(l.I, r.I)), nil
	}
	return dbval.Double(onFloat(l.F, r.F)), nil
}

func compareLess(l, r dbval.Value) (dbval.Value, error) {
	switch l.Kind {
	case dbval.KindInt:
		return dbval.Bool(l.I < r.I), nil
	case dbval.KindDouble:
		return dbval.Bool(l.F < r.F), nil
	case dbval.KindString:
		return dbval.Bool(l.S < r.S), nil
	default:
		panic("eval: < or > applied to non-ordered type after typing")
	}
}

func evalMessageField(row Row, e *dbquery.Expr) (dbval.Value, error) {
	base, err := Eval(row, e.Operand)
	if err != nil {
		return dbval.Value{}, err
	}
	if base.Kind != dbval.KindMessage {
		panic("eval: field access on non-Message after typing")
	}
	if e.FieldIndex < 0 || e.FieldIndex >= len(base.Fields) {
		panic("eval: field index " + e.Field + " out of range after typing")
	}
	return base.Fields[e.FieldIndex], nil
}

func evalEnumMatch(row Row, e *dbquery.Expr) (dbval.Value, error) {
	base, err := Eval(row, e.Operand)
	if err != nil {
		return dbval.Value{}, err
	}
	if base.Kind != dbval.KindVariant {
		panic("eval: MATCH on non-Variant after typing")
	}
	for _, c := range e.Cases {
		if c.VariantName != base.VariantName {
			continue
		}
		extended := make(Row, len(row)+len(base.Fields))
		for k, v := range row {
			extended[k] = v
		}
		for i, f := range c.FieldNames {
			if i < len(base.Fields) {
				extended[f] = base.Fields[i]
			}
		}
		return Eval(extended, c.Body)
	}
	panic("eval: no MATCH arm for variant " + base.EnumName + "::" + base.VariantName + " after exhaustiveness was checked")
}
