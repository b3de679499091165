// Package typer implements the Expression Typer (X) of spec.md §4.5: type
// inference over the dbquery expression AST against a row context, with
// exhaustiveness checking for EnumMatch and use-set tracking for the
// Dependency Analyser.
package typer

import (
	"github.com/dbufdb/dbufdb/internal/dberr"
	"github.com/dbufdb/dbufdb/internal/dbquery"
	"github.com/dbufdb/dbufdb/internal/dbschema"
	"github.com/dbufdb/dbufdb/internal/dbval"
)

// Context binds row column names to their declared types and names the
// row's message type, so deps(row_type, c) can be looked up from the
// registry.
type Context struct {
	Reg     *dbschema.Registry
	RowType string
	Columns map[string]dbschema.DeclaredType
}

// UseSet is the set of top-level column names an expression reads,
// transitively through matches and field accesses, per spec.md §4.6.
type UseSet map[string]struct{}

func newUseSet() UseSet { return make(UseSet) }

func (u UseSet) add(name string) { u[name] = struct{}{} }

func (u UseSet) union(o UseSet) {
	for k := range o {
		u[k] = struct{}{}
	}
}

// Result is the typer's output for one expression: its inferred type and
// the top-level columns it reads.
type Result struct {
	Type   dbschema.DeclaredType
	UseSet UseSet
}

// Type infers the result type of e under ctx, per spec.md §4.5.
func Type(ctx *Context, e *dbquery.Expr) (Result, error) {
	switch e.Kind {
	case dbquery.ExprLiteral:
		return typeLiteral(ctx, e)
	case dbquery.ExprColumnRef:
		return typeColumnRef(ctx, e)
	case dbquery.ExprBinary:
		return typeBinary(ctx, e)
	case dbquery.ExprUnaryNot:
		return typeUnaryNot(ctx, e)
	case dbquery.ExprUnaryNegate:
		return typeUnaryNegate(ctx, e)
	case dbquery.ExprMessageField:
		return typeMessageField(ctx, e)
	case dbquery.ExprEnumMatch:
		return typeEnumMatch(ctx, e)
	default:
		return Result{}, dberr.New(dberr.KindTypeMismatch, "malformed expression")
	}
}

func typeLiteral(ctx *Context, e *dbquery.Expr) (Result, error) {
	t, err := declaredTypeOfValueShape(ctx.Reg, e.Literal)
	if err != nil {
		return Result{}, err
	}
	return Result{Type: t, UseSet: newUseSet()}, nil
}

// declaredTypeOfValueShape infers the DeclaredType a literal dbval.Value
// carries, by its own tag (and, for Message/Variant, its recorded type
// name) — used only for literals, where the value already names its type.
// Message/Variant literals are recursively checked against the registry's
// declaration for that type before being accepted, the same arity/shape
// check dbschema.Conforms runs for an INSERT row, since a literal embedded
// in a SELECT/WHERE expression never passes through Conforms otherwise.
func declaredTypeOfValueShape(reg *dbschema.Registry, v dbval.Value) (dbschema.DeclaredType, error) {
	switch v.Kind {
	case dbval.KindInt:
		return dbschema.PrimType(dbschema.PrimInt), nil
	case dbval.KindDouble:
		return dbschema.PrimType(dbschema.PrimDouble), nil
	case dbval.KindString:
		return dbschema.PrimType(dbschema.PrimString), nil
	case dbval.KindBool:
		return dbschema.PrimType(dbschema.PrimBool), nil
	case dbval.KindMessage:
		if _, ok := reg.Message(v.TypeName); !ok {
			return dbschema.DeclaredType{}, dberr.New(dberr.KindUnknownType, "unknown message type %q", v.TypeName)
		}
		t := dbschema.MessageType(v.TypeName)
		if err := checkLiteralConformance(reg, v, t); err != nil {
			return dbschema.DeclaredType{}, err
		}
		return t, nil
	case dbval.KindVariant:
		if _, ok := reg.Enum(v.EnumName); !ok {
			return dbschema.DeclaredType{}, dberr.New(dberr.KindUnknownType, "unknown enum type %q", v.EnumName)
		}
		t := dbschema.EnumType(v.EnumName)
		if err := checkLiteralConformance(reg, v, t); err != nil {
			return dbschema.DeclaredType{}, err
		}
		return t, nil
	default:
		return dbschema.DeclaredType{}, dberr.New(dberr.KindTypeMismatch, "malformed literal")
	}
}

// checkLiteralConformance recurses over a literal value and the declared
// type it claims, field by field, the way dbschema.Conforms does for an
// INSERT row — except it reports *why* a literal doesn't fit, distinguishing
// a wrong field count (ArityMismatch) from a wrong field shape
// (TypeMismatch), so a malformed literal embedded in an expression fails at
// typing time instead of reaching the evaluator with unresolved FieldIndex
// bounds.
func checkLiteralConformance(reg *dbschema.Registry, v dbval.Value, t dbschema.DeclaredType) error {
	switch t.Kind {
	case dbschema.KindPrim:
		if !primKindMatches(t.Prim, v.Kind) {
			return dberr.New(dberr.KindTypeMismatch, "expected %s, got %s", t, v.Kind)
		}
		return nil

	case dbschema.KindMessageRef:
		if v.Kind != dbval.KindMessage || v.TypeName != t.Name {
			return dberr.New(dberr.KindTypeMismatch, "expected message %s, got %s", t.Name, v.Kind)
		}
		decl, ok := reg.Message(t.Name)
		if !ok {
			return dberr.New(dberr.KindUnknownType, "unknown message type %q", t.Name)
		}
		if len(v.Fields) != len(decl.Fields) {
			return dberr.New(dberr.KindArityMismatch, "message %s expects %d field(s), literal supplies %d", t.Name, len(decl.Fields), len(v.Fields))
		}
		for i, f := range decl.Fields {
			if err := checkLiteralConformance(reg, v.Fields[i], f.Type); err != nil {
				return err
			}
		}
		return nil

	case dbschema.KindEnumRef:
		if v.Kind != dbval.KindVariant || v.EnumName != t.Name {
			return dberr.New(dberr.KindTypeMismatch, "expected enum %s, got %s", t.Name, v.Kind)
		}
		decl, ok := reg.Enum(t.Name)
		if !ok {
			return dberr.New(dberr.KindUnknownType, "unknown enum type %q", t.Name)
		}
		vi := decl.VariantIndex(v.VariantName)
		if vi < 0 {
			return dberr.New(dberr.KindUnknownVariant, "unknown variant %s::%s", t.Name, v.VariantName)
		}
		variant := decl.Variants[vi]
		if len(v.Fields) != len(variant.Fields) {
			return dberr.New(dberr.KindArityMismatch, "variant %s::%s expects %d field(s), literal supplies %d", t.Name, v.VariantName, len(variant.Fields), len(v.Fields))
		}
		for i, f := range variant.Fields {
			if err := checkLiteralConformance(reg, v.Fields[i], f.Type); err != nil {
				return err
			}
		}
		return nil

	default:
		return dberr.New(dberr.KindTypeMismatch, "malformed declared type")
	}
}

func primKindMatches(p dbschema.Prim, k dbval.Kind) bool {
	switch p {
	case dbschema.PrimInt:
		return k == dbval.KindInt
	case dbschema.PrimDouble:
		return k == dbval.KindDouble
	case dbschema.PrimString:
		return k == dbval.KindString
	case dbschema.PrimBool:
		return k == dbval.KindBool
	default:
		return false
	}
}

func typeColumnRef(ctx *Context, e *dbquery.Expr) (Result, error) {
	t, ok := ctx.Columns[e.Column]
	if !ok {
		return Result{}, dberr.New(dberr.KindUnboundColumn, "unbound column %q", e.Column)
	}
	u := newUseSet()
	u.add(e.Column)
	return Result{Type: t, UseSet: u}, nil
}

func isNumeric(t dbschema.DeclaredType) bool {
	return t.Kind == dbschema.KindPrim && (t.Prim == dbschema.PrimInt || t.Prim == dbschema.PrimDouble)
}

func typeBinary(ctx *Context, e *dbquery.Expr) (Result, error) {
	l, err := Type(ctx, e.Left)
	if err != nil {
		return Result{}, err
	}
	r, err := Type(ctx, e.Right)
	if err != nil {
		return Result{}, err
	}
	use := newUseSet()
	use.union(l.UseSet)
	use.union(r.UseSet)

	switch e.Op {
	case dbquery.OpAdd:
		if l.Type.Kind == dbschema.KindPrim && l.Type.Prim == dbschema.PrimString {
			if !r.Type.Equal(l.Type) {
				return Result{}, dberr.New(dberr.KindTypeMismatch, "+ requires matching operand types, got %s and %s", l.Type, r.Type)
			}
			return Result{Type: l.Type, UseSet: use}, nil
		}
		fallthrough
	case dbquery.OpSub, dbquery.OpMul, dbquery.OpDiv:
		if !isNumeric(l.Type) || !l.Type.Equal(r.Type) {
			return Result{}, dberr.New(dberr.KindTypeMismatch, "arithmetic requires matching Int or Double operands, got %s and %s", l.Type, r.Type)
		}
		return Result{Type: l.Type, UseSet: use}, nil

	case dbquery.OpEq, dbquery.OpNeq:
		if !l.Type.Equal(r.Type) {
			return Result{}, dberr.New(dberr.KindTypeMismatch, "%s requires identical operand types, got %s and %s", opName(e.Op), l.Type, r.Type)
		}
		return Result{Type: dbschema.PrimType(dbschema.PrimBool), UseSet: use}, nil

	case dbquery.OpLt, dbquery.OpGt:
		ok := l.Type.Equal(r.Type) && (isNumeric(l.Type) || isString(l.Type))
		if !ok {
			return Result{}, dberr.New(dberr.KindTypeMismatch, "%s requires matching numeric or string operands, got %s and %s", opName(e.Op), l.Type, r.Type)
		}
		return Result{Type: dbschema.PrimType(dbschema.PrimBool), UseSet: use}, nil

	case dbquery.OpAnd, dbquery.OpOr:
		if !isBool(l.Type) || !isBool(r.Type) {
			return Result{}, dberr.New(dberr.KindTypeMismatch, "%s requires Bool operands, got %s and %s", opName(e.Op), l.Type, r.Type)
		}
		return Result{Type: dbschema.PrimType(dbschema.PrimBool), UseSet: use}, nil

	default:
		return Result{}, dberr.New(dberr.KindTypeMismatch, "malformed binary operator")
	}
}

func isString(t dbschema.DeclaredType) bool {
	return t.Kind == dbschema.KindPrim && t.Prim == dbschema.PrimString
}
func isBool(t dbschema.DeclaredType) bool {
	return t.Kind == dbschema.KindPrim && t.Prim == dbschema.PrimBool
}

func opName(op dbquery.BinOp) string {
	switch op {
	case dbquery.OpAdd:
		return "+"
	case dbquery.OpSub:
		return "-"
	case dbquery.OpMul:
		return "*"
	case dbquery.OpDiv:
		return "/"
	case dbquery.OpEq:
		return "=="
	case dbquery.OpNeq:
		return "!="
	case dbquery.OpLt:
		return "<"
	case dbquery.OpGt:
		return ">"
	case dbquery.OpAnd:
		return "&&"
	case dbquery.OpOr:
		return "||"
	default:
		return "?"
	}
}

func typeUnaryNot(ctx *Context, e *dbquery.Expr) (Result, error) {
	o, err := Type(ctx, e.Operand)
	if err != nil {
		return Result{}, err
	}
	if !isBool(o.Type) {
		return Result{}, dberr.New(dberr.KindTypeMismatch, "! requires a Bool operand, got %s", o.Type)
	}
	return Result{Type: o.Type, UseSet: o.UseSet}, nil
}

func typeUnaryNegate(ctx *Context, e *dbquery.Expr) (Result, error) {
	o, err := Type(ctx, e.Operand)
	if err != nil {
		return Result{}, err
	}
	if !isNumeric(o.Type) {
		return Result{}, dberr.New(dberr.KindTypeMismatch, "- requires an Int or Double operand, got %s", o.Type)
	}
	return Result{Type: o.Type, UseSet: o.UseSet}, nil
}

func typeMessageField(ctx *Context, e *dbquery.Expr) (Result, error) {
	o, err := Type(ctx, e.Operand)
	if err != nil {
		return Result{}, err
	}
	if o.Type.Kind != dbschema.KindMessageRef {
		return Result{}, dberr.New(dberr.KindTypeMismatch, "field access requires a message-typed operand, got %s", o.Type)
	}
	decl, ok := ctx.Reg.Message(o.Type.Name)
	if !ok {
		return Result{}, dberr.New(dberr.KindUnknownType, "unknown message type %q", o.Type.Name)
	}
	idx := decl.FieldIndex(e.Field)
	if idx < 0 {
		return Result{}, dberr.New(dberr.KindUnknownField, "%s has no field %q", o.Type.Name, e.Field)
	}
	e.FieldIndex = idx
	return Result{Type: decl.Fields[idx].Type, UseSet: o.UseSet}, nil
}

func typeEnumMatch(ctx *Context, e *dbquery.Expr) (Result, error) {
	o, err := Type(ctx, e.Operand)
	if err != nil {
		return Result{}, err
	}
	if o.Type.Kind != dbschema.KindEnumRef {
		return Result{}, dberr.New(dberr.KindTypeMismatch, "MATCH requires an enum-typed operand, got %s", o.Type)
	}
	decl, ok := ctx.Reg.Enum(o.Type.Name)
	if !ok {
		return Result{}, dberr.New(dberr.KindUnknownType, "unknown enum type %q", o.Type.Name)
	}

	declared := make(map[string]bool, len(decl.Variants))
	for _, v := range decl.Variants {
		declared[v.Name] = true
	}
	seenCase := make(map[string]bool, len(e.Cases))

	var resultType dbschema.DeclaredType
	haveResult := false
	use := newUseSet()
	use.union(o.UseSet)

	for i := range e.Cases {
		c := &e.Cases[i]
		if c.EnumName != o.Type.Name {
			return Result{}, dberr.New(dberr.KindUnknownVariant, "case %s::%s does not belong to matched enum %s", c.EnumName, c.VariantName, o.Type.Name)
		}
		if !declared[c.VariantName] {
			return Result{}, dberr.New(dberr.KindUnknownVariant, "unknown variant %s::%s", c.EnumName, c.VariantName)
		}
		if seenCase[c.VariantName] {
			return Result{}, dberr.New(dberr.KindExtraCase, "duplicate case for variant %s::%s", c.EnumName, c.VariantName)
		}
		seenCase[c.VariantName] = true

		vi := decl.VariantIndex(c.VariantName)
		variant := decl.Variants[vi]

		extended := &Context{Reg: ctx.Reg, RowType: ctx.RowType, Columns: make(map[string]dbschema.DeclaredType, len(ctx.Columns)+len(variant.Fields))}
		for k, v := range ctx.Columns {
			extended.Columns[k] = v
		}
		fieldNames := make([]string, len(variant.Fields))
		bound := make(map[string]bool, len(variant.Fields))
		for i, f := range variant.Fields {
			extended.Columns[f.Name] = f.Type
			fieldNames[i] = f.Name
			bound[f.Name] = true
		}
		c.FieldNames = fieldNames

		bodyRes, err := Type(extended, c.Body)
		if err != nil {
			return Result{}, err
		}
		if !haveResult {
			resultType = bodyRes.Type
			haveResult = true
		} else if !resultType.Equal(bodyRes.Type) {
			return Result{}, dberr.New(dberr.KindTypeMismatch, "MATCH case bodies must share a type, got %s and %s", resultType, bodyRes.Type)
		}
		// Names bound by the variant's own fields are not top-level columns.
		for k := range bodyRes.UseSet {
			if !bound[k] {
				use.add(k)
			}
		}
	}

	var missing []string
	for _, v := range decl.Variants {
		if !seenCase[v.Name] {
			missing = append(missing, decl.Name+"::"+v.Name)
		}
	}
	if len(missing) > 0 {
		return Result{}, dberr.New(dberr.KindNonExhaustiveMatch, "missing cases: %v", missing)
	}

	return Result{Type: resultType, UseSet: use}, nil
}
