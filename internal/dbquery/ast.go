// Package dbquery defines the parsed query and expression AST of spec.md
// §4.5/§6: the shapes a collaborator parser (internal/sqlshell) hands to
// the Query Dispatcher, and the tagged-union expression tree the Typer,
// Dependency Analyser, and Evaluator all walk.
package dbquery

import "github.com/dbufdb/dbufdb/internal/dbval"

// ExprKind tags which shape an Expr node takes.
type ExprKind uint8

const (
	ExprLiteral ExprKind = iota
	ExprColumnRef
	ExprBinary
	ExprUnaryNot
	ExprUnaryNegate
	ExprMessageField
	ExprEnumMatch
)

// BinOp enumerates the binary operators of §4.5.
type BinOp uint8

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNeq
	OpLt
	OpGt
	OpAnd
	OpOr
)

// MatchCase is one `enum_name::variant_name => body` arm of an EnumMatch.
// FieldNames is filled in by the typer from the matched variant's own
// declaration, so the evaluator can bind fields by name without itself
// depending on the schema registry.
type MatchCase struct {
	EnumName    string
	VariantName string
	Body        *Expr
	FieldNames  []string
}

// Expr is the tagged-union expression node. Only the fields relevant to
// Kind are populated; the rest are zero.
type Expr struct {
	Kind ExprKind

	Literal dbval.Value // ExprLiteral
	Column  string      // ExprColumnRef

	Op    BinOp // ExprBinary
	Left  *Expr
	Right *Expr

	Operand *Expr // ExprUnaryNot, ExprUnaryNegate, ExprMessageField, ExprEnumMatch
	Field   string // ExprMessageField

	// FieldIndex is resolved by the typer from Field's position in the
	// base message's declaration, so the evaluator can index Value.Fields
	// directly without depending on the schema registry.
	FieldIndex int // ExprMessageField

	Cases []MatchCase // ExprEnumMatch
}

func Lit(v dbval.Value) *Expr            { return &Expr{Kind: ExprLiteral, Literal: v} }
func Col(name string) *Expr              { return &Expr{Kind: ExprColumnRef, Column: name} }
func Bin(op BinOp, l, r *Expr) *Expr      { return &Expr{Kind: ExprBinary, Op: op, Left: l, Right: r} }
func Not(e *Expr) *Expr                  { return &Expr{Kind: ExprUnaryNot, Operand: e} }
func Negate(e *Expr) *Expr               { return &Expr{Kind: ExprUnaryNegate, Operand: e} }
func MessageField(e *Expr, field string) *Expr {
	return &Expr{Kind: ExprMessageField, Operand: e, Field: field}
}
func EnumMatch(e *Expr, cases []MatchCase) *Expr {
	return &Expr{Kind: ExprEnumMatch, Operand: e, Cases: cases}
}

// Projection is one `(expression, alias)` pair of a SELECT.
type Projection struct {
	Expr  *Expr
	Alias string
}

// QueryKind tags which of the §6 parsed-query variants a Query is.
type QueryKind uint8

const (
	QueryFetchTypes QueryKind = iota
	QueryCreateTable
	QueryDropTable
	QueryInsertMessages
	QuerySelect
)

// Query is the tagged-union parsed statement a collaborator hands to the
// dispatcher.
type Query struct {
	Kind QueryKind

	Path string // QueryFetchTypes

	Table   string // QueryCreateTable, QueryDropTable, QueryInsertMessages, QuerySelect
	RowType string // QueryCreateTable

	Rows []dbval.Value // QueryInsertMessages

	Fields []Projection // QuerySelect
	Where  *Expr        // QuerySelect, optional
}
