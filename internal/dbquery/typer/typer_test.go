package typer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dbufdb/dbufdb/internal/dberr"
	"github.com/dbufdb/dbufdb/internal/dbquery"
	"github.com/dbufdb/dbufdb/internal/dbschema"
	"github.com/dbufdb/dbufdb/internal/dbval"
)

func accountRegistry(t *testing.T) *dbschema.Registry {
	reg := dbschema.NewRegistry()
	l := dbschema.NewLoader(reg, zap.NewNop())
	require.NoError(t, l.Load([]dbschema.RawDecl{
		{IsEnum: true, Enum: dbschema.EnumDecl{
			Name: "Status",
			Variants: []dbschema.VariantDecl{
				{Name: "Admin", Fields: []dbschema.FieldDecl{{Name: "level", Type: dbschema.PrimType(dbschema.PrimInt)}}},
				{Name: "Guest"},
			},
		}},
		{Message: dbschema.MessageDecl{
			Name: "Owner",
			Fields: []dbschema.FieldDecl{
				{Name: "name", Type: dbschema.PrimType(dbschema.PrimString)},
			},
		}},
		{Message: dbschema.MessageDecl{
			Name: "Account",
			Fields: []dbschema.FieldDecl{
				{Name: "status", Type: dbschema.EnumType("Status")},
				{Name: "owner", Type: dbschema.MessageType("Owner")},
			},
		}},
	}))
	return reg
}

func accountContext(reg *dbschema.Registry) *Context {
	return &Context{
		Reg:     reg,
		RowType: "Account",
		Columns: map[string]dbschema.DeclaredType{
			"status": dbschema.EnumType("Status"),
			"owner":  dbschema.MessageType("Owner"),
		},
	}
}

func TestType_Arithmetic(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)

	res, err := Type(ctx, dbquery.Bin(dbquery.OpAdd, dbquery.Lit(dbval.Int(1)), dbquery.Lit(dbval.Int(2))))
	require.NoError(t, err)
	require.Equal(t, dbschema.PrimType(dbschema.PrimInt), res.Type)

	_, err = Type(ctx, dbquery.Bin(dbquery.OpAdd, dbquery.Lit(dbval.Int(1)), dbquery.Lit(dbval.Double(2))))
	require.Error(t, err)
}

func TestType_DivisionByZeroIsNotATypeError(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)
	res, err := Type(ctx, dbquery.Bin(dbquery.OpDiv, dbquery.Lit(dbval.Int(1)), dbquery.Lit(dbval.Int(0))))
	require.NoError(t, err)
	require.Equal(t, dbschema.PrimType(dbschema.PrimInt), res.Type)
}

func TestType_Comparison(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)

	res, err := Type(ctx, dbquery.Bin(dbquery.OpLt, dbquery.Lit(dbval.String("a")), dbquery.Lit(dbval.String("b"))))
	require.NoError(t, err)
	require.Equal(t, dbschema.PrimType(dbschema.PrimBool), res.Type)

	_, err = Type(ctx, dbquery.Bin(dbquery.OpLt, dbquery.Lit(dbval.Bool(true)), dbquery.Lit(dbval.Bool(false))))
	require.Error(t, err)
}

func TestType_ColumnRef_Unbound(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)
	_, err := Type(ctx, dbquery.Col("nonexistent"))
	require.Error(t, err)
}

func TestType_MessageField_SetsFieldIndex(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)

	e := dbquery.MessageField(dbquery.Col("owner"), "name")
	res, err := Type(ctx, e)
	require.NoError(t, err)
	require.Equal(t, dbschema.PrimType(dbschema.PrimString), res.Type)
	require.Equal(t, 0, e.FieldIndex)
	require.Contains(t, res.UseSet, "owner")
}

func TestType_MessageField_UnknownField(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)
	_, err := Type(ctx, dbquery.MessageField(dbquery.Col("owner"), "nope"))
	require.Error(t, err)
}

func TestType_EnumMatch_Exhaustive_SetsFieldNames(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)

	e := dbquery.EnumMatch(dbquery.Col("status"), []dbquery.MatchCase{
		{EnumName: "Status", VariantName: "Admin", Body: dbquery.Col("level")},
		{EnumName: "Status", VariantName: "Guest", Body: dbquery.Lit(dbval.Int(0))},
	})
	res, err := Type(ctx, e)
	require.NoError(t, err)
	require.Equal(t, dbschema.PrimType(dbschema.PrimInt), res.Type)
	require.Equal(t, []string{"level"}, e.Cases[0].FieldNames)
	require.Equal(t, []string{}, append([]string{}, e.Cases[1].FieldNames...))
}

func TestType_EnumMatch_NonExhaustive(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)

	e := dbquery.EnumMatch(dbquery.Col("status"), []dbquery.MatchCase{
		{EnumName: "Status", VariantName: "Admin", Body: dbquery.Col("level")},
	})
	_, err := Type(ctx, e)
	require.Error(t, err)
}

func TestType_EnumMatch_ExtraCase(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)

	e := dbquery.EnumMatch(dbquery.Col("status"), []dbquery.MatchCase{
		{EnumName: "Status", VariantName: "Admin", Body: dbquery.Col("level")},
		{EnumName: "Status", VariantName: "Guest", Body: dbquery.Lit(dbval.Int(0))},
		{EnumName: "Status", VariantName: "Guest", Body: dbquery.Lit(dbval.Int(1))},
	})
	_, err := Type(ctx, e)
	require.Error(t, err)
}

func TestType_EnumMatch_UnknownVariant(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)

	e := dbquery.EnumMatch(dbquery.Col("status"), []dbquery.MatchCase{
		{EnumName: "Status", VariantName: "Admin", Body: dbquery.Col("level")},
		{EnumName: "Status", VariantName: "Nobody", Body: dbquery.Lit(dbval.Int(0))},
	})
	_, err := Type(ctx, e)
	require.Error(t, err)
}

func TestType_MessageLiteral_WrongArityRejected(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)

	lit := dbquery.Lit(dbval.Message("Owner", dbval.String("only")))
	_, err := Type(ctx, dbquery.MessageField(lit, "name"))
	require.NoError(t, err)

	lit = dbquery.Lit(dbval.Message("Owner"))
	_, err = Type(ctx, dbquery.MessageField(lit, "name"))
	require.Error(t, err)
	require.True(t, dberr.OfKind(err, dberr.KindArityMismatch))
}

func TestType_MessageLiteral_WrongFieldTypeRejected(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)

	lit := dbquery.Lit(dbval.Message("Owner", dbval.Int(1)))
	_, err := Type(ctx, lit)
	require.Error(t, err)
	require.True(t, dberr.OfKind(err, dberr.KindTypeMismatch))
}

func TestType_MessageLiteral_NestedArityRejected(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)

	lit := dbquery.Lit(dbval.Message("Account",
		dbval.Variant("Status", "Admin", dbval.Int(9)),
		dbval.Message("Owner"), // Owner needs one field, gets zero
	))
	_, err := Type(ctx, lit)
	require.Error(t, err)
	require.True(t, dberr.OfKind(err, dberr.KindArityMismatch))
}

func TestType_VariantLiteral_WrongArityRejected(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)

	lit := dbquery.Lit(dbval.Variant("Status", "Admin"))
	_, err := Type(ctx, lit)
	require.Error(t, err)
	require.True(t, dberr.OfKind(err, dberr.KindArityMismatch))
}

func TestType_VariantLiteral_UnknownVariantRejected(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)

	lit := dbquery.Lit(dbval.Variant("Status", "Nobody"))
	_, err := Type(ctx, lit)
	require.Error(t, err)
	require.True(t, dberr.OfKind(err, dberr.KindUnknownVariant))
}

func TestType_ValidCompositeLiteral_FieldAccessWorks(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)

	lit := dbquery.Lit(dbval.Message("Owner", dbval.String("carol")))
	e := dbquery.MessageField(lit, "name")
	res, err := Type(ctx, e)
	require.NoError(t, err)
	require.Equal(t, dbschema.PrimType(dbschema.PrimString), res.Type)
	require.Equal(t, 0, e.FieldIndex)
}

func TestType_LogicalOperators(t *testing.T) {
	reg := accountRegistry(t)
	ctx := accountContext(reg)

	res, err := Type(ctx, dbquery.Bin(dbquery.OpAnd, dbquery.Lit(dbval.Bool(true)), dbquery.Lit(dbval.Bool(false))))
	require.NoError(t, err)
	require.Equal(t, dbschema.PrimType(dbschema.PrimBool), res.Type)

	_, err = Type(ctx, dbquery.Bin(dbquery.OpAnd, dbquery.Lit(dbval.Int(1)), dbquery.Lit(dbval.Bool(false))))
	require.Error(t, err)
}
