package dbengine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dbufdb/dbufdb/internal/dberr"
	"github.com/dbufdb/dbufdb/internal/dbquery"
	"github.com/dbufdb/dbufdb/internal/dbschema"
	"github.com/dbufdb/dbufdb/internal/dbval"
)

// fakeSchema hands back a fixed batch of declarations regardless of path,
// the same fakeDB-style seam used to unit-test a dispatcher without a real
// collaborator behind it.
type fakeSchema struct {
	decls []dbschema.RawDecl
	err   error
}

func (f *fakeSchema) ParseFile(path string, reg *dbschema.Registry) ([]dbschema.RawDecl, error) {
	return f.decls, f.err
}

func userDecls() []dbschema.RawDecl {
	return []dbschema.RawDecl{{Message: dbschema.MessageDecl{
		Name: "User",
		Fields: []dbschema.FieldDecl{
			{Name: "name", Type: dbschema.PrimType(dbschema.PrimString)},
			{Name: "surname", Type: dbschema.PrimType(dbschema.PrimString)},
			{Name: "age", Type: dbschema.PrimType(dbschema.PrimInt)},
			{Name: "year_of_birth", Type: dbschema.PrimType(dbschema.PrimInt)},
		},
	}}}
}

// TestScenarioA_CreateInsertSelectWithWhere reproduces the seed walkthrough:
// two rows inserted, one filtered out by age > 20, two columns projected.
func TestScenarioA_CreateInsertSelectWithWhere(t *testing.T) {
	e := New(&fakeSchema{decls: userDecls()}, zap.NewNop())

	_, err := e.Dispatch(&dbquery.Query{Kind: dbquery.QueryFetchTypes, Path: "schema.dbuf"})
	require.NoError(t, err)

	_, err = e.Dispatch(&dbquery.Query{Kind: dbquery.QueryCreateTable, Table: "t", RowType: "User"})
	require.NoError(t, err)

	rows := []dbval.Value{
		dbval.Message("User", dbval.String("John"), dbval.String("Doe"), dbval.Int(25), dbval.Int(1999)),
		dbval.Message("User", dbval.String("Jane"), dbval.String("Roe"), dbval.Int(15), dbval.Int(2009)),
	}
	_, err = e.Dispatch(&dbquery.Query{Kind: dbquery.QueryInsertMessages, Table: "t", Rows: rows})
	require.NoError(t, err)

	res, err := e.Dispatch(&dbquery.Query{
		Kind:  dbquery.QuerySelect,
		Table: "t",
		Fields: []dbquery.Projection{
			{Expr: dbquery.Col("name"), Alias: "name"},
			{Expr: dbquery.Col("surname"), Alias: "surname"},
		},
		Where: dbquery.Bin(dbquery.OpGt, dbquery.Col("age"), dbquery.Lit(dbval.Int(20))),
	})
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, []string{"name", "surname"}, res.Columns)
	require.Len(t, res.Rows, 1)
	require.True(t, dbval.Equal(dbval.String("John"), res.Rows[0][0]))
	require.True(t, dbval.Equal(dbval.String("Doe"), res.Rows[0][1]))
}

// TestScenarioB_ArithmeticProjection projects a computed column.
func TestScenarioB_ArithmeticProjection(t *testing.T) {
	e := New(&fakeSchema{decls: userDecls()}, zap.NewNop())
	_, err := e.Dispatch(&dbquery.Query{Kind: dbquery.QueryFetchTypes, Path: "schema.dbuf"})
	require.NoError(t, err)
	_, err = e.Dispatch(&dbquery.Query{Kind: dbquery.QueryCreateTable, Table: "t", RowType: "User"})
	require.NoError(t, err)

	row := dbval.Message("User", dbval.String("John"), dbval.String("Doe"), dbval.Int(25), dbval.Int(1999))
	_, err = e.Dispatch(&dbquery.Query{Kind: dbquery.QueryInsertMessages, Table: "t", Rows: []dbval.Value{row}})
	require.NoError(t, err)

	res, err := e.Dispatch(&dbquery.Query{
		Kind:  dbquery.QuerySelect,
		Table: "t",
		Fields: []dbquery.Projection{
			{Expr: dbquery.Bin(dbquery.OpAdd, dbquery.Col("age"), dbquery.Lit(dbval.Int(1))), Alias: "next_age"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.True(t, dbval.Equal(dbval.Int(26), res.Rows[0][0]))
}

func accountSchema() []dbschema.RawDecl {
	return []dbschema.RawDecl{
		{IsEnum: true, Enum: dbschema.EnumDecl{
			Name: "Status",
			Variants: []dbschema.VariantDecl{
				{Name: "Admin", Fields: []dbschema.FieldDecl{{Name: "level", Type: dbschema.PrimType(dbschema.PrimInt)}}},
				{Name: "Guest"},
			},
		}},
		{Message: dbschema.MessageDecl{
			Name: "Account",
			Fields: []dbschema.FieldDecl{
				{Name: "status", Type: dbschema.EnumType("Status")},
				{Name: "limit", Type: dbschema.PrimType(dbschema.PrimInt), Deps: []string{"status"}},
			},
		}},
	}
}

// TestScenarioC_EnumMatchExhaustive checks a projection that MATCHes over
// every declared variant.
func TestScenarioC_EnumMatchExhaustive(t *testing.T) {
	e := New(&fakeSchema{decls: accountSchema()}, zap.NewNop())
	_, err := e.Dispatch(&dbquery.Query{Kind: dbquery.QueryFetchTypes, Path: "schema.dbuf"})
	require.NoError(t, err)
	_, err = e.Dispatch(&dbquery.Query{Kind: dbquery.QueryCreateTable, Table: "accounts", RowType: "Account"})
	require.NoError(t, err)

	rows := []dbval.Value{
		dbval.Message("Account", dbval.Variant("Status", "Admin", dbval.Int(9)), dbval.Int(1000)),
		dbval.Message("Account", dbval.Variant("Status", "Guest"), dbval.Int(10)),
	}
	_, err = e.Dispatch(&dbquery.Query{Kind: dbquery.QueryInsertMessages, Table: "accounts", Rows: rows})
	require.NoError(t, err)

	res, err := e.Dispatch(&dbquery.Query{
		Kind:  dbquery.QuerySelect,
		Table: "accounts",
		Fields: []dbquery.Projection{
			{Expr: dbquery.Col("status"), Alias: "status"},
			{Expr: dbquery.EnumMatch(dbquery.Col("status"), []dbquery.MatchCase{
				{EnumName: "Status", VariantName: "Admin", Body: dbquery.Col("level")},
				{EnumName: "Status", VariantName: "Guest", Body: dbquery.Lit(dbval.Int(0))},
			}), Alias: "effective_level"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	require.True(t, dbval.Equal(dbval.Int(9), res.Rows[0][1]))
	require.True(t, dbval.Equal(dbval.Int(0), res.Rows[1][1]))
}

// TestScenarioD_EnumMatchNonExhaustiveFailsAtTypeTime checks that an
// incomplete MATCH fails the whole SELECT before any row is scanned.
func TestScenarioD_EnumMatchNonExhaustiveFailsAtTypeTime(t *testing.T) {
	e := New(&fakeSchema{decls: accountSchema()}, zap.NewNop())
	_, err := e.Dispatch(&dbquery.Query{Kind: dbquery.QueryFetchTypes, Path: "schema.dbuf"})
	require.NoError(t, err)
	_, err = e.Dispatch(&dbquery.Query{Kind: dbquery.QueryCreateTable, Table: "accounts", RowType: "Account"})
	require.NoError(t, err)

	_, err = e.Dispatch(&dbquery.Query{
		Kind:  dbquery.QuerySelect,
		Table: "accounts",
		Fields: []dbquery.Projection{
			{Expr: dbquery.EnumMatch(dbquery.Col("status"), []dbquery.MatchCase{
				{EnumName: "Status", VariantName: "Admin", Body: dbquery.Col("level")},
			}), Alias: "effective_level"},
		},
	})
	require.Error(t, err)
	require.True(t, dberr.OfKind(err, dberr.KindNonExhaustiveMatch))
}

// TestScenarioE_DroppedDependency checks that projecting a dependent column
// without its dependency is rejected before any row is scanned.
func TestScenarioE_DroppedDependency(t *testing.T) {
	e := New(&fakeSchema{decls: accountSchema()}, zap.NewNop())
	_, err := e.Dispatch(&dbquery.Query{Kind: dbquery.QueryFetchTypes, Path: "schema.dbuf"})
	require.NoError(t, err)
	_, err = e.Dispatch(&dbquery.Query{Kind: dbquery.QueryCreateTable, Table: "accounts", RowType: "Account"})
	require.NoError(t, err)

	_, err = e.Dispatch(&dbquery.Query{
		Kind:  dbquery.QuerySelect,
		Table: "accounts",
		Fields: []dbquery.Projection{
			{Expr: dbquery.Col("limit"), Alias: "limit"},
		},
	})
	require.Error(t, err)
	require.True(t, dberr.OfKind(err, dberr.KindDroppedDependency))
}

// TestScenarioF_DivisionByZeroDropsRowNotScan checks the row-level error
// policy: a division-by-zero row is dropped and recorded, but the scan
// still returns every other row.
func TestScenarioF_DivisionByZeroDropsRowNotScan(t *testing.T) {
	decls := []dbschema.RawDecl{{Message: dbschema.MessageDecl{
		Name: "Ratio",
		Fields: []dbschema.FieldDecl{
			{Name: "numerator", Type: dbschema.PrimType(dbschema.PrimInt)},
			{Name: "denominator", Type: dbschema.PrimType(dbschema.PrimInt)},
		},
	}}}
	e := New(&fakeSchema{decls: decls}, zap.NewNop())
	_, err := e.Dispatch(&dbquery.Query{Kind: dbquery.QueryFetchTypes, Path: "schema.dbuf"})
	require.NoError(t, err)
	_, err = e.Dispatch(&dbquery.Query{Kind: dbquery.QueryCreateTable, Table: "ratios", RowType: "Ratio"})
	require.NoError(t, err)

	rows := []dbval.Value{
		dbval.Message("Ratio", dbval.Int(10), dbval.Int(2)),
		dbval.Message("Ratio", dbval.Int(10), dbval.Int(0)),
		dbval.Message("Ratio", dbval.Int(9), dbval.Int(3)),
	}
	_, err = e.Dispatch(&dbquery.Query{Kind: dbquery.QueryInsertMessages, Table: "ratios", Rows: rows})
	require.NoError(t, err)

	res, err := e.Dispatch(&dbquery.Query{
		Kind:  dbquery.QuerySelect,
		Table: "ratios",
		Fields: []dbquery.Projection{
			{Expr: dbquery.Bin(dbquery.OpDiv, dbquery.Col("numerator"), dbquery.Col("denominator")), Alias: "ratio"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2, "the division-by-zero row is dropped, the scan continues")
	require.NotNil(t, res.FirstRowError)
	require.Equal(t, 1, res.FirstRowError.Index)
	require.True(t, dberr.OfKind(res.FirstRowError.Err, dberr.KindDivisionByZero))
	require.True(t, dbval.Equal(dbval.Int(5), res.Rows[0][0]))
	require.True(t, dbval.Equal(dbval.Int(3), res.Rows[1][0]))
}

func TestExecCreateTable_UnknownType(t *testing.T) {
	e := New(&fakeSchema{}, zap.NewNop())
	_, err := e.Dispatch(&dbquery.Query{Kind: dbquery.QueryCreateTable, Table: "t", RowType: "Nope"})
	require.Error(t, err)
	require.True(t, dberr.OfKind(err, dberr.KindUnknownType))
}

func TestExecCreateTable_EnumRowTypeRejected(t *testing.T) {
	e := New(&fakeSchema{decls: accountSchema()}, zap.NewNop())
	_, err := e.Dispatch(&dbquery.Query{Kind: dbquery.QueryFetchTypes, Path: "schema.dbuf"})
	require.NoError(t, err)

	_, err = e.Dispatch(&dbquery.Query{Kind: dbquery.QueryCreateTable, Table: "t", RowType: "Status"})
	require.Error(t, err)
	require.True(t, dberr.OfKind(err, dberr.KindNotAMessage))
}
