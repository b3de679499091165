package dbcatalog

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dbufdb/dbufdb/internal/dbschema"
	"github.com/dbufdb/dbufdb/internal/dbval"
)

func setupRegistry(t *testing.T) *dbschema.Registry {
	reg := dbschema.NewRegistry()
	l := dbschema.NewLoader(reg, zap.NewNop())
	require.NoError(t, l.Load([]dbschema.RawDecl{{Message: dbschema.MessageDecl{
		Name: "User",
		Fields: []dbschema.FieldDecl{
			{Name: "name", Type: dbschema.PrimType(dbschema.PrimString)},
			{Name: "age", Type: dbschema.PrimType(dbschema.PrimInt)},
		},
	}}}))
	return reg
}

func TestCreateDropTable(t *testing.T) {
	cat := NewCatalog()
	require.NoError(t, cat.Create("t", "User"))

	err := cat.Create("t", "User")
	require.Error(t, err)

	require.NoError(t, cat.Drop("t"))
	require.Error(t, cat.Drop("t"))
}

func TestInsert_AtomicAllOrNothing(t *testing.T) {
	reg := setupRegistry(t)
	cat := NewCatalog()
	require.NoError(t, cat.Create("t", "User"))

	good := dbval.Message("User", dbval.String("Jane"), dbval.Int(18))
	bad := dbval.Message("User", dbval.String("John")) // wrong arity

	err := cat.Insert(reg, "t", []dbval.Value{good, bad})
	require.Error(t, err)

	rows, _, err := cat.Scan("t")
	require.NoError(t, err)
	require.Empty(t, rows, "no rows should land when any row in the batch is bad")
}

func TestInsertThenScan(t *testing.T) {
	reg := setupRegistry(t)
	cat := NewCatalog()
	require.NoError(t, cat.Create("t", "User"))

	rowA := dbval.Message("User", dbval.String("Jane"), dbval.Int(18))
	rowB := dbval.Message("User", dbval.String("John"), dbval.Int(26))
	require.NoError(t, cat.Insert(reg, "t", []dbval.Value{rowA, rowB}))

	rows, rowType, err := cat.Scan("t")
	require.NoError(t, err)
	require.Equal(t, "User", rowType)
	require.Len(t, rows, 2)
}

func TestScan_NoSuchTable(t *testing.T) {
	cat := NewCatalog()
	_, _, err := cat.Scan("missing")
	require.Error(t, err)
}
