package dbschema

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func userDecl() RawDecl {
	return RawDecl{Message: MessageDecl{
		Name: "User",
		Fields: []FieldDecl{
			{Name: "name", Type: PrimType(PrimString)},
			{Name: "surname", Type: PrimType(PrimString)},
			{Name: "age", Type: PrimType(PrimInt)},
			{Name: "year_of_birth", Type: PrimType(PrimInt)},
		},
	}}
}

func TestLoad_SimpleMessage(t *testing.T) {
	reg := NewRegistry()
	l := NewLoader(reg, zap.NewNop())
	require.NoError(t, l.Load([]RawDecl{userDecl()}))

	decl, ok := reg.Message("User")
	require.True(t, ok)
	require.Len(t, decl.Fields, 4)
}

func TestLoad_IdempotentRedeclaration(t *testing.T) {
	reg := NewRegistry()
	l := NewLoader(reg, zap.NewNop())
	require.NoError(t, l.Load([]RawDecl{userDecl()}))
	require.NoError(t, l.Load([]RawDecl{userDecl()}))
}

func TestLoad_ConflictingRedeclarationRejected(t *testing.T) {
	reg := NewRegistry()
	l := NewLoader(reg, zap.NewNop())
	require.NoError(t, l.Load([]RawDecl{userDecl()}))

	conflicting := RawDecl{Message: MessageDecl{
		Name: "User",
		Fields: []FieldDecl{
			{Name: "name", Type: PrimType(PrimString)},
		},
	}}
	err := l.Load([]RawDecl{conflicting})
	require.Error(t, err)

	decl, ok := reg.Message("User")
	require.True(t, ok)
	require.Len(t, decl.Fields, 4, "registry must be untouched after a rejected load")
}

func TestLoad_UnknownType(t *testing.T) {
	reg := NewRegistry()
	l := NewLoader(reg, zap.NewNop())

	bad := RawDecl{Message: MessageDecl{
		Name: "Account",
		Fields: []FieldDecl{
			{Name: "owner", Type: MessageType("User")},
		},
	}}
	err := l.Load([]RawDecl{bad})
	require.Error(t, err)
	_, ok := reg.Message("Account")
	require.False(t, ok)
}

func TestLoad_BadDependency(t *testing.T) {
	reg := NewRegistry()
	l := NewLoader(reg, zap.NewNop())

	bad := RawDecl{Message: MessageDecl{
		Name: "Account",
		Fields: []FieldDecl{
			{Name: "limit", Type: PrimType(PrimInt), Deps: []string{"status"}},
			{Name: "status", Type: PrimType(PrimString)},
		},
	}}
	err := l.Load([]RawDecl{bad})
	require.Error(t, err)
}

func TestLoad_DuplicateField(t *testing.T) {
	reg := NewRegistry()
	l := NewLoader(reg, zap.NewNop())

	bad := RawDecl{Message: MessageDecl{
		Name: "Dup",
		Fields: []FieldDecl{
			{Name: "a", Type: PrimType(PrimInt)},
			{Name: "a", Type: PrimType(PrimString)},
		},
	}}
	err := l.Load([]RawDecl{bad})
	require.Error(t, err)
}

func TestLoad_EnumThenDependentMessage(t *testing.T) {
	reg := NewRegistry()
	l := NewLoader(reg, zap.NewNop())

	status := RawDecl{IsEnum: true, Enum: EnumDecl{
		Name: "Status",
		Variants: []VariantDecl{
			{Name: "Admin"},
			{Name: "User"},
		},
	}}
	account := RawDecl{Message: MessageDecl{
		Name: "Account",
		Fields: []FieldDecl{
			{Name: "status", Type: EnumType("Status")},
			{Name: "limit", Type: PrimType(PrimInt), Deps: []string{"status"}},
		},
	}}

	require.NoError(t, l.Load([]RawDecl{status, account}))
	decl, ok := reg.Message("Account")
	require.True(t, ok)
	require.Equal(t, []string{"status"}, decl.Fields[1].Deps)
}
