// Package dbschema implements the Schema Registry (S) and Schema Loader
// (L): the append-only type environment FETCH TYPES populates, and the
// validation pass that guards it against unknown types and bad dependency
// arrows.
package dbschema

import "fmt"

// Prim enumerates the primitive declared types.
type Prim uint8

const (
	PrimInt Prim = iota
	PrimDouble
	PrimString
	PrimBool
)

func (p Prim) String() string {
	switch p {
	case PrimInt:
		return "Int"
	case PrimDouble:
		return "Double"
	case PrimString:
		return "String"
	case PrimBool:
		return "Bool"
	default:
		return "?"
	}
}

// TypeKind tags which shape a DeclaredType takes.
type TypeKind uint8

const (
	KindPrim TypeKind = iota
	KindMessageRef
	KindEnumRef
)

// DeclaredType (DT) is a closed reference into the registry: a primitive,
// or a named message/enum type that must already exist in the Schema
// Registry by the time it is used.
type DeclaredType struct {
	Kind TypeKind
	Prim Prim
	Name string // message or enum name, when Kind != KindPrim
}

func PrimType(p Prim) DeclaredType        { return DeclaredType{Kind: KindPrim, Prim: p} }
func MessageType(name string) DeclaredType { return DeclaredType{Kind: KindMessageRef, Name: name} }
func EnumType(name string) DeclaredType    { return DeclaredType{Kind: KindEnumRef, Name: name} }

func (t DeclaredType) String() string {
	switch t.Kind {
	case KindPrim:
		return t.Prim.String()
	case KindMessageRef, KindEnumRef:
		return t.Name
	default:
		return "?"
	}
}

// Equal reports whether two declared types are the same reference.
func (t DeclaredType) Equal(o DeclaredType) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind == KindPrim {
		return t.Prim == o.Prim
	}
	return t.Name == o.Name
}

// FieldDecl is one field of a message, or one field of an enum variant.
// Deps names the earlier sibling fields (by name, within the same
// declaration) this field's declared type is parameterized by. Deps is
// metadata for the analyser only — §4.4 conformance never evaluates it.
type FieldDecl struct {
	Name string
	Type DeclaredType
	Deps []string
}

// MessageDecl is a fetched message type: an ordered list of fields.
type MessageDecl struct {
	Name   string
	Fields []FieldDecl
}

func (m MessageDecl) FieldIndex(name string) int {
	for i, f := range m.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// VariantDecl is one case of an enum: a name and its own ordered fields.
type VariantDecl struct {
	Name   string
	Fields []FieldDecl
}

// EnumDecl is a fetched enum type: an ordered list of variants.
type EnumDecl struct {
	Name     string
	Variants []VariantDecl
}

func (e EnumDecl) VariantIndex(name string) int {
	for i, v := range e.Variants {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// RawDecl is what a schema-text collaborator (internal/dbufparse) hands
// the Loader: one already-lexed message or enum declaration, not yet
// checked against the registry.
type RawDecl struct {
	IsEnum  bool
	Message MessageDecl
	Enum    EnumDecl
}

func (d RawDecl) Name() string {
	if d.IsEnum {
		return d.Enum.Name
	}
	return d.Message.Name
}

func (d RawDecl) String() string {
	if d.IsEnum {
		return fmt.Sprintf("enum %s", d.Enum.Name)
	}
	return fmt.Sprintf("message %s", d.Message.Name)
}
