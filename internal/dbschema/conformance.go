package dbschema

import "github.com/dbufdb/dbufdb/internal/dbval"

// Conforms implements the §4.4 structural conformance predicate: does v
// have the shape t describes, recursively, ignoring dependency arrows
// entirely — those are typer/analyser metadata, never consulted here.
func Conforms(reg *Registry, v dbval.Value, t DeclaredType) bool {
	switch t.Kind {
	case KindPrim:
		switch t.Prim {
		case PrimInt:
			return v.Kind == dbval.KindInt
		case PrimDouble:
			return v.Kind == dbval.KindDouble
		case PrimString:
			return v.Kind == dbval.KindString
		case PrimBool:
			return v.Kind == dbval.KindBool
		default:
			return false
		}
	case KindMessageRef:
		if v.Kind != dbval.KindMessage || v.TypeName != t.Name {
			return false
		}
		decl, ok := reg.Message(t.Name)
		if !ok || len(v.Fields) != len(decl.Fields) {
			return false
		}
		for i, f := range decl.Fields {
			if !Conforms(reg, v.Fields[i], f.Type) {
				return false
			}
		}
		return true
	case KindEnumRef:
		if v.Kind != dbval.KindVariant || v.EnumName != t.Name {
			return false
		}
		decl, ok := reg.Enum(t.Name)
		if !ok {
			return false
		}
		vi := decl.VariantIndex(v.VariantName)
		if vi < 0 || len(v.Fields) != len(decl.Variants[vi].Fields) {
			return false
		}
		for i, f := range decl.Variants[vi].Fields {
			if !Conforms(reg, v.Fields[i], f.Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
