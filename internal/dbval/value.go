// Package dbval implements the runtime value model (V): the tagged tree of
// integers, doubles, strings, booleans, messages, and variant instances that
// dbufdb stores and evaluates expressions over.
package dbval

import "fmt"

// Kind tags which variant of Value is populated.
type Kind uint8

const (
	KindInt Kind = iota
	KindDouble
	KindString
	KindBool
	KindMessage
	KindVariant
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindDouble:
		return "Double"
	case KindString:
		return "String"
	case KindBool:
		return "Bool"
	case KindMessage:
		return "Message"
	case KindVariant:
		return "Variant"
	default:
		return "Unknown"
	}
}

// Value is a sum type over the runtime shapes a stored row or an evaluated
// expression can take. Values are copied freely; none of the fields below
// alias mutable state owned elsewhere.
type Value struct {
	Kind Kind

	I int64
	F float64
	S string
	B bool

	// Message-only.
	TypeName string
	// Variant-only.
	EnumName    string
	VariantName string

	// Message and Variant fields, in declaration order.
	Fields []Value
}

func Int(i int64) Value       { return Value{Kind: KindInt, I: i} }
func Double(f float64) Value  { return Value{Kind: KindDouble, F: f} }
func String(s string) Value   { return Value{Kind: KindString, S: s} }
func Bool(b bool) Value       { return Value{Kind: KindBool, B: b} }

// Message builds a Value::Message with the given type name and positional
// fields.
func Message(typeName string, fields ...Value) Value {
	return Value{Kind: KindMessage, TypeName: typeName, Fields: fields}
}

// Variant builds a Value::Variant with the given enum/variant names and
// positional fields.
func Variant(enumName, variantName string, fields ...Value) Value {
	return Value{
		Kind:        KindVariant,
		EnumName:    enumName,
		VariantName: variantName,
		Fields:      fields,
	}
}

// Equal implements the structural equality mandated by §3: same tag, same
// content, recursively for Message/Variant fields.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInt:
		return a.I == b.I
	case KindDouble:
		return a.F == b.F
	case KindString:
		return a.S == b.S
	case KindBool:
		return a.B == b.B
	case KindMessage:
		if a.TypeName != b.TypeName || len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if !Equal(a.Fields[i], b.Fields[i]) {
				return false
			}
		}
		return true
	case KindVariant:
		if a.EnumName != b.EnumName || a.VariantName != b.VariantName || len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if !Equal(a.Fields[i], b.Fields[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders a Value for CLI/debug output; it is not used for equality.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindDouble:
		return fmt.Sprintf("%g", v.F)
	case KindString:
		return v.S
	case KindBool:
		return fmt.Sprintf("%t", v.B)
	case KindMessage:
		return fmt.Sprintf("%s%v", v.TypeName, v.Fields)
	case KindVariant:
		if len(v.Fields) == 0 {
			return fmt.Sprintf("%s::%s", v.EnumName, v.VariantName)
		}
		return fmt.Sprintf("%s::%s%v", v.EnumName, v.VariantName, v.Fields)
	default:
		return "<invalid>"
	}
}
