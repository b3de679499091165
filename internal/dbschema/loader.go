package dbschema

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dbufdb/dbufdb/internal/dberr"
)

// Loader (L) ingests a batch of already-parsed RawDecls (as a schema-text
// collaborator like internal/dbufparse would produce) and validates them
// against a Registry before committing. Declarations are processed
// strictly in the order given, and a declaration may only reference types
// that are primitives, already committed in the Registry, or declared
// earlier in the same batch — never a later one. That ordering rule is
// what rules out cycles: nothing can refer to a type that doesn't exist
// yet, so there is no later type to close a cycle back to.
type Loader struct {
	reg *Registry
	log *zap.Logger
}

// NewLoader builds a Loader bound to a Registry, logging load diagnostics
// through log (pass zap.NewNop() to discard them in tests).
func NewLoader(reg *Registry, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{reg: reg, log: log}
}

// Load validates decls against the current registry state and, if the
// whole batch is valid, commits it atomically. On any validation failure
// the registry is left untouched and the aggregated error (one entry per
// problem found, via multierr) is returned.
func (l *Loader) Load(decls []RawDecl) error {
	msgs, enums := l.reg.snapshot()

	var errs error
	seenThisBatch := make(map[string]RawDecl)

	for _, d := range decls {
		name := d.Name()

		if existing, ok := seenThisBatch[name]; ok {
			if !declEqual(existing, d) {
				errs = multierr.Append(errs, dberr.New(dberr.KindSchemaConflict,
					"%s redeclared with different shape in the same batch", name))
			}
			continue
		}
		seenThisBatch[name] = d

		if prevMsg, ok := msgs[name]; ok {
			if d.IsEnum || !messageEqual(prevMsg, d.Message) {
				errs = multierr.Append(errs, dberr.New(dberr.KindSchemaConflict,
					"%s conflicts with an already-loaded declaration", name))
				continue
			}
			// Idempotent re-declaration of an identical message: no-op.
			continue
		}
		if prevEnum, ok := enums[name]; ok {
			if !d.IsEnum || !enumEqual(prevEnum, d.Enum) {
				errs = multierr.Append(errs, dberr.New(dberr.KindSchemaConflict,
					"%s conflicts with an already-loaded declaration", name))
				continue
			}
			continue
		}

		if d.IsEnum {
			if err := l.validateEnum(d.Enum, msgs, enums); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			enums[name] = d.Enum
		} else {
			if err := l.validateMessage(d.Message, msgs, enums); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			msgs[name] = d.Message
		}
	}

	if errs != nil {
		l.log.Warn("schema load rejected", zap.Int("declarations", len(decls)), zap.Error(errs))
		return errs
	}

	l.reg.commit(msgs, enums)
	l.log.Info("schema load committed", zap.Int("declarations", len(decls)))
	return nil
}

func (l *Loader) validateMessage(m MessageDecl, msgs map[string]MessageDecl, enums map[string]EnumDecl) error {
	var errs error
	seen := make(map[string]bool, len(m.Fields))
	for i, f := range m.Fields {
		if seen[f.Name] {
			errs = multierr.Append(errs, dberr.New(dberr.KindDuplicateField,
				"%s.%s declared more than once", m.Name, f.Name))
			continue
		}
		seen[f.Name] = true

		if err := checkTypeExists(f.Type, msgs, enums); err != nil {
			errs = multierr.Append(errs, dberr.Wrap(dberr.KindUnknownType, err,
				"%s.%s", m.Name, f.Name))
		}
		if err := checkDeps(m.Name, f, m.Fields[:i]); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (l *Loader) validateEnum(e EnumDecl, msgs map[string]MessageDecl, enums map[string]EnumDecl) error {
	var errs error
	seenVariant := make(map[string]bool, len(e.Variants))
	for _, v := range e.Variants {
		if seenVariant[v.Name] {
			errs = multierr.Append(errs, dberr.New(dberr.KindDuplicateField,
				"%s::%s declared more than once", e.Name, v.Name))
			continue
		}
		seenVariant[v.Name] = true

		seenField := make(map[string]bool, len(v.Fields))
		for i, f := range v.Fields {
			if seenField[f.Name] {
				errs = multierr.Append(errs, dberr.New(dberr.KindDuplicateField,
					"%s::%s.%s declared more than once", e.Name, v.Name, f.Name))
				continue
			}
			seenField[f.Name] = true

			if err := checkTypeExists(f.Type, msgs, enums); err != nil {
				errs = multierr.Append(errs, dberr.Wrap(dberr.KindUnknownType, err,
					"%s::%s.%s", e.Name, v.Name, f.Name))
			}
			if err := checkDeps(e.Name+"::"+v.Name, f, v.Fields[:i]); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

func checkTypeExists(t DeclaredType, msgs map[string]MessageDecl, enums map[string]EnumDecl) error {
	switch t.Kind {
	case KindPrim:
		return nil
	case KindMessageRef:
		if _, ok := msgs[t.Name]; !ok {
			return dberr.New(dberr.KindUnknownType, "unknown message type %q", t.Name)
		}
		return nil
	case KindEnumRef:
		if _, ok := enums[t.Name]; !ok {
			return dberr.New(dberr.KindUnknownType, "unknown enum type %q", t.Name)
		}
		return nil
	default:
		return dberr.New(dberr.KindUnknownType, "malformed declared type")
	}
}

// checkDeps validates that a field's dependency names all refer to fields
// declared strictly earlier within the same message/variant.
func checkDeps(owner string, f FieldDecl, earlier []FieldDecl) error {
	var errs error
	for _, dep := range f.Deps {
		found := false
		for _, e := range earlier {
			if e.Name == dep {
				found = true
				break
			}
		}
		if !found {
			errs = multierr.Append(errs, dberr.New(dberr.KindBadDependency,
				"%s.%s depends on %q, which is not an earlier field of the same declaration",
				owner, f.Name, dep))
		}
	}
	return errs
}

func declEqual(a, b RawDecl) bool {
	if a.IsEnum != b.IsEnum {
		return false
	}
	if a.IsEnum {
		return enumEqual(a.Enum, b.Enum)
	}
	return messageEqual(a.Message, b.Message)
}

func messageEqual(a, b MessageDecl) bool {
	if a.Name != b.Name || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if !fieldEqual(a.Fields[i], b.Fields[i]) {
			return false
		}
	}
	return true
}

func enumEqual(a, b EnumDecl) bool {
	if a.Name != b.Name || len(a.Variants) != len(b.Variants) {
		return false
	}
	for i := range a.Variants {
		va, vb := a.Variants[i], b.Variants[i]
		if va.Name != vb.Name || len(va.Fields) != len(vb.Fields) {
			return false
		}
		for j := range va.Fields {
			if !fieldEqual(va.Fields[j], vb.Fields[j]) {
				return false
			}
		}
	}
	return true
}

func fieldEqual(a, b FieldDecl) bool {
	if a.Name != b.Name || !a.Type.Equal(b.Type) || len(a.Deps) != len(b.Deps) {
		return false
	}
	for i := range a.Deps {
		if a.Deps[i] != b.Deps[i] {
			return false
		}
	}
	return true
}
