// Package dbufparse is the schema-text collaborator of SPEC_FULL.md §6.1:
// a small, naive lexer over the DependoBuf declaration surface that feeds
// internal/dbschema.Loader an already-structured []dbschema.RawDecl
// sequence, the way a real DependoBuf frontend would. It never reaches
// into the core beyond the RawDecl shape.
package dbufparse

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/dbufdb/dbufdb/internal/dbschema"
)

// Parser reads DependoBuf schema text.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

// ParseFile reads path and parses it. reg is consulted to resolve whether
// a type name referenced but not declared earlier in this same file is
// itself a message or an enum, so cross-file FETCH TYPES batches resolve
// field types to the right DeclaredType.Kind.
func (p *Parser) ParseFile(path string, reg *dbschema.Registry) ([]dbschema.RawDecl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dbufparse: reading %q: %w", path, err)
	}
	return ParseText(string(data), reg)
}

// declKind tracks, for a given type name, whether it was declared as a
// message or an enum — first from already-committed registry entries,
// then updated as this file's own declarations are parsed in order.
type declKind struct {
	reg   *dbschema.Registry
	local map[string]bool // name -> isEnum, for names declared earlier in this file
}

func (k *declKind) isEnum(name string) (bool, bool) {
	if v, ok := k.local[name]; ok {
		return v, true
	}
	if k.reg != nil {
		if _, ok := k.reg.Enum(name); ok {
			return true, true
		}
		if _, ok := k.reg.Message(name); ok {
			return false, true
		}
	}
	return false, false
}

// ParseText parses raw DependoBuf schema text into a sequence of RawDecl,
// in file order, which is the order the Loader must process them in.
func ParseText(text string, reg *dbschema.Registry) ([]dbschema.RawDecl, error) {
	src := stripComments(text)
	kinds := &declKind{reg: reg, local: make(map[string]bool)}

	var decls []dbschema.RawDecl
	rest := strings.TrimSpace(src)

	for rest != "" {
		var (
			isEnum bool
			name   string
			body   string
			err    error
		)
		isEnum, name, body, rest, err = nextBlock(rest)
		if err != nil {
			return nil, err
		}

		if isEnum {
			e, err := parseEnumBody(name, body, kinds)
			if err != nil {
				return nil, err
			}
			kinds.local[name] = true
			decls = append(decls, dbschema.RawDecl{IsEnum: true, Enum: e})
		} else {
			m, err := parseMessageBody(name, body, kinds)
			if err != nil {
				return nil, err
			}
			kinds.local[name] = false
			decls = append(decls, dbschema.RawDecl{IsEnum: false, Message: m})
		}
	}
	return decls, nil
}

func stripComments(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if idx := strings.Index(l, "//"); idx >= 0 {
			lines[i] = l[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

// nextBlock consumes one "message Name { ... }" or "enum Name { ... }"
// block from the front of s and returns its kind, name, brace-delimited
// body, and what remains of s afterward.
func nextBlock(s string) (isEnum bool, name, body, rest string, err error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "message") && startsNewWord(s, len("message")):
		isEnum = false
		s = strings.TrimSpace(s[len("message"):])
	case strings.HasPrefix(s, "enum") && startsNewWord(s, len("enum")):
		isEnum = true
		s = strings.TrimSpace(s[len("enum"):])
	default:
		return false, "", "", "", fmt.Errorf("dbufparse: expected 'message' or 'enum', found %q", firstToken(s))
	}

	open := strings.Index(s, "{")
	if open < 0 {
		return false, "", "", "", fmt.Errorf("dbufparse: missing '{' after declaration name")
	}
	name, err = identifier(strings.TrimSpace(s[:open]))
	if err != nil {
		return false, "", "", "", fmt.Errorf("dbufparse: invalid declaration name: %w", err)
	}

	close := strings.Index(s[open:], "}")
	if close < 0 {
		return false, "", "", "", fmt.Errorf("dbufparse: missing '}' closing %q", name)
	}
	close += open

	body = s[open+1 : close]
	rest = strings.TrimSpace(s[close+1:])
	return isEnum, name, body, rest, nil
}

func startsNewWord(s string, afterLen int) bool {
	if len(s) == afterLen {
		return true
	}
	r := rune(s[afterLen])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

func firstToken(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return "<end of input>"
	}
	return f[0]
}

func identifier(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty identifier")
	}
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return "", fmt.Errorf("invalid identifier %q", s)
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return "", fmt.Errorf("invalid identifier %q", s)
		}
	}
	return s, nil
}

// parseMessageBody parses the semicolon-terminated field lines of a
// message block: `name Type(dep1, dep2)? ;`.
func parseMessageBody(name, body string, kinds *declKind) (dbschema.MessageDecl, error) {
	fields, err := parseFieldLines(body, kinds)
	if err != nil {
		return dbschema.MessageDecl{}, fmt.Errorf("dbufparse: message %s: %w", name, err)
	}
	return dbschema.MessageDecl{Name: name, Fields: fields}, nil
}

// parseEnumBody parses the semicolon-terminated variant lines of an enum
// block: `Name;` or `Name(field1: Type1, field2: Type2, ...);`.
func parseEnumBody(name, body string, kinds *declKind) (dbschema.EnumDecl, error) {
	lines := splitStatements(body)
	variants := make([]dbschema.VariantDecl, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paren := strings.Index(line, "(")
		if paren < 0 {
			vname, err := identifier(line)
			if err != nil {
				return dbschema.EnumDecl{}, fmt.Errorf("dbufparse: enum %s: invalid variant: %w", name, err)
			}
			variants = append(variants, dbschema.VariantDecl{Name: vname})
			continue
		}
		if !strings.HasSuffix(line, ")") {
			return dbschema.EnumDecl{}, fmt.Errorf("dbufparse: enum %s: variant %q missing closing ')'", name, line)
		}
		vname, err := identifier(strings.TrimSpace(line[:paren]))
		if err != nil {
			return dbschema.EnumDecl{}, fmt.Errorf("dbufparse: enum %s: invalid variant: %w", name, err)
		}
		inner := line[paren+1 : len(line)-1]
		fields, err := parseVariantFieldList(inner, kinds)
		if err != nil {
			return dbschema.EnumDecl{}, fmt.Errorf("dbufparse: enum %s::%s: %w", name, vname, err)
		}
		variants = append(variants, dbschema.VariantDecl{Name: vname, Fields: fields})
	}
	return dbschema.EnumDecl{Name: name, Variants: variants}, nil
}

// parseVariantFieldList parses a comma-separated `name: Type` list.
func parseVariantFieldList(s string, kinds *declKind) ([]dbschema.FieldDecl, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	fields := make([]dbschema.FieldDecl, 0, len(parts))
	for _, part := range parts {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid field %q, expected name: Type", strings.TrimSpace(part))
		}
		fname, err := identifier(strings.TrimSpace(kv[0]))
		if err != nil {
			return nil, err
		}
		dt, err := parseDeclaredType(strings.TrimSpace(kv[1]), kinds)
		if err != nil {
			return nil, err
		}
		fields = append(fields, dbschema.FieldDecl{Name: fname, Type: dt})
	}
	return fields, nil
}

// parseFieldLines parses `name Type(dep1, dep2, ...)? ;`-terminated lines.
func parseFieldLines(body string, kinds *declKind) ([]dbschema.FieldDecl, error) {
	lines := splitStatements(body)
	fields := make([]dbschema.FieldDecl, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		toks := strings.Fields(line)
		if len(toks) < 2 {
			return nil, fmt.Errorf("invalid field line %q", line)
		}
		fname, err := identifier(toks[0])
		if err != nil {
			return nil, err
		}

		rest := strings.TrimSpace(strings.TrimPrefix(line, toks[0]))
		var deps []string
		if paren := strings.Index(rest, "("); paren >= 0 {
			if !strings.HasSuffix(rest, ")") {
				return nil, fmt.Errorf("field %q: missing closing ')' in dependency list", fname)
			}
			typeName := strings.TrimSpace(rest[:paren])
			depList := strings.TrimSpace(rest[paren+1 : len(rest)-1])
			dt, err := parseDeclaredType(typeName, kinds)
			if err != nil {
				return nil, err
			}
			if depList != "" {
				for _, d := range strings.Split(depList, ",") {
					dname, err := identifier(strings.TrimSpace(d))
					if err != nil {
						return nil, err
					}
					deps = append(deps, dname)
				}
			}
			fields = append(fields, dbschema.FieldDecl{Name: fname, Type: dt, Deps: deps})
			continue
		}

		dt, err := parseDeclaredType(rest, kinds)
		if err != nil {
			return nil, err
		}
		fields = append(fields, dbschema.FieldDecl{Name: fname, Type: dt})
	}
	return fields, nil
}

func parseDeclaredType(name string, kinds *declKind) (dbschema.DeclaredType, error) {
	name = strings.TrimSpace(name)
	switch name {
	case "Int":
		return dbschema.PrimType(dbschema.PrimInt), nil
	case "Double":
		return dbschema.PrimType(dbschema.PrimDouble), nil
	case "String":
		return dbschema.PrimType(dbschema.PrimString), nil
	case "Bool":
		return dbschema.PrimType(dbschema.PrimBool), nil
	}
	if _, err := identifier(name); err != nil {
		return dbschema.DeclaredType{}, fmt.Errorf("invalid type name %q", name)
	}
	isEnum, known := kinds.isEnum(name)
	if !known {
		// Not yet resolvable: treat as a forward message reference and
		// let the Loader's UnknownType check catch it if it never
		// materializes. Message is the more common case in practice.
		return dbschema.MessageType(name), nil
	}
	if isEnum {
		return dbschema.EnumType(name), nil
	}
	return dbschema.MessageType(name), nil
}

// splitStatements splits a block body on ';', dropping the trailing empty
// segment after the last terminator.
func splitStatements(body string) []string {
	parts := strings.Split(body, ";")
	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
