// Package depcheck implements the Dependency Analyser (D) of spec.md §4.6:
// whenever something reads a column whose declared type depends on earlier
// fields, it verifies that each of those earlier fields is present in the
// projection list.
package depcheck

import (
	"github.com/dbufdb/dbufdb/internal/dberr"
	"github.com/dbufdb/dbufdb/internal/dbquery"
	"github.com/dbufdb/dbufdb/internal/dbquery/typer"
	"github.com/dbufdb/dbufdb/internal/dbschema"
)

// Projected is one typed projection: its source expression (so literal
// bare ColumnRefs can be recognized) and its computed use set.
type Projected struct {
	Expr   *dbquery.Expr
	UseSet typer.UseSet
}

// Check implements the §4.6 rule. projections are every SELECT field's
// typed (expression, use-set) pair; whereUse, if non-nil, is the typed WHERE
// expression's use set. rowType names the message type the row context is
// drawn from, used to look up deps(row_type, c).
//
// P is the set of column names that appear as a *literal bare ColumnRef*
// node in some projection's expression, independent of that projection's
// alias. An aliased computation over a column does not itself "keep" the
// column; only a direct `col AS alias` projection does.
func Check(reg *dbschema.Registry, rowType string, projections []Projected, whereUse typer.UseSet) error {
	p := make(map[string]struct{})
	for _, proj := range projections {
		if proj.Expr.Kind == dbquery.ExprColumnRef {
			p[proj.Expr.Column] = struct{}{}
		}
	}

	r := make(map[string]struct{})
	for _, proj := range projections {
		for c := range proj.UseSet {
			r[c] = struct{}{}
		}
	}
	for c := range whereUse {
		r[c] = struct{}{}
	}

	decl, ok := reg.Message(rowType)
	if !ok {
		return dberr.New(dberr.KindDroppedDependency, "unknown row type %q", rowType)
	}

	for c := range r {
		idx := decl.FieldIndex(c)
		if idx < 0 {
			continue
		}
		for _, d := range decl.Fields[idx].Deps {
			if _, ok := p[d]; !ok {
				return dberr.New(dberr.KindDroppedDependency, "column %q depends on %q, which is not projected", c, d)
			}
		}
	}
	return nil
}
