// Package dbengine implements the Query Dispatcher (Q) of spec.md §4.8:
// the single orchestrator that routes a parsed dbquery.Query to the Schema
// Loader, Table Catalog, Expression Typer, Dependency Analyser, and
// Evaluator, and returns a uniform Result.
package dbengine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dbufdb/dbufdb/internal/dbcatalog"
	"github.com/dbufdb/dbufdb/internal/dberr"
	"github.com/dbufdb/dbufdb/internal/dbquery"
	"github.com/dbufdb/dbufdb/internal/dbquery/depcheck"
	"github.com/dbufdb/dbufdb/internal/dbquery/eval"
	"github.com/dbufdb/dbufdb/internal/dbquery/typer"
	"github.com/dbufdb/dbufdb/internal/dbschema"
	"github.com/dbufdb/dbufdb/internal/dbval"
)

// SchemaSource is the seam between the dispatcher and the schema-text
// collaborator (internal/dbufparse): it turns a FETCH TYPES path into
// already-parsed declarations, exactly as the Loader's contract (spec.md
// §4.1) requires. The seam exists so the dispatcher can be unit-tested
// against a fake instead of a real parser.
type SchemaSource interface {
	ParseFile(path string, reg *dbschema.Registry) ([]dbschema.RawDecl, error)
}

// RowError records the first runtime error encountered scanning a table,
// per spec.md §4.7's row-level result policy: it never aborts the scan.
type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

// Result is the uniform value the dispatcher returns for every query kind.
type Result struct {
	OK           bool // set on every successful dispatch, SELECT included
	AffectedRows int

	Columns []string
	Rows    [][]dbval.Value

	// FirstRowError is set when a SELECT dropped one or more rows to a
	// per-row runtime error; the scan still completed and Rows holds
	// every row that evaluated successfully.
	FirstRowError *RowError
}

// Engine owns the live Registry and Catalog and is the sole entry point a
// host shell talks to.
type Engine struct {
	Reg    *dbschema.Registry
	Cat    *dbcatalog.Catalog
	Schema SchemaSource
	log    *zap.Logger
}

// New builds an Engine with a fresh, empty Registry and Catalog.
func New(schema SchemaSource, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		Reg:    dbschema.NewRegistry(),
		Cat:    dbcatalog.NewCatalog(),
		Schema: schema,
		log:    log,
	}
}

// Dispatch routes q per spec.md §4.8.
func (e *Engine) Dispatch(q *dbquery.Query) (*Result, error) {
	switch q.Kind {
	case dbquery.QueryFetchTypes:
		return e.execFetchTypes(q)
	case dbquery.QueryCreateTable:
		return e.execCreateTable(q)
	case dbquery.QueryDropTable:
		return e.execDropTable(q)
	case dbquery.QueryInsertMessages:
		return e.execInsert(q)
	case dbquery.QuerySelect:
		return e.execSelect(q)
	default:
		return nil, fmt.Errorf("dbengine: unsupported query kind %v", q.Kind)
	}
}

func (e *Engine) execFetchTypes(q *dbquery.Query) (*Result, error) {
	decls, err := e.Schema.ParseFile(q.Path, e.Reg)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindParse, err, "fetch types %q", q.Path)
	}
	loader := dbschema.NewLoader(e.Reg, e.log)
	if err := loader.Load(decls); err != nil {
		return nil, err
	}
	return &Result{OK: true}, nil
}

func (e *Engine) execCreateTable(q *dbquery.Query) (*Result, error) {
	decl, ok := e.Reg.Message(q.RowType)
	if !ok {
		if _, isEnum := e.Reg.Enum(q.RowType); isEnum {
			return nil, dberr.New(dberr.KindNotAMessage, "%q names an enum, not a message", q.RowType)
		}
		return nil, dberr.New(dberr.KindUnknownType, "unknown type %q", q.RowType)
	}
	if err := e.Cat.Create(q.Table, decl.Name); err != nil {
		return nil, err
	}
	return &Result{OK: true}, nil
}

func (e *Engine) execDropTable(q *dbquery.Query) (*Result, error) {
	if err := e.Cat.Drop(q.Table); err != nil {
		return nil, err
	}
	return &Result{OK: true}, nil
}

func (e *Engine) execInsert(q *dbquery.Query) (*Result, error) {
	if err := e.Cat.Insert(e.Reg, q.Table, q.Rows); err != nil {
		return nil, err
	}
	return &Result{OK: true, AffectedRows: len(q.Rows)}, nil
}

func (e *Engine) execSelect(q *dbquery.Query) (*Result, error) {
	rows, rowType, err := e.Cat.Scan(q.Table)
	if err != nil {
		return nil, err
	}
	decl, ok := e.Reg.Message(rowType)
	if !ok {
		return nil, dberr.New(dberr.KindUnknownType, "table %q's type %q is not known", q.Table, rowType)
	}

	ctx := &typer.Context{Reg: e.Reg, RowType: rowType, Columns: make(map[string]dbschema.DeclaredType, len(decl.Fields))}
	for _, f := range decl.Fields {
		ctx.Columns[f.Name] = f.Type
	}

	projected := make([]depcheck.Projected, 0, len(q.Fields))
	for _, p := range q.Fields {
		res, err := typer.Type(ctx, p.Expr)
		if err != nil {
			return nil, err
		}
		projected = append(projected, depcheck.Projected{Expr: p.Expr, UseSet: res.UseSet})
	}

	var whereUse typer.UseSet
	if q.Where != nil {
		res, err := typer.Type(ctx, q.Where)
		if err != nil {
			return nil, err
		}
		if res.Type.Kind != dbschema.KindPrim || res.Type.Prim != dbschema.PrimBool {
			return nil, dberr.New(dberr.KindTypeMismatch, "WHERE must be Bool, got %s", res.Type)
		}
		whereUse = res.UseSet
	}

	if err := depcheck.Check(e.Reg, rowType, projected, whereUse); err != nil {
		return nil, err
	}

	columns := make([]string, len(q.Fields))
	for i, p := range q.Fields {
		columns[i] = p.Alias
	}

	result := &Result{Columns: columns}
	for idx, rowVal := range rows {
		row := make(eval.Row, len(decl.Fields))
		for i, f := range decl.Fields {
			row[f.Name] = rowVal.Fields[i]
		}

		if q.Where != nil {
			wv, err := eval.Eval(row, q.Where)
			if err != nil {
				e.recordRowError(result, idx, err)
				continue
			}
			if !wv.B {
				continue
			}
		}

		out := make([]dbval.Value, len(q.Fields))
		rowFailed := false
		for i, p := range q.Fields {
			v, err := eval.Eval(row, p.Expr)
			if err != nil {
				e.recordRowError(result, idx, err)
				rowFailed = true
				break
			}
			out[i] = v
		}
		if rowFailed {
			continue
		}
		result.Rows = append(result.Rows, out)
	}

	result.OK = true
	result.AffectedRows = len(result.Rows)
	return result, nil
}

func (e *Engine) recordRowError(r *Result, idx int, err error) {
	e.log.Warn("row evaluation failed, dropping row", zap.Int("row", idx), zap.Error(err))
	if r.FirstRowError == nil {
		r.FirstRowError = &RowError{Index: idx, Err: err}
	}
}
