// Package dbcatalog implements the Table Catalog (T): named, in-memory row
// collections bound to one message type, with atomic inserts and scans that
// return a copied snapshot of the rows (not a lazy sequence).
package dbcatalog

import (
	"sync"

	"github.com/dbufdb/dbufdb/internal/dberr"
	"github.com/dbufdb/dbufdb/internal/dbschema"
	"github.com/dbufdb/dbufdb/internal/dbval"
)

// Table is a named row collection bound to one message type.
type Table struct {
	Name     string
	TypeName string
	rows     []dbval.Value
}

// Catalog owns the set of live tables: TableMeta-style bookkeeping over a
// TableManager-shaped operation set, replacing its page-backed
// storage with a plain in-memory slice since dbufdb never persists to
// disk.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

func NewCatalog() *Catalog {
	return &Catalog{tables: make(map[string]*Table)}
}

// Create binds a new, empty table to a message type. typeName must name a
// message already present in the schema registry; the caller (the Query
// Dispatcher) is responsible for that check so T stays decoupled from S.
func (c *Catalog) Create(name, typeName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[name]; ok {
		return dberr.New(dberr.KindTableExists, "table %q already exists", name)
	}
	c.tables[name] = &Table{Name: name, TypeName: typeName}
	return nil
}

// Drop removes a table and all its rows.
func (c *Catalog) Drop(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[name]; !ok {
		return dberr.New(dberr.KindNoSuchTable, "no such table %q", name)
	}
	delete(c.tables, name)
	return nil
}

// Lookup returns the table's metadata, for callers that need TypeName
// without taking a row-level scan.
func (c *Catalog) Lookup(name string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, dberr.New(dberr.KindNoSuchTable, "no such table %q", name)
	}
	return t, nil
}

// Insert appends rows to a table, all-or-nothing: every row is checked for
// conformance to the table's message type before any row is appended, and
// the first non-conforming row's index is reported.
func (c *Catalog) Insert(reg *dbschema.Registry, name string, rows []dbval.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[name]
	if !ok {
		return dberr.New(dberr.KindNoSuchTable, "no such table %q", name)
	}

	decl, ok := reg.Message(t.TypeName)
	if !ok {
		return dberr.New(dberr.KindNotAMessage, "table %q's type %q is not a known message", name, t.TypeName)
	}
	msgType := dbschema.MessageType(decl.Name)

	for i, row := range rows {
		if row.Kind != dbval.KindMessage || !dbschema.Conforms(reg, row, msgType) {
			return dberr.New(dberr.KindTypeMismatch,
				"row %d does not conform to table %q's message type %q", i, name, t.TypeName)
		}
	}

	t.rows = append(t.rows, rows...)
	return nil
}

// Scan returns a snapshot slice of the table's current rows, taken under
// lock. Per spec.md §4.3, a scan is not restartable across mutation: this
// snapshot reflects rows as of the call, and callers that want fresh data
// after an intervening Insert/Drop must call Scan again.
func (c *Catalog) Scan(name string) ([]dbval.Value, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, "", dberr.New(dberr.KindNoSuchTable, "no such table %q", name)
	}
	out := make([]dbval.Value, len(t.rows))
	copy(out, t.rows)
	return out, t.TypeName, nil
}
