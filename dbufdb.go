// Package dbufdb re-exports the Query Dispatcher as the module's public
// entry point: a thin alias so callers can depend on the module root
// instead of reaching into internal/dbengine directly.
package dbufdb

import (
	"go.uber.org/zap"

	"github.com/dbufdb/dbufdb/internal/dbengine"
	"github.com/dbufdb/dbufdb/internal/dbufparse"
)

// Engine is the dispatcher that owns a schema registry and table catalog
// for one interactive session.
type Engine = dbengine.Engine

// Result is the uniform value every dispatched query returns.
type Result = dbengine.Result

// New builds an Engine wired to the schema-text collaborator
// (internal/dbufparse) that backs FETCH TYPES, logging through log (pass
// nil to discard diagnostics).
func New(log *zap.Logger) *Engine {
	return dbengine.New(dbufparse.NewParser(), log)
}
