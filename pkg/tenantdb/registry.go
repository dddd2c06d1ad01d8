// Package tenantdb routes data access to per-tenant backing stores.
//
// A Registry maps tenant identities to dedicated connection pools. Reads are
// lock-free against an immutable snapshot; Replace swaps in a fresh map so
// concurrent readers never observe partial state. The Connector resolves the
// pool for the tenant in the current context, falling back to the default
// store with a diagnostic when no dedicated route exists.
package tenantdb

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Registry struct {
	systemName string
	routes     atomic.Pointer[map[uuid.UUID]*pgxpool.Pool]
}

func NewRegistry(systemName string) *Registry {
	r := &Registry{systemName: systemName}
	empty := map[uuid.UUID]*pgxpool.Pool{}
	r.routes.Store(&empty)
	return r
}

func (r *Registry) SystemName() string {
	return r.systemName
}

func (r *Registry) Lookup(tenantID uuid.UUID) (*pgxpool.Pool, bool) {
	routes := *r.routes.Load()
	pool, ok := routes[tenantID]
	return pool, ok
}

// Replace swaps the route snapshot. The given map is copied; callers may
// reuse it afterwards.
func (r *Registry) Replace(routes map[uuid.UUID]*pgxpool.Pool) {
	snapshot := make(map[uuid.UUID]*pgxpool.Pool, len(routes))
	for id, pool := range routes {
		snapshot[id] = pool
	}
	r.routes.Store(&snapshot)
}

func (r *Registry) Len() int {
	return len(*r.routes.Load())
}
