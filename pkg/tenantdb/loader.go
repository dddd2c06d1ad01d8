package tenantdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Route declares that a tenant runs on a dedicated store reachable at DSN.
type Route struct {
	TenantID uuid.UUID
	DSN      string
}

// Loader owns the pools behind a Registry and rebuilds them when tenants are
// added or removed. Pools for unchanged routes are reused across refreshes;
// pools for dropped or rewritten routes are closed after the snapshot swap so
// in-flight readers of the old snapshot finish first.
type Loader struct {
	registry *Registry
	log      *logrus.Logger

	owned    map[uuid.UUID]ownedPool
	openPool func(ctx context.Context, dsn string) (*pgxpool.Pool, error)
}

type ownedPool struct {
	dsn  string
	pool *pgxpool.Pool
}

func NewLoader(registry *Registry, log *logrus.Logger) *Loader {
	return &Loader{
		registry: registry,
		log:      log,
		owned:    map[uuid.UUID]ownedPool{},
		openPool: openPool,
	}
}

func openPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Refresh is all-or-nothing: on a failed route the registry keeps its
// previous snapshot and every pool opened during the round is closed, so a
// persistently bad route cannot leak pools across retries.
func (l *Loader) Refresh(ctx context.Context, routes []Route) error {
	next := make(map[uuid.UUID]ownedPool, len(routes))
	snapshot := make(map[uuid.UUID]*pgxpool.Pool, len(routes))

	for _, route := range routes {
		if existing, ok := l.owned[route.TenantID]; ok && existing.dsn == route.DSN {
			next[route.TenantID] = existing
			snapshot[route.TenantID] = existing.pool
			continue
		}

		pool, err := l.openPool(ctx, route.DSN)
		if err != nil {
			l.closeOrphans(next)
			return fmt.Errorf("open route for tenant %s: %w", route.TenantID, err)
		}
		next[route.TenantID] = ownedPool{dsn: route.DSN, pool: pool}
		snapshot[route.TenantID] = pool
	}

	l.registry.Replace(snapshot)

	for tenantID, owned := range l.owned {
		if kept, ok := next[tenantID]; ok && kept.pool == owned.pool {
			continue
		}
		l.log.WithField("tenant_id", tenantID.String()).Info("closing dropped tenant store")
		owned.pool.Close()
	}
	l.owned = next

	return nil
}

// closeOrphans closes pools opened during an aborted refresh round. Pools
// carried over from l.owned stay open; they still back the live snapshot.
func (l *Loader) closeOrphans(next map[uuid.UUID]ownedPool) {
	for tenantID, op := range next {
		if kept, ok := l.owned[tenantID]; ok && kept.pool == op.pool {
			continue
		}
		l.log.WithField("tenant_id", tenantID.String()).Warn("closing tenant store from aborted refresh")
		op.pool.Close()
	}
}

func (l *Loader) Close() {
	for _, owned := range l.owned {
		owned.pool.Close()
	}
	l.owned = map[uuid.UUID]ownedPool{}
}
