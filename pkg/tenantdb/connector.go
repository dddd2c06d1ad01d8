package tenantdb

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/orgstack-io/orgstack/pkg/composables"
)

type Connector struct {
	defaultPool *pgxpool.Pool
	registry    *Registry
	log         *logrus.Logger
}

func NewConnector(defaultPool *pgxpool.Pool, registry *Registry, log *logrus.Logger) *Connector {
	return &Connector{
		defaultPool: defaultPool,
		registry:    registry,
		log:         log,
	}
}

// DetermineTarget resolves the backing store for the tenant in ctx.
// A missing tenant id or a missing route is an expected, recoverable
// condition (the tenant runs on shared infrastructure): it logs a warning
// and returns the default store, never an error.
func (c *Connector) DetermineTarget(ctx context.Context) *pgxpool.Pool {
	tenantID, ok := composables.TryUseTenantID(ctx)
	if !ok {
		c.log.Warn("tenant id empty, using default store")
		return c.defaultPool
	}

	pool, found := c.registry.Lookup(tenantID)
	if !found {
		c.log.WithFields(logrus.Fields{
			"tenant_id": tenantID.String(),
			"system":    c.registry.SystemName(),
		}).Warnf("tenant %s has no dedicated store in system %s, using default store", tenantID, c.registry.SystemName())
		return c.defaultPool
	}
	return pool
}

// Acquire checks out a connection from the resolved pool. Exhausted pools
// block until the ctx deadline and then fail; there is no fallback to the
// default store here, fallback applies to routing only.
func (c *Connector) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	return c.DetermineTarget(ctx).Acquire(ctx)
}

func (c *Connector) Default() *pgxpool.Pool {
	return c.defaultPool
}

func (c *Connector) Registry() *Registry {
	return c.registry
}
