package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/orgstack-io/orgstack/modules/platform/domain/entities/tenant"
	"github.com/orgstack-io/orgstack/pkg/composables"
)

// TenantRepository reads tenant records from the default store. It is the
// source of truth for building tenant store routes and is deliberately not
// tenant-scoped itself.
type TenantRepository struct{}

func NewTenantRepository() *TenantRepository {
	return &TenantRepository{}
}

func (r *TenantRepository) GetAll(ctx context.Context) ([]*tenant.Tenant, error) {
	return r.list(ctx, `
SELECT id, name, tenant_type, dsn, is_active, created_at, updated_at
FROM tenants
ORDER BY created_at ASC
`)
}

func (r *TenantRepository) GetActive(ctx context.Context) ([]*tenant.Tenant, error) {
	return r.list(ctx, `
SELECT id, name, tenant_type, dsn, is_active, created_at, updated_at
FROM tenants
WHERE is_active = TRUE
ORDER BY created_at ASC
`)
}

func (r *TenantRepository) list(ctx context.Context, query string) ([]*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*tenant.Tenant, 0, 8)
	for rows.Next() {
		var (
			id         uuid.UUID
			name       string
			tenantType string
			dsn        pgtype.Text
			isActive   bool
			createdAt  pgtype.Timestamptz
			updatedAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &name, &tenantType, &dsn, &isActive, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		out = append(out, tenant.New(
			name,
			tenant.WithID(id),
			tenant.WithType(tenant.Type(tenantType)),
			tenant.WithDSN(dsn.String),
			tenant.WithIsActive(isActive),
			tenant.WithCreatedAt(createdAt.Time),
			tenant.WithUpdatedAt(updatedAt.Time),
		))
	}
	return out, rows.Err()
}
