package tenant

import "context"

type Repository interface {
	GetAll(ctx context.Context) ([]*Tenant, error)
	GetActive(ctx context.Context) ([]*Tenant, error)
}
