package tenant

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeProduction Type = "production"
	TypeDemo       Type = "demo"
)

// Tenant is an isolated customer scope. Provisioning creates and mutates
// tenants; this core only reads them to build store routes.
type Tenant struct {
	id        uuid.UUID
	name      string
	typ       Type
	dsn       string
	isActive  bool
	createdAt time.Time
	updatedAt time.Time
}

type Option func(*Tenant)

func WithID(id uuid.UUID) Option {
	return func(t *Tenant) {
		t.id = id
	}
}

func WithType(typ Type) Option {
	return func(t *Tenant) {
		t.typ = typ
	}
}

// WithDSN marks the tenant as running on a dedicated backing store.
// Tenants without a DSN share the default store.
func WithDSN(dsn string) Option {
	return func(t *Tenant) {
		t.dsn = dsn
	}
}

func WithIsActive(isActive bool) Option {
	return func(t *Tenant) {
		t.isActive = isActive
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(t *Tenant) {
		t.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(t *Tenant) {
		t.updatedAt = updatedAt
	}
}

func New(name string, opts ...Option) *Tenant {
	t := &Tenant{
		id:        uuid.New(),
		name:      name,
		typ:       TypeProduction,
		isActive:  true,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tenant) ID() uuid.UUID {
	return t.id
}

func (t *Tenant) Name() string {
	return t.name
}

func (t *Tenant) Type() Type {
	return t.typ
}

func (t *Tenant) DSN() string {
	return t.dsn
}

func (t *Tenant) HasDedicatedStore() bool {
	return t.dsn != ""
}

func (t *Tenant) IsActive() bool {
	return t.isActive
}

func (t *Tenant) CreatedAt() time.Time {
	return t.createdAt
}

func (t *Tenant) UpdatedAt() time.Time {
	return t.updatedAt
}
