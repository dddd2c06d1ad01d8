package role

import (
	"time"

	"github.com/google/uuid"

	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/orgunit"
)

type Type string

const (
	TypeSystem Type = "system"
	TypeTenant Type = "tenant"
	TypeNode   Type = "node"
	TypeRole   Type = "role"
)

// PublicRootID is the well-known root of the public role tree. Public roles
// are shared across systems and addressed by name under this node.
var PublicRootID = uuid.MustParse("11111111-0000-0000-0000-000000000001")

// Role is a node in the per-system role tree. CustomID correlates the node
// to an external key, e.g. a workflow definition.
type Role struct {
	id         uuid.UUID
	name       string
	parentID   *uuid.UUID
	customID   string
	systemName string
	properties string
	typ        Type
	tabIndex   int
	createdAt  time.Time
	updatedAt  time.Time
}

func Hydrate(
	id uuid.UUID,
	name string,
	parentID *uuid.UUID,
	customID string,
	systemName string,
	properties string,
	typ Type,
	tabIndex int,
	createdAt time.Time,
	updatedAt time.Time,
) Role {
	return Role{
		id:         id,
		name:       name,
		parentID:   parentID,
		customID:   customID,
		systemName: systemName,
		properties: properties,
		typ:        typ,
		tabIndex:   tabIndex,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (r Role) ID() uuid.UUID        { return r.id }
func (r Role) Name() string         { return r.name }
func (r Role) ParentID() *uuid.UUID { return r.parentID }
func (r Role) CustomID() string     { return r.customID }
func (r Role) SystemName() string   { return r.systemName }
func (r Role) Properties() string   { return r.properties }
func (r Role) Type() Type           { return r.typ }
func (r Role) TabIndex() int        { return r.tabIndex }
func (r Role) CreatedAt() time.Time { return r.createdAt }
func (r Role) UpdatedAt() time.Time { return r.updatedAt }
func (r Role) IsZero() bool         { return r.id == uuid.Nil }

// Membership is an edge asserting an org unit contributes to (or, when
// Negative, is excluded from) a role's expanded person set. Negative rows
// only affect descendant expansion, never the role tree shape.
type Membership struct {
	RoleID    uuid.UUID
	OrgUnitID uuid.UUID
	OrgType   orgunit.Type
	Negative  bool
}

// Selector addresses role nodes by business identity instead of id.
type Selector struct {
	Name       string
	SystemName string
	Properties string
}
