package authorization

import (
	"time"

	"github.com/google/uuid"

	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/orgunit"
)

// Authority is the closed set of grantable permissions. Unknown values are
// rejected at write time, never coerced.
type Authority string

const (
	AuthorityHidden Authority = "hidden"
	AuthorityBrowse Authority = "browse"
	AuthorityRead   Authority = "read"
	AuthorityWrite  Authority = "write"
	AuthorityAdmin  Authority = "admin"
)

func (a Authority) Valid() bool {
	switch a {
	case AuthorityHidden, AuthorityBrowse, AuthorityRead, AuthorityWrite, AuthorityAdmin:
		return true
	}
	return false
}

type PrincipalType string

const (
	PrincipalPerson       PrincipalType = "person"
	PrincipalDepartment   PrincipalType = "department"
	PrincipalGroup        PrincipalType = "group"
	PrincipalPosition     PrincipalType = "position"
	PrincipalOrganization PrincipalType = "organization"
	PrincipalRole         PrincipalType = "role"
)

func (p PrincipalType) Valid() bool {
	switch p {
	case PrincipalPerson, PrincipalDepartment, PrincipalGroup,
		PrincipalPosition, PrincipalOrganization, PrincipalRole:
		return true
	}
	return false
}

// PrincipalTypeForOrgUnit maps an org unit variant to its principal type.
func PrincipalTypeForOrgUnit(t orgunit.Type) PrincipalType {
	return PrincipalType(t)
}

// Grant asserts that a principal (org unit or role) holds an authority on a
// resource. One grant exists per (principal, resource, authority) key.
type Grant struct {
	id            uuid.UUID
	tenantID      uuid.UUID
	principalID   uuid.UUID
	principalType PrincipalType
	principalName string
	resourceID    uuid.UUID
	authority     Authority
	createdAt     time.Time
	updatedAt     time.Time
}

func New(
	tenantID uuid.UUID,
	principalID uuid.UUID,
	principalType PrincipalType,
	principalName string,
	resourceID uuid.UUID,
	authority Authority,
) Grant {
	now := time.Now()
	return Grant{
		id:            uuid.New(),
		tenantID:      tenantID,
		principalID:   principalID,
		principalType: principalType,
		principalName: principalName,
		resourceID:    resourceID,
		authority:     authority,
		createdAt:     now,
		updatedAt:     now,
	}
}

func Hydrate(
	id uuid.UUID,
	tenantID uuid.UUID,
	principalID uuid.UUID,
	principalType PrincipalType,
	principalName string,
	resourceID uuid.UUID,
	authority Authority,
	createdAt time.Time,
	updatedAt time.Time,
) Grant {
	return Grant{
		id:            id,
		tenantID:      tenantID,
		principalID:   principalID,
		principalType: principalType,
		principalName: principalName,
		resourceID:    resourceID,
		authority:     authority,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

func (g Grant) ID() uuid.UUID                { return g.id }
func (g Grant) TenantID() uuid.UUID          { return g.tenantID }
func (g Grant) PrincipalID() uuid.UUID       { return g.principalID }
func (g Grant) PrincipalType() PrincipalType { return g.principalType }
func (g Grant) PrincipalName() string        { return g.principalName }
func (g Grant) ResourceID() uuid.UUID        { return g.resourceID }
func (g Grant) Authority() Authority         { return g.authority }
func (g Grant) CreatedAt() time.Time         { return g.createdAt }
func (g Grant) UpdatedAt() time.Time         { return g.updatedAt }
func (g Grant) IsZero() bool                 { return g.id == uuid.Nil }

// Refresh returns a copy with the principal name updated, for update-in-place
// on an existing key.
func (g Grant) Refresh(principalName string) Grant {
	g.principalName = principalName
	g.updatedAt = time.Now()
	return g
}
