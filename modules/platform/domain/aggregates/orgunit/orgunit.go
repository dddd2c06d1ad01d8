package orgunit

import (
	"time"

	"github.com/google/uuid"
)

// Type tags the organizational graph node variants. Expansion and ancestry
// logic switch exhaustively over it.
type Type string

const (
	TypePerson       Type = "person"
	TypeDepartment   Type = "department"
	TypeGroup        Type = "group"
	TypePosition     Type = "position"
	TypeOrganization Type = "organization"
)

func (t Type) Valid() bool {
	switch t {
	case TypePerson, TypeDepartment, TypeGroup, TypePosition, TypeOrganization:
		return true
	}
	return false
}

// OrgUnit is a node in the organizational graph. Departments and
// organizations form a strict tree via ParentID; a person's parent is its
// home department. Group and position membership is kept in separate link
// tables and read through the Repository.
type OrgUnit struct {
	id           uuid.UUID
	tenantID     uuid.UUID
	typ          Type
	name         string
	parentID     *uuid.UUID
	displayOrder int
	createdAt    time.Time
	updatedAt    time.Time
}

func Hydrate(
	id uuid.UUID,
	tenantID uuid.UUID,
	typ Type,
	name string,
	parentID *uuid.UUID,
	displayOrder int,
	createdAt time.Time,
	updatedAt time.Time,
) OrgUnit {
	return OrgUnit{
		id:           id,
		tenantID:     tenantID,
		typ:          typ,
		name:         name,
		parentID:     parentID,
		displayOrder: displayOrder,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (u OrgUnit) ID() uuid.UUID        { return u.id }
func (u OrgUnit) TenantID() uuid.UUID  { return u.tenantID }
func (u OrgUnit) Type() Type           { return u.typ }
func (u OrgUnit) Name() string         { return u.name }
func (u OrgUnit) ParentID() *uuid.UUID { return u.parentID }
func (u OrgUnit) DisplayOrder() int    { return u.displayOrder }
func (u OrgUnit) CreatedAt() time.Time { return u.createdAt }
func (u OrgUnit) UpdatedAt() time.Time { return u.updatedAt }
func (u OrgUnit) IsZero() bool         { return u.id == uuid.Nil }
