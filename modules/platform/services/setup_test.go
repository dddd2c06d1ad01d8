package services_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/authorization"
	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/orgunit"
	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/role"
	"github.com/orgstack-io/orgstack/pkg/composables"
)

// noopTx satisfies the repository query surface so transactional service
// paths run against the in-memory stubs below without a database.
type noopTx struct{}

func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func testContext(tenantID uuid.UUID) context.Context {
	ctx := composables.WithTenantID(context.Background(), tenantID)
	return composables.WithTx(ctx, noopTx{})
}

// recordingBus captures published events in order.
type recordingBus struct {
	mu     sync.Mutex
	events []interface{}
}

func (b *recordingBus) Publish(args ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, args...)
}

func (b *recordingBus) Subscribe(interface{})   {}
func (b *recordingBus) Unsubscribe(interface{}) {}
func (b *recordingBus) Clear()                  {}
func (b *recordingBus) SubscribersCount() int   { return 0 }

func (b *recordingBus) Events() []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]interface{}, len(b.events))
	copy(out, b.events)
	return out
}

// stubOrgRepo serves the organizational graph from maps. Department and
// person containment is derived from parent links, as in the real store.
type stubOrgRepo struct {
	units           map[uuid.UUID]orgunit.OrgUnit
	groupMembers    map[uuid.UUID][]uuid.UUID
	positionMembers map[uuid.UUID][]uuid.UUID
}

func newStubOrgRepo() *stubOrgRepo {
	return &stubOrgRepo{
		units:           map[uuid.UUID]orgunit.OrgUnit{},
		groupMembers:    map[uuid.UUID][]uuid.UUID{},
		positionMembers: map[uuid.UUID][]uuid.UUID{},
	}
}

func (r *stubOrgRepo) addUnit(typ orgunit.Type, name string, parentID *uuid.UUID, displayOrder int) orgunit.OrgUnit {
	now := time.Now()
	unit := orgunit.Hydrate(uuid.New(), uuid.New(), typ, name, parentID, displayOrder, now, now)
	r.units[unit.ID()] = unit
	return unit
}

func (r *stubOrgRepo) link(containerID uuid.UUID, members map[uuid.UUID][]uuid.UUID, personIDs ...uuid.UUID) {
	members[containerID] = append(members[containerID], personIDs...)
}

func (r *stubOrgRepo) addToGroup(groupID uuid.UUID, personIDs ...uuid.UUID) {
	r.link(groupID, r.groupMembers, personIDs...)
}

func (r *stubOrgRepo) addToPosition(positionID uuid.UUID, personIDs ...uuid.UUID) {
	r.link(positionID, r.positionMembers, personIDs...)
}

func (r *stubOrgRepo) GetByID(_ context.Context, id uuid.UUID) (orgunit.OrgUnit, error) {
	unit, ok := r.units[id]
	if !ok {
		return orgunit.OrgUnit{}, orgunit.ErrNotFound
	}
	return unit, nil
}

func (r *stubOrgRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]orgunit.OrgUnit, error) {
	out := make([]orgunit.OrgUnit, 0, len(ids))
	for _, id := range ids {
		if unit, ok := r.units[id]; ok {
			out = append(out, unit)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder() != out[j].DisplayOrder() {
			return out[i].DisplayOrder() < out[j].DisplayOrder()
		}
		if out[i].Name() != out[j].Name() {
			return out[i].Name() < out[j].Name()
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

func (r *stubOrgRepo) childrenOfType(parentID uuid.UUID, typ orgunit.Type) []uuid.UUID {
	var out []uuid.UUID
	for _, unit := range r.units {
		if unit.ParentID() != nil && *unit.ParentID() == parentID && unit.Type() == typ {
			out = append(out, unit.ID())
		}
	}
	return out
}

func (r *stubOrgRepo) ListChildDepartmentIDs(_ context.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	return r.childrenOfType(parentID, orgunit.TypeDepartment), nil
}

func (r *stubOrgRepo) ListPersonIDsByDepartment(_ context.Context, departmentID uuid.UUID) ([]uuid.UUID, error) {
	return r.childrenOfType(departmentID, orgunit.TypePerson), nil
}

func (r *stubOrgRepo) ListPersonIDsByGroup(_ context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	return r.groupMembers[groupID], nil
}

func (r *stubOrgRepo) ListPersonIDsByPosition(_ context.Context, positionID uuid.UUID) ([]uuid.UUID, error) {
	return r.positionMembers[positionID], nil
}

func (r *stubOrgRepo) ListPositionIDsByPerson(_ context.Context, personID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for positionID, members := range r.positionMembers {
		for _, id := range members {
			if id == personID {
				out = append(out, positionID)
			}
		}
	}
	return out, nil
}

func (r *stubOrgRepo) ListGroupIDsByPerson(_ context.Context, personID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for groupID, members := range r.groupMembers {
		for _, id := range members {
			if id == personID {
				out = append(out, groupID)
			}
		}
	}
	return out, nil
}

type stubRoleRepo struct {
	roles       map[uuid.UUID]role.Role
	memberships []role.Membership
}

func newStubRoleRepo() *stubRoleRepo {
	return &stubRoleRepo{roles: map[uuid.UUID]role.Role{}}
}

func (r *stubRoleRepo) addRole(name string, parentID *uuid.UUID, systemName, properties string, typ role.Type) role.Role {
	now := time.Now()
	node := role.Hydrate(uuid.New(), name, parentID, "", systemName, properties, typ, len(r.roles), now, now)
	r.roles[node.ID()] = node
	return node
}

func (r *stubRoleRepo) GetByID(_ context.Context, id uuid.UUID) (role.Role, error) {
	node, ok := r.roles[id]
	if !ok {
		return role.Role{}, role.ErrNotFound
	}
	return node, nil
}

func (r *stubRoleRepo) FindByCustomIDAndParentID(_ context.Context, customID string, parentID uuid.UUID) (role.Role, error) {
	for _, node := range r.roles {
		if node.CustomID() == customID && node.ParentID() != nil && *node.ParentID() == parentID {
			return node, nil
		}
	}
	return role.Role{}, role.ErrNotFound
}

func (r *stubRoleRepo) ListByParentID(_ context.Context, parentID uuid.UUID) ([]role.Role, error) {
	var out []role.Role
	for _, node := range r.roles {
		if node.ParentID() != nil && *node.ParentID() == parentID {
			out = append(out, node)
		}
	}
	return sortedRoles(out), nil
}

func (r *stubRoleRepo) ListByParentIDAndName(_ context.Context, parentID uuid.UUID, name string) ([]role.Role, error) {
	var out []role.Role
	for _, node := range r.roles {
		if node.Name() == name && node.ParentID() != nil && *node.ParentID() == parentID {
			out = append(out, node)
		}
	}
	return sortedRoles(out), nil
}

func (r *stubRoleRepo) ListBySelector(_ context.Context, sel role.Selector, typ role.Type) ([]role.Role, error) {
	var out []role.Role
	for _, node := range r.roles {
		if node.Name() != sel.Name || node.SystemName() != sel.SystemName || node.Type() != typ {
			continue
		}
		if sel.Properties != "" && node.Properties() != sel.Properties {
			continue
		}
		out = append(out, node)
	}
	return sortedRoles(out), nil
}

func (r *stubRoleRepo) ListMembershipsByRole(_ context.Context, roleID uuid.UUID) ([]role.Membership, error) {
	var out []role.Membership
	for _, m := range r.memberships {
		if m.RoleID == roleID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *stubRoleRepo) AddMembership(_ context.Context, m role.Membership) error {
	for i, existing := range r.memberships {
		if existing.RoleID == m.RoleID && existing.OrgUnitID == m.OrgUnitID {
			r.memberships[i] = m
			return nil
		}
	}
	r.memberships = append(r.memberships, m)
	return nil
}

func (r *stubRoleRepo) RemoveMembership(_ context.Context, roleID, orgUnitID uuid.UUID) error {
	for i, m := range r.memberships {
		if m.RoleID == roleID && m.OrgUnitID == orgUnitID {
			r.memberships = append(r.memberships[:i], r.memberships[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *stubRoleRepo) CountPositiveByRoleAndOrgUnitIDs(_ context.Context, roleID uuid.UUID, orgUnitIDs []uuid.UUID) (int64, error) {
	ids := map[uuid.UUID]struct{}{}
	for _, id := range orgUnitIDs {
		ids[id] = struct{}{}
	}
	var count int64
	for _, m := range r.memberships {
		if m.RoleID != roleID || m.Negative {
			continue
		}
		if _, ok := ids[m.OrgUnitID]; ok {
			count++
		}
	}
	return count, nil
}

func (r *stubRoleRepo) ListRolesWithPositiveMembership(_ context.Context, orgUnitIDs []uuid.UUID) ([]role.Role, error) {
	ids := map[uuid.UUID]struct{}{}
	for _, id := range orgUnitIDs {
		ids[id] = struct{}{}
	}
	seen := map[uuid.UUID]struct{}{}
	var out []role.Role
	for _, m := range r.memberships {
		if m.Negative {
			continue
		}
		if _, ok := ids[m.OrgUnitID]; !ok {
			continue
		}
		if _, dup := seen[m.RoleID]; dup {
			continue
		}
		seen[m.RoleID] = struct{}{}
		out = append(out, r.roles[m.RoleID])
	}
	return sortedRoles(out), nil
}

func sortedRoles(roles []role.Role) []role.Role {
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].TabIndex() != roles[j].TabIndex() {
			return roles[i].TabIndex() < roles[j].TabIndex()
		}
		return roles[i].ID().String() < roles[j].ID().String()
	})
	return roles
}

type stubGrantRepo struct {
	grants map[uuid.UUID]authorization.Grant
}

func newStubGrantRepo() *stubGrantRepo {
	return &stubGrantRepo{grants: map[uuid.UUID]authorization.Grant{}}
}

func (r *stubGrantRepo) GetByID(_ context.Context, id uuid.UUID) (authorization.Grant, error) {
	g, ok := r.grants[id]
	if !ok {
		return authorization.Grant{}, authorization.ErrNotFound
	}
	return g, nil
}

func (r *stubGrantRepo) FindByKey(_ context.Context, principalID, resourceID uuid.UUID, authority authorization.Authority) (authorization.Grant, error) {
	for _, g := range r.grants {
		if g.PrincipalID() == principalID && g.ResourceID() == resourceID && g.Authority() == authority {
			return g, nil
		}
	}
	return authorization.Grant{}, authorization.ErrNotFound
}

func (r *stubGrantRepo) Create(_ context.Context, g authorization.Grant) (authorization.Grant, error) {
	r.grants[g.ID()] = g
	return g, nil
}

func (r *stubGrantRepo) Update(_ context.Context, g authorization.Grant) (authorization.Grant, error) {
	r.grants[g.ID()] = g
	return g, nil
}

func (r *stubGrantRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.grants, id)
	return nil
}

func (r *stubGrantRepo) ListByPrincipalID(_ context.Context, principalID uuid.UUID) ([]authorization.Grant, error) {
	var out []authorization.Grant
	for _, g := range r.grants {
		if g.PrincipalID() == principalID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *stubGrantRepo) ListByResourceID(_ context.Context, resourceID uuid.UUID) ([]authorization.Grant, error) {
	var out []authorization.Grant
	for _, g := range r.grants {
		if g.ResourceID() == resourceID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *stubGrantRepo) ExistsForPrincipals(_ context.Context, resourceID uuid.UUID, authority authorization.Authority, principalIDs []uuid.UUID) (bool, error) {
	ids := map[uuid.UUID]struct{}{}
	for _, id := range principalIDs {
		ids[id] = struct{}{}
	}
	for _, g := range r.grants {
		if g.ResourceID() != resourceID || g.Authority() != authority {
			continue
		}
		if _, ok := ids[g.PrincipalID()]; ok {
			return true, nil
		}
	}
	return false, nil
}
