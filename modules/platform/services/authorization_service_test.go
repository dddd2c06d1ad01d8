package services_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/authorization"
	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/orgunit"
	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/role"
	"github.com/orgstack-io/orgstack/modules/platform/services"
	"github.com/orgstack-io/orgstack/pkg/serrors"
)

type authFixture struct {
	orgRepo   *stubOrgRepo
	roleRepo  *stubRoleRepo
	grantRepo *stubGrantRepo
	bus       *recordingBus
	svc       *services.AuthorizationService
}

func newAuthFixture() *authFixture {
	orgRepo := newStubOrgRepo()
	roleRepo := newStubRoleRepo()
	grantRepo := newStubGrantRepo()
	bus := &recordingBus{}
	hierarchy := services.NewOrgHierarchyService(orgRepo)
	return &authFixture{
		orgRepo:   orgRepo,
		roleRepo:  roleRepo,
		grantRepo: grantRepo,
		bus:       bus,
		svc:       services.NewAuthorizationService(grantRepo, roleRepo, orgRepo, hierarchy, bus),
	}
}

func (f *authFixture) member(roleID, orgUnitID uuid.UUID, typ orgunit.Type, negative bool) {
	f.roleRepo.memberships = append(f.roleRepo.memberships, role.Membership{
		RoleID:    roleID,
		OrgUnitID: orgUnitID,
		OrgType:   typ,
		Negative:  negative,
	})
}

func TestHasRole_GrantOnAncestorDepartment(t *testing.T) {
	t.Parallel()

	f := newAuthFixture()
	dept := f.orgRepo.addUnit(orgunit.TypeDepartment, "Engineering", nil, 1)
	person := f.orgRepo.addUnit(orgunit.TypePerson, "Alice", ptr(dept.ID()), 1)
	node := f.roleRepo.addRole("reviewer", nil, "orgstack", "", role.TypeRole)
	f.member(node.ID(), dept.ID(), orgunit.TypeDepartment, false)

	tenantID := uuid.New()
	sel := role.Selector{Name: "reviewer", SystemName: "orgstack"}

	held, err := f.svc.HasRole(testContext(tenantID), tenantID, sel, person.ID())
	require.NoError(t, err)
	require.True(t, held)
}

func TestHasRole_NegativeRowsDoNotRevoke(t *testing.T) {
	t.Parallel()

	f := newAuthFixture()
	dept := f.orgRepo.addUnit(orgunit.TypeDepartment, "Engineering", nil, 1)
	person := f.orgRepo.addUnit(orgunit.TypePerson, "Alice", ptr(dept.ID()), 1)
	node := f.roleRepo.addRole("reviewer", nil, "orgstack", "", role.TypeRole)
	f.member(node.ID(), dept.ID(), orgunit.TypeDepartment, false)
	f.member(node.ID(), person.ID(), orgunit.TypePerson, true)

	tenantID := uuid.New()
	sel := role.Selector{Name: "reviewer", SystemName: "orgstack"}

	held, err := f.svc.HasRole(testContext(tenantID), tenantID, sel, person.ID())
	require.NoError(t, err)
	require.True(t, held)
}

func TestHasRole_NoMatchingRoleNode(t *testing.T) {
	t.Parallel()

	f := newAuthFixture()
	person := f.orgRepo.addUnit(orgunit.TypePerson, "Alice", nil, 1)

	tenantID := uuid.New()
	sel := role.Selector{Name: "ghost", SystemName: "orgstack"}

	held, err := f.svc.HasRole(testContext(tenantID), tenantID, sel, person.ID())
	require.NoError(t, err)
	require.False(t, held)
}

func TestHasRole_UnknownPersonIsNotHeld(t *testing.T) {
	t.Parallel()

	f := newAuthFixture()
	node := f.roleRepo.addRole("reviewer", nil, "orgstack", "", role.TypeRole)
	f.member(node.ID(), uuid.New(), orgunit.TypeDepartment, false)

	tenantID := uuid.New()
	sel := role.Selector{Name: "reviewer", SystemName: "orgstack"}

	held, err := f.svc.HasRole(testContext(tenantID), tenantID, sel, uuid.New())
	require.NoError(t, err)
	require.False(t, held)
}

func TestHasPublicRole_AddressedByNameUnderPublicRoot(t *testing.T) {
	t.Parallel()

	f := newAuthFixture()
	person := f.orgRepo.addUnit(orgunit.TypePerson, "Alice", nil, 1)
	node := f.roleRepo.addRole("everyone", ptr(role.PublicRootID), "", "", role.TypeRole)
	f.member(node.ID(), person.ID(), orgunit.TypePerson, false)

	tenantID := uuid.New()

	held, err := f.svc.HasPublicRole(testContext(tenantID), tenantID, "everyone", person.ID())
	require.NoError(t, err)
	require.True(t, held)

	held, err = f.svc.HasPublicRole(testContext(tenantID), tenantID, "nobody", person.ID())
	require.NoError(t, err)
	require.False(t, held)
}

func TestHasRoleByOrgUnit(t *testing.T) {
	t.Parallel()

	f := newAuthFixture()
	parent := f.orgRepo.addUnit(orgunit.TypeDepartment, "Engineering", nil, 1)
	child := f.orgRepo.addUnit(orgunit.TypeDepartment, "Backend", ptr(parent.ID()), 1)
	node := f.roleRepo.addRole("reviewer", nil, "orgstack", "", role.TypeRole)
	f.member(node.ID(), parent.ID(), orgunit.TypeDepartment, false)

	tenantID := uuid.New()

	held, err := f.svc.HasRoleByOrgUnit(testContext(tenantID), tenantID, node.ID(), child.ID())
	require.NoError(t, err)
	require.True(t, held)

	held, err = f.svc.HasRoleByOrgUnit(testContext(tenantID), tenantID, node.ID(), uuid.New())
	require.NoError(t, err)
	require.False(t, held)
}

func TestHasPermission_ThroughReachableRole(t *testing.T) {
	t.Parallel()

	f := newAuthFixture()
	dept := f.orgRepo.addUnit(orgunit.TypeDepartment, "Engineering", nil, 1)
	insider := f.orgRepo.addUnit(orgunit.TypePerson, "Alice", ptr(dept.ID()), 1)
	outsider := f.orgRepo.addUnit(orgunit.TypePerson, "Eve", nil, 2)
	node := f.roleRepo.addRole("reviewer", nil, "orgstack", "", role.TypeRole)
	f.member(node.ID(), dept.ID(), orgunit.TypeDepartment, false)

	tenantID := uuid.New()
	resourceID := uuid.New()
	ctx := testContext(tenantID)

	_, err := f.grantRepo.Create(ctx, authorization.New(
		tenantID, node.ID(), authorization.PrincipalRole, "reviewer", resourceID, authorization.AuthorityRead,
	))
	require.NoError(t, err)

	held, err := f.svc.HasPermission(ctx, insider.ID(), resourceID, authorization.AuthorityRead)
	require.NoError(t, err)
	require.True(t, held)

	held, err = f.svc.HasPermission(ctx, outsider.ID(), resourceID, authorization.AuthorityRead)
	require.NoError(t, err)
	require.False(t, held)

	// Holding the role does not imply a different authority on the resource.
	held, err = f.svc.HasPermission(ctx, insider.ID(), resourceID, authorization.AuthorityAdmin)
	require.NoError(t, err)
	require.False(t, held)
}

func TestHasPermission_DirectGrantOnPrincipal(t *testing.T) {
	t.Parallel()

	f := newAuthFixture()
	person := f.orgRepo.addUnit(orgunit.TypePerson, "Alice", nil, 1)

	tenantID := uuid.New()
	resourceID := uuid.New()
	ctx := testContext(tenantID)

	_, err := f.grantRepo.Create(ctx, authorization.New(
		tenantID, person.ID(), authorization.PrincipalPerson, "Alice", resourceID, authorization.AuthorityWrite,
	))
	require.NoError(t, err)

	held, err := f.svc.HasPermission(ctx, person.ID(), resourceID, authorization.AuthorityWrite)
	require.NoError(t, err)
	require.True(t, held)
}

func TestHasPermission_UnknownAuthorityRejected(t *testing.T) {
	t.Parallel()

	f := newAuthFixture()

	_, err := f.svc.HasPermission(testContext(uuid.New()), uuid.New(), uuid.New(), authorization.Authority("owner"))
	require.ErrorIs(t, err, services.ErrUnknownAuthority)
}

func TestUpsertGrant_InsertPublishesCreatedEvent(t *testing.T) {
	t.Parallel()

	f := newAuthFixture()
	dept := f.orgRepo.addUnit(orgunit.TypeDepartment, "Engineering", nil, 1)
	resourceID := uuid.New()
	ctx := testContext(uuid.New())

	saved, err := f.svc.UpsertGrant(ctx, services.UpsertGrantDTO{
		PrincipalID:   dept.ID(),
		PrincipalType: authorization.PrincipalDepartment,
		ResourceID:    resourceID,
		Authority:     authorization.AuthorityRead,
	})
	require.NoError(t, err)
	require.Equal(t, "Engineering", saved.PrincipalName())
	require.Len(t, f.grantRepo.grants, 1)

	events := f.bus.Events()
	require.Len(t, events, 1)
	created, ok := events[0].(*authorization.CreatedEvent)
	require.True(t, ok)
	require.Equal(t, saved.ID(), created.Result.ID())
}

func TestUpsertGrant_SameKeyUpdatesInPlace(t *testing.T) {
	t.Parallel()

	f := newAuthFixture()
	dept := f.orgRepo.addUnit(orgunit.TypeDepartment, "Engineering", nil, 1)
	resourceID := uuid.New()
	ctx := testContext(uuid.New())

	dto := services.UpsertGrantDTO{
		PrincipalID:   dept.ID(),
		PrincipalType: authorization.PrincipalDepartment,
		ResourceID:    resourceID,
		Authority:     authorization.AuthorityRead,
	}

	first, err := f.svc.UpsertGrant(ctx, dto)
	require.NoError(t, err)
	second, err := f.svc.UpsertGrant(ctx, dto)
	require.NoError(t, err)

	require.Equal(t, first.ID(), second.ID())
	require.Len(t, f.grantRepo.grants, 1)
	// Only the insert publishes.
	require.Len(t, f.bus.Events(), 1)
}

func TestUpsertGrant_UnknownPrincipalRejected(t *testing.T) {
	t.Parallel()

	f := newAuthFixture()

	_, err := f.svc.UpsertGrant(testContext(uuid.New()), services.UpsertGrantDTO{
		PrincipalID:   uuid.New(),
		PrincipalType: authorization.PrincipalDepartment,
		ResourceID:    uuid.New(),
		Authority:     authorization.AuthorityRead,
	})
	require.ErrorIs(t, err, services.ErrUnknownPrincipal)
	require.Empty(t, f.grantRepo.grants)
	require.Empty(t, f.bus.Events())
}

func TestUpsertGrant_InvalidAuthorityFailsValidation(t *testing.T) {
	t.Parallel()

	f := newAuthFixture()
	dept := f.orgRepo.addUnit(orgunit.TypeDepartment, "Engineering", nil, 1)

	_, err := f.svc.UpsertGrant(testContext(uuid.New()), services.UpsertGrantDTO{
		PrincipalID:   dept.ID(),
		PrincipalType: authorization.PrincipalDepartment,
		ResourceID:    uuid.New(),
		Authority:     authorization.Authority("owner"),
	})
	require.Error(t, err)

	var fieldErrs serrors.ValidationErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Contains(t, fieldErrs, "Authority")
}

func TestDeleteGrant(t *testing.T) {
	t.Parallel()

	f := newAuthFixture()
	tenantID := uuid.New()
	ctx := testContext(tenantID)

	grant, err := f.grantRepo.Create(ctx, authorization.New(
		tenantID, uuid.New(), authorization.PrincipalPerson, "Alice", uuid.New(), authorization.AuthorityRead,
	))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteGrant(ctx, grant.ID()))
	require.Empty(t, f.grantRepo.grants)

	events := f.bus.Events()
	require.Len(t, events, 1)
	deleted, ok := events[0].(*authorization.DeletedEvent)
	require.True(t, ok)
	require.Equal(t, grant.ID(), deleted.Result.ID())

	require.ErrorIs(t, f.svc.DeleteGrant(ctx, grant.ID()), authorization.ErrNotFound)
}
