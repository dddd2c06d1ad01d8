package services

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/orgunit"
	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/role"
	"github.com/orgstack-io/orgstack/pkg/composables"
	"github.com/orgstack-io/orgstack/pkg/eventbus"
)

// RoleService resolves role membership over the organizational hierarchy and
// manages membership edges.
type RoleService struct {
	repo      role.Repository
	orgRepo   orgunit.Repository
	hierarchy *OrgHierarchyService
	publisher eventbus.EventBus
}

func NewRoleService(
	repo role.Repository,
	orgRepo orgunit.Repository,
	hierarchy *OrgHierarchyService,
	publisher eventbus.EventBus,
) *RoleService {
	return &RoleService{
		repo:      repo,
		orgRepo:   orgRepo,
		hierarchy: hierarchy,
		publisher: publisher,
	}
}

func (s *RoleService) GetByID(ctx context.Context, id uuid.UUID) (role.Role, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *RoleService) FindByCustomIDAndParentID(ctx context.Context, customID string, parentID uuid.UUID) (role.Role, error) {
	return s.repo.FindByCustomIDAndParentID(ctx, customID, parentID)
}

func (s *RoleService) ListByParentID(ctx context.Context, parentID uuid.UUID) ([]role.Role, error) {
	return s.repo.ListByParentID(ctx, parentID)
}

// ResolvePersons computes the effective person set of a role: the union of
// the positive rows' expansions minus the union of the negative rows'
// expansions. Exclusion cannot manufacture membership, so an empty positive
// side yields an empty result regardless of negative rows. Persons reachable
// through several positive rows appear once, in stable natural order.
func (s *RoleService) ResolvePersons(ctx context.Context, roleID uuid.UUID) ([]orgunit.OrgUnit, error) {
	memberships, err := s.repo.ListMembershipsByRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	included := map[uuid.UUID]struct{}{}
	excluded := map[uuid.UUID]struct{}{}
	for _, m := range memberships {
		target := included
		if m.Negative {
			target = excluded
		}
		expanded, err := s.hierarchy.ExpandToPersons(ctx, m.OrgUnitID)
		if err != nil {
			return nil, err
		}
		for id := range expanded {
			target[id] = struct{}{}
		}
	}

	personIDs := make([]uuid.UUID, 0, len(included))
	for id := range included {
		if _, negated := excluded[id]; negated {
			continue
		}
		personIDs = append(personIDs, id)
	}
	if len(personIDs) == 0 {
		return []orgunit.OrgUnit{}, nil
	}
	return s.orgRepo.ListByIDs(ctx, personIDs)
}

// ResolveOrgUnits returns the org units of one type directly named by the
// role's positive rows, without expanding to persons. Used for "which
// departments hold this role" style queries.
func (s *RoleService) ResolveOrgUnits(ctx context.Context, roleID uuid.UUID, typ orgunit.Type) ([]orgunit.OrgUnit, error) {
	memberships, err := s.repo.ListMembershipsByRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	units := make([]orgunit.OrgUnit, 0, len(memberships))
	for _, m := range memberships {
		if m.Negative {
			continue
		}
		unit, err := s.orgRepo.GetByID(ctx, m.OrgUnitID)
		if errors.Is(err, orgunit.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if unit.Type() != typ {
			continue
		}
		units = append(units, unit)
	}

	sort.Slice(units, func(i, j int) bool {
		if units[i].DisplayOrder() != units[j].DisplayOrder() {
			return units[i].DisplayOrder() < units[j].DisplayOrder()
		}
		if units[i].Name() != units[j].Name() {
			return units[i].Name() < units[j].Name()
		}
		return units[i].ID().String() < units[j].ID().String()
	})
	return units, nil
}

// ListRolesByOrgUnit returns roles holding a positive row directly on the
// given org unit.
func (s *RoleService) ListRolesByOrgUnit(ctx context.Context, orgUnitID uuid.UUID) ([]role.Role, error) {
	return s.repo.ListRolesWithPositiveMembership(ctx, []uuid.UUID{orgUnitID})
}

// ListRelatedRoles returns roles reachable from any org unit in the
// principal's ancestor closure.
func (s *RoleService) ListRelatedRoles(ctx context.Context, personID uuid.UUID) ([]role.Role, error) {
	ids, err := s.hierarchy.EffectiveOrgIDs(ctx, personID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []role.Role{}, nil
	}
	return s.repo.ListRolesWithPositiveMembership(ctx, setToSlice(ids))
}

// AddOrgUnits attaches org units to a role, positively or as exclusions.
func (s *RoleService) AddOrgUnits(ctx context.Context, roleID uuid.UUID, orgUnitIDs []uuid.UUID, negative bool) error {
	if _, err := s.repo.GetByID(ctx, roleID); err != nil {
		return err
	}

	var added []role.Membership
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		for _, orgUnitID := range orgUnitIDs {
			unit, err := s.orgRepo.GetByID(txCtx, orgUnitID)
			if err != nil {
				return err
			}
			m := role.Membership{
				RoleID:    roleID,
				OrgUnitID: unit.ID(),
				OrgType:   unit.Type(),
				Negative:  negative,
			}
			if err := s.repo.AddMembership(txCtx, m); err != nil {
				return err
			}
			added = append(added, m)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, m := range added {
		s.publisher.Publish(role.NewMembershipAddedEvent(m))
	}
	return nil
}

// RemoveOrgUnits detaches org units from a role.
func (s *RoleService) RemoveOrgUnits(ctx context.Context, roleID uuid.UUID, orgUnitIDs []uuid.UUID) error {
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		for _, orgUnitID := range orgUnitIDs {
			if err := s.repo.RemoveMembership(txCtx, roleID, orgUnitID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, orgUnitID := range orgUnitIDs {
		s.publisher.Publish(role.NewMembershipRemovedEvent(role.Membership{RoleID: roleID, OrgUnitID: orgUnitID}))
	}
	return nil
}

func setToSlice(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
