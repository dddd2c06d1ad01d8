package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/orgunit"
	"github.com/orgstack-io/orgstack/pkg/serrors"
)

// maxHierarchyDepth bounds department tree walks against malformed data.
const maxHierarchyDepth = 64

var (
	ErrHierarchyTooDeep = serrors.NewError("HIERARCHY_DEPTH_EXCEEDED", "department hierarchy exceeds maximum depth", "")
	ErrHierarchyCycle   = serrors.NewError("HIERARCHY_CYCLE", "department hierarchy contains a cycle", "")
)

// OrgHierarchyService walks the organizational graph in both directions:
// ExpandToPersons goes down from an org unit to concrete persons,
// EffectiveOrgIDs goes up from a principal to everything it sits under.
// Both read the same repository, so "department D grants role R" and
// "person P under D has role R" stay consistent.
type OrgHierarchyService struct {
	repo orgunit.Repository
}

func NewOrgHierarchyService(repo orgunit.Repository) *OrgHierarchyService {
	return &OrgHierarchyService{repo: repo}
}

// ExpandToPersons resolves an org unit reference to the set of person ids it
// stands for. Unknown or deleted units contribute nothing and are not an
// error. The result has set semantics: no ordering guarantee.
func (s *OrgHierarchyService) ExpandToPersons(ctx context.Context, orgUnitID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	persons := map[uuid.UUID]struct{}{}

	unit, err := s.repo.GetByID(ctx, orgUnitID)
	if errors.Is(err, orgunit.ErrNotFound) {
		return persons, nil
	}
	if err != nil {
		return nil, err
	}

	switch unit.Type() {
	case orgunit.TypePerson:
		persons[unit.ID()] = struct{}{}
	case orgunit.TypeGroup:
		ids, err := s.repo.ListPersonIDsByGroup(ctx, unit.ID())
		if err != nil {
			return nil, err
		}
		addAll(persons, ids)
	case orgunit.TypePosition:
		ids, err := s.repo.ListPersonIDsByPosition(ctx, unit.ID())
		if err != nil {
			return nil, err
		}
		addAll(persons, ids)
	case orgunit.TypeDepartment, orgunit.TypeOrganization:
		if err := s.collectDepartmentPersons(ctx, unit.ID(), persons); err != nil {
			return nil, err
		}
	}
	return persons, nil
}

// collectDepartmentPersons unions the directly linked persons of the
// department and every descendant department. The walk is an explicit
// worklist with a visited arena and a depth counter so malformed (cyclic or
// pathologically deep) trees abort instead of looping.
func (s *OrgHierarchyService) collectDepartmentPersons(ctx context.Context, rootID uuid.UUID, persons map[uuid.UUID]struct{}) error {
	type frame struct {
		id    uuid.UUID
		depth int
	}

	visited := map[uuid.UUID]struct{}{}
	stack := []frame{{id: rootID, depth: 0}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := visited[f.id]; seen {
			return ErrHierarchyCycle.WithDetail("department %s reached twice", f.id)
		}
		visited[f.id] = struct{}{}

		if f.depth > maxHierarchyDepth {
			return ErrHierarchyTooDeep.WithDetail("department %s at depth %d", f.id, f.depth)
		}

		personIDs, err := s.repo.ListPersonIDsByDepartment(ctx, f.id)
		if err != nil {
			return err
		}
		addAll(persons, personIDs)

		childIDs, err := s.repo.ListChildDepartmentIDs(ctx, f.id)
		if err != nil {
			return err
		}
		for _, childID := range childIDs {
			stack = append(stack, frame{id: childID, depth: f.depth + 1})
		}
	}
	return nil
}

// EffectiveOrgIDs returns the principal's ancestor closure: the id itself,
// every position the person holds, every group it belongs to, and every
// department on the path from its home department up to the tenant root.
// Unknown ids yield an empty set.
func (s *OrgHierarchyService) EffectiveOrgIDs(ctx context.Context, id uuid.UUID) (map[uuid.UUID]struct{}, error) {
	ids := map[uuid.UUID]struct{}{}

	unit, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, orgunit.ErrNotFound) {
		return ids, nil
	}
	if err != nil {
		return nil, err
	}

	ids[unit.ID()] = struct{}{}

	if unit.Type() == orgunit.TypePerson {
		positionIDs, err := s.repo.ListPositionIDsByPerson(ctx, unit.ID())
		if err != nil {
			return nil, err
		}
		addAll(ids, positionIDs)

		groupIDs, err := s.repo.ListGroupIDsByPerson(ctx, unit.ID())
		if err != nil {
			return nil, err
		}
		addAll(ids, groupIDs)
	}

	if err := s.collectAncestors(ctx, unit, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// collectAncestors climbs the parent chain until the tenant root. A dangling
// parent reference simply terminates the climb.
func (s *OrgHierarchyService) collectAncestors(ctx context.Context, unit orgunit.OrgUnit, ids map[uuid.UUID]struct{}) error {
	visited := map[uuid.UUID]struct{}{unit.ID(): {}}

	parentID := unit.ParentID()
	for depth := 0; parentID != nil; depth++ {
		if depth > maxHierarchyDepth {
			return ErrHierarchyTooDeep.WithDetail("ancestor chain of %s at depth %d", unit.ID(), depth)
		}
		if _, seen := visited[*parentID]; seen {
			return ErrHierarchyCycle.WithDetail("ancestor %s reached twice", *parentID)
		}
		visited[*parentID] = struct{}{}

		parent, err := s.repo.GetByID(ctx, *parentID)
		if errors.Is(err, orgunit.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		ids[parent.ID()] = struct{}{}
		parentID = parent.ParentID()
	}
	return nil
}

func addAll(set map[uuid.UUID]struct{}, ids []uuid.UUID) {
	for _, id := range ids {
		set[id] = struct{}{}
	}
}
