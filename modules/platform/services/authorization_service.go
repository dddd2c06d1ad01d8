package services

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/authorization"
	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/orgunit"
	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/role"
	"github.com/orgstack-io/orgstack/pkg/composables"
	"github.com/orgstack-io/orgstack/pkg/constants"
	"github.com/orgstack-io/orgstack/pkg/eventbus"
	"github.com/orgstack-io/orgstack/pkg/serrors"
)

var (
	ErrUnknownAuthority = serrors.NewError("AUTHORIZATION_UNKNOWN_AUTHORITY", "authority is not in the allowed set", "")
	ErrUnknownPrincipal = serrors.NewError("AUTHORIZATION_PRINCIPAL_NOT_FOUND", "principal does not resolve to an org unit or role", "")
	ErrUnknownResource  = serrors.NewError("AUTHORIZATION_RESOURCE_NOT_FOUND", "resource does not exist", "")
)

// AuthorizationService answers "does principal X have role N" and "does
// principal X hold authority A on resource R", and maintains grants.
// All reads treat absent ids as a definite negative answer, not an error.
type AuthorizationService struct {
	grants    authorization.Repository
	roles     role.Repository
	orgRepo   orgunit.Repository
	hierarchy *OrgHierarchyService
	publisher eventbus.EventBus
}

func NewAuthorizationService(
	grants authorization.Repository,
	roles role.Repository,
	orgRepo orgunit.Repository,
	hierarchy *OrgHierarchyService,
	publisher eventbus.EventBus,
) *AuthorizationService {
	return &AuthorizationService{
		grants:    grants,
		roles:     roles,
		orgRepo:   orgRepo,
		hierarchy: hierarchy,
		publisher: publisher,
	}
}

// HasRole reports whether the person holds the role addressed by the
// selector. The check walks the person's ancestor closure and looks for at
// least one positive membership row on it. Negative rows are ignored here:
// the only notion of "deny" on this path is "not included by any positive
// row", an ancestor grant is never revoked by a descendant-level exclusion.
func (s *AuthorizationService) HasRole(ctx context.Context, tenantID uuid.UUID, sel role.Selector, personID uuid.UUID) (bool, error) {
	candidates, err := s.roles.ListBySelector(ctx, sel, role.TypeRole)
	if err != nil {
		return false, err
	}
	if len(candidates) == 0 {
		return false, nil
	}
	return s.hasRoleOnAncestry(composables.WithTenantID(ctx, tenantID), candidates[0].ID(), personID)
}

// HasPublicRole is HasRole against the shared public role tree, addressed by
// role name under the well-known public root.
func (s *AuthorizationService) HasPublicRole(ctx context.Context, tenantID uuid.UUID, roleName string, personID uuid.UUID) (bool, error) {
	candidates, err := s.roles.ListByParentIDAndName(ctx, role.PublicRootID, roleName)
	if err != nil {
		return false, err
	}
	if len(candidates) == 0 {
		return false, nil
	}
	return s.hasRoleOnAncestry(composables.WithTenantID(ctx, tenantID), candidates[0].ID(), personID)
}

// HasRoleByOrgUnit reports whether an org unit (or anything it sits under)
// holds the role.
func (s *AuthorizationService) HasRoleByOrgUnit(ctx context.Context, tenantID uuid.UUID, roleID, orgUnitID uuid.UUID) (bool, error) {
	return s.hasRoleOnAncestry(composables.WithTenantID(ctx, tenantID), roleID, orgUnitID)
}

func (s *AuthorizationService) hasRoleOnAncestry(ctx context.Context, roleID, principalID uuid.UUID) (bool, error) {
	ids, err := s.hierarchy.EffectiveOrgIDs(ctx, principalID)
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return false, nil
	}
	count, err := s.roles.CountPositiveByRoleAndOrgUnitIDs(ctx, roleID, setToSlice(ids))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasPermission reports whether a grant for the resource and authority
// exists for the principal itself or for any role reachable from the
// principal's ancestor closure via positive membership rows.
func (s *AuthorizationService) HasPermission(ctx context.Context, principalID, resourceID uuid.UUID, authority authorization.Authority) (bool, error) {
	if !authority.Valid() {
		return false, ErrUnknownAuthority.WithDetail("%q", authority)
	}

	ids, err := s.hierarchy.EffectiveOrgIDs(ctx, principalID)
	if err != nil {
		return false, err
	}

	principals := []uuid.UUID{principalID}
	if len(ids) > 0 {
		reachable, err := s.roles.ListRolesWithPositiveMembership(ctx, setToSlice(ids))
		if err != nil {
			return false, err
		}
		for _, r := range reachable {
			principals = append(principals, r.ID())
		}
	}

	return s.grants.ExistsForPrincipals(ctx, resourceID, authority, principals)
}

// UpsertGrantDTO carries a grant write. Authority membership in the closed
// enumeration is checked on top of struct validation.
type UpsertGrantDTO struct {
	PrincipalID   uuid.UUID                   `validate:"required"`
	PrincipalType authorization.PrincipalType `validate:"required"`
	ResourceID    uuid.UUID                   `validate:"required"`
	Authority     authorization.Authority     `validate:"required"`
}

func (d *UpsertGrantDTO) Ok() (serrors.ValidationErrors, bool) {
	if err := constants.Validate.Struct(d); err != nil {
		var validatorErrs validator.ValidationErrors
		if errors.As(err, &validatorErrs) {
			return serrors.FromValidator(validatorErrs), false
		}
		return serrors.ValidationErrors{"": err.Error()}, false
	}
	if !d.Authority.Valid() {
		return serrors.ValidationErrors{"Authority": "unknown authority"}, false
	}
	if !d.PrincipalType.Valid() {
		return serrors.ValidationErrors{"PrincipalType": "unknown principal type"}, false
	}
	return nil, true
}

// UpsertGrant resolves the principal to its canonical org unit or role,
// then updates the grant with the same (principal, resource, authority) key
// in place, or inserts a new one. A created event is published on insert
// only, fire-and-forget.
func (s *AuthorizationService) UpsertGrant(ctx context.Context, dto UpsertGrantDTO) (authorization.Grant, error) {
	if fieldErrs, ok := dto.Ok(); !ok {
		return authorization.Grant{}, fieldErrs
	}

	principalName, principalType, err := s.resolvePrincipal(ctx, dto.PrincipalID, dto.PrincipalType)
	if err != nil {
		return authorization.Grant{}, err
	}

	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return authorization.Grant{}, err
	}

	var created bool
	saved, err := composables.InTxResult(ctx, func(txCtx context.Context) (authorization.Grant, error) {
		existing, err := s.grants.FindByKey(txCtx, dto.PrincipalID, dto.ResourceID, dto.Authority)
		if err == nil {
			return s.grants.Update(txCtx, existing.Refresh(principalName))
		}
		if !errors.Is(err, authorization.ErrNotFound) {
			return authorization.Grant{}, err
		}

		created = true
		grant := authorization.New(tenantID, dto.PrincipalID, principalType, principalName, dto.ResourceID, dto.Authority)
		return s.grants.Create(txCtx, grant)
	})
	if err != nil {
		return authorization.Grant{}, err
	}

	if created {
		s.publisher.Publish(authorization.NewCreatedEvent(saved))
	}
	return saved, nil
}

// resolvePrincipal canonicalizes the principal reference. Unknown ids are a
// validation failure on this write path, unlike the read paths.
func (s *AuthorizationService) resolvePrincipal(ctx context.Context, principalID uuid.UUID, principalType authorization.PrincipalType) (string, authorization.PrincipalType, error) {
	if principalType == authorization.PrincipalRole {
		r, err := s.roles.GetByID(ctx, principalID)
		if errors.Is(err, role.ErrNotFound) {
			return "", "", ErrUnknownPrincipal.WithDetail("role %s", principalID)
		}
		if err != nil {
			return "", "", err
		}
		return r.Name(), authorization.PrincipalRole, nil
	}

	unit, err := s.orgRepo.GetByID(ctx, principalID)
	if errors.Is(err, orgunit.ErrNotFound) {
		return "", "", ErrUnknownPrincipal.WithDetail("org unit %s", principalID)
	}
	if err != nil {
		return "", "", err
	}
	return unit.Name(), authorization.PrincipalTypeForOrgUnit(unit.Type()), nil
}

// DeleteGrant removes a grant and publishes a deleted event.
func (s *AuthorizationService) DeleteGrant(ctx context.Context, id uuid.UUID) error {
	grant, err := s.grants.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = composables.InTx(ctx, func(txCtx context.Context) error {
		return s.grants.Delete(txCtx, id)
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(authorization.NewDeletedEvent(grant))
	return nil
}

func (s *AuthorizationService) ListGrantsByPrincipal(ctx context.Context, principalID uuid.UUID) ([]authorization.Grant, error) {
	return s.grants.ListByPrincipalID(ctx, principalID)
}

func (s *AuthorizationService) ListGrantsByResource(ctx context.Context, resourceID uuid.UUID) ([]authorization.Grant, error) {
	return s.grants.ListByResourceID(ctx, resourceID)
}
