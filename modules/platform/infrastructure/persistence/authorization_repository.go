package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/authorization"
	"github.com/orgstack-io/orgstack/pkg/composables"
)

const grantColumns = `id, tenant_id, principal_id, principal_type, principal_name, resource_id, authority, created_at, updated_at`

type AuthorizationRepository struct{}

func NewAuthorizationRepository() *AuthorizationRepository {
	return &AuthorizationRepository{}
}

func (r *AuthorizationRepository) GetByID(ctx context.Context, id uuid.UUID) (authorization.Grant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return authorization.Grant{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return authorization.Grant{}, err
	}

	row := tx.QueryRow(ctx, `
SELECT `+grantColumns+`
FROM authorization_grants
WHERE tenant_id = $1 AND id = $2
`, tenantID, id)
	grant, err := scanGrant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return authorization.Grant{}, authorization.ErrNotFound
	}
	return grant, err
}

func (r *AuthorizationRepository) FindByKey(ctx context.Context, principalID, resourceID uuid.UUID, authority authorization.Authority) (authorization.Grant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return authorization.Grant{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return authorization.Grant{}, err
	}

	row := tx.QueryRow(ctx, `
SELECT `+grantColumns+`
FROM authorization_grants
WHERE tenant_id = $1 AND principal_id = $2 AND resource_id = $3 AND authority = $4
`, tenantID, principalID, resourceID, string(authority))
	grant, err := scanGrant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return authorization.Grant{}, authorization.ErrNotFound
	}
	return grant, err
}

func (r *AuthorizationRepository) Create(ctx context.Context, g authorization.Grant) (authorization.Grant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return authorization.Grant{}, err
	}

	_, err = tx.Exec(ctx, `
INSERT INTO authorization_grants (`+grantColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`,
		g.ID(), g.TenantID(), g.PrincipalID(), string(g.PrincipalType()), g.PrincipalName(),
		g.ResourceID(), string(g.Authority()), g.CreatedAt(), g.UpdatedAt(),
	)
	if err != nil {
		return authorization.Grant{}, err
	}
	return g, nil
}

func (r *AuthorizationRepository) Update(ctx context.Context, g authorization.Grant) (authorization.Grant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return authorization.Grant{}, err
	}

	_, err = tx.Exec(ctx, `
UPDATE authorization_grants
SET principal_name = $2, updated_at = $3
WHERE tenant_id = $4 AND id = $1
`, g.ID(), g.PrincipalName(), g.UpdatedAt(), g.TenantID())
	if err != nil {
		return authorization.Grant{}, err
	}
	return g, nil
}

func (r *AuthorizationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
DELETE FROM authorization_grants
WHERE tenant_id = $1 AND id = $2
`, tenantID, id)
	return err
}

func (r *AuthorizationRepository) ListByPrincipalID(ctx context.Context, principalID uuid.UUID) ([]authorization.Grant, error) {
	return r.listGrants(ctx, `
SELECT `+grantColumns+`
FROM authorization_grants
WHERE tenant_id = $1 AND principal_id = $2
ORDER BY created_at ASC
`, principalID)
}

func (r *AuthorizationRepository) ListByResourceID(ctx context.Context, resourceID uuid.UUID) ([]authorization.Grant, error) {
	return r.listGrants(ctx, `
SELECT `+grantColumns+`
FROM authorization_grants
WHERE tenant_id = $1 AND resource_id = $2
ORDER BY created_at ASC
`, resourceID)
}

func (r *AuthorizationRepository) ExistsForPrincipals(ctx context.Context, resourceID uuid.UUID, authority authorization.Authority, principalIDs []uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	err = tx.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM authorization_grants
	WHERE tenant_id = $1
	  AND resource_id = $2
	  AND authority = $3
	  AND principal_id = ANY($4)
)
`, tenantID, resourceID, string(authority), principalIDs).Scan(&exists)
	return exists, err
}

func (r *AuthorizationRepository) listGrants(ctx context.Context, query string, arg uuid.UUID) ([]authorization.Grant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, tenantID, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]authorization.Grant, 0, 8)
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, grant)
	}
	return out, rows.Err()
}

func scanGrant(row pgx.Row) (authorization.Grant, error) {
	var (
		id            uuid.UUID
		tenantID      uuid.UUID
		principalID   uuid.UUID
		principalType string
		principalName string
		resourceID    uuid.UUID
		authority     string
		createdAt     pgtype.Timestamptz
		updatedAt     pgtype.Timestamptz
	)
	if err := row.Scan(&id, &tenantID, &principalID, &principalType, &principalName, &resourceID, &authority, &createdAt, &updatedAt); err != nil {
		return authorization.Grant{}, err
	}
	return authorization.Hydrate(
		id,
		tenantID,
		principalID,
		authorization.PrincipalType(principalType),
		principalName,
		resourceID,
		authorization.Authority(authority),
		createdAt.Time,
		updatedAt.Time,
	), nil
}
