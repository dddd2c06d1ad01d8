package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/authorization"
	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/orgunit"
	"github.com/orgstack-io/orgstack/modules/platform/domain/aggregates/role"
	"github.com/orgstack-io/orgstack/modules/platform/services"
	"github.com/orgstack-io/orgstack/pkg/composables"
	"github.com/orgstack-io/orgstack/pkg/serrors"
)

// PlatformAPIController exposes the role resolution, access checks, and grant
// management endpoints.
type PlatformAPIController struct {
	basePath   string
	systemName string
	roleSvc    *services.RoleService
	authSvc    *services.AuthorizationService
}

func NewPlatformAPIController(
	systemName string,
	roleSvc *services.RoleService,
	authSvc *services.AuthorizationService,
) *PlatformAPIController {
	return &PlatformAPIController{
		basePath:   "/api/platform",
		systemName: systemName,
		roleSvc:    roleSvc,
		authSvc:    authSvc,
	}
}

func (c *PlatformAPIController) Key() string {
	return c.basePath
}

func (c *PlatformAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()

	router.HandleFunc("/roles/{id}/persons", c.listRolePersons).Methods(http.MethodGet)
	router.HandleFunc("/roles/{id}/org-units", c.listRoleOrgUnits).Methods(http.MethodGet)
	router.HandleFunc("/roles/{id}/org-units", c.addRoleOrgUnits).Methods(http.MethodPost)
	router.HandleFunc("/roles/{id}/org-units/{orgUnitId}", c.removeRoleOrgUnit).Methods(http.MethodDelete)
	router.HandleFunc("/org-units/{id}/roles", c.listOrgUnitRoles).Methods(http.MethodGet)
	router.HandleFunc("/org-units/{id}/has-role/{roleId}", c.hasRoleByOrgUnit).Methods(http.MethodGet)
	router.HandleFunc("/persons/{id}/roles", c.listPersonRoles).Methods(http.MethodGet)
	router.HandleFunc("/persons/{id}/has-role", c.hasRole).Methods(http.MethodGet)
	router.HandleFunc("/persons/{id}/has-public-role", c.hasPublicRole).Methods(http.MethodGet)
	router.HandleFunc("/permissions/check", c.checkPermission).Methods(http.MethodGet)
	router.HandleFunc("/grants", c.upsertGrant).Methods(http.MethodPost)
	router.HandleFunc("/grants", c.listGrants).Methods(http.MethodGet)
	router.HandleFunc("/grants/{id}", c.deleteGrant).Methods(http.MethodDelete)
}

type orgUnitResponse struct {
	ID           uuid.UUID `json:"id"`
	Type         string    `json:"type"`
	Name         string    `json:"name"`
	DisplayOrder int       `json:"displayOrder"`
}

type roleResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	CustomID   string    `json:"customId"`
	SystemName string    `json:"systemName"`
	Properties string    `json:"properties,omitempty"`
	Type       string    `json:"type"`
	TabIndex   int       `json:"tabIndex"`
}

type grantResponse struct {
	ID            uuid.UUID `json:"id"`
	PrincipalID   uuid.UUID `json:"principalId"`
	PrincipalType string    `json:"principalType"`
	PrincipalName string    `json:"principalName"`
	ResourceID    uuid.UUID `json:"resourceId"`
	Authority     string    `json:"authority"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type boolResponse struct {
	Result bool `json:"result"`
}

func toOrgUnitResponses(units []orgunit.OrgUnit) []orgUnitResponse {
	out := make([]orgUnitResponse, 0, len(units))
	for _, u := range units {
		out = append(out, orgUnitResponse{
			ID:           u.ID(),
			Type:         string(u.Type()),
			Name:         u.Name(),
			DisplayOrder: u.DisplayOrder(),
		})
	}
	return out
}

func toRoleResponses(roles []role.Role) []roleResponse {
	out := make([]roleResponse, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleResponse{
			ID:         r.ID(),
			Name:       r.Name(),
			CustomID:   r.CustomID(),
			SystemName: r.SystemName(),
			Properties: r.Properties(),
			Type:       string(r.Type()),
			TabIndex:   r.TabIndex(),
		})
	}
	return out
}

func toGrantResponse(g authorization.Grant) grantResponse {
	return grantResponse{
		ID:            g.ID(),
		PrincipalID:   g.PrincipalID(),
		PrincipalType: string(g.PrincipalType()),
		PrincipalName: g.PrincipalName(),
		ResourceID:    g.ResourceID(),
		Authority:     string(g.Authority()),
		CreatedAt:     g.CreatedAt(),
		UpdatedAt:     g.UpdatedAt(),
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	return id, err == nil
}

// writeServiceError maps domain errors onto HTTP statuses. Hierarchy shape
// violations are the caller's data problem, not a server fault.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErrs serrors.ValidationErrors
	if errors.As(err, &fieldErrs) {
		writeValidationError(w, fieldErrs)
		return
	}

	var base *serrors.Base
	switch {
	case errors.Is(err, role.ErrNotFound),
		errors.Is(err, orgunit.ErrNotFound),
		errors.Is(err, authorization.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrUnknownAuthority),
		errors.Is(err, services.ErrUnknownPrincipal):
		writeJSONError(w, http.StatusBadRequest, errCode(err), err.Error())
	case errors.Is(err, services.ErrHierarchyCycle),
		errors.Is(err, services.ErrHierarchyTooDeep):
		writeJSONError(w, http.StatusUnprocessableEntity, errCode(err), err.Error())
	case errors.Is(err, composables.ErrNoTenantID):
		writeJSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant id is required")
	case errors.As(err, &base):
		writeJSONError(w, http.StatusBadRequest, base.Code, base.Message)
	default:
		composables.UseLogger(r.Context()).WithError(err).Error("request failed")
		writeJSONError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error")
	}
}

func errCode(err error) string {
	var base *serrors.Base
	if errors.As(err, &base) {
		return base.Code
	}
	return "ERROR"
}

func (c *PlatformAPIController) listRolePersons(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathUUID(r, "id")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ID", "role id must be a uuid")
		return
	}
	persons, err := c.roleSvc.ResolvePersons(r.Context(), roleID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrgUnitResponses(persons))
}

func (c *PlatformAPIController) listRoleOrgUnits(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathUUID(r, "id")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ID", "role id must be a uuid")
		return
	}
	typ := orgunit.Type(r.URL.Query().Get("type"))
	if !typ.Valid() {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ORG_TYPE", "type must name an org unit type")
		return
	}
	units, err := c.roleSvc.ResolveOrgUnits(r.Context(), roleID, typ)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrgUnitResponses(units))
}

type addOrgUnitsRequest struct {
	OrgUnitIDs []uuid.UUID `json:"orgUnitIds"`
	Negative   bool        `json:"negative"`
}

func (c *PlatformAPIController) addRoleOrgUnits(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathUUID(r, "id")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ID", "role id must be a uuid")
		return
	}
	var req addOrgUnitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return
	}
	if len(req.OrgUnitIDs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "INVALID_BODY", "orgUnitIds must not be empty")
		return
	}
	if err := c.roleSvc.AddOrgUnits(r.Context(), roleID, req.OrgUnitIDs, req.Negative); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (c *PlatformAPIController) removeRoleOrgUnit(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathUUID(r, "id")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ID", "role id must be a uuid")
		return
	}
	orgUnitID, ok := pathUUID(r, "orgUnitId")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ID", "org unit id must be a uuid")
		return
	}
	if err := c.roleSvc.RemoveOrgUnits(r.Context(), roleID, []uuid.UUID{orgUnitID}); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (c *PlatformAPIController) listOrgUnitRoles(w http.ResponseWriter, r *http.Request) {
	orgUnitID, ok := pathUUID(r, "id")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ID", "org unit id must be a uuid")
		return
	}
	roles, err := c.roleSvc.ListRolesByOrgUnit(r.Context(), orgUnitID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponses(roles))
}

func (c *PlatformAPIController) listPersonRoles(w http.ResponseWriter, r *http.Request) {
	personID, ok := pathUUID(r, "id")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ID", "person id must be a uuid")
		return
	}
	roles, err := c.roleSvc.ListRelatedRoles(r.Context(), personID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleResponses(roles))
}

func (c *PlatformAPIController) hasRole(w http.ResponseWriter, r *http.Request) {
	personID, ok := pathUUID(r, "id")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ID", "person id must be a uuid")
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSONError(w, http.StatusBadRequest, "INVALID_QUERY", "name is required")
		return
	}
	tenantID, err := composables.UseTenantID(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	sel := role.Selector{
		Name:       name,
		SystemName: c.systemName,
		Properties: r.URL.Query().Get("properties"),
	}
	if sys := r.URL.Query().Get("systemName"); sys != "" {
		sel.SystemName = sys
	}

	held, err := c.authSvc.HasRole(r.Context(), tenantID, sel, personID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boolResponse{Result: held})
}

func (c *PlatformAPIController) hasPublicRole(w http.ResponseWriter, r *http.Request) {
	personID, ok := pathUUID(r, "id")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ID", "person id must be a uuid")
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSONError(w, http.StatusBadRequest, "INVALID_QUERY", "name is required")
		return
	}
	tenantID, err := composables.UseTenantID(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	held, err := c.authSvc.HasPublicRole(r.Context(), tenantID, name, personID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boolResponse{Result: held})
}

func (c *PlatformAPIController) hasRoleByOrgUnit(w http.ResponseWriter, r *http.Request) {
	orgUnitID, ok := pathUUID(r, "id")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ID", "org unit id must be a uuid")
		return
	}
	roleID, ok := pathUUID(r, "roleId")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ID", "role id must be a uuid")
		return
	}
	tenantID, err := composables.UseTenantID(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	held, err := c.authSvc.HasRoleByOrgUnit(r.Context(), tenantID, roleID, orgUnitID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boolResponse{Result: held})
}

func (c *PlatformAPIController) checkPermission(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	principalID, err := uuid.Parse(q.Get("principalId"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_QUERY", "principalId must be a uuid")
		return
	}
	resourceID, err := uuid.Parse(q.Get("resourceId"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_QUERY", "resourceId must be a uuid")
		return
	}

	held, err := c.authSvc.HasPermission(r.Context(), principalID, resourceID, authorization.Authority(q.Get("authority")))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boolResponse{Result: held})
}

type upsertGrantRequest struct {
	PrincipalID   uuid.UUID `json:"principalId"`
	PrincipalType string    `json:"principalType"`
	ResourceID    uuid.UUID `json:"resourceId"`
	Authority     string    `json:"authority"`
}

func (c *PlatformAPIController) upsertGrant(w http.ResponseWriter, r *http.Request) {
	var req upsertGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		return
	}

	saved, err := c.authSvc.UpsertGrant(r.Context(), services.UpsertGrantDTO{
		PrincipalID:   req.PrincipalID,
		PrincipalType: authorization.PrincipalType(req.PrincipalType),
		ResourceID:    req.ResourceID,
		Authority:     authorization.Authority(req.Authority),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGrantResponse(saved))
}

func (c *PlatformAPIController) listGrants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if raw := q.Get("principalId"); raw != "" {
		principalID, err := uuid.Parse(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "INVALID_QUERY", "principalId must be a uuid")
			return
		}
		grants, err := c.authSvc.ListGrantsByPrincipal(r.Context(), principalID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeGrantList(w, grants)
		return
	}

	raw := q.Get("resourceId")
	if raw == "" {
		writeJSONError(w, http.StatusBadRequest, "INVALID_QUERY", "principalId or resourceId is required")
		return
	}
	resourceID, err := uuid.Parse(raw)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_QUERY", "resourceId must be a uuid")
		return
	}
	grants, err := c.authSvc.ListGrantsByResource(r.Context(), resourceID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeGrantList(w, grants)
}

func writeGrantList(w http.ResponseWriter, grants []authorization.Grant) {
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, toGrantResponse(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *PlatformAPIController) deleteGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "INVALID_ID", "grant id must be a uuid")
		return
	}
	if err := c.authSvc.DeleteGrant(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
