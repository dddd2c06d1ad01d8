package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/orgstack-io/orgstack/pkg/composables"
	"github.com/orgstack-io/orgstack/pkg/tenantdb"
)

// WithTenantStore resolves the calling tenant from the request header and
// stamps the request context with the tenant id and the data store the
// connector picked for it. A missing or empty header still goes through,
// the connector falls back to the default store for it. A malformed header
// is a client error.
func WithTenantStore(connector *tenantdb.Connector, header string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if raw := r.Header.Get(header); raw != "" {
				tenantID, err := uuid.Parse(raw)
				if err != nil {
					http.Error(w, "invalid tenant id", http.StatusBadRequest)
					return
				}
				ctx = composables.WithTenantID(ctx, tenantID)
			}

			ctx = composables.WithPool(ctx, connector.DetermineTarget(ctx))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
