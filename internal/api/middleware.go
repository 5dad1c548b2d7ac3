package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aetherlink/commandcenter/internal/ccerrors"
	"github.com/aetherlink/commandcenter/internal/eventstore"
)

// tenantAndRoles resolves X-Tenant-ID and X-User-Roles on every request
// and stores them in context. X-User-Roles accepts either a
// comma-separated list or a JSON array. Absent headers resolve the
// system tenant and no roles; downstream handlers decide what that
// implies.
func tenantAndRoles(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get("X-Tenant-ID")
		if tenant == "" {
			tenant = eventstore.SystemTenant
		}

		roles := parseRoles(r.Header.Get("X-User-Roles"))

		ctx := withTenantContext(r.Context(), tenant)
		ctx = withRolesContext(ctx, roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func parseRoles(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var roles []string
		if err := json.Unmarshal([]byte(raw), &roles); err == nil {
			return roles
		}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// requireRole rejects requests whose caller lacks any of the allowed
// roles with a 403 Forbidden.
func requireRole(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles := rolesFromCtx(r.Context())
			for _, want := range allowed {
				if hasRole(roles, want) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, ccerrors.NewForbidden("requires one of: "+strings.Join(allowed, ", ")))
		})
	}
}

// resolveTenant applies the uniform tenant-scoping rule: admins and
// operators may override the scope via an explicit query parameter;
// every other caller is forced to the tenant resolved from request
// context.
func resolveTenant(r *http.Request) string {
	roles := rolesFromCtx(r.Context())
	ctxTenant := tenantFromCtx(r.Context())

	if override := r.URL.Query().Get("tenant_id"); override != "" && isAdminOrOperator(roles) {
		return override
	}
	return ctxTenant
}
