package api

import "context"

type ctxKey int

const (
	ctxTenantKey ctxKey = iota
	ctxRolesKey
)

// withTenantContext attaches the request-resolved tenant id to ctx.
func withTenantContext(ctx context.Context, tenant string) context.Context {
	if tenant == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxTenantKey, tenant)
}

// tenantFromCtx extracts the tenant id set by withTenantContext.
func tenantFromCtx(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	tenant, _ := ctx.Value(ctxTenantKey).(string)
	return tenant
}

// withRolesContext attaches the caller's resolved roles to ctx.
func withRolesContext(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, ctxRolesKey, roles)
}

// rolesFromCtx extracts the roles set by withRolesContext.
func rolesFromCtx(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	roles, _ := ctx.Value(ctxRolesKey).([]string)
	return roles
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

func isAdminOrOperator(roles []string) bool {
	return hasRole(roles, "admin") || hasRole(roles, "operator")
}
