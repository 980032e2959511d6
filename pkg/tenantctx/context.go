// Package tenantctx carries the (tenant, property, actor) triple every
// engine call must receive explicitly.
package tenantctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Scope identifies who is operating on which property of which tenant.
type Scope struct {
	TenantID   snowflake.ID
	PropertyID snowflake.ID
	Actor      string
}

// ScopeContextKey is the request context key for the active scope.
type ScopeContextKey struct{}

// WithScope stores the scope in the context.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, ScopeContextKey{}, scope)
}

// ScopeFromContext returns the scope from context, if set.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	if ctx == nil {
		return Scope{}, false
	}
	scope, ok := ctx.Value(ScopeContextKey{}).(Scope)
	if !ok {
		return Scope{}, false
	}
	return scope, true
}

// TenantID returns the tenant ID from context, if set.
func TenantID(ctx context.Context) (snowflake.ID, bool) {
	scope, ok := ScopeFromContext(ctx)
	if !ok || scope.TenantID == 0 {
		return 0, false
	}
	return scope.TenantID, true
}

// PropertyID returns the active property ID from context, if set.
func PropertyID(ctx context.Context) (snowflake.ID, bool) {
	scope, ok := ScopeFromContext(ctx)
	if !ok || scope.PropertyID == 0 {
		return 0, false
	}
	return scope.PropertyID, true
}

// Actor returns the acting user reference from context.
func Actor(ctx context.Context) string {
	scope, ok := ScopeFromContext(ctx)
	if !ok {
		return ""
	}
	return strings.TrimSpace(scope.Actor)
}
