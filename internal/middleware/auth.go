package middleware

import (
	"context"
	"net/http"
	"strings"

	"lab-backend/internal/auth"
	"lab-backend/pkg/utils"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	TenantIDKey contextKey = "tenant_id"
	BranchIDKey contextKey = "branch_id"
	RoleKey     contextKey = "role"
)

// TokenValidator checks a bearer token
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

func (m *AuthMiddleware) claims(r *http.Request) (*auth.Claims, int, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, http.StatusUnauthorized, "Authorization header required"
	}
	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, http.StatusUnauthorized, "Invalid authorization format"
	}
	claims, err := m.validator.ValidateToken(parts[1])
	if err != nil {
		return nil, http.StatusUnauthorized, "Invalid or expired token"
	}
	return claims, 0, ""
}

func withClaims(ctx context.Context, c *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, c.UserID)
	ctx = context.WithValue(ctx, TenantIDKey, c.TenantID)
	ctx = context.WithValue(ctx, RoleKey, c.Role)
	if c.BranchID != nil {
		ctx = context.WithValue(ctx, BranchIDKey, *c.BranchID)
	}
	return ctx
}

// Authenticate validates the bearer token and puts the user and tenant on the context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, status, msg := m.claims(r)
		if claims == nil {
			utils.RespondError(w, status, msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// RequireRole authenticates and then allows only the listed roles
func (m *AuthMiddleware) RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := GetRoleFromContext(r.Context())
			for _, allowed := range allowedRoles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.RespondError(w, http.StatusForbidden, "Forbidden: insufficient permissions")
		}))
	}
}

// GetUserIDFromContext extracts user ID from request context
func GetUserIDFromContext(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(UserIDKey).(int)
	return userID, ok
}

// GetTenantIDFromContext extracts the tenant every query is scoped to
func GetTenantIDFromContext(ctx context.Context) (int, bool) {
	tenantID, ok := ctx.Value(TenantIDKey).(int)
	return tenantID, ok && tenantID > 0
}

func GetBranchIDFromContext(ctx context.Context) (int, bool) {
	branchID, ok := ctx.Value(BranchIDKey).(int)
	return branchID, ok
}

// GetRoleFromContext extracts role from request context
func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}
