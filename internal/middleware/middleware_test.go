package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"lab-backend/internal/auth"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type stubValidator struct {
	claims *auth.Claims
}

func (s stubValidator) ValidateToken(token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return s.claims, nil
}

func TestAuthenticate(t *testing.T) {
	branch := 2
	m := NewAuthMiddleware(stubValidator{claims: &auth.Claims{UserID: 5, TenantID: 9, BranchID: &branch, Role: "admin"}})

	var gotTenant, gotUser, gotBranch int
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant, _ = GetTenantIDFromContext(r.Context())
		gotUser, _ = GetUserIDFromContext(r.Context())
		gotBranch, _ = GetBranchIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cash-book", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, 9, gotTenant)
	assert.Equal(t, 5, gotUser)
	assert.Equal(t, 2, gotBranch)
}

func TestRequireRole(t *testing.T) {
	m := NewAuthMiddleware(stubValidator{claims: &auth.Claims{UserID: 5, TenantID: 9, Role: "receptionist"}})
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodPost, "/api/doctors/1/payouts", nil)
	req.Header.Set("Authorization", "Bearer good")

	rec := httptest.NewRecorder()
	m.RequireRole("admin", "accountant")(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	m.RequireRole("receptionist")(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogging_RequestID(t *testing.T) {
	var seen string
	h := RequestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invoices/1", nil))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/invoices/1", nil)
	req.Header.Set(RequestIDHeader, incoming)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, incoming, seen)
}

func TestPanicRecovery(t *testing.T) {
	h := PanicRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
