package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/loyalty/internal/api/middleware"
	"github.com/daap14/loyalty/internal/auth"
)

const testBcryptCost = 4

func setupAuthService(t *testing.T) (*auth.Service, auth.UserRepository) {
	t.Helper()
	repo := auth.NewMemoryRepository()
	return auth.NewService(repo, testBcryptCost), repo
}

// createUserWithKey creates a user and returns its raw API key. An empty role
// with isSuperuser false creates a user without any role.
func createUserWithKey(t *testing.T, svc *auth.Service, repo auth.UserRepository, name, role string, isSuperuser bool) (string, *auth.User) {
	t.Helper()

	rawKey, prefix, hash, err := svc.GenerateKey()
	require.NoError(t, err)

	u := &auth.User{
		Name:         name,
		IsSuperuser:  isSuperuser,
		ApiKeyPrefix: prefix,
		ApiKeyHash:   hash,
	}
	if role != "" {
		u.Role = &role
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return rawKey, u
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func parseErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	require.NoError(t, err)
	return env
}

func TestAuth_MissingKey(t *testing.T) {
	svc, _ := setupAuthService(t)

	handler := middleware.Auth(svc)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := parseErrorResponse(t, w)
	apiErr := env["error"].(map[string]interface{})
	assert.Equal(t, "UNAUTHORIZED", apiErr["code"])
	assert.Equal(t, "API key is required", apiErr["message"])
}

func TestAuth_InvalidKey(t *testing.T) {
	svc, _ := setupAuthService(t)

	handler := middleware.Auth(svc)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "lylt_invalidkeyvalue12345678901234567890")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env := parseErrorResponse(t, w)
	apiErr := env["error"].(map[string]interface{})
	assert.Equal(t, "UNAUTHORIZED", apiErr["code"])
	assert.Equal(t, "Invalid or revoked API key", apiErr["message"])
}

func TestAuth_ValidKey_IdentityInContext(t *testing.T) {
	svc, repo := setupAuthService(t)
	rawKey, u := createUserWithKey(t, svc, repo, "desk-anna", auth.RoleFrontDesk, false)

	var capturedIdentity *auth.Identity
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedIdentity = middleware.GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := middleware.Auth(svc)(inner)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", rawKey)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, capturedIdentity)
	assert.Equal(t, u.ID, capturedIdentity.UserID)
	assert.Equal(t, "desk-anna", capturedIdentity.UserName)
	require.NotNil(t, capturedIdentity.Role)
	assert.Equal(t, auth.RoleFrontDesk, *capturedIdentity.Role)
	assert.False(t, capturedIdentity.IsSuperuser)
}

func TestAuth_RevokedKey(t *testing.T) {
	svc, repo := setupAuthService(t)
	rawKey, u := createUserWithKey(t, svc, repo, "gone", auth.RoleManager, false)
	require.NoError(t, repo.Revoke(context.Background(), u.ID))

	handler := middleware.Auth(svc)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", rawKey)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetIdentity_EmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	identity := middleware.GetIdentity(req.Context())
	assert.Nil(t, identity)
}

func TestAuth_BearerFallback(t *testing.T) {
	svc, repo := setupAuthService(t)
	rawKey, u := createUserWithKey(t, svc, repo, "mgr-lee", auth.RoleManager, false)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"bearer", "Bearer " + rawKey, http.StatusOK},
		{"lowercase scheme", "bearer " + rawKey, http.StatusOK},
		{"basic scheme ignored", "Basic " + rawKey, http.StatusUnauthorized},
		{"no scheme", rawKey, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured *auth.Identity
			h := middleware.Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = middleware.GetIdentity(r.Context())
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, captured)
				assert.Equal(t, u.ID, captured.UserID)
			}
		})
	}
}
