package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daap14/loyalty/internal/api/middleware"
	"github.com/daap14/loyalty/internal/auth"
)

func TestRequireSuperuser(t *testing.T) {
	svc, repo := setupAuthService(t)
	suKey, _ := createUserWithKey(t, svc, repo, "admin", "", true)
	managerKey, _ := createUserWithKey(t, svc, repo, "boss", auth.RoleManager, false)

	tests := []struct {
		name       string
		key        string
		wantStatus int
	}{
		{name: "superuser allowed", key: suKey, wantStatus: http.StatusOK},
		{name: "manager rejected", key: managerKey, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.Auth(svc)(middleware.RequireSuperuser()(okHandler()))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-API-Key", tt.key)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRequireSuperuser_NoIdentity(t *testing.T) {
	handler := middleware.RequireSuperuser()(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	svc, repo := setupAuthService(t)
	suKey, _ := createUserWithKey(t, svc, repo, "admin", "", true)
	deskKey, _ := createUserWithKey(t, svc, repo, "desk", auth.RoleFrontDesk, false)
	managerKey, _ := createUserWithKey(t, svc, repo, "boss", auth.RoleManager, false)
	noRoleKey, _ := createUserWithKey(t, svc, repo, "nobody", "", false)

	tests := []struct {
		name       string
		roles      []string
		key        string
		wantStatus int
	}{
		{name: "front desk on staff route", roles: []string{auth.RoleFrontDesk, auth.RoleManager}, key: deskKey, wantStatus: http.StatusOK},
		{name: "manager on staff route", roles: []string{auth.RoleFrontDesk, auth.RoleManager}, key: managerKey, wantStatus: http.StatusOK},
		{name: "front desk on manager route", roles: []string{auth.RoleManager}, key: deskKey, wantStatus: http.StatusForbidden},
		{name: "superuser on manager route", roles: []string{auth.RoleManager}, key: suKey, wantStatus: http.StatusOK},
		{name: "user without role", roles: []string{auth.RoleFrontDesk}, key: noRoleKey, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.Auth(svc)(middleware.RequireRole(tt.roles...)(okHandler()))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-API-Key", tt.key)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusForbidden {
				env := parseErrorResponse(t, w)
				apiErr := env["error"].(map[string]interface{})
				assert.Equal(t, "FORBIDDEN", apiErr["code"])
				assert.Equal(t, "Insufficient permissions", apiErr["message"])
			}
		})
	}
}

func TestRequireRole_NoIdentity(t *testing.T) {
	handler := middleware.RequireRole(auth.RoleManager)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
