package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/loyalty/internal/api/handler"
	"github.com/daap14/loyalty/internal/auth"
)

// --- Mock User Repository ---

type mockUserRepo struct {
	createFn       func(ctx context.Context, u *auth.User) error
	getByIDFn      func(ctx context.Context, id uuid.UUID) (*auth.User, error)
	findByPrefixFn func(ctx context.Context, prefix string) ([]auth.User, error)
	listFn         func(ctx context.Context) ([]auth.User, error)
	revokeFn       func(ctx context.Context, id uuid.UUID) error
	hasSuperuserFn func(ctx context.Context) (bool, error)
}

func (m *mockUserRepo) Create(ctx context.Context, u *auth.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now().UTC()
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, auth.ErrUserNotFound
}

func (m *mockUserRepo) FindByPrefix(ctx context.Context, prefix string) ([]auth.User, error) {
	if m.findByPrefixFn != nil {
		return m.findByPrefixFn(ctx, prefix)
	}
	return []auth.User{}, nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]auth.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []auth.User{}, nil
}

func (m *mockUserRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, id)
	}
	return nil
}

func (m *mockUserRepo) HasSuperuser(ctx context.Context) (bool, error) {
	if m.hasSuperuserFn != nil {
		return m.hasSuperuserFn(ctx)
	}
	return false, nil
}

// --- Helpers ---

func newUserHandler(userRepo auth.UserRepository) *handler.UserHandler {
	return handler.NewUserHandler(auth.NewService(userRepo, 4), userRepo)
}

func sampleUser(id uuid.UUID, role *string, isSuperuser bool) *auth.User {
	return &auth.User{
		ID:           id,
		Name:         "alice",
		Role:         role,
		IsSuperuser:  isSuperuser,
		ApiKeyPrefix: "lylt_abc",
		ApiKeyHash:   "$2a$12$fakehash",
		CreatedAt:    time.Now().UTC(),
	}
}

// ===== POST /users =====

func TestUserCreate_Success(t *testing.T) {
	t.Parallel()

	var stored *auth.User
	userRepo := &mockUserRepo{
		createFn: func(_ context.Context, u *auth.User) error {
			u.ID = uuid.New()
			u.CreatedAt = time.Now().UTC()
			stored = u
			return nil
		},
	}
	h := newUserHandler(userRepo)

	body := mustJSON(t, map[string]interface{}{"name": " alice ", "role": auth.RoleFrontDesk})
	req, w := makeChiRequest(http.MethodPost, "/users", body, nil)

	h.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	env := parseEnvelope(t, w)
	assert.Nil(t, env["error"])
	data := env["data"].(map[string]interface{})
	assert.Equal(t, "alice", data["name"])
	assert.Equal(t, auth.RoleFrontDesk, data["role"])
	assert.NotEmpty(t, data["id"])

	apiKey := data["apiKey"].(string)
	assert.Equal(t, "lylt_", apiKey[:5])

	require.NotNil(t, stored)
	require.NotNil(t, stored.Role)
	assert.Equal(t, auth.RoleFrontDesk, *stored.Role)
	assert.False(t, stored.IsSuperuser)
	assert.Equal(t, apiKey[:8], stored.ApiKeyPrefix)
}

func TestUserCreate_ValidationError(t *testing.T) {
	t.Parallel()

	h := newUserHandler(&mockUserRepo{})

	req, w := makeChiRequest(http.MethodPost, "/users", []byte(`{}`), nil)
	h.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := parseEnvelope(t, w)
	errObj := env["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
	assert.Len(t, errObj["details"].([]interface{}), 2) // name + role
}

func TestUserCreate_InvalidJSON(t *testing.T) {
	t.Parallel()

	h := newUserHandler(&mockUserRepo{})

	req, w := makeChiRequest(http.MethodPost, "/users", []byte(`not json`), nil)
	h.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_JSON", errorCode(t, w))
}

// ===== GET /users =====

func TestUserList(t *testing.T) {
	t.Parallel()

	manager := auth.RoleManager
	revokedAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	revoked := sampleUser(uuid.New(), &manager, false)
	revoked.RevokedAt = &revokedAt

	userRepo := &mockUserRepo{
		listFn: func(_ context.Context) ([]auth.User, error) {
			return []auth.User{*sampleUser(uuid.New(), nil, true), *revoked}, nil
		},
	}
	h := newUserHandler(userRepo)

	req, w := makeChiRequest(http.MethodGet, "/users", nil, nil)
	h.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	items := parseEnvelope(t, w)["data"].([]interface{})
	require.Len(t, items, 2)

	su := items[0].(map[string]interface{})
	assert.Equal(t, true, su["isSuperuser"])
	assert.Nil(t, su["role"])

	mgr := items[1].(map[string]interface{})
	assert.Equal(t, auth.RoleManager, mgr["role"])
	assert.Equal(t, "2026-02-01T12:00:00Z", mgr["revokedAt"])
}

// ===== DELETE /users/{id} =====

func TestUserDelete(t *testing.T) {
	t.Parallel()

	desk := auth.RoleFrontDesk
	tests := []struct {
		name       string
		id         string
		getByID    func(ctx context.Context, id uuid.UUID) (*auth.User, error)
		revoke     func(ctx context.Context, id uuid.UUID) error
		wantStatus int
	}{
		{
			name: "success",
			id:   uuid.NewString(),
			getByID: func(_ context.Context, id uuid.UUID) (*auth.User, error) {
				return sampleUser(id, &desk, false), nil
			},
			wantStatus: http.StatusNoContent,
		},
		{
			name: "already revoked",
			id:   uuid.NewString(),
			getByID: func(_ context.Context, id uuid.UUID) (*auth.User, error) {
				return sampleUser(id, &desk, false), nil
			},
			revoke:     func(_ context.Context, _ uuid.UUID) error { return auth.ErrUserRevoked },
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "not found",
			id:         uuid.NewString(),
			wantStatus: http.StatusNotFound,
		},
		{
			name: "superuser",
			id:   uuid.NewString(),
			getByID: func(_ context.Context, id uuid.UUID) (*auth.User, error) {
				return sampleUser(id, nil, true), nil
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "invalid id",
			id:         "not-a-uuid",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newUserHandler(&mockUserRepo{getByIDFn: tt.getByID, revokeFn: tt.revoke})

			req, w := makeChiRequest(http.MethodDelete, "/users/"+tt.id, nil, map[string]string{"id": tt.id})
			h.Delete(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
