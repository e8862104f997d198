package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/daap14/loyalty/internal/api/middleware"
	"github.com/daap14/loyalty/internal/api/response"
	"github.com/daap14/loyalty/internal/api/validation"
	"github.com/daap14/loyalty/internal/auth"
)

type createUserRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type userResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Role         *string `json:"role,omitempty"`
	ApiKeyPrefix string  `json:"apiKeyPrefix"`
	IsSuperuser  bool    `json:"isSuperuser"`
	CreatedAt    string  `json:"createdAt"`
	RevokedAt    *string `json:"revokedAt,omitempty"`
}

// createdUserResponse is returned once, on creation; it is the only response
// that ever carries the raw API key.
type createdUserResponse struct {
	userResponse
	ApiKey string `json:"apiKey"`
}

func toUserResponse(u *auth.User) userResponse {
	resp := userResponse{
		ID:           u.ID.String(),
		Name:         u.Name,
		Role:         u.Role,
		ApiKeyPrefix: u.ApiKeyPrefix,
		IsSuperuser:  u.IsSuperuser,
		CreatedAt:    u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.RevokedAt != nil {
		revoked := u.RevokedAt.UTC().Format(time.RFC3339)
		resp.RevokedAt = &revoked
	}
	return resp
}

// UserHandler manages staff users and their API keys. Routes are restricted
// to the superuser by the router.
type UserHandler struct {
	authService *auth.Service
	userRepo    auth.UserRepository
}

func NewUserHandler(authService *auth.Service, userRepo auth.UserRepository) *UserHandler {
	return &UserHandler{authService: authService, userRepo: userRepo}
}

// Create handles POST /users: issues a staff user with a fresh API key.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req createUserRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if fieldErrors := validation.ValidateCreateUserRequest(validation.CreateUserRequest(req)); len(fieldErrors) > 0 {
		response.ValidationFailed(w, fieldErrors, requestID)
		return
	}

	rawKey, prefix, hash, err := h.authService.GenerateKey()
	if err != nil {
		h.internalError(w, "generating API key", err, requestID)
		return
	}

	role := req.Role
	u := &auth.User{
		Name:         strings.TrimSpace(req.Name),
		Role:         &role,
		ApiKeyPrefix: prefix,
		ApiKeyHash:   hash,
	}
	if err := h.userRepo.Create(r.Context(), u); err != nil {
		h.internalError(w, "creating user", err, requestID)
		return
	}

	slog.Info("staff user created", "userId", u.ID, "role", role)
	response.Success(w, http.StatusCreated, createdUserResponse{userResponse: toUserResponse(u), ApiKey: rawKey}, requestID)
}

// List handles GET /users, revoked users included.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	users, err := h.userRepo.List(r.Context())
	if err != nil {
		h.internalError(w, "listing users", err, requestID)
		return
	}

	items := make([]userResponse, len(users))
	for i := range users {
		items[i] = toUserResponse(&users[i])
	}
	response.SuccessList(w, items, len(items), requestID)
}

// Delete handles DELETE /users/{id}. Users are revoked, never removed, and
// revoking twice is not an error. The superuser cannot be revoked.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, ok := parseUUIDParam(w, r, "id", requestID)
	if !ok {
		return
	}

	u, err := h.userRepo.GetByID(r.Context(), id)
	if err == nil && u.IsSuperuser {
		response.Err(w, http.StatusForbidden, "FORBIDDEN", "Cannot revoke the superuser", requestID)
		return
	}
	if err == nil {
		err = h.userRepo.Revoke(r.Context(), id)
	}

	switch {
	case err == nil, errors.Is(err, auth.ErrUserRevoked):
		if err == nil {
			slog.Info("staff user revoked", "userId", id)
		}
		response.NoContent(w)
	case errors.Is(err, auth.ErrUserNotFound):
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
	default:
		h.internalError(w, "revoking user", err, requestID)
	}
}

func (h *UserHandler) internalError(w http.ResponseWriter, action string, err error, requestID string) {
	slog.Error("user handler failure", "action", action, "error", err, "requestId", requestID)
	response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed "+action, requestID)
}
