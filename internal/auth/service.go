package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidKey is returned when the provided API key does not match any active user.
var ErrInvalidKey = errors.New("invalid or revoked API key")

const (
	// KeyScheme starts every issued API key so keys are recognisable in
	// config files and secret scanners.
	KeyScheme = "lylt_"
	// lookupLen is the number of leading key characters stored in clear for
	// candidate lookup.
	lookupLen = 8
	keyBytes  = 32
)

// Service issues and verifies staff API keys.
type Service struct {
	userRepo   UserRepository
	bcryptCost int
}

// NewService creates a Service. bcryptCost is clamped to the range bcrypt
// accepts.
func NewService(userRepo UserRepository, bcryptCost int) *Service {
	bcryptCost = max(bcrypt.MinCost, min(bcryptCost, bcrypt.MaxCost))
	return &Service{userRepo: userRepo, bcryptCost: bcryptCost}
}

// GenerateKey returns a new raw key, its lookup prefix and its bcrypt hash.
// Only the prefix and hash are ever stored.
func (s *Service) GenerateKey() (rawKey, prefix, hash string, err error) {
	b := make([]byte, keyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("generating random bytes: %w", err)
	}
	rawKey = KeyScheme + base64.RawURLEncoding.EncodeToString(b)

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(rawKey), s.bcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hashing key: %w", err)
	}
	return rawKey, rawKey[:lookupLen], string(hashBytes), nil
}

// Authenticate resolves a raw API key to an Identity by looking up users that
// share its prefix and comparing hashes.
func (s *Service) Authenticate(ctx context.Context, rawKey string) (*Identity, error) {
	if len(rawKey) < lookupLen || !strings.HasPrefix(rawKey, KeyScheme) {
		return nil, ErrInvalidKey
	}
	prefix := rawKey[:lookupLen]

	candidates, err := s.userRepo.FindByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("finding users by prefix: %w", err)
	}

	for _, u := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(u.ApiKeyHash), []byte(rawKey)) == nil {
			return buildIdentity(&u), nil
		}
	}

	return nil, ErrInvalidKey
}

// BootstrapSuperuser creates the superuser on first start and returns its raw
// API key, which is never stored. It returns "" once a superuser exists.
func (s *Service) BootstrapSuperuser(ctx context.Context) (string, error) {
	exists, err := s.userRepo.HasSuperuser(ctx)
	if err != nil {
		return "", fmt.Errorf("checking for superuser: %w", err)
	}
	if exists {
		return "", nil
	}

	rawKey, prefix, hash, err := s.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generating superuser key: %w", err)
	}

	user := &User{
		Name:         "superuser",
		Role:         nil,
		IsSuperuser:  true,
		ApiKeyPrefix: prefix,
		ApiKeyHash:   hash,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return "", fmt.Errorf("creating superuser: %w", err)
	}

	slog.Info("superuser API key created; it is shown only once", "key", rawKey)

	return rawKey, nil
}

// buildIdentity constructs an Identity from a User.
func buildIdentity(u *User) *Identity {
	return &Identity{
		UserID:      u.ID,
		UserName:    u.Name,
		Role:        u.Role,
		IsSuperuser: u.IsSuperuser,
	}
}
