package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"assistantmemory/internal/logging"
	"assistantmemory/internal/models"
	"assistantmemory/internal/storage"
	"assistantmemory/pkg/auth"
)

const (
	// APIKeyPrefix is the prefix for all API keys
	APIKeyPrefix = "amk_"
	// APIKeyLength is the length of the random part of the key (32 bytes = 64 hex chars)
	APIKeyLength = 32
)

// ErrInvalidCredentials is returned for unknown users, wrong passwords and
// bad tokens alike so callers cannot tell which part failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthResult is returned by register and login
type AuthResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	User      models.PublicUser `json:"user"`
}

// AuthService registers users and resolves bearer tokens and API keys to
// identities
type AuthService struct {
	users    storage.Collection[*models.User]
	jwt      *auth.LocalJWTAuth
	params   auth.PasswordParams
	keyCache *cache.Cache
	now      func() time.Time
}

// NewAuthService creates a new auth service. Resolved API keys are cached for
// cacheTTL.
func NewAuthService(store storage.Store, jwtAuth *auth.LocalJWTAuth, cacheTTL time.Duration) *AuthService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AuthService{
		users:    store.Users(),
		jwt:      jwtAuth,
		params:   auth.DefaultPasswordParams,
		keyCache: cache.New(cacheTTL, 2*cacheTTL),
		now:      time.Now,
	}
}

// GenerateAPIKey generates a new API key
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, APIKeyLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(bytes), nil
}

// Register creates a user and signs them in
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*AuthResult, error) {
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password, s.params)
	if err != nil {
		return nil, err
	}
	apiKey, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = models.RoleAssistant
	}

	user := &models.User{
		ID:       uuid.NewString(),
		Username: req.Username,
		Email:    req.Email,
		Password: hash,
		Role:     role,
		APIKey:   apiKey,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("username or email already exists: %w", err)
		}
		return nil, err
	}

	logging.WithComponent("auth").Info("user registered", "user_id", user.ID, "role", user.Role)
	return s.issue(user)
}

// Login verifies a username and password and records the login time
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*AuthResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.users.FindOne(ctx, "username", strings.ToLower(strings.TrimSpace(req.Username)))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := auth.VerifyPassword(user.Password, req.Password)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	updated, err := s.users.UpdateByID(ctx, "", user.ID, storage.Patch{"lastLogin": now})
	if err != nil {
		return nil, err
	}
	return s.issue(updated)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, expiresAt, err := s.jwt.GenerateToken(auth.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user.Public()}, nil
}

// AuthenticateToken resolves a bearer token
func (s *AuthService) AuthenticateToken(token string) (*auth.Identity, error) {
	id, err := s.jwt.VerifyToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return id, nil
}

// AuthenticateAPIKey resolves an API key to its owner
func (s *AuthService) AuthenticateAPIKey(ctx context.Context, key string) (*auth.Identity, error) {
	if key == "" {
		return nil, ErrInvalidCredentials
	}
	if cached, found := s.keyCache.Get(key); found {
		return cached.(*auth.Identity), nil
	}

	user, err := s.users.FindOne(ctx, "apiKey", key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	id := &auth.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
	s.keyCache.Set(key, id, cache.DefaultExpiration)
	return id, nil
}

// Profile returns the public view of a user
func (s *AuthService) Profile(ctx context.Context, userID string) (*models.PublicUser, error) {
	user, err := s.users.GetByID(ctx, "", userID)
	if err != nil {
		return nil, err
	}
	public := user.Public()
	return &public, nil
}
