// Package auth signs shoppers and staff in and keeps each request's identity.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"storefront-backend/internal/kv"
	"storefront-backend/internal/models"
)

const (
	MinPasswordLen = 6
	MaxAttempts    = 5
	AttemptWindow  = 15 * time.Minute
)

var validate = validator.New()

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

type RegisterInput struct {
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Role      models.Role `json:"role"`
	AccessKey string      `json:"accessKey"`
}

type Options struct {
	Secret             []byte
	TokenTTL           time.Duration
	AdminAccessKey     string
	ModeratorAccessKey string
	Verifier           IDTokenVerifier
}

type Service struct {
	users      UserRepository
	slots      kv.Store
	secret     []byte
	ttl        time.Duration
	accessKeys map[models.Role]string
	verifier   IDTokenVerifier
	now        func() time.Time
}

func NewService(users UserRepository, slots kv.Store, opts Options) *Service {
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		users:  users,
		slots:  slots,
		secret: opts.Secret,
		ttl:    ttl,
		accessKeys: map[models.Role]string{
			models.RoleAdmin:     opts.AdminAccessKey,
			models.RoleModerator: opts.ModeratorAccessKey,
		},
		verifier: opts.Verifier,
		now:      time.Now,
	}
}

func (s *Service) TokenTTL() time.Duration { return s.ttl }

// ElevationEnabled reports whether an access key is configured for role.
func (s *Service) ElevationEnabled(role models.Role) bool {
	return s.accessKeys[role] != ""
}

// Register creates a profile and signs the new user in. Admin and moderator
// accounts need the access key configured on the server for that role.
func (s *Service) Register(ctx context.Context, sess *Session, in RegisterInput) (models.User, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.User{}, "", ErrMissingName
	}
	email := normalizeEmail(in.Email)
	if !validEmail(email) {
		return models.User{}, "", ErrInvalidEmail
	}
	if len(in.Password) < MinPasswordLen {
		return models.User{}, "", ErrWeakPassword
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return models.User{}, "", ErrInvalidRole
	}
	if role.Privileged() && !s.accessKeyMatches(role, in.AccessKey) {
		slog.Warn("Rejected elevated registration", "role", role, "email", email)
		return models.User{}, "", ErrInvalidAccessKey
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	u, err := s.users.Create(ctx, models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Badge:        models.DefaultBadge,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return models.User{}, "", err
	}
	return s.start(ctx, sess, u)
}

func (s *Service) SignIn(ctx context.Context, sess *Session, email, password string) (models.User, string, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return models.User{}, "", ErrInvalidEmail
	}
	if s.locked(ctx, email) {
		return models.User{}, "", ErrTooManyRequests
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		s.recordFailure(ctx, email)
		return models.User{}, "", ErrUserNotFound
	}
	if err != nil {
		return models.User{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.recordFailure(ctx, email)
		return models.User{}, "", ErrWrongPassword
	}
	if !u.IsActive {
		return models.User{}, "", ErrUserDisabled
	}
	_ = s.slots.Delete(ctx, attemptsKey(email))
	return s.start(ctx, sess, u)
}

// SignInWithIDToken trusts a verified third-party ID token and signs its
// owner in, creating a user profile on first sight.
func (s *Service) SignInWithIDToken(ctx context.Context, sess *Session, idToken string) (models.User, string, error) {
	if s.verifier == nil {
		return models.User{}, "", ErrProviderDisabled
	}
	id, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		slog.Warn("ID token verification failed", "error", err)
		return models.User{}, "", ErrInvalidToken
	}
	email := normalizeEmail(id.Email)
	if !validEmail(email) {
		return models.User{}, "", ErrInvalidEmail
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		name := strings.TrimSpace(id.Name)
		if name == "" {
			name = email
		}
		now := s.now().UTC()
		u, err = s.users.Create(ctx, models.User{
			Name:      name,
			Email:     email,
			Role:      models.RoleUser,
			Badge:     models.DefaultBadge,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err != nil {
		return models.User{}, "", err
	}
	if !u.IsActive {
		return models.User{}, "", ErrUserDisabled
	}
	return s.start(ctx, sess, u)
}

// SignOut revokes token until it would have expired and clears the session.
func (s *Service) SignOut(ctx context.Context, sess *Session, token string) error {
	defer sess.set(ctx, nil)
	if token == "" {
		return nil
	}
	claims, err := s.parseToken(token)
	if err != nil {
		return nil
	}
	ttl := time.Until(expiry(claims))
	if ttl <= 0 {
		return nil
	}
	if err := s.slots.Set(ctx, revokedKey(claims.Id), []byte("1"), ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Resume restores the identity carried by token. An empty token settles the
// session as signed out without error.
func (s *Service) Resume(ctx context.Context, sess *Session, token string) (*models.User, error) {
	if token == "" {
		sess.set(ctx, nil)
		return nil, nil
	}
	claims, err := s.parseToken(token)
	if err == nil && s.revoked(ctx, claims.Id) {
		err = ErrInvalidToken
	}
	if err != nil {
		sess.set(ctx, nil)
		return nil, err
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		sess.set(ctx, nil)
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !u.IsActive {
		sess.set(ctx, nil)
		return nil, ErrUserDisabled
	}
	sess.set(ctx, &u)
	return &u, nil
}

func (s *Service) Profile(ctx context.Context, id string) (models.User, error) {
	return s.users.GetByID(ctx, id)
}

// CreateStaff creates an account with any role without an access key. It is
// reserved for operator tooling.
func (s *Service) CreateStaff(ctx context.Context, name, email, password string, role models.Role) (models.User, error) {
	if !role.Valid() {
		return models.User{}, ErrInvalidRole
	}
	email = normalizeEmail(email)
	if !validEmail(email) {
		return models.User{}, ErrInvalidEmail
	}
	if len(password) < MinPasswordLen {
		return models.User{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	return s.users.Create(ctx, models.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Badge:        models.DefaultBadge,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (s *Service) start(ctx context.Context, sess *Session, u models.User) (models.User, string, error) {
	token, err := s.issueToken(u)
	if err != nil {
		return models.User{}, "", err
	}
	sess.set(ctx, &u)
	return u, token, nil
}

func (s *Service) accessKeyMatches(role models.Role, supplied string) bool {
	expected := s.accessKeys[role]
	if expected == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}

type attempts struct {
	Count int       `json:"count"`
	First time.Time `json:"first"`
}

func (s *Service) loadAttempts(ctx context.Context, email string) attempts {
	raw, err := s.slots.Get(ctx, attemptsKey(email))
	if err != nil {
		return attempts{}
	}
	var a attempts
	if json.Unmarshal(raw, &a) != nil || s.now().Sub(a.First) >= AttemptWindow {
		return attempts{}
	}
	return a
}

func (s *Service) locked(ctx context.Context, email string) bool {
	return s.loadAttempts(ctx, email).Count >= MaxAttempts
}

func (s *Service) recordFailure(ctx context.Context, email string) {
	a := s.loadAttempts(ctx, email)
	if a.Count == 0 {
		a.First = s.now()
	}
	a.Count++
	raw, _ := json.Marshal(a)
	ttl := AttemptWindow - s.now().Sub(a.First)
	if ttl <= 0 {
		ttl = AttemptWindow
	}
	if err := s.slots.Set(ctx, attemptsKey(email), raw, ttl); err != nil {
		slog.Warn("Failed to record sign-in attempt", "email", email, "error", err)
	}
}

func (s *Service) revoked(ctx context.Context, tokenID string) bool {
	_, err := s.slots.Get(ctx, revokedKey(tokenID))
	return err == nil
}

func attemptsKey(email string) string { return "auth_attempts_" + email }

func revokedKey(tokenID string) string { return "auth_revoked_" + tokenID }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
