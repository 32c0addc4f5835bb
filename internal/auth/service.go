// Package auth is the identity provider of the feed: accounts, password
// checks and bearer tokens, plus the client-side Session facade built on
// top of it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"truuo/internal/cache"
	"truuo/internal/models"
	"truuo/internal/repository"
	"truuo/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	Issuer   = "truuo-api"
	Audience = "truuo-client"
	TokenTTL = 7 * 24 * time.Hour
)

// Claims are the JWT claims of a session token. Subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
}

// Service implements account registration, authentication and token
// handling.
type Service struct {
	users  repository.UserRepository
	redis  *redis.Client
	secret []byte
	cost   int
	now    func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithBcryptCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) { s.cost = cost }
}

// WithNow overrides the clock used for token timestamps.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a new auth service. redisClient may be nil, in which
// case revoked tokens are not remembered.
func NewService(users repository.UserRepository, redisClient *redis.Client, secret string, opts ...ServiceOption) *Service {
	s := &Service{
		users:  users,
		redis:  redisClient,
		secret: []byte(secret),
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account. The email is stored lower-cased and must
// not belong to another account.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	displayName = strings.TrimSpace(displayName)

	if email == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateDisplayName(displayName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil && !models.IsCode(err, "NOT_FOUND") {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		PrimaryEmail: email,
		Password:     string(hashed),
	}
	if displayName != "" {
		user.DisplayName = &displayName
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks an email and password pair. Unknown accounts and
// wrong passwords fail the same way.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if models.IsCode(err, "NOT_FOUND") {
			return nil, models.NewUnauthorizedError("Invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return user, nil
}

// IssueToken signs a session token for user.
func (s *Service) IssueToken(user *models.User) (string, *Claims, error) {
	if len(s.secret) == 0 {
		return "", nil, models.NewInternalError(errors.New("JWT secret not configured"))
	}
	if user == nil || user.ID == "" {
		return "", nil, models.NewValidationError("user is required")
	}

	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, models.NewInternalError(err)
	}
	return token, claims, nil
}

// ParseToken validates a session token and returns its claims. Revoked
// tokens are rejected while Redis remembers them.
func (s *Service) ParseToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	if claims.Subject == "" {
		return nil, models.NewUnauthorizedError("Invalid subject claim")
	}

	if claims.ID != "" && s.redis != nil {
		revoked, err := s.redis.Exists(ctx, cache.BlacklistKey(claims.ID)).Result()
		if err == nil && revoked > 0 {
			return nil, models.NewUnauthorizedError("Token has been revoked")
		}
	}
	return claims, nil
}

// Revoke blacklists the token identified by claims until it would have
// expired anyway.
func (s *Service) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" || s.redis == nil {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, cache.BlacklistKey(claims.ID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// UserByID loads the account a token refers to.
func (s *Service) UserByID(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// CountUsers returns the number of registered accounts.
func (s *Service) CountUsers(ctx context.Context) (int64, error) {
	return s.users.Count(ctx)
}
