package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/workqueue/internal/platform/logger"
)

// TokenService issues and validates signed tokens that carry a Subject.
type TokenService interface {
	// GenerateToken creates a signed token for the subject.
	GenerateToken(ctx context.Context, subject Subject) (string, error)

	// ValidateToken validates a token and returns the subject it was issued for.
	ValidateToken(ctx context.Context, tokenString string) (Subject, error)
}

// subjectClaims defines the structure of the token claims
type subjectClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// hmacTokenService implements TokenService using HMAC-SHA256 signing.
type hmacTokenService struct {
	signingKey    []byte
	tokenLifetime time.Duration
	timeFunc      func() time.Time
	clockSkew     time.Duration
}

var _ TokenService = (*hmacTokenService)(nil)

// NewTokenService creates a TokenService signing with the given secret.
func NewTokenService(secret string, lifetime time.Duration) (TokenService, error) {
	return newTokenService(secret, lifetime, time.Now)
}

func newTokenService(secret string, lifetime time.Duration, timeFunc func() time.Time) (*hmacTokenService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 characters")
	}
	return &hmacTokenService{
		signingKey:    []byte(secret),
		tokenLifetime: lifetime,
		timeFunc:      timeFunc,
		clockSkew:     2 * time.Minute,
	}, nil
}

// GenerateToken implements TokenService.
func (s *hmacTokenService) GenerateToken(ctx context.Context, subject Subject) (string, error) {
	if subject.Name == "" {
		return "", ErrEmptySubject
	}

	log := logger.FromContext(ctx)
	now := s.timeFunc()

	claims := subjectClaims{
		Roles: subject.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.Name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenLifetime)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		log.Error("failed to sign token",
			"error", err,
			"subject", subject.Name)
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ValidateToken implements TokenService.
func (s *hmacTokenService) ValidateToken(ctx context.Context, tokenString string) (Subject, error) {
	log := logger.FromContext(ctx)
	now := s.timeFunc()

	token, err := jwt.ParseWithClaims(
		tokenString,
		&subjectClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			log.Debug("token validation failed: token expired", "error", err)
			return Subject{}, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			log.Debug("token validation failed: token not yet valid", "error", err)
			return Subject{}, ErrTokenNotYetValid
		default:
			log.Debug("token validation failed",
				"error", err,
				"error_type", fmt.Sprintf("%T", err))
			return Subject{}, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*subjectClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		log.Debug("token validation failed: invalid claims")
		return Subject{}, ErrInvalidToken
	}

	return NewSubject(claims.Subject, claims.Roles...), nil
}
