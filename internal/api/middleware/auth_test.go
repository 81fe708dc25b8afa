package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phrazzld/workqueue/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTokenService returns a fixed result from ValidateToken.
type stubTokenService struct {
	subject security.Subject
	err     error
	got     string
}

func (s *stubTokenService) GenerateToken(ctx context.Context, subject security.Subject) (string, error) {
	return "token-for-" + subject.Name, nil
}

func (s *stubTokenService) ValidateToken(ctx context.Context, token string) (security.Subject, error) {
	s.got = token
	return s.subject, s.err
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	t.Parallel()

	alice := security.NewSubject("alice", "indexer")

	tests := []struct {
		name            string
		authHeader      string
		validateErr     error
		expectedStatus  int
		expectedSubject security.Subject
	}{
		{
			name:            "valid token",
			authHeader:      "Bearer valid-token",
			expectedStatus:  http.StatusOK,
			expectedSubject: alice,
		},
		{
			name:           "missing auth header",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid auth format",
			authHeader:     "InvalidFormat",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong scheme",
			authHeader:     "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "expired token",
			authHeader:     "Bearer expired-token",
			validateErr:    security.ErrExpiredToken,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid token",
			authHeader:     "Bearer invalid-token",
			validateErr:    security.ErrInvalidToken,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unexpected validation failure",
			authHeader:     "Bearer some-token",
			validateErr:    errors.New("key store unavailable"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tokens := &stubTokenService{subject: alice, err: tc.validateErr}
			mw := NewAuthMiddleware(tokens)

			var seen security.Subject
			var called bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				seen, _ = security.SubjectFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			rr := httptest.NewRecorder()

			mw.Authenticate(next).ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			assert.Equal(t, tc.expectedStatus == http.StatusOK, called)
			if called {
				assert.Equal(t, tc.expectedSubject, seen)
			}
		})
	}
}

func TestAuthMiddleware_WithRealTokenService(t *testing.T) {
	tokens, err := security.NewTokenService("0123456789abcdef0123456789abcdef", time.Minute)
	require.NoError(t, err)

	bob := security.NewSubject("bob", security.RoleAdmin)
	token, err := tokens.GenerateToken(context.Background(), bob)
	require.NoError(t, err)

	var seen security.Subject
	handler := NewAuthMiddleware(tokens).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = security.CurrentSubject(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "bob", seen.Name)
	assert.True(t, seen.IsAdmin())
}
