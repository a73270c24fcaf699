package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
)

// MinTokenSecretLen is the minimum length of the HS256 token secret.
const MinTokenSecretLen = 32

const (
	tokenIssuer = "cmdpool"
	clockSkew   = time.Minute
)

type subjectCtxKey struct{}

// NewToken signs an API access token for the subject. A zero ttl never expires.
func NewToken(secret []byte, subject string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) < MinTokenSecretLen {
		return "", fmt.Errorf("token secret must be at least %d bytes: %w", MinTokenSecretLen, model.ErrNotValid)
	}
	if subject == "" {
		return "", fmt.Errorf("subject is required: %w", model.ErrNotValid)
	}

	claims := jwt.RegisteredClaims{
		ID:       uuid.NewString(),
		Issuer:   tokenIssuer,
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("could not sign token: %w", err)
	}

	return signed, nil
}

// SubjectFromContext returns the subject of the authenticated request, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectCtxKey{}).(string)
	return s, ok
}

// authenticate only lets through requests with a valid `Authorization: Bearer <token>`.
func (h handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			respondError(w, http.StatusUnauthorized, "bearer token required")
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims,
			func(*jwt.Token) (any, error) { return h.tokenSecret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithLeeway(clockSkew),
			jwt.WithTimeFunc(h.now),
		)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			respondError(w, http.StatusUnauthorized, "token expired")
			return
		case err != nil:
			h.logger.Debugf("Invalid token: %s", err)
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		h.logger.WithValues(log.Kv{"subject": claims.Subject, "token-id": claims.ID}).Debugf("Request authenticated")
		ctx := context.WithValue(r.Context(), subjectCtxKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
