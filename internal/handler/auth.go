package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long issued bearer tokens stay valid.
const TokenTTL = 4 * time.Hour

// Role distinguishes candidate tokens from admin tokens.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleAdmin     Role = "admin"
)

// Claims extends the registered JWT claims with the token role and, for
// candidates, the session the token is bound to.
type Claims struct {
	jwt.RegisteredClaims
	Role      Role   `json:"role"`
	SessionID string `json:"sessionId,omitempty"`
}

// Auth signs and validates bearer tokens.
type Auth struct {
	secret []byte
}

// NewAuth creates an Auth with the given HMAC signing secret.
func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// IssueCandidateToken returns a token bound to one session. Holding it
// proves ownership of that attempt and nothing else.
func (a *Auth) IssueCandidateToken(sessionID string) (string, error) {
	return a.sign(Claims{
		RegisteredClaims: registered(sessionID),
		Role:             RoleCandidate,
		SessionID:        sessionID,
	})
}

// IssueAdminToken returns a token carrying the admin role.
func (a *Auth) IssueAdminToken(username string) (string, error) {
	return a.sign(Claims{
		RegisteredClaims: registered(username),
		Role:             RoleAdmin,
	})
}

func registered(subject string) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	}
}

func (a *Auth) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a bearer token.
func (a *Auth) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

type ctxKey int

const claimsKey ctxKey = 0

func claimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

// requireCandidate admits only tokens bound to a session and stows the
// claims in the request context.
func (h *Handler) requireCandidate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.auth.Validate(bearerToken(r))
		if err != nil || claims.Role != RoleCandidate || claims.SessionID == "" {
			writeError(w, http.StatusUnauthorized, "invalid or expired session credential")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// requireAdmin admits only tokens carrying the admin role.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.auth.Validate(bearerToken(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired credential")
			return
		}
		if claims.Role != RoleAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}
