package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// RoleAdmin is the role claim required for admin endpoints.
	RoleAdmin = "admin"
	// Issuer is stamped on every token this service issues.
	Issuer = "stayservice"
)

var (
	// ErrMissingToken is returned when no token was presented
	ErrMissingToken = errors.New("missing token")
	// ErrForbidden is returned for a valid token without the admin role
	ErrForbidden = errors.New("admin role required")
)

// AdminClaims are the claims carried by an admin token
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminValidator validates HS256 admin tokens
type AdminValidator struct {
	secret []byte
}

// NewAdminValidator creates a validator for tokens signed with secret
func NewAdminValidator(secret string) (*AdminValidator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("admin token secret is required")
	}
	return &AdminValidator{secret: []byte(secret)}, nil
}

// Validate checks signature, expiry, issuer and role and returns the subject
func (v *AdminValidator) Validate(ctx context.Context, token string) (subject string, err error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return "", ErrMissingToken
	}

	var claims AdminClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(time.Minute),
	)
	if err != nil {
		return "", fmt.Errorf("failed to parse admin token: %w", err)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("invalid token")
	}

	if claims.Role != RoleAdmin {
		return "", ErrForbidden
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("subject claim (sub) is empty")
	}
	return claims.Subject, nil
}

// IssueAdminToken signs an admin token for subject valid for ttl from now
func IssueAdminToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("admin token secret is required")
	}
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("subject is required")
	}

	claims := AdminClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// BearerToken returns the token of a "Bearer <token>" Authorization header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
