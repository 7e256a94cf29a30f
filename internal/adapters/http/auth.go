package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viralforge/appointment-payments/internal/domain"
)

const adminRole = "payments-admin"

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminTokenVerifier checks HS256 operator tokens for the internal API.
type AdminTokenVerifier struct {
	secret []byte
	issuer string
}

func NewAdminTokenVerifier(secret, issuer string) (*AdminTokenVerifier, error) {
	if secret == "" {
		return nil, errors.New("admin jwt secret is required")
	}
	return &AdminTokenVerifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify returns the token subject.
func (v *AdminTokenVerifier) Verify(raw string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &adminClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return v.secret, nil }, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Role != adminRole {
		return "", fmt.Errorf("%w: role %q", domain.ErrUnauthorized, claims.Role)
	}
	return claims.Subject, nil
}

// IssueAdminToken signs an operator token; used by paymentctl and tests.
func IssueAdminToken(secret, issuer, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, adminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}
