package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vendkiosk/kiosk-backend/pkg/config"
)

var (
	ErrSecretMissing   = errors.New("jwt secret is required")
	ErrOperatorMissing = errors.New("operator is required")
)

// Admin tokens are HS256 only; any other alg in the header is rejected.
var signingMethod = jwt.SigningMethodHS256

func checkConfig(cfg config.JWTConfig) error {
	switch {
	case cfg.Secret == "":
		return ErrSecretMissing
	case cfg.Issuer == "":
		return errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return fmt.Errorf("jwt expiration must be positive, got %d minutes", cfg.ExpirationMinutes)
	}
	return nil
}

// MintAdminToken signs an operator token valid for the configured lifetime
// starting at now. An empty JTI gets a random one.
func MintAdminToken(cfg config.JWTConfig, now time.Time, payload AdminTokenPayload) (string, error) {
	if err := checkConfig(cfg); err != nil {
		return "", err
	}
	operator := strings.TrimSpace(payload.Operator)
	if operator == "" {
		return "", ErrOperatorMissing
	}
	if !payload.Role.IsValid() {
		return "", fmt.Errorf("invalid admin role %q", payload.Role)
	}
	id := strings.TrimSpace(payload.JTI)
	if id == "" {
		id = uuid.NewString()
	}

	lifetime := time.Duration(cfg.ExpirationMinutes) * time.Minute
	token := jwt.NewWithClaims(signingMethod, AdminClaims{
		Operator: operator,
		Role:     payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    cfg.Issuer,
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	})
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// ParseAdminToken verifies signature, issuer and expiry and returns the
// claims. Tokens without exp are refused.
func ParseAdminToken(cfg config.JWTConfig, raw string) (*AdminClaims, error) {
	if cfg.Secret == "" {
		return nil, ErrSecretMissing
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	claims := new(AdminClaims)
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("invalid admin role %q", claims.Role)
	}
	return claims, nil
}
