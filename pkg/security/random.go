package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

const apiKeyBytes = 32

// GenerateAPIKey returns a URL-safe device bearer key.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateNumericCode returns a zero-padded random decimal string of the given length.
func GenerateNumericCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("digits must be within 1..18, got %d", digits)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate numeric code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
