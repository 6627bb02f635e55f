package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/vendkiosk/kiosk-backend/pkg/enums"
)

// AdminTokenPayload captures the data available when minting an admin JWT.
type AdminTokenPayload struct {
	Operator string
	Role     enums.AdminRole
	JTI      string
}

// AdminClaims represents the typed JWT carried by admin requests.
type AdminClaims struct {
	Operator string          `json:"operator"`
	Role     enums.AdminRole `json:"role"`
	jwt.RegisteredClaims
}
