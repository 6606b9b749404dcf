package fundproxy

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"staffdesk/internal/domain/auth"
)

const (
	AssertionAudience = "fund-service"
	AssertionIssuer   = "staffdesk"
	AssertionTTL      = 60 * time.Second
)

// AssertionClaims describe the caller to the fund service. They replace
// plain identity headers, which any client could forge.
type AssertionClaims struct {
	Role       auth.Role `json:"role"`
	EmployeeID string    `json:"eid"`
	jwt.RegisteredClaims
}

func SignAssertion(secret string, p auth.Principal, now time.Time) (string, error) {
	claims := AssertionClaims{
		Role:       p.Role,
		EmployeeID: p.EmployeeID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    AssertionIssuer,
			Subject:   p.UserID,
			Audience:  jwt.ClaimStrings{AssertionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AssertionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
