package auth

import "time"

// Principal is the authenticated caller as seen by every downstream check.
type Principal struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	EmployeeID string `json:"employeeId,omitempty"`

	SessionID        string    `json:"-"`
	SessionExpiresAt time.Time `json:"-"`
}

func (p Principal) HasEmployee() bool {
	return p.EmployeeID != ""
}

func (p Principal) Can(perm Permission) bool {
	return Can(p.Role, perm)
}

func principalFromClaims(c *Claims) Principal {
	p := Principal{
		UserID:     c.UserID,
		Email:      c.Email,
		Name:       c.Name,
		Role:       c.Role,
		EmployeeID: c.EmployeeID,
		SessionID:  c.ID,
	}
	if c.ExpiresAt != nil {
		p.SessionExpiresAt = c.ExpiresAt.Time
	}
	return p
}
