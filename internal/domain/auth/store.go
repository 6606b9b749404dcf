package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"staffdesk/internal/platform/querier"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	PasswordHash string
	MFAEnabled   bool
	MFASecret    []byte
	EmployeeID   string
}

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const userColumns = `
    SELECT u.id, u.email, u.name, u.role, u.password_hash, u.mfa_enabled, u.mfa_secret, COALESCE(e.id::text, '')
    FROM users u
    LEFT JOIN employees e ON e.user_id = u.id
`

func (s *Store) FindUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.DB.QueryRow(ctx, userColumns+"WHERE u.email = $1", email))
}

func (s *Store) FindUserByID(ctx context.Context, userID string) (User, error) {
	return s.scanUser(s.DB.QueryRow(ctx, userColumns+"WHERE u.id = $1", userID))
}

func (s *Store) scanUser(row pgx.Row) (User, error) {
	var out User
	var role string
	err := row.Scan(&out.ID, &out.Email, &out.Name, &role, &out.PasswordHash, &out.MFAEnabled, &out.MFASecret, &out.EmployeeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	out.Role = Role(role)
	return out, nil
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}

// UpdateMFASecret stores a new (sealed) secret and disables MFA until the
// user confirms a code against it.
func (s *Store) UpdateMFASecret(ctx context.Context, userID string, secret []byte) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET mfa_secret = $1, mfa_enabled = false, updated_at = now() WHERE id = $2", secret, userID)
	return err
}

func (s *Store) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET mfa_enabled = $1, updated_at = now() WHERE id = $2", enabled, userID)
	return err
}
