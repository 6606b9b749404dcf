package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"staffdesk/internal/apperr"
)

const msgInvalidCredentials = "invalid credentials"

type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByID(ctx context.Context, userID string) (User, error)
	UpdateLastLogin(ctx context.Context, userID string) error
	UpdateMFASecret(ctx context.Context, userID string, secret []byte) error
	SetMFAEnabled(ctx context.Context, userID string, enabled bool) error
}

// TokenStore tracks revoked session ids.
type TokenStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) bool
}

type SecretSealer interface {
	SealString(value string) ([]byte, error)
	OpenString(value []byte) (string, error)
}

type Options struct {
	Secret     string
	SessionTTL time.Duration
	MFAIssuer  string
}

type Service struct {
	store  UserStore
	tokens TokenStore
	sealer SecretSealer
	opts   Options
	now    func() time.Time
}

func NewService(store UserStore, tokens TokenStore, sealer SecretSealer, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 8 * time.Hour
	}
	if opts.MFAIssuer == "" {
		opts.MFAIssuer = "staffdesk"
	}
	return &Service{store: store, tokens: tokens, sealer: sealer, opts: opts, now: time.Now}
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Principal Principal `json:"user"`
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// equalizeTiming runs a bcrypt comparison for unknown emails so response time
// does not reveal whether an account exists.
func equalizeTiming(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = HashPassword("staffdesk-timing-equalizer")
	})
	_ = CheckPassword(dummyHash, password)
}

func (s *Service) Authenticate(ctx context.Context, email, password, mfaCode string) (Principal, error) {
	email = strings.TrimSpace(email)
	v := apperr.NewValidator()
	v.Required("email", email)
	v.Required("password", password)
	if err := v.Err(); err != nil {
		return Principal{}, err
	}

	user, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		equalizeTiming(password)
		return Principal{}, apperr.Unauthenticated(msgInvalidCredentials)
	}
	if err != nil {
		return Principal{}, fmt.Errorf("find user: %w", err)
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return Principal{}, apperr.Unauthenticated(msgInvalidCredentials)
	}

	if user.MFAEnabled {
		code := strings.TrimSpace(mfaCode)
		if code == "" {
			return Principal{}, apperr.Unauthenticated("mfa code required")
		}
		ok, err := s.validateCode(user, code)
		if err != nil {
			return Principal{}, err
		}
		if !ok {
			return Principal{}, apperr.Unauthenticated(msgInvalidCredentials)
		}
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		return Principal{}, fmt.Errorf("update last login: %w", err)
	}
	return principalFromUser(user), nil
}

func (s *Service) IssueToken(p Principal) (Session, error) {
	token, err := GenerateToken(s.opts.Secret, Claims{
		UserID:     p.UserID,
		Email:      p.Email,
		Name:       p.Name,
		Role:       p.Role,
		EmployeeID: p.EmployeeID,
	}, s.opts.SessionTTL)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, ExpiresAt: s.now().Add(s.opts.SessionTTL), Principal: p}, nil
}

// Resolve turns a bearer token into a Principal without touching the
// credentials table.
func (s *Service) Resolve(ctx context.Context, token string) (Principal, error) {
	claims, err := ParseToken(s.opts.Secret, token)
	if err != nil {
		return Principal{}, apperr.Unauthenticated("invalid or expired session")
	}
	if s.tokens != nil && s.tokens.IsRevoked(ctx, claims.ID) {
		return Principal{}, apperr.Unauthenticated("session has been revoked")
	}
	return principalFromClaims(claims), nil
}

func (s *Service) Logout(ctx context.Context, p Principal) error {
	if s.tokens == nil || p.SessionID == "" {
		return nil
	}
	ttl := p.SessionExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.tokens.Revoke(ctx, p.SessionID, ttl)
}

type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// SetupMFA issues a fresh secret. Once MFA is on, the secret can only be
// replaced after DisableMFA, which checks a current code.
func (s *Service) SetupMFA(ctx context.Context, p Principal) (MFASetup, error) {
	user, err := s.loadUser(ctx, p.UserID)
	if err != nil {
		return MFASetup{}, err
	}
	if user.MFAEnabled {
		return MFASetup{}, apperr.Conflict("mfa is already enabled")
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: s.opts.MFAIssuer, AccountName: user.Email})
	if err != nil {
		return MFASetup{}, fmt.Errorf("generate totp: %w", err)
	}
	sealed, err := s.sealer.SealString(key.Secret())
	if err != nil {
		return MFASetup{}, fmt.Errorf("seal totp secret: %w", err)
	}
	if err := s.store.UpdateMFASecret(ctx, user.ID, sealed); err != nil {
		return MFASetup{}, fmt.Errorf("store totp secret: %w", err)
	}
	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

func (s *Service) EnableMFA(ctx context.Context, p Principal, code string) error {
	user, err := s.loadUser(ctx, p.UserID)
	if err != nil {
		return err
	}
	if len(user.MFASecret) == 0 {
		return apperr.Conflict("mfa setup has not been started")
	}
	if err := s.requireCode(user, code); err != nil {
		return err
	}
	return s.store.SetMFAEnabled(ctx, user.ID, true)
}

func (s *Service) DisableMFA(ctx context.Context, p Principal, code string) error {
	user, err := s.loadUser(ctx, p.UserID)
	if err != nil {
		return err
	}
	if !user.MFAEnabled {
		return apperr.Conflict("mfa is not enabled")
	}
	if err := s.requireCode(user, code); err != nil {
		return err
	}
	return s.store.UpdateMFASecret(ctx, user.ID, nil)
}

func (s *Service) loadUser(ctx context.Context, userID string) (User, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, apperr.Unauthenticated("account no longer exists")
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *Service) requireCode(user User, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return apperr.Invalid("mfa code is required", apperr.FieldIssue{Field: "code", Reason: "is required"})
	}
	ok, err := s.validateCode(user, code)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Invalid("invalid mfa code", apperr.FieldIssue{Field: "code", Reason: "does not match"})
	}
	return nil
}

func (s *Service) validateCode(user User, code string) (bool, error) {
	secret, err := s.sealer.OpenString(user.MFASecret)
	if err != nil {
		return false, fmt.Errorf("open totp secret: %w", err)
	}
	return totp.Validate(code, secret), nil
}

func principalFromUser(u User) Principal {
	return Principal{
		UserID:     u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Role:       u.Role,
		EmployeeID: u.EmployeeID,
	}
}
