package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/DhimiMohamed/taskmanager/internal/lang"
	"github.com/DhimiMohamed/taskmanager/store"
)

var (
	// ErrInvalidCredentials is returned by Authenticate for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotVerified is returned by Authenticate when verification is required and missing.
	ErrNotVerified = errors.New("email not verified")
	// ErrInvalidOTP covers unknown, mismatched and expired reset codes.
	ErrInvalidOTP = errors.New("invalid or expired code")
	// ErrUnsupportedLanguage is returned when settings name an unknown language.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// OTPTTL is how long a password-reset code stays valid.
const OTPTTL = 10 * time.Minute

const otpDigits = 6

// DefaultSettings returns the settings a user has before saving any.
func DefaultSettings(userID int64) *Settings {
	return &Settings{
		UserID:             userID,
		EmailNotifications: true,
		InAppNotifications: true,
		Language:           lang.Default,
	}
}

// Service implements the account flows on top of a Store.
type Service struct {
	Store           Store
	BcryptCost      int
	RequireVerified bool

	now func() time.Time
}

// NewService returns a Service using the given bcrypt cost (0 selects bcrypt.DefaultCost).
func NewService(s Store, bcryptCost int, requireVerified bool) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{Store: s, BcryptCost: bcryptCost, RequireVerified: requireVerified, now: time.Now}
}

// RegisterRequest is the input to Register.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Register creates an unverified user with a fresh verification token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("account: hash password: %w", err)
	}
	u := &User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		VerifyToken:  uuid.NewString(),
	}
	if err := s.Store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("account: register: %w", err)
	}
	return u, nil
}

// Verify marks the user holding token as verified and clears the token.
func (s *Service) Verify(ctx context.Context, token string) (*User, error) {
	u, err := s.Store.GetUserByVerifyToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("account: verify: %w", err)
	}
	u.IsVerified = true
	u.VerifyToken = ""
	if err := s.Store.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("account: verify: %w", err)
	}
	return u, nil
}

// Authenticate checks an email and password pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.Store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("account: authenticate: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if s.RequireVerified && !u.IsVerified {
		return nil, ErrNotVerified
	}
	return u, nil
}

// RequestReset issues a new reset code for email, replacing any earlier one.
// The returned user is nil when the email is unknown; callers should not
// reveal that to the requester.
func (s *Service) RequestReset(ctx context.Context, email string) (*User, *OTP, error) {
	u, err := s.Store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("account: request reset: %w", err)
	}
	code, err := newOTPCode()
	if err != nil {
		return nil, nil, fmt.Errorf("account: request reset: %w", err)
	}
	now := s.now().UTC()
	o := &OTP{UserID: u.ID, Code: code, CreatedAt: now, ExpiresAt: now.Add(OTPTTL)}
	if err := s.Store.ReplaceOTP(ctx, o); err != nil {
		return nil, nil, fmt.Errorf("account: request reset: %w", err)
	}
	return u, o, nil
}

// CheckOTP validates a reset code without consuming it.
func (s *Service) CheckOTP(ctx context.Context, email, code string) (*User, error) {
	u, err := s.Store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidOTP
	}
	o, err := s.Store.GetOTP(ctx, u.ID, strings.TrimSpace(code))
	if err != nil || o.Expired(s.now()) {
		return nil, ErrInvalidOTP
	}
	return u, nil
}

// ResetPassword sets a new password when code is valid and consumes the code.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	u, err := s.CheckOTP(ctx, email, code)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.BcryptCost)
	if err != nil {
		return fmt.Errorf("account: hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	if err := s.Store.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("account: reset password: %w", err)
	}
	return s.Store.DeleteOTPs(ctx, u.ID)
}

// UpdateSettings normalizes the language and saves st.
func (s *Service) UpdateSettings(ctx context.Context, st *Settings) error {
	tag, ok := lang.Normalize(st.Language)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, st.Language)
	}
	st.Language = tag
	return s.Store.SaveSettings(ctx, st)
}

func newOTPCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
