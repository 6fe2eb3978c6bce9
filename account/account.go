// Package account defines users, their profile and settings, password-reset
// codes and in-app notifications.
package account

import (
	"context"
	"time"
)

// User is a registered account. Email is the login identifier.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsVerified   bool      `json:"is_verified"`
	VerifyToken  string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile holds free-form details about a user.
type Profile struct {
	UserID      int64  `json:"user_id"`
	Bio         string `json:"bio"`
	Skills      string `json:"skills"` // comma-separated
	Experience  string `json:"experience"`
	Location    string `json:"location"`
	DateOfBirth string `json:"date_of_birth,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Settings are per-user preferences.
type Settings struct {
	UserID             int64  `json:"user_id"`
	EmailNotifications bool   `json:"email_notifications"`
	InAppNotifications bool   `json:"in_app_notifications"`
	DarkMode           bool   `json:"dark_mode"`
	Language           string `json:"language"`
}

// OTP is a one-time password-reset code.
type OTP struct {
	ID        int64
	UserID    int64
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the code is no longer usable at now.
func (o *OTP) Expired(now time.Time) bool { return now.After(o.ExpiresAt) }

// Notification is an in-app message for a user.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists accounts.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByVerifyToken(ctx context.Context, token string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error

	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	SaveProfile(ctx context.Context, p *Profile) error
	GetSettings(ctx context.Context, userID int64) (*Settings, error)
	SaveSettings(ctx context.Context, s *Settings) error

	ReplaceOTP(ctx context.Context, o *OTP) error
	GetOTP(ctx context.Context, userID int64, code string) (*OTP, error)
	DeleteOTPs(ctx context.Context, userID int64) error

	CreateNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]*Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error)
}
