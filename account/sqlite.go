package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DhimiMohamed/taskmanager/store"
)

// SQLiteStore persists accounts in the shared SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database whose schema has been applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const userColumns = `id, email, password_hash, first_name, last_name, is_verified, verify_token, created_at`

// CreateUser inserts u and sets its ID. Email is stored lower-cased.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, is_verified, verify_token, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.IsVerified, u.VerifyToken, u.CreatedAt,
	)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.Email, store.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID, err = res.LastInsertId()
	return err
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by (case-insensitive) email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

// GetUserByVerifyToken retrieves the user holding an email verification token.
func (s *SQLiteStore) GetUserByVerifyToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE verify_token = ?`, token)
}

func (s *SQLiteStore) getUser(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.IsVerified, &u.VerifyToken, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UpdateUser saves the mutable user columns.
func (s *SQLiteStore) UpdateUser(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=?, first_name=?, last_name=?, is_verified=?, verify_token=?
		WHERE id=?`,
		u.PasswordHash, u.FirstName, u.LastName, u.IsVerified, u.VerifyToken, u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectOne(res, "user")
}

// GetProfile returns the user's profile, or an empty one if never saved.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	p := Profile{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT bio, skills, experience, location, date_of_birth FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.Bio, &p.Skills, &p.Experience, &p.Location, &p.DateOfBirth)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// SaveProfile upserts p.
func (s *SQLiteStore) SaveProfile(ctx context.Context, p *Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, bio, skills, experience, location, date_of_birth)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(user_id) DO UPDATE SET
			bio=excluded.bio, skills=excluded.skills, experience=excluded.experience,
			location=excluded.location, date_of_birth=excluded.date_of_birth`,
		p.UserID, p.Bio, p.Skills, p.Experience, p.Location, p.DateOfBirth,
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// GetSettings returns the user's settings, or the defaults if never saved.
func (s *SQLiteStore) GetSettings(ctx context.Context, userID int64) (*Settings, error) {
	st := DefaultSettings(userID)
	err := s.db.QueryRowContext(ctx, `
		SELECT email_notifications, in_app_notifications, dark_mode, language FROM user_settings WHERE user_id = ?`, userID,
	).Scan(&st.EmailNotifications, &st.InAppNotifications, &st.DarkMode, &st.Language)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return st, nil
}

// SaveSettings upserts st.
func (s *SQLiteStore) SaveSettings(ctx context.Context, st *Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, email_notifications, in_app_notifications, dark_mode, language)
		VALUES (?,?,?,?,?)
		ON CONFLICT(user_id) DO UPDATE SET
			email_notifications=excluded.email_notifications, in_app_notifications=excluded.in_app_notifications,
			dark_mode=excluded.dark_mode, language=excluded.language`,
		st.UserID, st.EmailNotifications, st.InAppNotifications, st.DarkMode, st.Language,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// ReplaceOTP removes any outstanding codes for the user and stores o.
func (s *SQLiteStore) ReplaceOTP(ctx context.Context, o *OTP) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM password_reset_otps WHERE user_id = ?`, o.UserID); err != nil {
		return fmt.Errorf("clear otps: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO password_reset_otps (user_id, code, created_at, expires_at) VALUES (?,?,?,?)`,
		o.UserID, o.Code, o.CreatedAt, o.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}
	if o.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	return tx.Commit()
}

// GetOTP looks up a code issued to userID.
func (s *SQLiteStore) GetOTP(ctx context.Context, userID int64, code string) (*OTP, error) {
	var o OTP
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, code, created_at, expires_at FROM password_reset_otps WHERE user_id = ? AND code = ?`,
		userID, code,
	).Scan(&o.ID, &o.UserID, &o.Code, &o.CreatedAt, &o.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("otp: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get otp: %w", err)
	}
	return &o, nil
}

// DeleteOTPs removes every code issued to userID.
func (s *SQLiteStore) DeleteOTPs(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM password_reset_otps WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete otps: %w", err)
	}
	return nil
}

// CreateNotification inserts n and sets its ID.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, message, is_read, created_at) VALUES (?,?,?,?)`,
		n.UserID, n.Message, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	n.ID, err = res.LastInsertId()
	return err
}

// ListNotifications returns the user's notifications, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]*Notification, error) {
	q := `SELECT id, user_id, message, is_read, created_at FROM notifications WHERE user_id = ?`
	if unreadOnly {
		q += ` AND is_read = 0`
	}
	q += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags one of the user's notifications as read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification: %w", err)
	}
	return expectOne(res, "notification")
}

// MarkAllNotificationsRead flags every unread notification and returns how many changed.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications: %w", err)
	}
	return res.RowsAffected()
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}
