package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/agrilink/agrilink-api/internal/model"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateContact is returned when a registration collides with an
// existing mobile number or recovery email.
var ErrDuplicateContact = errors.New("contact already registered")

// UserRepo encapsulates all database queries on the users table.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userCols = "id, name, mobile_number, otp_secret, role, is_verified, recovery_email, telegram_chat_id, is_telegram_linked, created_at"

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.MobileNumber, &u.OTPSecret, &role,
		&u.IsVerified, &u.RecoveryEmail, &u.TelegramChatID, &u.IsTelegramLinked, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// Create inserts a new user. The caller provides the ID and OTP secret.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `INSERT INTO users
	           (id, name, mobile_number, otp_secret, role, is_verified, recovery_email, telegram_chat_id, is_telegram_linked)
	           VALUES (?,?,?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q, u.ID, u.Name, u.MobileNumber, u.OTPSecret,
		string(u.Role), u.IsVerified, u.RecoveryEmail, u.TelegramChatID, u.IsTelegramLinked)
	if err != nil && strings.Contains(err.Error(), "1062") {
		return ErrDuplicateContact
	}
	return err
}

// GetByID fetches a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByMobile fetches a user by mobile number.
func (r *UserRepo) GetByMobile(ctx context.Context, mobile string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE mobile_number=? LIMIT 1", mobile))
}

// GetByRecoveryEmail fetches a user by normalized recovery email.
func (r *UserRepo) GetByRecoveryEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE recovery_email=? LIMIT 1", email))
}

// ContactExists reports whether a mobile number, or optionally a recovery
// email, is already bound to an identity. The email clause participates only
// when includeEmail is set; deployments differ on whether recovery emails
// must be unique.
func (r *UserRepo) ContactExists(ctx context.Context, mobile, email string, includeEmail bool) (bool, error) {
	q := "SELECT COUNT(*) FROM users WHERE mobile_number=?"
	args := []any{mobile}
	if includeEmail && email != "" {
		q = "SELECT COUNT(*) FROM users WHERE mobile_number=? OR recovery_email=?"
		args = append(args, strings.ToLower(strings.TrimSpace(email)))
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetTelegram stores the linked chat id and flips the linked flag. Passing
// an empty chatID unlinks the channel.
func (r *UserRepo) SetTelegram(ctx context.Context, id, chatID string) error {
	var chat *string
	linked := false
	if chatID != "" {
		chat = &chatID
		linked = true
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET telegram_chat_id=?, is_telegram_linked=? WHERE id=?",
		chat, linked, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetVerified flips the registration verification flag to true.
func (r *UserRepo) SetVerified(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_verified=1 WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}
