package model

import "time"

// Role enumerates the account types a user can register as. Role checks
// throughout the API compare against these constants rather than free-form
// strings.
type Role string

const (
	RoleFarmer           Role = "Farmer"
	RoleBuyer            Role = "Buyer"
	RoleCooperative      Role = "Cooperative"
	RoleLogisticsPartner Role = "Logistics Provider"
	RoleFinancialPartner Role = "Financial Partner"
	RoleAdmin            Role = "Admin"
)

// ParseRole maps a request-supplied role string onto the closed enum. The
// second return value reports whether the input named a known role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleFarmer, RoleBuyer, RoleCooperative, RoleLogisticsPartner, RoleFinancialPartner, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// User mirrors the `users` table. The OTPSecret is provisioned once at
// registration and is never returned in API responses; handlers build
// separate response types that omit it.
type User struct {
	ID               string    // UUID primary key
	Name             string
	MobileNumber     string    // verified contact channel, unique
	OTPSecret        string    // per-user key for OTP derivation (hex)
	Role             Role
	IsVerified       bool      // flips once when registration is verified
	RecoveryEmail    *string   // optional secondary channel
	TelegramChatID   *string   // set by the bot link step
	IsTelegramLinked bool
	CreatedAt        time.Time
}

// RefreshToken models an entry in the `refresh_tokens` table. The plain
// token is never stored; only its SHA-256 hash, which carries a uniqueness
// constraint.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string     // SHA-256 hex digest of the token value
	ExpiresAt time.Time
	RevokedAt *time.Time // null while the token is active
	CreatedAt time.Time
}
