package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token verification failure kinds. Handlers map both onto a deliberately
// vague 401 so callers cannot distinguish a forged token from a stale one.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenClaims is the payload carried by both token kinds: the user id, the
// contact identifier the session was opened with, and the user's role.
type TokenClaims struct {
	UserID  string
	Contact string
	Role    string
}

// AccessToken couples a signed JWT with its expiry so handlers can report
// the expiry without re-parsing the token.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is a signed JWT like the access token, but with an
// independent secret and a multi-day lifetime. Only its SHA-256 hash is
// persisted server-side.
type RefreshToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken builds and signs an HS256 JWT with a short TTL in minutes.
// Claims: subject (sub), contact, role, expiration (exp) and issued at (iat).
func NewAccessToken(secret, userID, contact, role string, ttlMin int) (AccessToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	signed, err := signClaims(secret, userID, contact, role, exp)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken builds and signs an HS256 JWT whose lifetime comes from a
// duration expression such as "7d" (see RefreshExpiry).
func NewRefreshToken(secret, userID, contact, role, expiry string) (RefreshToken, error) {
	exp, err := RefreshExpiry(expiry)
	if err != nil {
		return RefreshToken{}, err
	}
	signed, err := signClaims(secret, userID, contact, role, exp)
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Token: signed, Exp: exp}, nil
}

func signClaims(secret, userID, contact, role string, exp time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":     userID,
		"contact": contact,
		"role":    role,
		"exp":     exp.Unix(),
		"iat":     time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// VerifyAccessToken parses and validates an access token, returning its
// claims. Expired tokens yield ErrTokenExpired; every other failure
// (signature, shape, algorithm) yields ErrTokenInvalid.
func VerifyAccessToken(secret, token string) (TokenClaims, error) {
	return verifyToken(secret, token)
}

// VerifyRefreshToken is VerifyAccessToken with the refresh signing secret.
func VerifyRefreshToken(secret, token string) (TokenClaims, error) {
	return verifyToken(secret, token)
}

func verifyToken(secret, token string) (TokenClaims, error) {
	tok, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, ErrTokenExpired
		}
		return TokenClaims{}, ErrTokenInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return TokenClaims{}, ErrTokenInvalid
	}
	out := TokenClaims{}
	if v, ok := claims["sub"].(string); ok {
		out.UserID = v
	}
	if v, ok := claims["contact"].(string); ok {
		out.Contact = v
	}
	if v, ok := claims["role"].(string); ok {
		out.Role = v
	}
	if out.UserID == "" {
		return TokenClaims{}, ErrTokenInvalid
	}
	return out, nil
}

var refreshExpiryRe = regexp.MustCompile(`^(\d+)([smhd])$`)

// RefreshExpiry parses a lifetime expression of the form <integer><unit>
// (unit s, m, h or d) into an absolute expiry instant. Malformed expressions
// are a configuration error.
func RefreshExpiry(expr string) (time.Time, error) {
	m := refreshExpiryRe.FindStringSubmatch(expr)
	if m == nil {
		return time.Time{}, fmt.Errorf("invalid refresh token lifetime %q", expr)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid refresh token lifetime %q", expr)
	}
	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return time.Now().UTC().Add(time.Duration(n) * unit), nil
}

// HashRefreshRaw returns the SHA-256 hash of a raw refresh token as a hex
// string. Storing only the hash prevents a database leak from yielding
// usable sessions.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
