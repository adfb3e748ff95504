package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// One-time codes are derived from a per-user secret and the wall clock,
// quantized into fixed-width buckets so a code stays stable for a short
// window. The derivation is HMAC-SHA256 keyed on the secret, so knowing one
// valid code reveals neither the secret nor future codes. Nothing here
// touches storage; the code is recomputed at verification time.

const otpDigits = 6

// ErrEmptyOTPSecret is returned when a caller passes an unprovisioned secret.
// Secrets are generated at user creation, so hitting this indicates a bug.
var ErrEmptyOTPSecret = errors.New("otp secret is empty")

// NewOTPSecret returns a fresh per-user OTP secret: 32 bytes of secure
// randomness, hex encoded.
func NewOTPSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// GenerateOTP derives the six-digit code for the current time bucket.
// Two calls within the same bucket return the same code.
func GenerateOTP(secret string, step time.Duration) (string, error) {
	return generateOTPAt(secret, time.Now(), step)
}

func generateOTPAt(secret string, t time.Time, step time.Duration) (string, error) {
	if secret == "" {
		return "", ErrEmptyOTPSecret
	}
	bucket := t.Unix() / int64(step.Seconds())
	return otpForBucket(secret, bucket), nil
}

// ValidateOTP reports whether code matches the current bucket, any past
// bucket within window, or the next bucket (delivery and entry latency push
// codes backward in time; one forward bucket absorbs minor clock skew).
// A non-matching code is not an error.
func ValidateOTP(code, secret string, step, window time.Duration) (bool, error) {
	return validateOTPAt(code, secret, time.Now(), step, window)
}

func validateOTPAt(code, secret string, t time.Time, step, window time.Duration) (bool, error) {
	if secret == "" {
		return false, ErrEmptyOTPSecret
	}
	if len(code) != otpDigits {
		return false, nil
	}
	if _, err := strconv.Atoi(code); err != nil {
		return false, nil
	}
	current := t.Unix() / int64(step.Seconds())
	back := int64(window / step)
	match := false
	for b := current - back; b <= current+1; b++ {
		if b < 0 {
			continue
		}
		expected := otpForBucket(secret, b)
		// Constant-time compare on every candidate; no early exit.
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			match = true
		}
	}
	return match, nil
}

func otpForBucket(secret string, bucket int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(bucket, 10)))
	sum := mac.Sum(nil)
	n := binary.BigEndian.Uint32(sum[:4]) % 1_000_000
	return fmt.Sprintf("%06d", n)
}
