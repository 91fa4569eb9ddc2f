package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const recoveryCodeDigits = 6

// RecoveryCode is a short-lived numeric code that authorizes a password
// reset for one account.
type RecoveryCode struct {
	AccountID uuid.UUID
	Code      string
	ExpiresAt time.Time
}

// NewRecoveryCode draws a fresh 6-digit code from r (crypto/rand when nil)
func NewRecoveryCode(r io.Reader, accountID uuid.UUID, ttl time.Duration, now time.Time) (*RecoveryCode, error) {
	if r == nil {
		r = rand.Reader
	}
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(r, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate recovery code: %w", err)
	}
	return &RecoveryCode{
		AccountID: accountID,
		Code:      fmt.Sprintf("%0*d", recoveryCodeDigits, n.Int64()),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// IsExpired reports whether the code can no longer be used
func (c *RecoveryCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Matches compares the code in constant time and checks expiry
func (c *RecoveryCode) Matches(code string, now time.Time) bool {
	if c.IsExpired(now) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) == 1
}
