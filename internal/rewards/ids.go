package rewards

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	ReferralCodePrefix = "PP"
	ReferralCodeLength = 8

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateReferralCode returns "PP" followed by six random alphanumerics.
// Uniqueness is the caller's job: it must retry on collision.
func GenerateReferralCode() string {
	return ReferralCodePrefix + randomCode(ReferralCodeLength-len(ReferralCodePrefix))
}

// NewUserID returns an opaque, sortable user identifier.
func NewUserID() string {
	return NewID("user")
}

// NewID returns prefix_<ULID>.
func NewID(prefix string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	return prefix + "_" + id.String()
}

func NewWithdrawalID() string {
	return "withdraw_" + uuid.NewString()
}

func NewVerificationID() string {
	return "verify_" + uuid.NewString()
}

// NewMpesaCode mimics the shape of an M-Pesa confirmation code.
func NewMpesaCode() string {
	return "MP" + randomCode(9)
}

func randomCode(n int) string {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < n; i++ {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b.WriteByte(codeAlphabet[num.Int64()])
	}
	return b.String()
}
