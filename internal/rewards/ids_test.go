package rewards

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateReferralCode(t *testing.T) {
	pattern := regexp.MustCompile(`^PP[A-Z0-9]{6}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code := GenerateReferralCode()
		assert.Len(t, code, ReferralCodeLength)
		assert.Regexp(t, pattern, code)
		seen[code] = struct{}{}
	}
	// 36^6 combinations, a handful of collisions would already be suspicious
	assert.Greater(t, len(seen), 195)
}

func TestNewUserID(t *testing.T) {
	a, b := NewUserID(), NewUserID()
	assert.True(t, strings.HasPrefix(a, "user_"))
	assert.NotEqual(t, a, b)
}

func TestNewMpesaCode(t *testing.T) {
	code := NewMpesaCode()
	assert.Len(t, code, 11)
	assert.True(t, strings.HasPrefix(code, "MP"))
}
