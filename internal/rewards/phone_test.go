package rewards

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0712345678":       "+254712345678",
		"254712345678":     "+254712345678",
		"+254712345678":    "+254712345678",
		"+254 712 345 678": "+254712345678",
		"0112345678":       "+254112345678",
		"12345":            "12345",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestValidatePhone(t *testing.T) {
	assert.NoError(t, ValidatePhone("+254712345678"))
	assert.NoError(t, ValidatePhone("+254112345678"))
	assert.Error(t, ValidatePhone("+254212345678"))
	assert.Error(t, ValidatePhone("0712345678"))
	assert.Error(t, ValidatePhone("+2547123456789"))
}
