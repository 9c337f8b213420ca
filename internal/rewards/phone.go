package rewards

import (
	"regexp"
	"strings"
)

var kenyanMobile = regexp.MustCompile(`^\+254[17]\d{8}$`)

// NormalizePhone rewrites 07.. and 254.. numbers to the +254 form.
func NormalizePhone(phone string) string {
	clean := strings.Join(strings.Fields(phone), "")
	switch {
	case strings.HasPrefix(clean, "+254"):
		return clean
	case strings.HasPrefix(clean, "254"):
		return "+" + clean
	case strings.HasPrefix(clean, "0"):
		return "+254" + clean[1:]
	}
	return clean
}

// ValidatePhone accepts Safaricom/Airtel style mobile numbers in +254 form.
func ValidatePhone(phone string) error {
	if !kenyanMobile.MatchString(phone) {
		return &ValidationError{Field: "phoneNumber", Message: "please enter a valid Kenyan phone number (e.g. 0712345678, +254712345678)"}
	}
	return nil
}
