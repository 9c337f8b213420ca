package rewards

import (
	"errors"
	"fmt"

	"patapesa/internal/model"

	"github.com/shopspring/decimal"
)

const (
	ReferralBonus        int64 = 100 // credited to both sides of a referral
	MinimumWithdrawal    int64 = 100
	WithdrawalFee        int64 = 25
	ActivationThreshold  int64 = 800 // points at which withdrawals need an ACTIVE account
	MinimumActivationFee int64 = 20
)

var activationFeeRate = decimal.RequireFromString("0.2")

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError rejects malformed input before any state is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var (
	ErrInvalidAmount       = &ValidationError{Field: "amount", Message: "withdrawal amount must be positive"}
	ErrInvalidFee          = &ValidationError{Field: "fee", Message: "processing fee cannot be negative"}
	ErrBelowMinimum        = &ValidationError{Field: "amount", Message: fmt.Sprintf("minimum withdrawal amount is KES %d", MinimumWithdrawal)}
	ErrInsufficientBalance = errors.New("you cannot withdraw more than your current balance")
	ErrActivationRequired  = errors.New("you need to activate your account before making this withdrawal")
)

// CheckWithdrawal enforces every withdrawal precondition in one place so no
// call site can skip one. It does not mutate the user.
func CheckWithdrawal(u *model.User, amount, fee int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if fee < 0 {
		return ErrInvalidFee
	}
	if amount < MinimumWithdrawal {
		return ErrBelowMinimum
	}
	if amount+fee > u.Points {
		return ErrInsufficientBalance
	}
	if RequiresActivation(u) {
		return ErrActivationRequired
	}
	return nil
}

// RequiresActivation reports whether the balance crossed the activation
// threshold while the account is not ACTIVE yet.
func RequiresActivation(u *model.User) bool {
	return !u.IsActivated && u.Points >= ActivationThreshold
}

// CanActivate reports whether the activation flow should be offered.
func CanActivate(u *model.User) bool {
	return !u.IsActivated && u.Points >= ActivationThreshold
}

// ActivationFee is 20% of the current points, rounded, never below 20.
func ActivationFee(points int64) int64 {
	fee := decimal.NewFromInt(points).Mul(activationFeeRate).Round(0).IntPart()
	if fee < MinimumActivationFee {
		return MinimumActivationFee
	}
	return fee
}

// ValidateTransactionCode checks an M-Pesa confirmation code.
func ValidateTransactionCode(code string) error {
	if len(code) != 10 {
		return &ValidationError{Field: "transactionCode", Message: "invalid transaction code format"}
	}
	return nil
}

// ValidateRegistration checks the fields every registration path requires.
// It returns the normalized phone number.
func ValidateRegistration(username, phone, password string) (string, error) {
	if username == "" {
		return "", &ValidationError{Field: "username", Message: "username is required"}
	}
	if password == "" {
		return "", &ValidationError{Field: "password", Message: "password is required"}
	}
	normalized := NormalizePhone(phone)
	if err := ValidatePhone(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
