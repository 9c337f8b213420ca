package model

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ActivationState is the derived state of the isActivated/pendingActivation flags.
type ActivationState string

const (
	ActivationInactive ActivationState = "inactive"
	ActivationPending  ActivationState = "pending"
	ActivationActive   ActivationState = "active"
)

// User represents a registered participant as seen by clients (no password)
type User struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	PhoneNumber       string     `json:"phoneNumber"`
	Points            int64      `json:"points"`
	ReferralCode      string     `json:"referralCode"`
	ReferredBy        *string    `json:"referredBy"`
	BonusBalance      int64      `json:"bonusBalance"`
	IsActivated       bool       `json:"isActivated"`
	PendingActivation bool       `json:"pendingActivation"`
	HasUsedFreeSpin   bool       `json:"hasUsedFreeSpin"`
	Role              string     `json:"role,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	LastLogin         *time.Time `json:"lastLogin,omitempty"`
}

// Activation reports the account's position in the INACTIVE -> PENDING -> ACTIVE machine.
func (u *User) Activation() ActivationState {
	switch {
	case u.IsActivated:
		return ActivationActive
	case u.PendingActivation:
		return ActivationPending
	default:
		return ActivationInactive
	}
}

// Account is a User together with its password hash. It never leaves the
// persistence layer: the API and the session only ever carry User.
type Account struct {
	User
	PasswordHash string `json:"passwordHash"`
}

// Public strips the password hash.
func (a *Account) Public() *User {
	u := a.User
	return &u
}

// Session is the single currently-authenticated user on a device.
type Session struct {
	User
	StartedAt time.Time `json:"startedAt"`
}

// SavedCredentials is the optional "remember me" record.
type SavedCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ReferralStats summarises what a user earned by sharing their code
type ReferralStats struct {
	TotalReferrals int   `json:"totalReferrals"`
	TotalEarnings  int64 `json:"totalEarnings"`
	BonusBalance   int64 `json:"bonusBalance"`
}

// RegisterRequest is the body of POST /register
type RegisterRequest struct {
	Username     string `json:"username" binding:"required"`
	PhoneNumber  string `json:"phoneNumber" binding:"required"`
	Password     string `json:"password" binding:"required"`
	ReferralCode string `json:"referralCode,omitempty"`
}

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdatePointsRequest is the body of PUT /profile/:userId/points
type UpdatePointsRequest struct {
	Points *int64 `json:"points" binding:"required"`
}

type ResetPasswordRequest struct {
	Username        string `json:"username" binding:"required"`
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}
