package model

import (
	"encoding/json"
	"time"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error codes carried in the "error" field of failure envelopes
const (
	CodeInvalidPassword    = "INVALID_PASSWORD"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeDuplicateAccount   = "DUPLICATE_ACCOUNT"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeActivationRequired = "ACTIVATION_REQUIRED"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	CodeInvalidTransaction = "INVALID_TRANSACTION_CODE"
	CodeForbidden          = "FORBIDDEN"
)

// Envelope is the JSON shape of every mirror response.
type Envelope struct {
	Status    string          `json:"status"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Total     *int            `json:"total,omitempty"`
	Token     string          `json:"token,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

// PointsData is the data of a successful points update
type PointsData struct {
	Points int64 `json:"points"`
}
