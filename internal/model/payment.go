package model

import "time"

// WithdrawRequest is the body of POST /withdraw
type WithdrawRequest struct {
	UserID        string `json:"userId" binding:"required"`
	PhoneNumber   string `json:"phoneNumber" binding:"required"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	ProcessingFee *int64 `json:"processingFee,omitempty"`
}

// WithdrawalReceipt is returned after points were deducted for a payout.
type WithdrawalReceipt struct {
	WithdrawalID  string    `json:"withdrawalId"`
	UserID        string    `json:"userId"`
	PhoneNumber   string    `json:"phoneNumber,omitempty"`
	Amount        int64     `json:"amount"`
	ProcessingFee int64     `json:"processingFee"`
	TotalDeducted int64     `json:"totalDeducted"`
	BalanceAfter  int64     `json:"balanceAfter"`
	MpesaCode     string    `json:"mpesaCode,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type WithdrawalStatus struct {
	WithdrawalID   string    `json:"withdrawalId"`
	Status         string    `json:"status"`
	Amount         int64     `json:"amount"`
	Timestamp      time.Time `json:"timestamp"`
	MpesaConfirmed bool      `json:"mpesaConfirmed"`
}

// VerifyPaymentRequest is the body of POST /verify-payment (activation deposit)
type VerifyPaymentRequest struct {
	UserID          string `json:"userId" binding:"required"`
	TransactionCode string `json:"transactionCode" binding:"required"`
	PhoneNumber     string `json:"phoneNumber"`
	Amount          int64  `json:"amount"`
}

type PaymentVerification struct {
	VerificationID  string    `json:"verificationId"`
	UserID          string    `json:"userId"`
	TransactionCode string    `json:"transactionCode"`
	Amount          int64     `json:"amount"`
	ExpectedAmount  int64     `json:"expectedAmount"`
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
}
