package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"patapesa/internal/metrics"
	"patapesa/internal/model"
	"patapesa/internal/repository"
	"patapesa/internal/rewards"

	"go.uber.org/zap"
)

var (
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrAmountBelowFee     = errors.New("payment amount is below the activation fee")
)

const (
	WithdrawalCompleted  = "completed"
	VerificationPending  = "pending"
	VerificationAccepted = "active"
)

// PaymentService runs the mock M-Pesa flows: payouts and activation
// payment verification.
type PaymentService interface {
	Withdraw(ctx context.Context, req model.WithdrawRequest) (*model.WithdrawalReceipt, error)
	WithdrawalStatus(ctx context.Context, withdrawalID string) (*model.WithdrawalStatus, error)
	VerifyPayment(ctx context.Context, req model.VerifyPaymentRequest) (*model.PaymentVerification, error)
}

type paymentService struct {
	userRepo   repository.UserRepository
	ledgerRepo repository.LedgerRepository
	logger     *zap.Logger
}

func NewPaymentService(userRepo repository.UserRepository, ledgerRepo repository.LedgerRepository, logger *zap.Logger) PaymentService {
	return &paymentService{userRepo: userRepo, ledgerRepo: ledgerRepo, logger: logger}
}

// Withdraw checks the withdrawal rules under the row lock and deducts amount
// plus fee together with its ledger row. The payout itself is simulated.
func (s *paymentService) Withdraw(ctx context.Context, req model.WithdrawRequest) (*model.WithdrawalReceipt, error) {
	phone := rewards.NormalizePhone(req.PhoneNumber)
	if err := rewards.ValidatePhone(phone); err != nil {
		return nil, err
	}
	fee := rewards.WithdrawalFee
	if req.ProcessingFee != nil {
		fee = *req.ProcessingFee
	}

	withdrawalID := rewards.NewWithdrawalID()
	mpesaCode := rewards.NewMpesaCode()
	desc := fmt.Sprintf("M-Pesa payout %s to %s (amount %d, fee %d)", mpesaCode, phone, req.Amount, fee)

	acc, entry, err := s.userRepo.Mutate(ctx, req.UserID,
		repository.Change{Kind: model.LedgerKindWithdrawal, Reference: &withdrawalID, Description: &desc},
		func(a *model.Account) error {
			if err := rewards.CheckWithdrawal(&a.User, req.Amount, fee); err != nil {
				return err
			}
			a.Points -= req.Amount + fee
			return nil
		})
	if err != nil {
		metrics.Withdrawals.WithLabelValues(metrics.StatusRejected).Inc()
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	metrics.Withdrawals.WithLabelValues(metrics.StatusCompleted).Inc()
	metrics.WithdrawnPoints.Add(float64(req.Amount + fee))
	s.logger.Info("withdrawal processed",
		zap.String("user_id", acc.ID),
		zap.String("withdrawal_id", withdrawalID),
		zap.Int64("amount", req.Amount),
		zap.Int64("fee", fee),
		zap.String("mpesa_code", mpesaCode),
	)

	ts := time.Now().UTC()
	if entry != nil {
		ts = entry.CreatedAt
	}
	return &model.WithdrawalReceipt{
		WithdrawalID:  withdrawalID,
		UserID:        acc.ID,
		PhoneNumber:   phone,
		Amount:        req.Amount,
		ProcessingFee: fee,
		TotalDeducted: req.Amount + fee,
		BalanceAfter:  acc.Points,
		MpesaCode:     mpesaCode,
		Timestamp:     ts,
	}, nil
}

// WithdrawalStatus reports a recorded withdrawal. Payouts are simulated, so
// every recorded one is completed and confirmed.
func (s *paymentService) WithdrawalStatus(ctx context.Context, withdrawalID string) (*model.WithdrawalStatus, error) {
	entry, err := s.ledgerRepo.FindByReference(ctx, model.LedgerKindWithdrawal, withdrawalID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrWithdrawalNotFound
	}
	return &model.WithdrawalStatus{
		WithdrawalID:   withdrawalID,
		Status:         WithdrawalCompleted,
		Amount:         -entry.Delta,
		Timestamp:      entry.CreatedAt,
		MpesaConfirmed: true,
	}, nil
}

// VerifyPayment accepts an activation deposit code and marks the account
// PENDING until an admin activates it. An already active account is left
// alone and reported as such.
func (s *paymentService) VerifyPayment(ctx context.Context, req model.VerifyPaymentRequest) (*model.PaymentVerification, error) {
	if err := rewards.ValidateTransactionCode(req.TransactionCode); err != nil {
		return nil, err
	}

	var expected int64
	acc, _, err := s.userRepo.Mutate(ctx, req.UserID, repository.Change{}, func(a *model.Account) error {
		expected = rewards.ActivationFee(a.Points)
		if req.Amount != 0 && req.Amount < expected {
			return ErrAmountBelowFee
		}
		if !a.IsActivated {
			a.PendingActivation = true
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	status := VerificationPending
	if acc.IsActivated {
		status = VerificationAccepted
	}
	s.logger.Info("activation payment submitted",
		zap.String("user_id", acc.ID),
		zap.String("transaction_code", req.TransactionCode),
		zap.Int64("expected_amount", expected),
	)
	return &model.PaymentVerification{
		VerificationID:  rewards.NewVerificationID(),
		UserID:          acc.ID,
		TransactionCode: req.TransactionCode,
		Amount:          req.Amount,
		ExpectedAmount:  expected,
		Status:          status,
		Timestamp:       time.Now().UTC(),
	}, nil
}
