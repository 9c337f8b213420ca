package account

import (
	"context"
	"errors"

	"patapesa/internal/model"
	"patapesa/internal/rewards"
	"patapesa/internal/store"

	"go.uber.org/zap"
)

// change describes how one mutation is recorded in the ledger. A zero Kind
// records nothing.
type change struct {
	Kind        string
	Reference   *string
	Description string
}

// mutate applies fn to one account in a single atomic update of the user
// set, appends the resulting deltas to the ledger and refreshes the session.
func (s *Service) mutate(ctx context.Context, userID string, c change, fn func(a *model.Account) error) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var before, after model.User
	err := s.updateUsers(ctx, func(users userSet) error {
		acc, ok := users[userID]
		if !ok {
			return ErrUserNotFound
		}
		before = acc.User
		if err := fn(acc); err != nil {
			return err
		}
		after = acc.User
		return nil
	})
	if err != nil {
		return nil, err
	}

	delta := after.Points - before.Points
	bonusDelta := after.BonusBalance - before.BonusBalance
	if c.Kind != "" && (delta != 0 || bonusDelta != 0) {
		entry := model.LedgerEntry{
			UserID:       userID,
			Kind:         c.Kind,
			Delta:        delta,
			BonusDelta:   bonusDelta,
			BalanceAfter: after.Points,
			Reference:    c.Reference,
		}
		if c.Description != "" {
			entry.Description = &c.Description
		}
		s.appendLedger(ctx, entry)
	}

	if err := s.syncSession(ctx, &after); err != nil {
		s.logger.Error("failed to refresh session", zap.String("user_id", userID), zap.Error(err))
	}
	return &after, nil
}

// appendLedger stores entries after the balances they describe were
// written. Caller holds s.mu.
func (s *Service) appendLedger(ctx context.Context, entries ...model.LedgerEntry) {
	now := s.now()
	for i := range entries {
		entries[i].ID = rewards.NewID("entry")
		entries[i].CreatedAt = now
	}
	err := store.UpdateJSON(ctx, s.kv, store.KeyLedger, func(ledger *[]model.LedgerEntry) error {
		*ledger = append(*ledger, entries...)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to append ledger entries", zap.Int("count", len(entries)), zap.Error(err))
	}
}

// pushPoints mirrors a balance to the backend. Failures only get logged:
// the device copy stays authoritative until the next login.
func (s *Service) pushPoints(ctx context.Context, user *model.User) {
	if s.mirror == nil {
		return
	}
	if _, err := s.mirror.UpdatePoints(ctx, user.ID, user.Points); err != nil {
		s.logger.Warn("failed to mirror points", zap.String("user_id", user.ID), zap.Error(err))
	}
}

// UpdatePoints overwrites the balance. The caller computes the new value;
// no floor or ceiling is applied here.
func (s *Service) UpdatePoints(ctx context.Context, userID string, newPoints int64) error {
	user, err := s.mutate(ctx, userID, change{Kind: model.LedgerKindAdjustment}, func(a *model.Account) error {
		a.Points = newPoints
		return nil
	})
	if err != nil {
		return err
	}
	s.pushPoints(ctx, user)
	return nil
}

// UpdateBonusBalance overwrites the referral bonus balance.
func (s *Service) UpdateBonusBalance(ctx context.Context, userID string, newBalance int64) error {
	_, err := s.mutate(ctx, userID, change{Kind: model.LedgerKindAdjustment}, func(a *model.Account) error {
		a.BonusBalance = newBalance
		return nil
	})
	return err
}

// ApplySpinResult consumes the free spin: points and hasUsedFreeSpin change
// together or not at all. A second call fails with ErrFreeSpinUsed.
func (s *Service) ApplySpinResult(ctx context.Context, userID string, delta int64) (*model.User, error) {
	user, err := s.mutate(ctx, userID, change{Kind: model.LedgerKindFreeSpin}, func(a *model.Account) error {
		if a.HasUsedFreeSpin {
			return ErrFreeSpinUsed
		}
		a.Points += delta
		a.HasUsedFreeSpin = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.pushPoints(ctx, user)
	return user, nil
}

// ApplyWin credits a regular spin. Unlike the free spin it can be applied
// any number of times.
func (s *Service) ApplyWin(ctx context.Context, userID string, delta int64) (*model.User, error) {
	user, err := s.mutate(ctx, userID, change{Kind: model.LedgerKindSpin}, func(a *model.Account) error {
		a.Points += delta
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.pushPoints(ctx, user)
	return user, nil
}

// SetActivationPending moves INACTIVE to PENDING. ACTIVE is terminal, so the
// call leaves an activated account alone.
func (s *Service) SetActivationPending(ctx context.Context, userID string) error {
	_, err := s.mutate(ctx, userID, change{}, func(a *model.Account) error {
		if a.IsActivated {
			return nil
		}
		a.PendingActivation = true
		return nil
	})
	return err
}

// Activate moves INACTIVE or PENDING to ACTIVE and clears pending. Idempotent.
func (s *Service) Activate(ctx context.Context, userID string) error {
	_, err := s.mutate(ctx, userID, change{}, func(a *model.Account) error {
		a.IsActivated = true
		a.PendingActivation = false
		return nil
	})
	return err
}

// Withdraw checks every withdrawal precondition and deducts amount + fee.
func (s *Service) Withdraw(ctx context.Context, userID string, amount, fee int64) (*model.WithdrawalReceipt, error) {
	withdrawalID := rewards.NewWithdrawalID()
	user, err := s.mutate(ctx, userID, change{Kind: model.LedgerKindWithdrawal, Reference: &withdrawalID}, func(a *model.Account) error {
		if err := rewards.CheckWithdrawal(&a.User, amount, fee); err != nil {
			return err
		}
		a.Points -= amount + fee
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.pushPoints(ctx, user)
	s.logger.Info("withdrawal recorded",
		zap.String("user_id", userID),
		zap.String("withdrawal_id", withdrawalID),
		zap.Int64("amount", amount),
		zap.Int64("fee", fee),
	)
	return &model.WithdrawalReceipt{
		WithdrawalID:  withdrawalID,
		UserID:        userID,
		PhoneNumber:   user.PhoneNumber,
		Amount:        amount,
		ProcessingFee: fee,
		TotalDeducted: amount + fee,
		BalanceAfter:  user.Points,
		Timestamp:     s.now(),
	}, nil
}

// Ledger returns the entries of one user, oldest first.
func (s *Service) Ledger(ctx context.Context, userID string) ([]model.LedgerEntry, error) {
	all, err := store.GetJSON[[]model.LedgerEntry](ctx, s.kv, store.KeyLedger)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []model.LedgerEntry
	for _, e := range *all {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}
