package model

import "time"

const (
	LedgerKindReferralBonus = "referral_bonus"
	LedgerKindFreeSpin      = "free_spin"
	LedgerKindSpin          = "spin"
	LedgerKindWithdrawal    = "withdrawal"
	LedgerKindAdjustment    = "adjustment"
)

// LedgerEntry is one append-only change to a user's points or bonus balance.
// The stored balances are derived from these rows and must agree with them.
type LedgerEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Kind         string    `json:"kind"`
	Delta        int64     `json:"delta"`        // signed change of points
	BonusDelta   int64     `json:"bonusDelta"`   // signed change of bonusBalance
	BalanceAfter int64     `json:"balanceAfter"` // points after the change
	Reference    *string   `json:"reference,omitempty"`
	Description  *string   `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// LedgerFilters narrows ledger queries. Nil fields are ignored.
type LedgerFilters struct {
	UserID    *string
	Kind      *string
	StartDate *time.Time
	EndDate   *time.Time
}

// LedgerStats is the admin aggregate over the ledger
type LedgerStats struct {
	TotalCredited int64               `json:"totalCredited"`
	TotalDebited  int64               `json:"totalDebited"`
	Net           int64               `json:"net"`
	TotalBonus    int64               `json:"totalBonus"`
	ByKind        map[string]int64    `json:"byKind"`
	ByUser        map[string]UserStat `json:"byUser"` // userId -> stats
}

type UserStat struct {
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	TotalCredited int64  `json:"totalCredited"`
	TotalDebited  int64  `json:"totalDebited"`
	EntryCount    int64  `json:"entryCount"`
}
