package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"patapesa/internal/model"
	"patapesa/internal/repository"
)

// LedgerService defines read operations over the point ledger
type LedgerService interface {
	GetUserLedger(ctx context.Context, userID string, filters model.LedgerFilters) ([]model.LedgerEntry, error)

	// Admin methods
	GetAllEntriesAdmin(ctx context.Context, filters model.LedgerFilters) ([]model.LedgerEntry, error)
	GetStatisticsAdmin(ctx context.Context, filters model.LedgerFilters) (*model.LedgerStats, error)
	ExportLedgerCSVAdmin(ctx context.Context, filters model.LedgerFilters) (*bytes.Buffer, error)
}

type ledgerService struct {
	repo repository.LedgerRepository
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(repo repository.LedgerRepository) LedgerService {
	return &ledgerService{repo: repo}
}

func (s *ledgerService) GetUserLedger(ctx context.Context, userID string, filters model.LedgerFilters) ([]model.LedgerEntry, error) {
	entries, err := s.repo.FindByUser(ctx, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get user ledger: %w", err)
	}
	return entries, nil
}

// --- Admin Methods ---

func (s *ledgerService) GetAllEntriesAdmin(ctx context.Context, filters model.LedgerFilters) ([]model.LedgerEntry, error) {
	entries, err := s.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get all ledger entries for admin: %w", err)
	}
	return entries, nil
}

func (s *ledgerService) GetStatisticsAdmin(ctx context.Context, filters model.LedgerFilters) (*model.LedgerStats, error) {
	stats, err := s.repo.GetAggregatedStats(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get aggregated stats for admin: %w", err)
	}
	return stats, nil
}

func (s *ledgerService) ExportLedgerCSVAdmin(ctx context.Context, filters model.LedgerFilters) (*bytes.Buffer, error) {
	entries, err := s.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger entries for CSV export: %w", err)
	}

	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)

	header := []string{"ID", "UserID", "Kind", "Delta", "BonusDelta", "BalanceAfter", "Reference", "Description", "CreatedAt"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range entries {
		var ref, desc string
		if e.Reference != nil {
			ref = *e.Reference
		}
		if e.Description != nil {
			desc = *e.Description
		}
		row := []string{
			e.ID,
			e.UserID,
			e.Kind,
			strconv.FormatInt(e.Delta, 10),
			strconv.FormatInt(e.BonusDelta, 10),
			strconv.FormatInt(e.BalanceAfter, 10),
			ref,
			desc,
			e.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("error flushing CSV writer: %w", err)
	}

	return buffer, nil
}
