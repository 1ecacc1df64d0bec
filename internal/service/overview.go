package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/yourusername/race-escrow/internal/escrow"
	"github.com/yourusername/race-escrow/internal/metrics"
	"github.com/yourusername/race-escrow/internal/models"
)

// RaceSummary is one race found by a scan
type RaceSummary struct {
	Address    solana.PublicKey `json:"address"`
	Race       *models.Race     `json:"race"`
	Age        time.Duration    `json:"-"`
	AgeSeconds int64            `json:"age_seconds"`
}

// EscrowOverview describes every race held by the program
type EscrowOverview struct {
	ScannedAt      time.Time                 `json:"scanned_at"`
	Races          []RaceSummary             `json:"races"`
	ByStatus       map[models.RaceStatus]int `json:"by_status"`
	LockedLamports uint64                    `json:"locked_lamports"`
	LockedSOL      decimal.Decimal           `json:"locked_sol"`
	// Stalled races are active and still missing a result after the stall
	// threshold. Their escrow cannot be released until both results arrive.
	Stalled []RaceSummary `json:"stalled"`
	// Mismatched races hold a balance different from their escrow_amount.
	Mismatched []solana.PublicKey `json:"mismatched"`
	Unreadable []solana.PublicKey `json:"unreadable"`
}

// StatusCounts returns the per-status counts keyed by status name
func (o *EscrowOverview) StatusCounts() map[string]int {
	counts := make(map[string]int, len(o.ByStatus))
	for status, n := range o.ByStatus {
		counts[status.String()] = n
	}
	return counts
}

// Overview scans every account owned by the program
func (s *RaceService) Overview(ctx context.Context) (*EscrowOverview, error) {
	now := s.now()
	ov := &EscrowOverview{
		ScannedAt: now,
		ByStatus:  make(map[models.RaceStatus]int),
	}

	programID := s.program.ID()
	err := s.scanner.ScanAccounts(ctx, programID, func(acct *escrow.Account) error {
		race, err := s.decode(programID, acct)
		if err != nil {
			ov.Unreadable = append(ov.Unreadable, acct.Address)
			s.monitor.LogUnreadableAccount(acct.Address.String(), err)
			return nil
		}

		age := now.Sub(race.CreatedTime())
		summary := RaceSummary{
			Address:    acct.Address,
			Race:       race,
			Age:        age,
			AgeSeconds: int64(age / time.Second),
		}
		ov.Races = append(ov.Races, summary)
		ov.ByStatus[race.Status]++
		ov.LockedLamports += race.EscrowAmount

		if acct.Lamports != race.EscrowAmount {
			ov.Mismatched = append(ov.Mismatched, acct.Address)
		}
		if race.IsStalled(now, s.stallAfter) {
			ov.Stalled = append(ov.Stalled, summary)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan race accounts: %w", err)
	}

	ov.LockedSOL = models.LamportsToSOL(ov.LockedLamports)
	return ov, nil
}

// decode reuses the cached decode of acct while its data is unchanged
func (s *RaceService) decode(programID solana.PublicKey, acct *escrow.Account) (*models.Race, error) {
	if acct.Owner.Equals(programID) {
		if race := s.cache.Decoded(acct.Address, acct.Data); race != nil {
			return race, nil
		}
	}
	race, err := escrow.DecodeRaceAccount(programID, acct)
	if err != nil {
		return nil, err
	}
	s.cache.SetDecoded(acct.Address, acct.Data, race)
	return race, nil
}

// RunAudit scans all races, refreshes the escrow gauges and logs anything
// that needs attention.
func (s *RaceService) RunAudit(ctx context.Context) error {
	start := time.Now()
	ov, err := s.Overview(ctx)
	metrics.RecordAudit(err == nil, time.Since(start).Seconds())
	if err != nil {
		return err
	}

	metrics.UpdateRaceGauges(ov.StatusCounts(), ov.LockedLamports, len(ov.Stalled))
	hits, misses, ratio := s.cache.Stats()
	metrics.UpdateCacheGauges(hits, misses, ratio, s.cache.ItemCount())
	for _, stalled := range ov.Stalled {
		s.monitor.LogStalledRace(stalled.Address.String(), stalled.Race.RaceID, stalled.Age, stalled.Race.EscrowAmount)
	}
	for _, addr := range ov.Mismatched {
		s.monitor.WithField("race_address", addr.String()).Error("Race balance does not match escrow_amount")
	}
	s.monitor.LogAuditSummary(len(ov.Races), ov.StatusCounts(), ov.LockedSOL.String(), len(ov.Stalled), time.Since(start))
	return nil
}
