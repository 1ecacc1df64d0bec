// Package service wraps the race escrow program with logging, metrics and caching.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/race-escrow/internal/escrow"
	"github.com/yourusername/race-escrow/internal/logger"
	"github.com/yourusername/race-escrow/internal/metrics"
	"github.com/yourusername/race-escrow/internal/models"
)

// Operation names used in logs and metric labels
const (
	OpCreate = "create"
	OpJoin   = "join"
	OpSubmit = "submit_result"
	OpSettle = "settle"
	OpClaim  = "claim"
)

// EscrowProgram is the race state machine. *escrow.Program implements it.
type EscrowProgram interface {
	ID() solana.PublicKey
	Address(key escrow.RaceKey) (solana.PublicKey, error)
	CreateRace(ctx context.Context, key escrow.RaceKey, player solana.PublicKey) (solana.PublicKey, error)
	JoinRace(ctx context.Context, key escrow.RaceKey, player solana.PublicKey) error
	SubmitResult(ctx context.Context, key escrow.RaceKey, player solana.PublicKey, result models.RaceResult) error
	SettleRace(ctx context.Context, key escrow.RaceKey) (solana.PublicKey, error)
	ClaimPrize(ctx context.Context, key escrow.RaceKey, player solana.PublicKey) (uint64, error)
	RaceAt(ctx context.Context, address solana.PublicKey) (*models.Race, error)
}

// AccountScanner lists accounts by owner
type AccountScanner interface {
	ScanAccounts(ctx context.Context, owner solana.PublicKey, fn func(*escrow.Account) error) error
}

// RaceService runs escrow operations and records what happened to them
type RaceService struct {
	program    EscrowProgram
	scanner    AccountScanner
	cache      *RaceCache
	audit      *logger.AuditLogger
	monitor    *logger.MonitorLogger
	logger     *logrus.Logger
	stallAfter time.Duration
	now        func() time.Time
}

// NewRaceService creates a new race service
func NewRaceService(
	program EscrowProgram,
	scanner AccountScanner,
	cache *RaceCache,
	log *logrus.Logger,
	stallAfter time.Duration,
) *RaceService {
	return &RaceService{
		program:    program,
		scanner:    scanner,
		cache:      cache,
		audit:      logger.NewAuditLogger(log),
		monitor:    logger.NewMonitorLogger(log),
		logger:     log,
		stallAfter: stallAfter,
		now:        time.Now,
	}
}

// track runs one write operation: it assigns an operation id, times it,
// records the outcome and drops the cached record.
func (s *RaceService) track(op string, key escrow.RaceKey, caller string, fn func(opID string, address solana.PublicKey) error) error {
	opID := uuid.New().String()
	start := time.Now()

	address, err := s.program.Address(key)
	if err == nil {
		err = fn(opID, address)
		s.cache.Invalidate(address)
	}

	code := escrow.ErrorCode(err)
	metrics.RecordOperation(op, code, time.Since(start).Seconds())
	if err != nil {
		s.audit.LogOperationRejected(opID, op, address.String(), caller, code, err)
		if code == "internal" {
			s.logger.WithError(err).WithField("op_id", opID).Error("Escrow operation failed")
		}
	}
	return err
}

// CreateRace creates a race with player as participant one
func (s *RaceService) CreateRace(ctx context.Context, key escrow.RaceKey, player solana.PublicKey) (solana.PublicKey, error) {
	var created solana.PublicKey
	err := s.track(OpCreate, key, player.String(), func(opID string, address solana.PublicKey) error {
		var err error
		created, err = s.program.CreateRace(ctx, key, player)
		if err != nil {
			return err
		}
		s.audit.LogRaceCreated(opID, address.String(), key.RaceID, player.String(), key.EntryFee)
		return nil
	})
	return created, err
}

// JoinRace registers player as participant two
func (s *RaceService) JoinRace(ctx context.Context, key escrow.RaceKey, player solana.PublicKey) error {
	return s.track(OpJoin, key, player.String(), func(opID string, address solana.PublicKey) error {
		if err := s.program.JoinRace(ctx, key, player); err != nil {
			return err
		}
		// Both fees are now locked.
		s.audit.LogRaceJoined(opID, address.String(), player.String(), 2*key.EntryFee)
		return nil
	})
}

// SubmitResult records player's race outcome
func (s *RaceService) SubmitResult(ctx context.Context, key escrow.RaceKey, player solana.PublicKey, result models.RaceResult) error {
	return s.track(OpSubmit, key, player.String(), func(opID string, address solana.PublicKey) error {
		if err := s.program.SubmitResult(ctx, key, player, result); err != nil {
			return err
		}
		s.audit.LogResultSubmitted(opID, address.String(), player.String(),
			result.FinishTimeMs, result.CoinsCollected, result.InputHash.String())
		return nil
	})
}

// SettleRace determines the winner. Anyone may settle; a zero caller is
// logged as anonymous.
func (s *RaceService) SettleRace(ctx context.Context, key escrow.RaceKey, caller solana.PublicKey) (solana.PublicKey, error) {
	var winner solana.PublicKey
	callerName := ""
	if !caller.IsZero() {
		callerName = caller.String()
	}
	err := s.track(OpSettle, key, callerName, func(opID string, address solana.PublicKey) error {
		var err error
		winner, err = s.program.SettleRace(ctx, key)
		if err != nil {
			return err
		}
		s.audit.LogRaceSettled(opID, address.String(), callerName, winner.String())
		return nil
	})
	return winner, err
}

// ClaimPrize pays the escrow to the winner and returns the lamports paid
func (s *RaceService) ClaimPrize(ctx context.Context, key escrow.RaceKey, player solana.PublicKey) (uint64, error) {
	var paid uint64
	err := s.track(OpClaim, key, player.String(), func(opID string, address solana.PublicKey) error {
		var err error
		paid, err = s.program.ClaimPrize(ctx, key, player)
		if err != nil {
			return err
		}
		metrics.RecordPrizePaid(paid)
		s.audit.LogPrizeClaimed(opID, address.String(), player.String(), paid)
		return nil
	})
	return paid, err
}

// GetRace returns the race at key, served from the cache when possible
func (s *RaceService) GetRace(ctx context.Context, key escrow.RaceKey) (*models.Race, error) {
	address, err := s.program.Address(key)
	if err != nil {
		return nil, err
	}
	return s.GetRaceAt(ctx, address)
}

// GetRaceAt returns the race stored at address
func (s *RaceService) GetRaceAt(ctx context.Context, address solana.PublicKey) (*models.Race, error) {
	if race := s.cache.Get(address); race != nil {
		return race, nil
	}

	gen := s.cache.Generation(address)
	race, err := s.program.RaceAt(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to load race %s: %w", address, err)
	}
	s.cache.SetIfUnchanged(address, gen, race)
	return race, nil
}
