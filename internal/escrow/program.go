// Package escrow implements the two-participant race wager state machine.
//
// Each exported operation is executed as one Ledger.Atomic call: preconditions
// are checked against the stored record before anything is written, and a
// failed operation leaves both the record and all balances unchanged.
package escrow

import (
	"context"
	"fmt"
	"math/bits"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/yourusername/race-escrow/internal/models"
)

// Program is the race escrow state machine bound to a program id and a ledger
type Program struct {
	id             solana.PublicKey
	ledger         Ledger
	now            func() time.Time
	rejectSelfJoin bool
}

// Option configures a Program
type Option func(*Program)

// WithClock overrides the clock used for created_at
func WithClock(now func() time.Time) Option {
	return func(p *Program) {
		p.now = now
	}
}

// WithSelfJoinGuard makes JoinRace reject the creator of the race with
// ErrSelfJoin. Without it, a creator may occupy both participant slots.
func WithSelfJoinGuard(reject bool) Option {
	return func(p *Program) {
		p.rejectSelfJoin = reject
	}
}

// NewProgram creates a new race escrow program
func NewProgram(id solana.PublicKey, ledger Ledger, opts ...Option) *Program {
	p := &Program{
		id:     id,
		ledger: ledger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the program id that owns race accounts
func (p *Program) ID() solana.PublicKey {
	return p.id
}

// Address returns the race account address for key
func (p *Program) Address(key RaceKey) (solana.PublicKey, error) {
	addr, _, err := DeriveRaceAddress(p.id, key)
	return addr, err
}

// CreateRace creates the race record with player as participant one and moves
// the entry fee from player into the race account.
func (p *Program) CreateRace(ctx context.Context, key RaceKey, player solana.PublicKey) (solana.PublicKey, error) {
	if err := key.Validate(); err != nil {
		return solana.PublicKey{}, err
	}
	addr, bump, err := DeriveRaceAddress(p.id, key)
	if err != nil {
		return solana.PublicKey{}, err
	}

	err = p.ledger.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.CreateAccount(ctx, addr, p.id, RaceAccountSpace); err != nil {
			return fmt.Errorf("failed to allocate race account %s: %w", addr, err)
		}

		race := &models.Race{
			RaceID:         key.RaceID,
			TokenMint:      key.TokenMint,
			EntryFee:       key.EntryFee,
			ParticipantOne: player,
			Status:         models.RaceStatusWaiting,
			EscrowAmount:   key.EntryFee,
			CreatedAt:      p.now().Unix(),
			Bump:           bump,
		}

		if err := tx.Transfer(ctx, player, addr, key.EntryFee); err != nil {
			return fmt.Errorf("failed to escrow entry fee: %w", err)
		}
		return store(ctx, tx, addr, race)
	})
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("create race %q: %w", key.RaceID, err)
	}
	return addr, nil
}

// JoinRace registers player as participant two and escrows their entry fee
func (p *Program) JoinRace(ctx context.Context, key RaceKey, player solana.PublicKey) error {
	err := p.mutate(ctx, key, func(ctx context.Context, tx Tx, addr solana.PublicKey, race *models.Race) error {
		if race.Status != models.RaceStatusWaiting {
			return ErrInvalidStatus
		}
		if race.ParticipantTwo != nil {
			return ErrAlreadyJoined
		}
		if p.rejectSelfJoin && race.ParticipantOne.Equals(player) {
			return ErrSelfJoin
		}

		escrowed, carry := bits.Add64(race.EscrowAmount, race.EntryFee, 0)
		if carry != 0 {
			return fmt.Errorf("%w: escrow amount", ErrOverflow)
		}
		if err := tx.Transfer(ctx, player, addr, race.EntryFee); err != nil {
			return fmt.Errorf("failed to escrow entry fee: %w", err)
		}

		race.ParticipantTwo = &player
		race.Status = models.RaceStatusActive
		race.EscrowAmount = escrowed
		return nil
	})
	if err != nil {
		return fmt.Errorf("join race %q: %w", key.RaceID, err)
	}
	return nil
}

// Race loads the current race record
func (p *Program) Race(ctx context.Context, key RaceKey) (*models.Race, error) {
	addr, _, err := DeriveRaceAddress(p.id, key)
	if err != nil {
		return nil, err
	}
	return p.RaceAt(ctx, addr)
}

// RaceAt loads the race record stored at addr
func (p *Program) RaceAt(ctx context.Context, addr solana.PublicKey) (*models.Race, error) {
	var race *models.Race
	err := p.ledger.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		race, err = p.load(ctx, tx, addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return race, nil
}

type transition func(ctx context.Context, tx Tx, addr solana.PublicKey, race *models.Race) error

// mutate loads the race at key, applies fn and stores the result. Nothing is
// stored if fn fails, and the ledger discards any transfer fn already made.
func (p *Program) mutate(ctx context.Context, key RaceKey, fn transition) error {
	addr, _, err := DeriveRaceAddress(p.id, key)
	if err != nil {
		return err
	}
	return p.ledger.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		race, err := p.load(ctx, tx, addr)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, addr, race); err != nil {
			return err
		}
		return store(ctx, tx, addr, race)
	})
}

func (p *Program) load(ctx context.Context, tx Tx, addr solana.PublicKey) (*models.Race, error) {
	acct, err := tx.Load(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to load race account %s: %w", addr, err)
	}
	return DecodeRaceAccount(p.id, acct)
}

func store(ctx context.Context, tx Tx, addr solana.PublicKey, race *models.Race) error {
	data, err := EncodeRace(race)
	if err != nil {
		return err
	}
	if err := tx.Store(ctx, addr, data); err != nil {
		return fmt.Errorf("failed to store race account %s: %w", addr, err)
	}
	return nil
}
