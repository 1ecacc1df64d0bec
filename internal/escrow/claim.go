package escrow

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/yourusername/race-escrow/internal/models"
)

// ClaimPrize pays the whole escrow to the winner and zeroes escrow_amount. The
// zeroed amount is authoritative: a repeated claim succeeds and pays nothing.
// It returns the lamports paid by this call.
func (p *Program) ClaimPrize(ctx context.Context, key RaceKey, player solana.PublicKey) (uint64, error) {
	var paid uint64
	err := p.mutate(ctx, key, func(ctx context.Context, tx Tx, addr solana.PublicKey, race *models.Race) error {
		if race.Status != models.RaceStatusSettled {
			return ErrInvalidStatus
		}
		if !race.IsWinner(player) {
			return ErrNotWinner
		}

		prize := race.EscrowAmount
		if prize == 0 {
			return nil
		}
		if err := tx.Transfer(ctx, addr, player, prize); err != nil {
			return fmt.Errorf("failed to release prize: %w", err)
		}

		race.EscrowAmount = 0
		paid = prize
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("claim prize for race %q: %w", key.RaceID, err)
	}
	return paid, nil
}
