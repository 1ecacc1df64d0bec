package escrow

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/yourusername/race-escrow/internal/models"
)

// SubmitResult records player's outcome in their participant slot. Each slot
// is write-once. No funds move.
func (p *Program) SubmitResult(ctx context.Context, key RaceKey, player solana.PublicKey, result models.RaceResult) error {
	err := p.mutate(ctx, key, func(_ context.Context, _ Tx, _ solana.PublicKey, race *models.Race) error {
		if race.Status != models.RaceStatusActive {
			return ErrInvalidStatus
		}

		var slot **models.RaceResult
		switch race.SlotOf(player) {
		case models.SlotOne:
			slot = &race.ResultOne
		case models.SlotTwo:
			slot = &race.ResultTwo
		default:
			return ErrNotAParticipant
		}
		if *slot != nil {
			return ErrResultAlreadySubmitted
		}

		res := result
		*slot = &res
		return nil
	})
	if err != nil {
		return fmt.Errorf("submit result for race %q: %w", key.RaceID, err)
	}
	return nil
}
