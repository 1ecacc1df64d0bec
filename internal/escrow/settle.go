package escrow

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/yourusername/race-escrow/internal/models"
)

// SettleRace determines the winner from the two stored results. Anyone may
// call it: the outcome is a pure function of the record.
func (p *Program) SettleRace(ctx context.Context, key RaceKey) (solana.PublicKey, error) {
	var winner solana.PublicKey
	err := p.mutate(ctx, key, func(_ context.Context, _ Tx, _ solana.PublicKey, race *models.Race) error {
		if race.Status != models.RaceStatusActive {
			return ErrInvalidStatus
		}
		if !race.HasBothResults() || race.ParticipantTwo == nil {
			return ErrResultsNotComplete
		}

		winner = DetermineWinner(race)
		race.Winner = &winner
		race.Status = models.RaceStatusSettled
		return nil
	})
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("settle race %q: %w", key.RaceID, err)
	}
	return winner, nil
}

// DetermineWinner applies the settlement rule to a race holding both results:
// lower finish time wins, then higher coins, and participant one takes an
// exact tie.
func DetermineWinner(race *models.Race) solana.PublicKey {
	if race.ResultOne.Beats(*race.ResultTwo) {
		return race.ParticipantOne
	}
	return *race.ParticipantTwo
}
