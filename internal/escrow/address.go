package escrow

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// raceSeed prefixes every race address derivation
const raceSeed = "race"

// MaxRaceIDLength is the longest race id usable as a derivation seed
const MaxRaceIDLength = solana.MaxSeedLength

// RaceKey locates a race. The same triple always derives the same address.
type RaceKey struct {
	RaceID    string
	TokenMint solana.PublicKey
	EntryFee  uint64
}

// Validate checks the key can be used to create a race
func (k RaceKey) Validate() error {
	if k.EntryFee == 0 {
		return ErrInvalidEntryFee
	}
	if len(k.RaceID) > MaxRaceIDLength {
		return fmt.Errorf("%w: got %d", ErrRaceIDTooLong, len(k.RaceID))
	}
	return nil
}

func (k RaceKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.RaceID, k.TokenMint, k.EntryFee)
}

func (k RaceKey) seeds() [][]byte {
	fee := make([]byte, 8)
	binary.LittleEndian.PutUint64(fee, k.EntryFee)
	return [][]byte{
		[]byte(raceSeed),
		[]byte(k.RaceID),
		k.TokenMint.Bytes(),
		fee,
	}
}

// DeriveRaceAddress returns the program-derived address holding the race and
// its bump. The address lies off the ed25519 curve, so no private key controls it.
func DeriveRaceAddress(programID solana.PublicKey, key RaceKey) (solana.PublicKey, uint8, error) {
	if len(key.RaceID) > MaxRaceIDLength {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: got %d", ErrRaceIDTooLong, len(key.RaceID))
	}
	addr, bump, err := solana.FindProgramAddress(key.seeds(), programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive race address: %w", err)
	}
	return addr, bump, nil
}
