package models

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// RaceStatus represents the lifecycle stage of a race escrow
type RaceStatus uint8

const (
	RaceStatusWaiting RaceStatus = iota // waiting for the second participant
	RaceStatusActive                    // both fees locked, results pending
	RaceStatusSettled                   // winner determined
)

var raceStatusNames = [...]string{"waiting", "active", "settled"}

// String returns the lowercase status name
func (s RaceStatus) String() string {
	if int(s) < len(raceStatusNames) {
		return raceStatusNames[s]
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// Valid reports whether s is a known status
func (s RaceStatus) Valid() bool {
	return s <= RaceStatusSettled
}

// MarshalText implements encoding.TextMarshaler
func (s RaceStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid race status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *RaceStatus) UnmarshalText(text []byte) error {
	for i, name := range raceStatusNames {
		if name == string(text) {
			*s = RaceStatus(i)
			return nil
		}
	}
	return fmt.Errorf("invalid race status %q", string(text))
}

// Race is the escrow record for a two-participant wager. It is stored in the
// account that holds the escrowed lamports.
type Race struct {
	RaceID         string            `json:"race_id"`
	TokenMint      solana.PublicKey  `json:"token_mint"`
	EntryFee       uint64            `json:"entry_fee"`
	ParticipantOne solana.PublicKey  `json:"participant_one"`
	ParticipantTwo *solana.PublicKey `json:"participant_two"`
	Status         RaceStatus        `json:"status"`
	ResultOne      *RaceResult       `json:"result_one"`
	ResultTwo      *RaceResult       `json:"result_two"`
	Winner         *solana.PublicKey `json:"winner"`
	EscrowAmount   uint64            `json:"escrow_amount"`
	CreatedAt      int64             `json:"created_at"`
	Bump           uint8             `json:"bump"`
}

// Slot identifies which participant position an account holds
type Slot int

const (
	SlotNone Slot = iota
	SlotOne
	SlotTwo
)

// SlotOf returns the participant slot of account. Slot one is checked first,
// so an account registered in both slots resolves to SlotOne.
func (r *Race) SlotOf(account solana.PublicKey) Slot {
	if r.ParticipantOne.Equals(account) {
		return SlotOne
	}
	if r.ParticipantTwo != nil && r.ParticipantTwo.Equals(account) {
		return SlotTwo
	}
	return SlotNone
}

// HasBothResults reports whether both participants have submitted
func (r *Race) HasBothResults() bool {
	return r.ResultOne != nil && r.ResultTwo != nil
}

// IsWinner checks if account is the settled winner
func (r *Race) IsWinner(account solana.PublicKey) bool {
	return r.Winner != nil && r.Winner.Equals(account)
}

// IsClaimed checks if the prize has been withdrawn
func (r *Race) IsClaimed() bool {
	return r.Status == RaceStatusSettled && r.EscrowAmount == 0
}

// CreatedTime returns created_at as a time.Time
func (r *Race) CreatedTime() time.Time {
	return time.Unix(r.CreatedAt, 0).UTC()
}

// IsStalled reports whether an active race is still missing a result after
// the given age. Such a race cannot settle until both participants submit.
func (r *Race) IsStalled(now time.Time, after time.Duration) bool {
	if r.Status != RaceStatusActive || r.HasBothResults() {
		return false
	}
	return now.Sub(r.CreatedTime()) > after
}

// Clone returns a deep copy of the race
func (r *Race) Clone() *Race {
	c := *r
	if r.ParticipantTwo != nil {
		p := *r.ParticipantTwo
		c.ParticipantTwo = &p
	}
	if r.ResultOne != nil {
		res := *r.ResultOne
		c.ResultOne = &res
	}
	if r.ResultTwo != nil {
		res := *r.ResultTwo
		c.ResultTwo = &res
	}
	if r.Winner != nil {
		w := *r.Winner
		c.Winner = &w
	}
	return &c
}

// InputCommitment binds a submitted result to off-band evidence such as the
// SHA-256 of a recorded input trace.
type InputCommitment [32]byte

// String returns the hex encoding
func (c InputCommitment) String() string {
	return hex.EncodeToString(c[:])
}

// MarshalText implements encoding.TextMarshaler
func (c InputCommitment) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *InputCommitment) UnmarshalText(text []byte) error {
	parsed, err := ParseInputCommitment(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseInputCommitment parses a 64-character hex string
func ParseInputCommitment(s string) (InputCommitment, error) {
	var c InputCommitment
	b, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid input commitment: %w", err)
	}
	if len(b) != len(c) {
		return c, fmt.Errorf("invalid input commitment: expected %d bytes, got %d", len(c), len(b))
	}
	copy(c[:], b)
	return c, nil
}
