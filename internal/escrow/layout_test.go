package escrow

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/race-escrow/internal/models"
)

func testKey(b byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(bytes.Repeat([]byte{b}, 32))
}

func settledRace() *models.Race {
	p2, winner := testKey(3), testKey(2)
	var hash models.InputCommitment
	hash[0] = 0xfe
	return &models.Race{
		RaceID:         "race-001",
		TokenMint:      testKey(9),
		EntryFee:       1000,
		ParticipantOne: testKey(2),
		ParticipantTwo: &p2,
		Status:         models.RaceStatusSettled,
		ResultOne:      &models.RaceResult{FinishTimeMs: 45000, CoinsCollected: 10, InputHash: hash},
		ResultTwo:      &models.RaceResult{FinishTimeMs: 50000, CoinsCollected: 20},
		Winner:         &winner,
		EscrowAmount:   2000,
		CreatedAt:      1767225600,
		Bump:           254,
	}
}

func TestRaceAccountSpace(t *testing.T) {
	assert.Equal(t, 316, RaceAccountSpace)
}

func TestEncodeDecodeRace(t *testing.T) {
	tests := []struct {
		name string
		race *models.Race
	}{
		{name: "settled", race: settledRace()},
		{
			name: "waiting",
			race: &models.Race{
				RaceID:         "w",
				TokenMint:      testKey(9),
				EntryFee:       1,
				ParticipantOne: testKey(1),
				Status:         models.RaceStatusWaiting,
				EscrowAmount:   1,
				CreatedAt:      -5,
				Bump:           255,
			},
		},
		{
			name: "empty race id",
			race: &models.Race{TokenMint: testKey(1), ParticipantOne: testKey(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeRace(tt.race)
			require.NoError(t, err)
			require.Len(t, data, RaceAccountSpace)
			assert.True(t, IsRaceAccount(data))

			decoded, err := DecodeRace(data)
			require.NoError(t, err)
			assert.Equal(t, tt.race, decoded)
		})
	}
}

func TestEncodeRaceOptionsArePacked(t *testing.T) {
	race := settledRace()
	race.ParticipantTwo = nil
	race.ResultOne = nil
	race.ResultTwo = nil
	race.Winner = nil
	race.Status = models.RaceStatusWaiting

	data, err := EncodeRace(race)
	require.NoError(t, err)

	// Absent options take one byte each, so the tail of the buffer stays zero
	used := discriminatorSize + 4 + len(race.RaceID) + 32 + 8 + 32 + 1 + 1 + 1 + 1 + 1 + 8 + 8 + 1
	assert.Equal(t, make([]byte, RaceAccountSpace-used), data[used:])
	assert.Equal(t, race.Bump, data[used-1])
}

func TestEncodeRaceRejects(t *testing.T) {
	race := settledRace()
	race.RaceID = string(bytes.Repeat([]byte{'x'}, raceIDCapacity+1))
	_, err := EncodeRace(race)
	assert.ErrorIs(t, err, ErrLayout)

	race = settledRace()
	race.Status = models.RaceStatus(9)
	_, err = EncodeRace(race)
	assert.ErrorIs(t, err, ErrLayout)
}

func TestDecodeRaceRejects(t *testing.T) {
	valid, err := EncodeRace(settledRace())
	require.NoError(t, err)

	// offset of participant_two's option flag
	p2Flag := discriminatorSize + 4 + len("race-001") + 32 + 8 + 32

	tests := []struct {
		name    string
		corrupt func([]byte) []byte
		wantErr error
	}{
		{
			name:    "short buffer",
			corrupt: func(b []byte) []byte { return b[:RaceAccountSpace-1] },
			wantErr: ErrLayout,
		},
		{
			name:    "wrong discriminator",
			corrupt: func(b []byte) []byte { b[0] ^= 0xff; return b },
			wantErr: ErrDiscriminatorMismatch,
		},
		{
			name:    "race id length beyond capacity",
			corrupt: func(b []byte) []byte { b[discriminatorSize] = raceIDCapacity + 1; return b },
			wantErr: ErrLayout,
		},
		{
			name:    "bad option flag",
			corrupt: func(b []byte) []byte { b[p2Flag] = 2; return b },
			wantErr: ErrLayout,
		},
		{
			name:    "zeroed account",
			corrupt: func(b []byte) []byte { return make([]byte, RaceAccountSpace) },
			wantErr: ErrDiscriminatorMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.corrupt(bytes.Clone(valid))
			_, err := DecodeRace(data)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeRaceAccountChecksOwner(t *testing.T) {
	data, err := EncodeRace(settledRace())
	require.NoError(t, err)
	programID := testKey(7)

	_, err = DecodeRaceAccount(programID, &Account{Owner: testKey(8), Data: data})
	assert.ErrorIs(t, err, ErrAccountNotOwned)

	race, err := DecodeRaceAccount(programID, &Account{Owner: programID, Data: data})
	require.NoError(t, err)
	assert.Equal(t, "race-001", race.RaceID)
}
