package main

import (
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/yourusername/race-escrow/internal/escrow"
	"github.com/yourusername/race-escrow/internal/models"
)

// nativeMint identifies native SOL stakes
const nativeMint = "So11111111111111111111111111111111111111112"

type raceFlags struct {
	raceID string
	mint   string
	fee    string
}

func (f *raceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.raceID, "race-id", "", "Race identifier (at most 32 bytes)")
	cmd.Flags().StringVar(&f.mint, "mint", nativeMint, "Token mint recorded with the race")
	cmd.Flags().StringVar(&f.fee, "fee", "", "Entry fee per participant in SOL")
	_ = cmd.MarkFlagRequired("race-id")
	_ = cmd.MarkFlagRequired("fee")
}

func (f *raceFlags) key() (escrow.RaceKey, error) {
	mint, err := parsePublicKey("mint", f.mint)
	if err != nil {
		return escrow.RaceKey{}, err
	}
	fee, err := parseSOL("fee", f.fee)
	if err != nil {
		return escrow.RaceKey{}, err
	}
	return escrow.RaceKey{RaceID: f.raceID, TokenMint: mint, EntryFee: fee}, nil
}

func parsePublicKey(flag, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("--%s: invalid public key %q: %w", flag, value, err)
	}
	return key, nil
}

func parseSOL(flag, value string) (uint64, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("--%s: invalid SOL amount %q: %w", flag, value, err)
	}
	lamports, err := models.SOLToLamports(amount)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", flag, err)
	}
	return lamports, nil
}

// parseCommitment reads the input commitment from a hex string or hashes a file
func parseCommitment(hexValue, inputFile string) (models.InputCommitment, error) {
	switch {
	case hexValue != "" && inputFile != "":
		return models.InputCommitment{}, fmt.Errorf("--input-hash and --input-file are mutually exclusive")
	case inputFile != "":
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return models.InputCommitment{}, fmt.Errorf("failed to read input file: %w", err)
		}
		return models.InputCommitment(sha256.Sum256(data)), nil
	case hexValue != "":
		return models.ParseInputCommitment(hexValue)
	default:
		return models.InputCommitment{}, nil
	}
}
