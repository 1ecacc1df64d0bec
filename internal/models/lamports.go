package models

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL
const LamportsPerSOL = 1_000_000_000

const lamportsDecimals = 9

// LamportsToSOL converts a lamport amount to SOL
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Shift(-lamportsDecimals)
}

// SOLToLamports converts a SOL amount to lamports. Fractions below one lamport
// are rejected rather than rounded.
func SOLToLamports(sol decimal.Decimal) (uint64, error) {
	if sol.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", sol)
	}
	lamports := sol.Shift(lamportsDecimals)
	if !lamports.IsInteger() {
		return 0, fmt.Errorf("amount %s SOL is not a whole number of lamports", sol)
	}
	if lamports.GreaterThan(decimal.NewFromUint64(math.MaxUint64)) {
		return 0, fmt.Errorf("amount %s SOL overflows lamports", sol)
	}
	return lamports.BigInt().Uint64(), nil
}
