// Package ledger provides escrow.Ledger implementations.
package ledger

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/yourusername/race-escrow/internal/escrow"
)

// Backend names, as used in configuration and metrics labels
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Backend is a ledger the service and CLI can operate on. Beyond the atomic
// operations the escrow program needs, it can fund wallets and list accounts.
type Backend interface {
	escrow.Ledger

	// Deposit credits lamports to a wallet, creating it if needed.
	Deposit(ctx context.Context, address solana.PublicKey, lamports uint64) error
	// Balance returns the lamports held by address, zero for unknown accounts.
	Balance(ctx context.Context, address solana.PublicKey) (uint64, error)
	// ScanAccounts calls fn for every account owned by owner, in address order.
	ScanAccounts(ctx context.Context, owner solana.PublicKey, fn func(*escrow.Account) error) error
	Ping(ctx context.Context) error
}

var (
	_ Backend = (*MemoryLedger)(nil)
	_ Backend = (*PostgresLedger)(nil)
)

func errNotFound(address solana.PublicKey) error {
	return fmt.Errorf("%w: %s", escrow.ErrAccountNotFound, address)
}
