package escrow

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Account is the ledger's view of a single account
type Account struct {
	Address  solana.PublicKey
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

// Tx is a single atomic unit of work against the ledger. Its effects become
// visible only when the function given to Ledger.Atomic returns nil.
type Tx interface {
	// CreateAccount allocates a zero-filled account of the given space owned by
	// owner. It fails with ErrAccountExists if the address is taken.
	CreateAccount(ctx context.Context, address, owner solana.PublicKey, space int) error
	// Load returns a copy of the account or ErrAccountNotFound.
	Load(ctx context.Context, address solana.PublicKey) (*Account, error)
	// Store replaces the account data. The length must equal the allocated space.
	Store(ctx context.Context, address solana.PublicKey, data []byte) error
	// Transfer moves lamports between accounts, failing with ErrInsufficientFunds
	// if from cannot cover the amount.
	Transfer(ctx context.Context, from, to solana.PublicKey, lamports uint64) error
}

// Ledger executes operations atomically. Operations touching the same account
// are serialized: no two of them observe the same pre-state.
type Ledger interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
