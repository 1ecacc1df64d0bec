package ledger

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/race-escrow/internal/database"
	"github.com/yourusername/race-escrow/internal/escrow"
)

var errAbort = errors.New("abort")

func pubkey(b byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(bytes.Repeat([]byte{b}, 32))
}

var (
	owner   = pubkey(0xaa)
	walletA = pubkey(1)
	walletB = pubkey(2)
	record  = pubkey(3)
)

// testBackends returns every backend available in this environment
func testBackends(t *testing.T) map[string]func(t *testing.T) Backend {
	return map[string]func(t *testing.T) Backend{
		BackendMemory: func(t *testing.T) Backend {
			return NewMemoryLedger()
		},
		BackendPostgres: func(t *testing.T) Backend {
			return NewPostgresLedger(database.SetupTestDB(t))
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, ctx context.Context, l Backend)) {
	for name, newBackend := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, context.Background(), newBackend(t))
		})
	}
}

func balance(t *testing.T, ctx context.Context, l Backend, addr solana.PublicKey) uint64 {
	t.Helper()
	lamports, err := l.Balance(ctx, addr)
	require.NoError(t, err)
	return lamports
}

func TestDepositAndBalance(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, l Backend) {
		assert.Equal(t, uint64(0), balance(t, ctx, l, walletA))

		require.NoError(t, l.Deposit(ctx, walletA, 500))
		require.NoError(t, l.Deposit(ctx, walletA, 250))
		assert.Equal(t, uint64(750), balance(t, ctx, l, walletA))
	})
}

func TestAtomicCommitsOnSuccess(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, l Backend) {
		require.NoError(t, l.Deposit(ctx, walletA, 1000))

		err := l.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
			if err := tx.CreateAccount(ctx, record, owner, 4); err != nil {
				return err
			}
			if err := tx.Transfer(ctx, walletA, record, 400); err != nil {
				return err
			}
			return tx.Store(ctx, record, []byte{1, 2, 3, 4})
		})
		require.NoError(t, err)

		assert.Equal(t, uint64(600), balance(t, ctx, l, walletA))
		assert.Equal(t, uint64(400), balance(t, ctx, l, record))

		err = l.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
			acct, err := tx.Load(ctx, record)
			require.NoError(t, err)
			assert.Equal(t, owner, acct.Owner)
			assert.Equal(t, []byte{1, 2, 3, 4}, acct.Data)
			assert.Equal(t, uint64(400), acct.Lamports)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestAtomicDiscardsOnError(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, l Backend) {
		require.NoError(t, l.Deposit(ctx, walletA, 1000))

		err := l.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
			require.NoError(t, tx.CreateAccount(ctx, record, owner, 4))
			require.NoError(t, tx.Transfer(ctx, walletA, record, 400))
			require.NoError(t, tx.Transfer(ctx, walletA, walletB, 100))
			return errAbort
		})
		require.ErrorIs(t, err, errAbort)

		assert.Equal(t, uint64(1000), balance(t, ctx, l, walletA))
		assert.Equal(t, uint64(0), balance(t, ctx, l, walletB))

		err = l.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
			_, err := tx.Load(ctx, record)
			return err
		})
		assert.ErrorIs(t, err, escrow.ErrAccountNotFound)
	})
}

func TestCreateAccountRejectsExisting(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, l Backend) {
		require.NoError(t, l.Deposit(ctx, walletA, 1))

		err := l.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
			return tx.CreateAccount(ctx, walletA, owner, 8)
		})
		assert.ErrorIs(t, err, escrow.ErrAccountExists)
	})
}

func TestStoreEnforcesSpace(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, l Backend) {
		err := l.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
			require.NoError(t, tx.CreateAccount(ctx, record, owner, 4))
			return tx.Store(ctx, record, []byte{1, 2, 3})
		})
		assert.ErrorIs(t, err, escrow.ErrAccountSize)

		err = l.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
			return tx.Store(ctx, walletB, []byte{1})
		})
		assert.ErrorIs(t, err, escrow.ErrAccountNotFound)
	})
}

func TestTransferRules(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, l Backend) {
		require.NoError(t, l.Deposit(ctx, walletA, 100))

		transfer := func(from, to solana.PublicKey, lamports uint64) error {
			return l.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
				return tx.Transfer(ctx, from, to, lamports)
			})
		}

		assert.ErrorIs(t, transfer(walletA, walletB, 101), escrow.ErrInsufficientFunds)
		assert.ErrorIs(t, transfer(walletB, walletA, 1), escrow.ErrInsufficientFunds)
		assert.ErrorIs(t, transfer(walletA, walletA, 101), escrow.ErrInsufficientFunds)

		require.NoError(t, transfer(walletA, walletA, 100))
		assert.Equal(t, uint64(100), balance(t, ctx, l, walletA))

		require.NoError(t, transfer(walletA, walletB, 100))
		assert.Equal(t, uint64(0), balance(t, ctx, l, walletA))
		assert.Equal(t, uint64(100), balance(t, ctx, l, walletB))
	})
}

func TestScanAccounts(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, l Backend) {
		require.NoError(t, l.Deposit(ctx, walletA, 1))
		for _, addr := range []solana.PublicKey{pubkey(9), pubkey(5), pubkey(7)} {
			err := l.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
				return tx.CreateAccount(ctx, addr, owner, 2)
			})
			require.NoError(t, err)
		}

		var seen []solana.PublicKey
		err := l.ScanAccounts(ctx, owner, func(acct *escrow.Account) error {
			assert.Equal(t, owner, acct.Owner)
			assert.Len(t, acct.Data, 2)
			seen = append(seen, acct.Address)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []solana.PublicKey{pubkey(5), pubkey(7), pubkey(9)}, seen)

		err = l.ScanAccounts(ctx, owner, func(*escrow.Account) error { return errAbort })
		assert.ErrorIs(t, err, errAbort)
	})
}

func TestPing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ctx context.Context, l Backend) {
		assert.NoError(t, l.Ping(ctx))
	})
}

func TestMemoryLedgerDepositOverflow(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	require.NoError(t, l.Deposit(ctx, walletA, math.MaxUint64))
	assert.ErrorIs(t, l.Deposit(ctx, walletA, 1), escrow.ErrOverflow)
	assert.Equal(t, uint64(math.MaxUint64), l.Total())
}

func TestMemoryLedgerCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewMemoryLedger()
	called := false
	err := l.Atomic(ctx, func(context.Context, escrow.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemoryLedgerLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	err := l.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
		return tx.CreateAccount(ctx, record, owner, 2)
	})
	require.NoError(t, err)

	err = l.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
		acct, err := tx.Load(ctx, record)
		require.NoError(t, err)
		acct.Data[0] = 0xff
		return nil
	})
	require.NoError(t, err)

	err = l.ScanAccounts(ctx, owner, func(acct *escrow.Account) error {
		assert.Equal(t, []byte{0, 0}, acct.Data)
		return nil
	})
	require.NoError(t, err)
}

func TestPostgresLedgerRejectsOversizedTransfer(t *testing.T) {
	l := NewPostgresLedger(database.SetupTestDB(t))
	ctx := context.Background()

	err := l.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
		return tx.Transfer(ctx, walletA, walletB, math.MaxInt64+1)
	})
	assert.ErrorIs(t, err, escrow.ErrOverflow)
}
