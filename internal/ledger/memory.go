package ledger

import (
	"bytes"
	"context"
	"fmt"
	"math/bits"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/yourusername/race-escrow/internal/escrow"
	"github.com/yourusername/race-escrow/internal/metrics"
)

type memAccount struct {
	owner    solana.PublicKey
	lamports uint64
	data     []byte
}

func (a *memAccount) clone() *memAccount {
	return &memAccount{
		owner:    a.owner,
		lamports: a.lamports,
		data:     bytes.Clone(a.data),
	}
}

// MemoryLedger is an in-process ledger. Operations are serialized by a single
// mutex and run against staged copies of the accounts they touch; the staged
// copies replace the originals only when the operation succeeds.
type MemoryLedger struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]*memAccount
}

// NewMemoryLedger creates an empty ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		accounts: make(map[solana.PublicKey]*memAccount),
	}
}

// Atomic runs fn as one all-or-nothing operation
func (l *MemoryLedger) Atomic(ctx context.Context, fn func(ctx context.Context, tx escrow.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	tx := &memoryTx{
		base:   l.accounts,
		staged: make(map[solana.PublicKey]*memAccount),
	}
	if err := fn(ctx, tx); err != nil {
		metrics.RecordLedgerTransaction(BackendMemory, false, time.Since(start).Seconds())
		return err
	}
	for addr, acct := range tx.staged {
		l.accounts[addr] = acct
	}
	metrics.RecordLedgerTransaction(BackendMemory, true, time.Since(start).Seconds())
	return nil
}

// Deposit credits lamports to a wallet account, creating it if needed
func (l *MemoryLedger) Deposit(ctx context.Context, address solana.PublicKey, lamports uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[address]
	if !ok {
		acct = &memAccount{owner: solana.SystemProgramID}
		l.accounts[address] = acct
	}
	sum, carry := bits.Add64(acct.lamports, lamports, 0)
	if carry != 0 {
		return fmt.Errorf("%w: balance of %s", escrow.ErrOverflow, address)
	}
	acct.lamports = sum
	return nil
}

// Balance returns the lamports held by address, zero if it does not exist
func (l *MemoryLedger) Balance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if acct, ok := l.accounts[address]; ok {
		return acct.lamports, nil
	}
	return 0, nil
}

// Total returns the sum of all balances. Transfers never change it.
func (l *MemoryLedger) Total() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total uint64
	for _, acct := range l.accounts {
		total += acct.lamports
	}
	return total
}

// ScanAccounts calls fn for each account owned by owner, in address order
func (l *MemoryLedger) ScanAccounts(ctx context.Context, owner solana.PublicKey, fn func(*escrow.Account) error) error {
	l.mu.Lock()
	snapshot := make([]*escrow.Account, 0)
	for addr, acct := range l.accounts {
		if acct.owner.Equals(owner) {
			snapshot = append(snapshot, toAccount(addr, acct))
		}
	}
	l.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool {
		return bytes.Compare(snapshot[i].Address[:], snapshot[j].Address[:]) < 0
	})
	for _, acct := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(acct); err != nil {
			return err
		}
	}
	return nil
}

// Ping always succeeds
func (l *MemoryLedger) Ping(ctx context.Context) error {
	return ctx.Err()
}

func toAccount(addr solana.PublicKey, acct *memAccount) *escrow.Account {
	return &escrow.Account{
		Address:  addr,
		Owner:    acct.owner,
		Lamports: acct.lamports,
		Data:     bytes.Clone(acct.data),
	}
}

type memoryTx struct {
	base   map[solana.PublicKey]*memAccount
	staged map[solana.PublicKey]*memAccount
}

// get returns the staged copy of an account, staging it on first touch
func (tx *memoryTx) get(addr solana.PublicKey) (*memAccount, bool) {
	if acct, ok := tx.staged[addr]; ok {
		return acct, true
	}
	acct, ok := tx.base[addr]
	if !ok {
		return nil, false
	}
	staged := acct.clone()
	tx.staged[addr] = staged
	return staged, true
}

func (tx *memoryTx) CreateAccount(_ context.Context, address, owner solana.PublicKey, space int) error {
	if _, ok := tx.get(address); ok {
		return fmt.Errorf("%w: %s", escrow.ErrAccountExists, address)
	}
	tx.staged[address] = &memAccount{
		owner: owner,
		data:  make([]byte, space),
	}
	return nil
}

func (tx *memoryTx) Load(_ context.Context, address solana.PublicKey) (*escrow.Account, error) {
	acct, ok := tx.get(address)
	if !ok {
		return nil, errNotFound(address)
	}
	return toAccount(address, acct), nil
}

func (tx *memoryTx) Store(_ context.Context, address solana.PublicKey, data []byte) error {
	acct, ok := tx.get(address)
	if !ok {
		return errNotFound(address)
	}
	if len(data) != len(acct.data) {
		return fmt.Errorf("%w: %d != %d", escrow.ErrAccountSize, len(data), len(acct.data))
	}
	copy(acct.data, data)
	return nil
}

func (tx *memoryTx) Transfer(_ context.Context, from, to solana.PublicKey, lamports uint64) error {
	src, ok := tx.get(from)
	if !ok || src.lamports < lamports {
		return fmt.Errorf("%w: %s cannot cover %d lamports", escrow.ErrInsufficientFunds, from, lamports)
	}
	if from.Equals(to) {
		return nil
	}

	dst, ok := tx.get(to)
	if !ok {
		dst = &memAccount{owner: solana.SystemProgramID}
		tx.staged[to] = dst
	}
	sum, carry := bits.Add64(dst.lamports, lamports, 0)
	if carry != 0 {
		return fmt.Errorf("%w: balance of %s", escrow.ErrOverflow, to)
	}

	src.lamports -= lamports
	dst.lamports = sum
	return nil
}
