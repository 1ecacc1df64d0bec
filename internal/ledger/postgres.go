package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yourusername/race-escrow/internal/database"
	"github.com/yourusername/race-escrow/internal/escrow"
	"github.com/yourusername/race-escrow/internal/metrics"
)

// SQLSTATE numeric_value_out_of_range
const pgNumericOutOfRange = "22003"

// PostgresLedger stores accounts in the ledger_accounts table. Each Atomic
// call is one database transaction; rows are locked with SELECT ... FOR UPDATE
// before they are read for a state transition.
type PostgresLedger struct {
	db *database.DB
}

// NewPostgresLedger creates a ledger over db
func NewPostgresLedger(db *database.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Atomic runs fn in a database transaction
func (l *PostgresLedger) Atomic(ctx context.Context, fn func(ctx context.Context, tx escrow.Tx) error) error {
	start := time.Now()
	err := l.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &postgresTx{tx: tx})
	})
	metrics.RecordLedgerTransaction(BackendPostgres, err == nil, time.Since(start).Seconds())
	return err
}

// Deposit credits lamports to a wallet account, creating it if needed
func (l *PostgresLedger) Deposit(ctx context.Context, address solana.PublicKey, lamports uint64) error {
	return l.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return (&postgresTx{tx: tx}).credit(ctx, address, lamports)
	})
}

// Balance returns the lamports held by address, zero if it does not exist
func (l *PostgresLedger) Balance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	var lamports int64
	err := l.db.GetPool().QueryRow(ctx,
		"SELECT lamports FROM ledger_accounts WHERE address = $1", address[:],
	).Scan(&lamports)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance of %s: %w", address, err)
	}
	return uint64(lamports), nil
}

// ScanAccounts calls fn for each account owned by owner, in address order
func (l *PostgresLedger) ScanAccounts(ctx context.Context, owner solana.PublicKey, fn func(*escrow.Account) error) error {
	rows, err := l.db.GetPool().Query(ctx,
		"SELECT address, owner, lamports, data FROM ledger_accounts WHERE owner = $1 ORDER BY address",
		owner[:],
	)
	if err != nil {
		return fmt.Errorf("failed to scan accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return err
		}
		if err := fn(acct); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return nil
}

// Ping verifies database connectivity
func (l *PostgresLedger) Ping(ctx context.Context) error {
	return l.db.Ping(ctx)
}

func scanAccount(row pgx.Row) (*escrow.Account, error) {
	var (
		address, owner []byte
		lamports       int64
		data           []byte
	)
	if err := row.Scan(&address, &owner, &lamports, &data); err != nil {
		return nil, err
	}
	return &escrow.Account{
		Address:  solana.PublicKeyFromBytes(address),
		Owner:    solana.PublicKeyFromBytes(owner),
		Lamports: uint64(lamports),
		Data:     data,
	}, nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) CreateAccount(ctx context.Context, address, owner solana.PublicKey, space int) error {
	tag, err := t.tx.Exec(ctx,
		`INSERT INTO ledger_accounts (address, owner, lamports, data, space)
		 VALUES ($1, $2, 0, $3, $4)
		 ON CONFLICT (address) DO NOTHING`,
		address[:], owner[:], make([]byte, space), space,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account %s: %w", address, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", escrow.ErrAccountExists, address)
	}
	return nil
}

func (t *postgresTx) Load(ctx context.Context, address solana.PublicKey) (*escrow.Account, error) {
	row := t.tx.QueryRow(ctx,
		"SELECT address, owner, lamports, data FROM ledger_accounts WHERE address = $1 FOR UPDATE",
		address[:],
	)
	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound(address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", address, err)
	}
	return acct, nil
}

func (t *postgresTx) Store(ctx context.Context, address solana.PublicKey, data []byte) error {
	var space int
	err := t.tx.QueryRow(ctx,
		"SELECT space FROM ledger_accounts WHERE address = $1 FOR UPDATE", address[:],
	).Scan(&space)
	if errors.Is(err, pgx.ErrNoRows) {
		return errNotFound(address)
	}
	if err != nil {
		return fmt.Errorf("failed to lock account %s: %w", address, err)
	}
	if len(data) != space {
		return fmt.Errorf("%w: %d != %d", escrow.ErrAccountSize, len(data), space)
	}

	if _, err := t.tx.Exec(ctx,
		"UPDATE ledger_accounts SET data = $2, updated_at = now() WHERE address = $1",
		address[:], data,
	); err != nil {
		return fmt.Errorf("failed to store account %s: %w", address, err)
	}
	return nil
}

func (t *postgresTx) Transfer(ctx context.Context, from, to solana.PublicKey, lamports uint64) error {
	if lamports > math.MaxInt64 {
		return fmt.Errorf("%w: transfer of %d lamports", escrow.ErrOverflow, lamports)
	}

	if from.Equals(to) {
		acct, err := t.Load(ctx, from)
		if err != nil || acct.Lamports < lamports {
			return fmt.Errorf("%w: %s cannot cover %d lamports", escrow.ErrInsufficientFunds, from, lamports)
		}
		return nil
	}

	tag, err := t.tx.Exec(ctx,
		`UPDATE ledger_accounts SET lamports = lamports - $2, updated_at = now()
		 WHERE address = $1 AND lamports >= $2`,
		from[:], int64(lamports),
	)
	if err != nil {
		return fmt.Errorf("failed to debit %s: %w", from, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s cannot cover %d lamports", escrow.ErrInsufficientFunds, from, lamports)
	}
	return t.credit(ctx, to, lamports)
}

// credit adds lamports to address, creating a system-owned wallet if needed
func (t *postgresTx) credit(ctx context.Context, address solana.PublicKey, lamports uint64) error {
	if lamports > math.MaxInt64 {
		return fmt.Errorf("%w: credit of %d lamports", escrow.ErrOverflow, lamports)
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO ledger_accounts (address, owner, lamports)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (address) DO UPDATE
		 SET lamports = ledger_accounts.lamports + EXCLUDED.lamports, updated_at = now()`,
		address[:], solana.SystemProgramID[:], int64(lamports),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgNumericOutOfRange {
		return fmt.Errorf("%w: balance of %s", escrow.ErrOverflow, address)
	}
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", address, err)
	}
	return nil
}
