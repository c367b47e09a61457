package repository

import (
	"context"
	"errors"
	"log/slog"

	"sixwallet/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrDuplicateReference  = errors.New("duplicate transaction reference")
	ErrConstraintViolation = errors.New("balance constraint violated")
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailTaken          = errors.New("email already registered")
)

//go:generate mockgen -source=pg_repository.go -destination=../../test/mock_ledger_tx.go -package=test LedgerTx

// LedgerTx is the unit-of-work surface of the ledger store. Every method
// runs on the same database transaction; a row locked through it stays
// locked until the unit of work commits or rolls back.
type LedgerTx interface {
	LockWalletForOwner(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error)
	FindTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	FindTransferByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Transfer, error)
	AdjustBalance(ctx context.Context, walletID uuid.UUID, delta int64) error
	InsertTransaction(ctx context.Context, txn *models.Transaction) error
	InsertTransfer(ctx context.Context, transfer *models.Transfer) error
}

type LedgerPGRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewLedgerPGRepository(pool *pgxpool.Pool, logger *slog.Logger) *LedgerPGRepository {
	return &LedgerPGRepository{
		pool:   pool,
		logger: logger,
	}
}

// WithinTx runs fn inside one database transaction and commits it if fn
// returns nil. Any error rolls the whole unit of work back.
func (r *LedgerPGRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		r.logger.Error("Failed to begin transaction", slog.Any("err", err))
		return err
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			r.logger.Error("Failed to rollback transaction", slog.Any("err", err))
		}
	}()

	if err := fn(ctx, &ledgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("Failed to commit transaction", slog.Any("err", err))
		return err
	}
	return nil
}

func (r *LedgerPGRepository) GetWalletByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets WHERE user_id = $1`, ownerID,
	).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get wallet",
			slog.String("user_id", ownerID.String()),
			slog.Any("err", err),
		)
		return nil, err
	}
	return &w, nil
}

// FindTransactionByReference is the lock-free idempotency lookup. It returns
// (nil, nil) when no transaction carries the reference.
func (r *LedgerPGRepository) FindTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	return findTransactionByReference(ctx, r.pool, reference)
}

func (r *LedgerPGRepository) FindTransferByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Transfer, error) {
	return findTransferByTransactionID(ctx, r.pool, transactionID)
}

func (r *LedgerPGRepository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, wallet_id, type, amount, reference, COALESCE(description, ''), created_at
		FROM transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, walletID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list transactions",
			slog.String("wallet_id", walletID.String()),
			slog.Any("err", err),
		)
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Transaction, 0)
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Reference, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *LedgerPGRepository) CountTransactions(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM transactions WHERE wallet_id = $1", walletID,
	).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count transactions",
			slog.String("wallet_id", walletID.String()),
			slog.Any("err", err),
		)
		return 0, err
	}
	return count, nil
}

// ledgerTx implements LedgerTx over a pgx transaction.
type ledgerTx struct {
	tx pgx.Tx
}

func (l *ledgerTx) LockWalletForOwner(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := l.tx.QueryRow(ctx, `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets WHERE user_id = $1 FOR UPDATE`, ownerID,
	).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (l *ledgerTx) FindTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	return findTransactionByReference(ctx, l.tx, reference)
}

func (l *ledgerTx) FindTransferByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Transfer, error) {
	return findTransferByTransactionID(ctx, l.tx, transactionID)
}

// AdjustBalance applies delta as a single atomic read-modify-write. The
// CHECK (balance >= 0) constraint is the storage-level backstop behind the
// engine's own insufficient-funds check.
func (l *ledgerTx) AdjustBalance(ctx context.Context, walletID uuid.UUID, delta int64) error {
	tag, err := l.tx.Exec(ctx, `
		UPDATE wallets SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1`, walletID, delta)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return ErrConstraintViolation
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (l *ledgerTx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	_, err := l.tx.Exec(ctx, `
		INSERT INTO transactions (id, wallet_id, type, amount, reference, description, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW())`,
		txn.ID, txn.WalletID, txn.Type, txn.Amount, txn.Reference, txn.Description)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (l *ledgerTx) InsertTransfer(ctx context.Context, transfer *models.Transfer) error {
	_, err := l.tx.Exec(ctx, `
		INSERT INTO transfers (id, from_transaction_id, to_transaction_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		transfer.ID, transfer.FromTransactionID, transfer.ToTransactionID, transfer.Status)
	return err
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the point
// lookups behave identically inside and outside a unit of work.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func findTransactionByReference(ctx context.Context, q querier, reference string) (*models.Transaction, error) {
	var t models.Transaction
	err := q.QueryRow(ctx, `
		SELECT id, wallet_id, type, amount, reference, COALESCE(description, ''), created_at
		FROM transactions WHERE reference = $1
		ORDER BY created_at LIMIT 1`, reference,
	).Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Reference, &t.Description, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func findTransferByTransactionID(ctx context.Context, q querier, transactionID uuid.UUID) (*models.Transfer, error) {
	var tr models.Transfer
	err := q.QueryRow(ctx, `
		SELECT id, from_transaction_id, to_transaction_id, status, created_at, updated_at
		FROM transfers
		WHERE from_transaction_id = $1 OR to_transaction_id = $1`, transactionID,
	).Scan(&tr.ID, &tr.FromTransactionID, &tr.ToTransactionID, &tr.Status, &tr.CreatedAt, &tr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tr, nil
}
