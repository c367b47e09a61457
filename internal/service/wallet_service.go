package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sixwallet/internal/cache"
	"sixwallet/internal/models"
	"sixwallet/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:generate mockgen -source=wallet_service.go -destination=../../test/mock_ledger_repository.go -package=test LedgerRepository

// LedgerRepository is the store contract the engine runs on. WithinTx scopes
// one unit of work; the remaining methods are lock-free reads.
type LedgerRepository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.LedgerTx) error) error
	GetWalletByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error)
	FindTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	FindTransferByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.Transfer, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	CountTransactions(ctx context.Context, walletID uuid.UUID) (int64, error)
}

type WalletService struct {
	repo       LedgerRepository
	cache      cache.WalletCache
	logger     *slog.Logger
	maxRetries int
}

func NewWalletService(repo LedgerRepository, walletCache cache.WalletCache, logger *slog.Logger) *WalletService {
	if walletCache == nil {
		walletCache = cache.Noop{}
	}
	return &WalletService{
		repo:       repo,
		cache:      walletCache,
		logger:     logger,
		maxRetries: 3,
	}
}

// Fund credits the owner's wallet and records a credit transaction carrying
// reference. A repeated reference returns the original transaction id
// without touching the balance.
func (s *WalletService) Fund(ctx context.Context, ownerID uuid.UUID, amount int64, reference, description string) (uuid.UUID, error) {
	if amount <= 0 {
		s.logger.Warn("Fund rejected: amount must be positive",
			slog.String("user_id", ownerID.String()),
			slog.Int64("amount", amount),
		)
		return uuid.Nil, repository.ErrInvalidAmount
	}

	var txnID uuid.UUID
	op := func(ctx context.Context, tx repository.LedgerTx) error {
		existing, err := tx.FindTransactionByReference(ctx, reference)
		if err != nil {
			return err
		}
		if existing != nil {
			txnID = existing.ID
			return nil
		}

		wallet, err := tx.LockWalletForOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		if err := tx.AdjustBalance(ctx, wallet.ID, amount); err != nil {
			return err
		}

		txn := &models.Transaction{
			ID:          uuid.New(),
			WalletID:    wallet.ID,
			Type:        models.TransactionCredit,
			Amount:      amount,
			Reference:   reference,
			Description: description,
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		txnID = txn.ID
		return nil
	}

	if err := s.runLedgerOp(ctx, "fund", ownerID, op); err != nil {
		if errors.Is(err, repository.ErrDuplicateReference) {
			return s.resolveDuplicateTransaction(ctx, reference, err)
		}
		return uuid.Nil, err
	}
	s.invalidateWallet(ctx, ownerID)
	return txnID, nil
}

// Withdraw debits the owner's wallet; the balance is validated under the
// row lock so it can never go negative.
func (s *WalletService) Withdraw(ctx context.Context, ownerID uuid.UUID, amount int64, reference string) (uuid.UUID, error) {
	if amount <= 0 {
		s.logger.Warn("Withdraw rejected: amount must be positive",
			slog.String("user_id", ownerID.String()),
			slog.Int64("amount", amount),
		)
		return uuid.Nil, repository.ErrInvalidAmount
	}

	var txnID uuid.UUID
	op := func(ctx context.Context, tx repository.LedgerTx) error {
		existing, err := tx.FindTransactionByReference(ctx, reference)
		if err != nil {
			return err
		}
		if existing != nil {
			txnID = existing.ID
			return nil
		}

		wallet, err := tx.LockWalletForOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		if wallet.Balance < amount {
			return repository.ErrInsufficientFunds
		}
		if err := tx.AdjustBalance(ctx, wallet.ID, -amount); err != nil {
			return err
		}

		txn := &models.Transaction{
			ID:        uuid.New(),
			WalletID:  wallet.ID,
			Type:      models.TransactionDebit,
			Amount:    amount,
			Reference: reference,
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		txnID = txn.ID
		return nil
	}

	if err := s.runLedgerOp(ctx, "withdraw", ownerID, op); err != nil {
		if errors.Is(err, repository.ErrDuplicateReference) {
			return s.resolveDuplicateTransaction(ctx, reference, err)
		}
		return uuid.Nil, err
	}
	s.invalidateWallet(ctx, ownerID)
	return txnID, nil
}

// Transfer moves amount between two wallets as one unit of work: a debit and
// a credit transaction sharing the reference, linked by a completed transfer
// row. Wallets are always locked in owner-id order, regardless of direction,
// so two opposite transfers cannot deadlock.
func (s *WalletService) Transfer(ctx context.Context, fromOwnerID, toOwnerID uuid.UUID, amount int64, reference string) (uuid.UUID, error) {
	if amount <= 0 {
		s.logger.Warn("Transfer rejected: amount must be positive",
			slog.String("from_user_id", fromOwnerID.String()),
			slog.Int64("amount", amount),
		)
		return uuid.Nil, repository.ErrInvalidAmount
	}

	var transferID uuid.UUID
	op := func(ctx context.Context, tx repository.LedgerTx) error {
		// Both legs of a retried transfer carry the reference, so checking
		// one transaction covers both before any balance moves.
		existing, err := tx.FindTransactionByReference(ctx, reference)
		if err != nil {
			return err
		}
		if existing != nil {
			prior, err := tx.FindTransferByTransactionID(ctx, existing.ID)
			if err != nil {
				return err
			}
			if prior == nil {
				// Reference was consumed by a fund/withdraw, not a transfer.
				return repository.ErrDuplicateReference
			}
			transferID = prior.ID
			return nil
		}

		first, second := fromOwnerID, toOwnerID
		if first.String() > second.String() {
			first, second = second, first
		}
		firstWallet, err := tx.LockWalletForOwner(ctx, first)
		if err != nil {
			return err
		}
		secondWallet := firstWallet
		if second != first {
			secondWallet, err = tx.LockWalletForOwner(ctx, second)
			if err != nil {
				return err
			}
		}
		source, dest := firstWallet, secondWallet
		if first != fromOwnerID {
			source, dest = secondWallet, firstWallet
		}

		if source.Balance < amount {
			return repository.ErrInsufficientFunds
		}
		if err := tx.AdjustBalance(ctx, source.ID, -amount); err != nil {
			return err
		}
		if err := tx.AdjustBalance(ctx, dest.ID, amount); err != nil {
			return err
		}

		debit := &models.Transaction{
			ID:        uuid.New(),
			WalletID:  source.ID,
			Type:      models.TransactionDebit,
			Amount:    amount,
			Reference: reference,
		}
		credit := &models.Transaction{
			ID:        uuid.New(),
			WalletID:  dest.ID,
			Type:      models.TransactionCredit,
			Amount:    amount,
			Reference: reference,
		}
		if err := tx.InsertTransaction(ctx, debit); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, credit); err != nil {
			return err
		}

		transfer := &models.Transfer{
			ID:                uuid.New(),
			FromTransactionID: debit.ID,
			ToTransactionID:   credit.ID,
			Status:            models.TransferCompleted,
		}
		if err := tx.InsertTransfer(ctx, transfer); err != nil {
			return err
		}
		transferID = transfer.ID
		return nil
	}

	if err := s.runLedgerOp(ctx, "transfer", fromOwnerID, op); err != nil {
		if errors.Is(err, repository.ErrDuplicateReference) {
			return s.resolveDuplicateTransfer(ctx, reference, err)
		}
		return uuid.Nil, err
	}
	s.invalidateWallet(ctx, fromOwnerID)
	s.invalidateWallet(ctx, toOwnerID)
	return transferID, nil
}

// GetWallet is a point-in-time read; staleness under concurrent writes is
// acceptable for display.
func (s *WalletService) GetWallet(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	if w, err := s.cache.Get(ctx, ownerID); err == nil && w != nil {
		return w, nil
	}
	wallet, err := s.repo.GetWalletByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			s.logger.Warn("GetWallet: wallet not found",
				slog.String("user_id", ownerID.String()),
			)
			return nil, repository.ErrWalletNotFound
		}
		s.logger.Error("GetWallet failed",
			slog.String("user_id", ownerID.String()),
			slog.Any("err", err),
		)
		return nil, err
	}
	_ = s.cache.Set(ctx, wallet)
	return wallet, nil
}

// GetTransactionHistory returns one page of the wallet's transactions,
// newest first. Pages beyond the end come back empty, not as an error.
func (s *WalletService) GetTransactionHistory(ctx context.Context, ownerID uuid.UUID, page, pageSize int) (*models.TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	wallet, err := s.repo.GetWalletByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.CountTransactions(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListTransactions(ctx, wallet.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	totalPages := total / int64(pageSize)
	if total%int64(pageSize) > 0 {
		totalPages++
	}
	return &models.TransactionPage{
		Transactions: records,
		Pagination: models.Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: totalPages,
		},
	}, nil
}

// runLedgerOp executes one ledger unit of work, retrying the whole operation
// a bounded number of times when the store reports a serialization failure,
// deadlock, or lock timeout. Business-rule failures are never retried.
func (s *WalletService) runLedgerOp(ctx context.Context, name string, ownerID uuid.UUID, op func(context.Context, repository.LedgerTx) error) error {
	var lastErr error
	for i := 0; i < s.maxRetries; i++ {
		err := s.repo.WithinTx(ctx, op)
		if err == nil {
			return nil
		}
		if isRetryableError(err) {
			s.logger.Warn("Retrying ledger operation",
				slog.String("op", name),
				slog.String("user_id", ownerID.String()),
				slog.Int("attempt", i+1),
				slog.Any("err", err),
			)
			time.Sleep(time.Duration(1<<i) * 10 * time.Millisecond)
			lastErr = err
			continue
		}
		if errors.Is(err, repository.ErrConstraintViolation) {
			// The engine validated first, so the storage backstop firing
			// means a bug, not a transient condition.
			s.logger.Error("Ledger constraint violation",
				slog.String("op", name),
				slog.String("user_id", ownerID.String()),
				slog.Any("err", err),
			)
		}
		return err
	}
	s.logger.Error("Ledger operation failed after retries",
		slog.String("op", name),
		slog.String("user_id", ownerID.String()),
		slog.Any("err", lastErr),
	)
	return lastErr
}

// resolveDuplicateTransaction handles the unique-constraint backstop firing
// when the pre-check raced: the reference already has a transaction, so the
// retry is benign and the original id is returned.
func (s *WalletService) resolveDuplicateTransaction(ctx context.Context, reference string, cause error) (uuid.UUID, error) {
	existing, err := s.repo.FindTransactionByReference(ctx, reference)
	if err != nil || existing == nil {
		return uuid.Nil, cause
	}
	return existing.ID, nil
}

func (s *WalletService) resolveDuplicateTransfer(ctx context.Context, reference string, cause error) (uuid.UUID, error) {
	existing, err := s.repo.FindTransactionByReference(ctx, reference)
	if err != nil || existing == nil {
		return uuid.Nil, cause
	}
	prior, err := s.repo.FindTransferByTransactionID(ctx, existing.ID)
	if err != nil || prior == nil {
		return uuid.Nil, cause
	}
	return prior.ID, nil
}

func (s *WalletService) invalidateWallet(ctx context.Context, ownerID uuid.UUID) {
	if err := s.cache.Delete(ctx, ownerID); err != nil {
		s.logger.Warn("Failed to invalidate wallet cache",
			slog.String("user_id", ownerID.String()),
			slog.Any("err", err),
		)
	}
}

func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01" || pgErr.Code == "55P03"
	}
	return false
}
