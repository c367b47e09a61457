package repository_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"sixwallet/internal/models"
	"sixwallet/internal/repository"
	"sixwallet/internal/testutil"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func seedUserWithWallet(t *testing.T, repo *repository.LedgerPGRepository, balance int64) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	user := &models.User{
		ID:           uuid.New(),
		Name:         "Test User",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
	}
	wallet := &models.Wallet{ID: uuid.New(), UserID: user.ID}
	require.NoError(t, repo.CreateUserWithWallet(ctx, user, wallet))

	if balance > 0 {
		err := repo.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
			return tx.AdjustBalance(ctx, wallet.ID, balance)
		})
		require.NoError(t, err)
	}
	return user.ID, wallet.ID
}

func TestCreateUserWithWallet_DuplicateEmail(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := repository.NewLedgerPGRepository(pool, testLogger)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Name: "A", Email: "dup@example.com", PasswordHash: "x"}
	require.NoError(t, repo.CreateUserWithWallet(ctx, user, &models.Wallet{ID: uuid.New(), UserID: user.ID}))

	again := &models.User{ID: uuid.New(), Name: "B", Email: "dup@example.com", PasswordHash: "x"}
	err := repo.CreateUserWithWallet(ctx, again, &models.Wallet{ID: uuid.New(), UserID: again.ID})
	assert.ErrorIs(t, err, repository.ErrEmailTaken)
}

func TestAdjustBalance_CheckConstraintBlocksNegativeBalance(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := repository.NewLedgerPGRepository(pool, testLogger)
	ctx := context.Background()

	ownerID, walletID := seedUserWithWallet(t, repo, 500)

	err := repo.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		return tx.AdjustBalance(ctx, walletID, -600)
	})
	assert.ErrorIs(t, err, repository.ErrConstraintViolation)

	wallet, err := repo.GetWalletByOwner(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), wallet.Balance)
}

func TestInsertTransaction_DuplicateReferenceSameType(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := repository.NewLedgerPGRepository(pool, testLogger)
	ctx := context.Background()

	_, walletID := seedUserWithWallet(t, repo, 0)

	insert := func(txnType string) error {
		return repo.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
			return tx.InsertTransaction(ctx, &models.Transaction{
				ID:        uuid.New(),
				WalletID:  walletID,
				Type:      txnType,
				Amount:    100,
				Reference: "ref-1",
			})
		})
	}

	require.NoError(t, insert(models.TransactionCredit))
	assert.ErrorIs(t, insert(models.TransactionCredit), repository.ErrDuplicateReference)
	// The opposite leg of a transfer may share the reference.
	assert.NoError(t, insert(models.TransactionDebit))
}

func TestLockWalletForOwner_SerializesWriters(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := repository.NewLedgerPGRepository(pool, testLogger)
	ctx := context.Background()

	ownerID, walletID := seedUserWithWallet(t, repo, 0)

	// Two writers lock-then-adjust concurrently; the row lock makes both
	// deltas land.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
				if _, err := tx.LockWalletForOwner(ctx, ownerID); err != nil {
					return err
				}
				time.Sleep(100 * time.Millisecond)
				return tx.AdjustBalance(ctx, walletID, 100)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	wallet, err := repo.GetWalletByOwner(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), wallet.Balance)
}

func TestListTransactions_NewestFirstWithPaging(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := repository.NewLedgerPGRepository(pool, testLogger)
	ctx := context.Background()

	_, walletID := seedUserWithWallet(t, repo, 0)
	insertAt(t, pool, walletID, "old", time.Now().Add(-2*time.Hour))
	insertAt(t, pool, walletID, "mid", time.Now().Add(-1*time.Hour))
	insertAt(t, pool, walletID, "new", time.Now())

	records, err := repo.ListTransactions(ctx, walletID, 2, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "new", records[0].Reference)
	assert.Equal(t, "mid", records[1].Reference)

	records, err = repo.ListTransactions(ctx, walletID, 2, 2)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "old", records[0].Reference)

	total, err := repo.CountTransactions(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestFindTransactionByReference_MissingIsNil(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := repository.NewLedgerPGRepository(pool, testLogger)

	txn, err := repo.FindTransactionByReference(context.Background(), "no-such-ref")
	assert.NoError(t, err)
	assert.Nil(t, txn)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := repository.NewLedgerPGRepository(pool, testLogger)
	ctx := context.Background()

	ownerID, walletID := seedUserWithWallet(t, repo, 0)

	err := repo.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		if err := tx.AdjustBalance(ctx, walletID, 1000); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.Error(t, err)

	wallet, err := repo.GetWalletByOwner(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.Balance)
}

func insertAt(t *testing.T, pool *pgxpool.Pool, walletID uuid.UUID, reference string, at time.Time) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO transactions (id, wallet_id, type, amount, reference, created_at)
		VALUES ($1, $2, 'credit', 100, $3, $4)`,
		uuid.New(), walletID, reference, at)
	require.NoError(t, err)
}
