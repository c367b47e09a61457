package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"sixwallet/internal/models"
	"sixwallet/internal/repository"
	"sixwallet/internal/service"
	"sixwallet/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newLedger(t *testing.T) (*service.WalletService, *repository.LedgerPGRepository) {
	t.Helper()
	pool := testutil.SetupTestDB(t)
	repo := repository.NewLedgerPGRepository(pool, testLogger)
	return service.NewWalletService(repo, nil, testLogger), repo
}

func newOwner(t *testing.T, repo *repository.LedgerPGRepository) uuid.UUID {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Name:         "Test User",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, repo.CreateUserWithWallet(context.Background(), user, &models.Wallet{ID: uuid.New(), UserID: user.ID}))
	return user.ID
}

func balanceOf(t *testing.T, svc *service.WalletService, ownerID uuid.UUID) int64 {
	t.Helper()
	wallet, err := svc.GetWallet(context.Background(), ownerID)
	require.NoError(t, err)
	return wallet.Balance
}

func TestFundThenWithdraw(t *testing.T) {
	svc, repo := newLedger(t)
	ctx := context.Background()
	ownerID := newOwner(t, repo)

	_, err := svc.Fund(ctx, ownerID, 1000, "fund-1", "initial top up")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balanceOf(t, svc, ownerID))

	_, err = svc.Withdraw(ctx, ownerID, 400, "wd-1")
	require.NoError(t, err)
	assert.Equal(t, int64(600), balanceOf(t, svc, ownerID))

	_, err = svc.Withdraw(ctx, ownerID, 2000, "wd-2")
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)
	assert.Equal(t, int64(600), balanceOf(t, svc, ownerID))
}

func TestFund_IsIdempotentPerReference(t *testing.T) {
	svc, repo := newLedger(t)
	ctx := context.Background()
	ownerID := newOwner(t, repo)

	first, err := svc.Fund(ctx, ownerID, 1000, "fund-1", "")
	require.NoError(t, err)

	second, err := svc.Fund(ctx, ownerID, 1000, "fund-1", "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1000), balanceOf(t, svc, ownerID))
}

func TestTransfer_MovesFundsAndRecordsBothLegs(t *testing.T) {
	svc, repo := newLedger(t)
	ctx := context.Background()
	alice := newOwner(t, repo)
	bob := newOwner(t, repo)

	_, err := svc.Fund(ctx, alice, 1000, "fund-alice", "")
	require.NoError(t, err)

	transferID, err := svc.Transfer(ctx, alice, bob, 200, "tr-1")
	require.NoError(t, err)
	assert.Equal(t, int64(800), balanceOf(t, svc, alice))
	assert.Equal(t, int64(200), balanceOf(t, svc, bob))

	// Both legs share the reference and link to the completed transfer.
	txn, err := repo.FindTransactionByReference(ctx, "tr-1")
	require.NoError(t, err)
	require.NotNil(t, txn)
	transfer, err := repo.FindTransferByTransactionID(ctx, txn.ID)
	require.NoError(t, err)
	require.NotNil(t, transfer)
	assert.Equal(t, transferID, transfer.ID)
	assert.Equal(t, models.TransferCompleted, transfer.Status)

	alicePage, err := svc.GetTransactionHistory(ctx, alice, 1, 10)
	require.NoError(t, err)
	require.Len(t, alicePage.Transactions, 2)
	assert.Equal(t, models.TransactionDebit, alicePage.Transactions[0].Type)

	bobPage, err := svc.GetTransactionHistory(ctx, bob, 1, 10)
	require.NoError(t, err)
	require.Len(t, bobPage.Transactions, 1)
	assert.Equal(t, models.TransactionCredit, bobPage.Transactions[0].Type)
}

func TestTransfer_IsIdempotentPerReference(t *testing.T) {
	svc, repo := newLedger(t)
	ctx := context.Background()
	alice := newOwner(t, repo)
	bob := newOwner(t, repo)

	_, err := svc.Fund(ctx, alice, 1000, "fund-alice", "")
	require.NoError(t, err)

	first, err := svc.Transfer(ctx, alice, bob, 200, "tr-1")
	require.NoError(t, err)

	second, err := svc.Transfer(ctx, alice, bob, 200, "tr-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(800), balanceOf(t, svc, alice))
	assert.Equal(t, int64(200), balanceOf(t, svc, bob))
}

func TestTransfer_InsufficientFundsChangesNothing(t *testing.T) {
	svc, repo := newLedger(t)
	ctx := context.Background()
	alice := newOwner(t, repo)
	bob := newOwner(t, repo)

	_, err := svc.Fund(ctx, alice, 100, "fund-alice", "")
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, alice, bob, 200, "tr-1")
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)
	assert.Equal(t, int64(100), balanceOf(t, svc, alice))
	assert.Equal(t, int64(0), balanceOf(t, svc, bob))
}

// Concurrent transfers against one source must conserve money: exactly the
// funded amount moves, the rest fail with insufficient funds, and the source
// never goes negative.
func TestTransfer_ConcurrentDrainConservesMoney(t *testing.T) {
	svc, repo := newLedger(t)
	ctx := context.Background()
	alice := newOwner(t, repo)
	bob := newOwner(t, repo)

	_, err := svc.Fund(ctx, alice, 1000, "fund-alice", "")
	require.NoError(t, err)

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Transfer(ctx, alice, bob, 100, fmt.Sprintf("drain-%d", i))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded, failed := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, repository.ErrInsufficientFunds)
			failed++
		}
	}
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 10, failed)
	assert.Equal(t, int64(0), balanceOf(t, svc, alice))
	assert.Equal(t, int64(1000), balanceOf(t, svc, bob))
}

// Opposite-direction transfers exercise the owner-ordered locking; none of
// them may deadlock past the bounded retries.
func TestTransfer_OppositeDirectionsComplete(t *testing.T) {
	svc, repo := newLedger(t)
	ctx := context.Background()
	alice := newOwner(t, repo)
	bob := newOwner(t, repo)

	_, err := svc.Fund(ctx, alice, 1000, "fund-alice", "")
	require.NoError(t, err)
	_, err = svc.Fund(ctx, bob, 1000, "fund-bob", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Transfer(ctx, alice, bob, 50, fmt.Sprintf("ab-%d", i))
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Transfer(ctx, bob, alice, 50, fmt.Sprintf("ba-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1000), balanceOf(t, svc, alice))
	assert.Equal(t, int64(1000), balanceOf(t, svc, bob))
}

func TestGetTransactionHistory_SecondPage(t *testing.T) {
	svc, repo := newLedger(t)
	ctx := context.Background()
	ownerID := newOwner(t, repo)

	for i := 1; i <= 3; i++ {
		_, err := svc.Fund(ctx, ownerID, int64(i*100), fmt.Sprintf("fund-%d", i), "")
		require.NoError(t, err)
	}

	page, err := svc.GetTransactionHistory(ctx, ownerID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, int64(3), page.Pagination.TotalItems)
	assert.Equal(t, int64(3), page.Pagination.TotalPages)

	beyond, err := svc.GetTransactionHistory(ctx, ownerID, 9, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond.Transactions)
}

func TestGetWallet_UnknownOwner(t *testing.T) {
	svc, _ := newLedger(t)

	_, err := svc.GetWallet(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrWalletNotFound)
}
