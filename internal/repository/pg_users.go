package repository

import (
	"context"
	"errors"
	"log/slog"

	"sixwallet/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// CreateUserWithWallet inserts the user and their zero-balance wallet in one
// transaction, so no user can exist without a wallet.
func (r *LedgerPGRepository) CreateUserWithWallet(ctx context.Context, user *models.User, wallet *models.Wallet) error {
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

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, name, email, phone, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NOW(), NOW())`,
		user.ID, user.Name, user.Email, user.Phone, user.PasswordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		r.logger.Error("Failed to insert user",
			slog.String("email", user.Email),
			slog.Any("err", err),
		)
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO wallets (id, user_id, balance, created_at, updated_at)
		VALUES ($1, $2, 0, NOW(), NOW())`,
		wallet.ID, user.ID)
	if err != nil {
		r.logger.Error("Failed to insert wallet",
			slog.String("user_id", user.ID.String()),
			slog.Any("err", err),
		)
		return err
	}

	return tx.Commit(ctx)
}

func (r *LedgerPGRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, COALESCE(phone, ''), password_hash, created_at
		FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get user", slog.Any("err", err))
		return nil, err
	}
	return &u, nil
}

// InsertBlacklistLog records the outcome of an external blacklist lookup.
// The table is append-only bookkeeping with no ledger dependencies.
func (r *LedgerPGRepository) InsertBlacklistLog(ctx context.Context, entry *models.BlacklistLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO blacklist_logs (id, identity_type, identity_value, is_blacklisted, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		entry.ID, entry.IdentityType, entry.IdentityValue, entry.IsBlacklisted)
	if err != nil {
		r.logger.Error("Failed to insert blacklist log", slog.Any("err", err))
	}
	return err
}
