// Package cache provides a best-effort read cache for wallet snapshots.
// The ledger is the source of truth; cache failures are logged, never
// surfaced, and every balance mutation invalidates the owner's entry.
package cache

import (
	"context"

	"sixwallet/internal/models"

	"github.com/google/uuid"
)

type WalletCache interface {
	Get(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error)
	Set(ctx context.Context, wallet *models.Wallet) error
	Delete(ctx context.Context, ownerID uuid.UUID) error
}

// Noop is used when no Redis is configured and in unit tests.
type Noop struct{}

func (Noop) Get(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	return nil, nil
}

func (Noop) Set(ctx context.Context, wallet *models.Wallet) error { return nil }

func (Noop) Delete(ctx context.Context, ownerID uuid.UUID) error { return nil }
