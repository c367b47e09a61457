package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

const (
	TransferPending   = "pending"
	TransferCompleted = "completed"
	TransferFailed    = "failed"
)

type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Wallet holds the running balance for exactly one user, in minor units.
type Wallet struct {
	ID        uuid.UUID `db:"id" json:"walletId"`
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Transaction is an immutable record of one balance movement. Reference is
// the caller-supplied idempotency key; the two legs of a transfer share it.
type Transaction struct {
	ID          uuid.UUID `db:"id" json:"id"`
	WalletID    uuid.UUID `db:"wallet_id" json:"walletId"`
	Type        string    `db:"type" json:"type"`
	Amount      int64     `db:"amount" json:"amount"`
	Reference   string    `db:"reference" json:"reference"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Transfer links the debit and credit transactions of one movement of funds.
type Transfer struct {
	ID                uuid.UUID `db:"id" json:"id"`
	FromTransactionID uuid.UUID `db:"from_transaction_id" json:"fromTransactionId"`
	ToTransactionID   uuid.UUID `db:"to_transaction_id" json:"toTransactionId"`
	Status            string    `db:"status" json:"status"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

type BlacklistLog struct {
	ID            uuid.UUID `db:"id"`
	IdentityType  string    `db:"identity_type"`
	IdentityValue string    `db:"identity_value"`
	IsBlacklisted bool      `db:"is_blacklisted"`
	CreatedAt     time.Time `db:"created_at"`
}

type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int64 `json:"totalPages"`
}

type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	Pagination   Pagination    `json:"pagination"`
}
