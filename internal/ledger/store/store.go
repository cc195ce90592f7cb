// Package store persists the token and wallet ledgers and their aggregates.
//
// Every multi-entity write goes through Store.WithFranchise, which runs the
// callback as one atomic unit serialized against all other writers of the
// same franchise. Reads outside a transaction see the latest committed state.
package store

import (
	"context"

	"franchise-ledger/internal/models"
)

// Reader is the read side shared by the store and its transactions.
// Missing rows are reported as NOT_FOUND errors.
type Reader interface {
	GetFranchise(ctx context.Context, franchiseID string) (*models.Franchise, error)
	ListFranchisesByBrand(ctx context.Context, brandID string) ([]models.Franchise, error)

	GetToken(ctx context.Context, franchiseID string) (*models.FranchiseToken, error)
	GetHolding(ctx context.Context, franchiseID, investorID string) (*models.TokenHolding, error)
	ListHoldings(ctx context.Context, franchiseID string) ([]models.TokenHolding, error)
	GetWallet(ctx context.Context, franchiseID string) (*models.FranchiseWallet, error)

	GetTokenTransaction(ctx context.Context, id string) (*models.TokenTransaction, error)
	GetWalletTransaction(ctx context.Context, id string) (*models.WalletTransaction, error)
	GetRevenueRecord(ctx context.Context, walletTransactionID string) (*models.RevenueRecord, error)

	// List*Transactions return newest first. A limit <= 0 returns the whole ledger.
	ListTokenTransactions(ctx context.Context, franchiseID string, limit int) ([]models.TokenTransaction, error)
	ListWalletTransactions(ctx context.Context, franchiseID string, limit int) ([]models.WalletTransaction, error)

	// ListPendingOutbox returns unprocessed entries, oldest first.
	ListPendingOutbox(ctx context.Context, limit int) ([]models.OutboxEntry, error)
}

// Tx is one atomic unit of work scoped to a franchise. Reads inside a Tx
// observe the writes already staged in it.
type Tx interface {
	Reader

	InsertToken(ctx context.Context, token *models.FranchiseToken) error
	UpdateToken(ctx context.Context, token *models.FranchiseToken) error
	UpsertHolding(ctx context.Context, holding *models.TokenHolding) error
	AppendTokenTransaction(ctx context.Context, tx *models.TokenTransaction) error

	InsertWallet(ctx context.Context, wallet *models.FranchiseWallet) error
	UpdateWallet(ctx context.Context, wallet *models.FranchiseWallet) error
	AppendWalletTransaction(ctx context.Context, tx *models.WalletTransaction) error
	AppendRevenueRecord(ctx context.Context, rec *models.RevenueRecord) error

	// SetTransactionStatus moves a ledger record along its settlement FSM.
	SetTransactionStatus(ctx context.Context, ledger models.LedgerName, id string, status models.TxStatus, settlementRef string) error

	EnqueueOutbox(ctx context.Context, entry *models.OutboxEntry) error
	MarkOutboxProcessed(ctx context.Context, id int64) error
	RecordOutboxAttempt(ctx context.Context, id int64, lastError string) error
}

// Store is the ledger persistence boundary.
type Store interface {
	Reader
	WithFranchise(ctx context.Context, franchiseID string, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// ClampLimit bounds a caller supplied page size. Non-positive limits fall back
// to def; anything above max is cut to max.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}
