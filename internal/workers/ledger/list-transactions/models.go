// internal/workers/ledger/list-transactions/models.go
package listtransactions

import "franchise-ledger/internal/models"

type Input struct {
	FranchiseID string            `json:"franchiseId"`
	Ledger      models.LedgerName `json:"ledger"`
	Limit       int               `json:"limit"`
}

// Output carries the records of the requested ledger, newest first.
type Output struct {
	Ledger             models.LedgerName          `json:"ledger"`
	Count              int                        `json:"count"`
	TokenTransactions  []models.TokenTransaction  `json:"tokenTransactions,omitempty"`
	WalletTransactions []models.WalletTransaction `json:"walletTransactions,omitempty"`
}
