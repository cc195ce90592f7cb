// internal/workers/wallet/set-wallet-status/models.go
package setwalletstatus

import "franchise-ledger/internal/models"

type Input struct {
	FranchiseID string              `json:"franchiseId"`
	Status      models.WalletStatus `json:"status"`
}

type Output struct {
	WalletID string `json:"walletId"`
	Status   string `json:"walletStatus"`
}
