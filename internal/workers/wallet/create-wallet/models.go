// internal/workers/wallet/create-wallet/models.go
package createwallet

import "github.com/shopspring/decimal"

type Input struct {
	FranchiseID    string          `json:"franchiseId"`
	Address        string          `json:"address"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

type Output struct {
	WalletID         string          `json:"walletId"`
	Address          string          `json:"walletAddress"`
	Status           string          `json:"walletStatus"`
	Balance          decimal.Decimal `json:"balance"`
	ReportingBalance decimal.Decimal `json:"reportingBalance"`
}
