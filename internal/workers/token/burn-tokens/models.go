// internal/workers/token/burn-tokens/models.go
package burntokens

import "github.com/shopspring/decimal"

type Input struct {
	FranchiseID string          `json:"franchiseId"`
	InvestorID  string          `json:"investorId"`
	Amount      decimal.Decimal `json:"amount"`
	ExternalRef string          `json:"externalRef,omitempty"`
}

type Output struct {
	TransactionID     string          `json:"transactionId"`
	TransactionStatus string          `json:"transactionStatus"`
	RedeemedValue     decimal.Decimal `json:"redeemedValue"`
	Balance           decimal.Decimal `json:"balance"`
	TotalSold         decimal.Decimal `json:"totalSold"`
	CirculatingSupply decimal.Decimal `json:"circulatingSupply"`
}
