// internal/workers/token/mint-tokens/models.go
package minttokens

import "github.com/shopspring/decimal"

type Input struct {
	FranchiseID string          `json:"franchiseId"`
	InvestorID  string          `json:"investorId"`
	Amount      decimal.Decimal `json:"amount"`
	TotalValue  decimal.Decimal `json:"totalValue"`
	// ExternalRef is set when the purchase already settled upstream.
	ExternalRef string `json:"externalRef,omitempty"`
}

type Holding struct {
	InvestorID           string          `json:"investorId"`
	Balance              decimal.Decimal `json:"balance"`
	TotalPurchased       decimal.Decimal `json:"totalPurchased"`
	AveragePurchasePrice decimal.Decimal `json:"averagePurchasePrice"`
}

type Output struct {
	TransactionID     string          `json:"transactionId"`
	TransactionStatus string          `json:"transactionStatus"`
	Holding           Holding         `json:"holding"`
	CirculatingSupply decimal.Decimal `json:"circulatingSupply"`
	RemainingSupply   decimal.Decimal `json:"remainingSupply"`
}
