// internal/workers/token/create-token/models.go
package createtoken

import "github.com/shopspring/decimal"

type Input struct {
	FranchiseID string          `json:"franchiseId"`
	Symbol      string          `json:"symbol"`
	TotalSupply decimal.Decimal `json:"totalSupply"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type Output struct {
	TokenID     string          `json:"tokenId"`
	Symbol      string          `json:"symbol"`
	Status      string          `json:"tokenStatus"`
	TotalSupply decimal.Decimal `json:"totalSupply"`
}
