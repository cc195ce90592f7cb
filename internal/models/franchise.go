// internal/models/franchise.go
package models

import "github.com/shopspring/decimal"

// Franchise is the catalogue view the ledger needs: a single location, the
// brand it belongs to and its configured fundraising target.
type Franchise struct {
	ID              string          `json:"id"`
	BrandID         string          `json:"brandId"`
	TotalInvestment decimal.Decimal `json:"totalInvestment"`
}
