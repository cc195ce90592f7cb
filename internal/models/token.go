package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TokenStatus string

const (
	TokenStatusCreated TokenStatus = "created"
	TokenStatusActive  TokenStatus = "active"
	TokenStatusPaused  TokenStatus = "paused"
)

var tokenTransitions = map[TokenStatus][]TokenStatus{
	TokenStatusCreated: {TokenStatusActive},
	TokenStatusActive:  {TokenStatusPaused},
	TokenStatusPaused:  {TokenStatusActive},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s TokenStatus) CanTransitionTo(next TokenStatus) bool {
	for _, allowed := range tokenTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type TokenTxKind string

const (
	TokenTxMint TokenTxKind = "mint"
	TokenTxBurn TokenTxKind = "burn"
	// TokenTxTransfer is reserved; nothing in the ledger produces it yet.
	TokenTxTransfer TokenTxKind = "transfer"
)

// FranchiseToken is the single share definition of a franchise.
type FranchiseToken struct {
	ID                string          `json:"id"`
	FranchiseID       string          `json:"franchiseId"`
	Symbol            string          `json:"symbol"`
	Decimals          int32           `json:"decimals"`
	TotalSupply       decimal.Decimal `json:"totalSupply"`
	CirculatingSupply decimal.Decimal `json:"circulatingSupply"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	Status            TokenStatus     `json:"status"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// RemainingSupply is the number of shares that can still be minted.
func (t *FranchiseToken) RemainingSupply() decimal.Decimal {
	return t.TotalSupply.Sub(t.CirculatingSupply)
}

// TokenHolding is an investor's cumulative position in one franchise.
type TokenHolding struct {
	FranchiseID          string          `json:"franchiseId"`
	InvestorID           string          `json:"investorId"`
	Balance              decimal.Decimal `json:"balance"`
	TotalPurchased       decimal.Decimal `json:"totalPurchased"`
	TotalSold            decimal.Decimal `json:"totalSold"`
	AveragePurchasePrice decimal.Decimal `json:"averagePurchasePrice"`
	LastTransactionAt    time.Time       `json:"lastTransactionAt"`
	CreatedAt            time.Time       `json:"createdAt"`
}

// CostBasis values the current balance at the weighted average purchase price.
func (h *TokenHolding) CostBasis() decimal.Decimal {
	return h.Balance.Mul(h.AveragePurchasePrice)
}

// TokenTransaction is an immutable share ledger entry. Only Status and
// SettlementRef move, and only along pending -> confirmed|failed.
type TokenTransaction struct {
	ID            string          `json:"id"`
	FranchiseID   string          `json:"franchiseId"`
	TokenID       string          `json:"tokenId"`
	InvestorID    string          `json:"investorId,omitempty"`
	Kind          TokenTxKind     `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	SettlementRef string          `json:"settlementRef,omitempty"`
	Status        TxStatus        `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
