package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundraisingSnapshot is a derived, point-in-time view of funding progress.
// It is never a source of truth.
type FundraisingSnapshot struct {
	FranchiseID           string          `json:"franchiseId"`
	TokenSymbol           string          `json:"tokenSymbol"`
	TokenStatus           TokenStatus     `json:"tokenStatus"`
	TotalInvestment       decimal.Decimal `json:"totalInvestment"`
	AmountInvested        decimal.Decimal `json:"amountInvested"`
	SharesIssued          decimal.Decimal `json:"sharesIssued"`
	SharesRemaining       decimal.Decimal `json:"sharesRemaining"`
	ProgressPercentage    decimal.Decimal `json:"progressPercentage"`
	AverageFranchiseValue decimal.Decimal `json:"averageFranchiseValue"`
	UnitPrice             decimal.Decimal `json:"unitPrice"`
	InvestorCount         int             `json:"investorCount"`
	WalletBalance         decimal.Decimal `json:"walletBalance"`
	WalletReportingValue  decimal.Decimal `json:"walletReportingBalance"`
	ComputedAt            time.Time       `json:"computedAt"`
}

// BrandRollup aggregates the snapshots of every tokenized franchise of a brand.
type BrandRollup struct {
	BrandID               string                `json:"brandId"`
	FranchiseCount        int                   `json:"franchiseCount"`
	TotalInvestment       decimal.Decimal       `json:"totalInvestment"`
	AmountInvested        decimal.Decimal       `json:"amountInvested"`
	SharesIssued          decimal.Decimal       `json:"sharesIssued"`
	SharesRemaining       decimal.Decimal       `json:"sharesRemaining"`
	ProgressPercentage    decimal.Decimal       `json:"progressPercentage"`
	AverageFranchiseValue decimal.Decimal       `json:"averageFranchiseValue"`
	Franchises            []FundraisingSnapshot `json:"franchises"`
	ComputedAt            time.Time             `json:"computedAt"`
}
