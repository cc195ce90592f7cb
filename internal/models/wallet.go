package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WalletStatus string

const (
	WalletStatusActive      WalletStatus = "active"
	WalletStatusInactive    WalletStatus = "inactive"
	WalletStatusSuspended   WalletStatus = "suspended"
	WalletStatusMaintenance WalletStatus = "maintenance"
)

var walletTransitions = map[WalletStatus][]WalletStatus{
	WalletStatusActive:      {WalletStatusInactive, WalletStatusSuspended, WalletStatusMaintenance},
	WalletStatusInactive:    {WalletStatusActive},
	WalletStatusSuspended:   {WalletStatusActive, WalletStatusInactive},
	WalletStatusMaintenance: {WalletStatusActive, WalletStatusSuspended},
}

// Valid reports whether s is one of the known wallet statuses.
func (s WalletStatus) Valid() bool {
	_, ok := walletTransitions[s]
	return ok
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s WalletStatus) CanTransitionTo(next WalletStatus) bool {
	for _, allowed := range walletTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type WalletTxKind string

const (
	WalletTxIncome      WalletTxKind = "income"
	WalletTxExpense     WalletTxKind = "expense"
	WalletTxPayout      WalletTxKind = "payout"
	WalletTxRoyalty     WalletTxKind = "royalty"
	WalletTxTransferIn  WalletTxKind = "transfer_in"
	WalletTxTransferOut WalletTxKind = "transfer_out"
	WalletTxFunding     WalletTxKind = "funding"
	WalletTxRefund      WalletTxKind = "refund"
)

// Valid reports whether k is a known wallet transaction kind.
func (k WalletTxKind) Valid() bool {
	switch k {
	case WalletTxIncome, WalletTxExpense, WalletTxPayout, WalletTxRoyalty,
		WalletTxTransferIn, WalletTxTransferOut, WalletTxFunding, WalletTxRefund:
		return true
	}
	return false
}

// Sign is +1 for inflows and -1 for outflows.
func (k WalletTxKind) Sign() int64 {
	switch k {
	case WalletTxIncome, WalletTxTransferIn, WalletTxFunding:
		return 1
	default:
		return -1
	}
}

// Signed applies the kind's sign to a non-negative amount.
func (k WalletTxKind) Signed(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(k.Sign()))
}

// FranchiseWallet is the cash wallet of a franchise. Balances are a projection
// of the wallet ledger; rolling totals are kept in the reporting currency.
type FranchiseWallet struct {
	ID               string          `json:"id"`
	FranchiseID      string          `json:"franchiseId"`
	Address          string          `json:"address"`
	Balance          decimal.Decimal `json:"balance"`
	ReportingBalance decimal.Decimal `json:"reportingBalance"`
	TotalIncome      decimal.Decimal `json:"totalIncome"`
	TotalExpenses    decimal.Decimal `json:"totalExpenses"`
	TotalPayouts     decimal.Decimal `json:"totalPayouts"`
	TotalRoyalties   decimal.Decimal `json:"totalRoyalties"`
	TransactionCount int64           `json:"transactionCount"`
	LastActivity     *time.Time      `json:"lastActivity,omitempty"`
	Status           WalletStatus    `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Apply folds one transaction into the wallet projection.
func (w *FranchiseWallet) Apply(tx *WalletTransaction) {
	w.Balance = w.Balance.Add(tx.Kind.Signed(tx.NativeAmount))
	w.ReportingBalance = w.ReportingBalance.Add(tx.Kind.Signed(tx.ReportingAmount))

	switch tx.Kind {
	case WalletTxIncome:
		w.TotalIncome = w.TotalIncome.Add(tx.ReportingAmount)
	case WalletTxExpense:
		w.TotalExpenses = w.TotalExpenses.Add(tx.ReportingAmount)
	case WalletTxPayout:
		w.TotalPayouts = w.TotalPayouts.Add(tx.ReportingAmount)
	case WalletTxRoyalty:
		w.TotalRoyalties = w.TotalRoyalties.Add(tx.ReportingAmount)
	}

	w.TransactionCount++
	at := tx.CreatedAt
	w.LastActivity = &at
	w.UpdatedAt = at
}

// WalletTransaction is an immutable cash ledger entry.
type WalletTransaction struct {
	ID              string          `json:"id"`
	WalletID        string          `json:"walletId"`
	FranchiseID     string          `json:"franchiseId"`
	Kind            WalletTxKind    `json:"kind"`
	NativeAmount    decimal.Decimal `json:"nativeAmount"`
	ReportingAmount decimal.Decimal `json:"reportingAmount"`
	Description     string          `json:"description"`
	Category        string          `json:"category,omitempty"`
	FromRef         string          `json:"fromRef,omitempty"`
	ToRef           string          `json:"toRef,omitempty"`
	SettlementRef   string          `json:"settlementRef,omitempty"`
	Status          TxStatus        `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// RevenueRecord mirrors an income transaction into the revenue reporting ledger.
type RevenueRecord struct {
	ID                  string          `json:"id"`
	WalletTransactionID string          `json:"walletTransactionId"`
	FranchiseID         string          `json:"franchiseId"`
	NativeAmount        decimal.Decimal `json:"nativeAmount"`
	ReportingAmount     decimal.Decimal `json:"reportingAmount"`
	NativeCurrency      string          `json:"nativeCurrency"`
	ReportingCurrency   string          `json:"reportingCurrency"`
	Description         string          `json:"description"`
	RecordedAt          time.Time       `json:"recordedAt"`
}
