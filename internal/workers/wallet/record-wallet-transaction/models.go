// internal/workers/wallet/record-wallet-transaction/models.go
package recordwallettx

import (
	"github.com/shopspring/decimal"

	"franchise-ledger/internal/models"
)

type Input struct {
	FranchiseID     string              `json:"franchiseId"`
	Kind            models.WalletTxKind `json:"kind"`
	NativeAmount    decimal.Decimal     `json:"nativeAmount"`
	ReportingAmount decimal.Decimal     `json:"reportingAmount"`
	Description     string              `json:"description"`
	Category        string              `json:"category"`
	FromRef         string              `json:"fromRef"`
	ToRef           string              `json:"toRef"`
	ExternalRef     string              `json:"externalRef"`
	Status          models.TxStatus     `json:"status"`
}

type Output struct {
	TransactionID     string          `json:"transactionId"`
	TransactionStatus string          `json:"transactionStatus"`
	ReportingAmount   decimal.Decimal `json:"reportingAmount"`
	Balance           decimal.Decimal `json:"walletBalance"`
	ReportingBalance  decimal.Decimal `json:"walletReportingBalance"`
	TransactionCount  int64           `json:"transactionCount"`
}
