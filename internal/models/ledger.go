package models

import "time"

// TxStatus is the settlement state of a ledger entry.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// Valid reports whether s is a known status.
func (s TxStatus) Valid() bool {
	return s == TxStatusPending || s == TxStatusConfirmed || s == TxStatusFailed
}

// CanTransitionTo allows only pending -> confirmed and pending -> failed.
func (s TxStatus) CanTransitionTo(next TxStatus) bool {
	return s == TxStatusPending && (next == TxStatusConfirmed || next == TxStatusFailed)
}

// LedgerName identifies which ledger a record lives in.
type LedgerName string

const (
	LedgerToken   LedgerName = "token"
	LedgerWallet  LedgerName = "wallet"
	LedgerRevenue LedgerName = "revenue"
)

// OutboxTopic says what the relay must do with an entry.
type OutboxTopic string

const (
	OutboxSettlement   OutboxTopic = "settlement"
	OutboxRevenueIndex OutboxTopic = "revenue_index"
)

// OutboxEntry is an intent written in the same atomic unit as the ledger
// record it refers to, and processed asynchronously afterwards.
type OutboxEntry struct {
	ID          int64       `json:"id"`
	Topic       OutboxTopic `json:"topic"`
	Ledger      LedgerName  `json:"ledger"`
	RecordID    string      `json:"recordId"`
	FranchiseID string      `json:"franchiseId"`
	Attempts    int         `json:"attempts"`
	LastError   string      `json:"lastError,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// OverfundingPolicy decides what happens once investments pass the target.
type OverfundingPolicy string

const (
	OverfundingAllow  OverfundingPolicy = "allow"
	OverfundingClamp  OverfundingPolicy = "clamp"
	OverfundingReject OverfundingPolicy = "reject"
)

// ParseOverfundingPolicy falls back to allow for unknown values.
func ParseOverfundingPolicy(s string) OverfundingPolicy {
	switch OverfundingPolicy(s) {
	case OverfundingClamp:
		return OverfundingClamp
	case OverfundingReject:
		return OverfundingReject
	default:
		return OverfundingAllow
	}
}
