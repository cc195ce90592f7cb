// internal/workers/ledger/confirm-settlement/models.go
package confirmsettlement

import "franchise-ledger/internal/ledger/settlement"

type Input struct {
	Limit int `json:"limit"`
}

type Output struct {
	settlement.Summary
	// Drained is false when the batch was full and entries may remain.
	Drained bool `json:"drained"`
}
