// internal/workers/ledger/reconcile-ledger/models.go
package reconcileledger

import "franchise-ledger/internal/ledger/reconcile"

type Input struct {
	FranchiseID string `json:"franchiseId"`
}

type Output struct {
	Consistent bool              `json:"consistent"`
	Report     *reconcile.Report `json:"report"`
}
