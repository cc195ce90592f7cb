// internal/workers/fundraising/get-fundraising-snapshot/models.go
package getfundraisingsnapshot

import "franchise-ledger/internal/models"

// Input selects either one franchise or a whole brand.
type Input struct {
	FranchiseID string `json:"franchiseId"`
	BrandID     string `json:"brandId"`
}

type Output struct {
	Snapshot *models.FundraisingSnapshot `json:"snapshot,omitempty"`
	Rollup   *models.BrandRollup         `json:"rollup,omitempty"`
}
