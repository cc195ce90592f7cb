// internal/workers/token/token-status/models.go
package tokenstatus

type Input struct {
	FranchiseID string `json:"franchiseId"`
}

type Output struct {
	FranchiseID string `json:"franchiseId"`
	TokenID     string `json:"tokenId"`
	Status      string `json:"tokenStatus"`
}
