// Package settlement confirms ledger records against the external settlement
// network and relays the rest of the outbox (search projection, events).
package settlement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	commonhttp "franchise-ledger/internal/common/http"
	"franchise-ledger/internal/models"
)

// ErrRejected marks a submission the network refused outright. Rejected
// records fail immediately instead of being retried.
var ErrRejected = errors.New("settlement rejected")

// Instruction asks the network to settle one ledger record. IdempotencyKey is
// the record id, so a resubmission never settles twice.
type Instruction struct {
	IdempotencyKey string            `json:"idempotencyKey"`
	Ledger         models.LedgerName `json:"ledger"`
	FranchiseID    string            `json:"franchiseId"`
	Kind           string            `json:"kind"`
	Counterparty   string            `json:"counterparty,omitempty"`
	Amount         decimal.Decimal   `json:"amount"`
	Value          decimal.Decimal   `json:"value"`
}

// Receipt carries the opaque reference returned by the network.
type Receipt struct {
	Reference string `json:"reference"`
}

type Client interface {
	Submit(ctx context.Context, in Instruction) (*Receipt, error)
}

// HTTPClient posts instructions to the settlement gateway.
type HTTPClient struct {
	http    *commonhttp.Client
	baseURL string
	apiKey  string
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		http:    commonhttp.NewClient(timeout),
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (c *HTTPClient) Submit(ctx context.Context, in Instruction) (*Receipt, error) {
	headers := map[string]string{"Idempotency-Key": in.IdempotencyKey}
	if c.apiKey != "" {
		headers["X-Api-Key"] = c.apiKey
	}

	var receipt Receipt
	err := c.http.PostJSON(ctx, c.baseURL+"/settlements", headers, in, &receipt)
	if err != nil {
		var statusErr *commonhttp.StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return nil, fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return nil, err
	}
	if receipt.Reference == "" {
		return nil, errors.New("settlement gateway returned an empty reference")
	}
	return &receipt, nil
}

// FakeClient settles everything with a reference derived from the record id.
type FakeClient struct {
	mu        sync.Mutex
	failures  map[string]error
	submitted []Instruction
}

func NewFakeClient() *FakeClient {
	return &FakeClient{failures: make(map[string]error)}
}

// FailWith makes submissions for recordID return err until cleared with nil.
func (f *FakeClient) FailWith(recordID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, recordID)
		return
	}
	f.failures[recordID] = err
}

func (f *FakeClient) Submitted() []Instruction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Instruction(nil), f.submitted...)
}

func (f *FakeClient) Submit(ctx context.Context, in Instruction) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, in)
	if err, ok := f.failures[in.IdempotencyKey]; ok {
		return nil, err
	}
	return &Receipt{Reference: FakeReference(in.IdempotencyKey)}, nil
}

// FakeReference is the reference FakeClient returns for a record id.
func FakeReference(recordID string) string {
	sum := sha256.Sum256([]byte(recordID))
	return "fake-" + hex.EncodeToString(sum[:8])
}
