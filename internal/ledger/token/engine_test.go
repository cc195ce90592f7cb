package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/ledger/store"
	"franchise-ledger/internal/models"
)

type recordingInvalidator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, franchiseID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, franchiseID)
	return r.err
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestEngine(t *testing.T, policy models.OverfundingPolicy) (*Engine, *store.MemoryStore, *recordingInvalidator) {
	t.Helper()
	st := store.NewMemoryStore()
	st.PutFranchise(models.Franchise{ID: "fr-1", BrandID: "brand-1", TotalInvestment: d("100000")})
	inv := &recordingInvalidator{}
	e := NewEngine(st, Config{
		Decimals:          18,
		OverfundingPolicy: policy,
		ListLimitDefault:  50,
		ListLimitMax:      100,
	}, inv, logger.NewTestLogger(t))
	return e, st, inv
}

func activeToken(t *testing.T, e *Engine) *models.FranchiseToken {
	t.Helper()
	ctx := context.Background()
	_, err := e.CreateToken(ctx, CreateTokenRequest{
		FranchiseID: "fr-1",
		Symbol:      "frx",
		TotalSupply: d("100000"),
		UnitPrice:   d("1"),
	})
	require.NoError(t, err)
	tok, err := e.Activate(ctx, "fr-1")
	require.NoError(t, err)
	return tok
}

// assertSupplyMatchesHoldings checks circulatingSupply == sum of balances.
func assertSupplyMatchesHoldings(t *testing.T, st store.Store, franchiseID string) {
	t.Helper()
	ctx := context.Background()
	tok, err := st.GetToken(ctx, franchiseID)
	require.NoError(t, err)
	holdings, err := st.ListHoldings(ctx, franchiseID)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, h := range holdings {
		sum = sum.Add(h.Balance)
		assert.True(t, h.Balance.Equal(h.TotalPurchased.Sub(h.TotalSold)), "holding %s out of balance", h.InvestorID)
		assert.False(t, h.Balance.IsNegative())
	}
	assert.True(t, tok.CirculatingSupply.Equal(sum), "circulating %s != holdings %s", tok.CirculatingSupply, sum)
}

// ==========================
// CreateToken
// ==========================

func TestCreateToken(t *testing.T) {
	e, _, _ := newTestEngine(t, models.OverfundingAllow)

	tok, err := e.CreateToken(context.Background(), CreateTokenRequest{
		FranchiseID: "fr-1",
		Symbol:      " frx ",
		TotalSupply: d("100000"),
		UnitPrice:   d("1"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tok.ID)
	assert.Equal(t, "FRX", tok.Symbol)
	assert.Equal(t, int32(18), tok.Decimals)
	assert.True(t, tok.CirculatingSupply.IsZero())
	assert.Equal(t, models.TokenStatusCreated, tok.Status)
}

func TestCreateToken_DuplicateLeavesStateUnchanged(t *testing.T) {
	e, st, _ := newTestEngine(t, models.OverfundingAllow)
	ctx := context.Background()

	first, err := e.CreateToken(ctx, CreateTokenRequest{FranchiseID: "fr-1", Symbol: "FRX", TotalSupply: d("100000"), UnitPrice: d("1")})
	require.NoError(t, err)

	_, err = e.CreateToken(ctx, CreateTokenRequest{FranchiseID: "fr-1", Symbol: "OTHER", TotalSupply: d("5"), UnitPrice: d("9")})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	stored, err := st.GetToken(ctx, "fr-1")
	require.NoError(t, err)
	assert.Equal(t, *first, *stored)
}

func TestCreateToken_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateTokenRequest
		wantErr error
	}{
		{
			name:    "unknown franchise",
			req:     CreateTokenRequest{FranchiseID: "fr-404", Symbol: "FRX", TotalSupply: d("10"), UnitPrice: d("1")},
			wantErr: apperrors.ErrNotFound,
		},
		{
			name:    "empty symbol",
			req:     CreateTokenRequest{FranchiseID: "fr-1", Symbol: "  ", TotalSupply: d("10"), UnitPrice: d("1")},
			wantErr: apperrors.ErrInvalidInput,
		},
		{
			name:    "symbol too long",
			req:     CreateTokenRequest{FranchiseID: "fr-1", Symbol: "ABCDEFGHIJKLM", TotalSupply: d("10"), UnitPrice: d("1")},
			wantErr: apperrors.ErrInvalidInput,
		},
		{
			name:    "symbol with punctuation",
			req:     CreateTokenRequest{FranchiseID: "fr-1", Symbol: "FR-X", TotalSupply: d("10"), UnitPrice: d("1")},
			wantErr: apperrors.ErrInvalidInput,
		},
		{
			name:    "zero supply",
			req:     CreateTokenRequest{FranchiseID: "fr-1", Symbol: "FRX", TotalSupply: d("0"), UnitPrice: d("1")},
			wantErr: apperrors.ErrInvalidInput,
		},
		{
			name:    "negative price",
			req:     CreateTokenRequest{FranchiseID: "fr-1", Symbol: "FRX", TotalSupply: d("10"), UnitPrice: d("-1")},
			wantErr: apperrors.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t, models.OverfundingAllow)
			_, err := e.CreateToken(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// ==========================
// Status transitions
// ==========================

func TestStatusTransitions(t *testing.T) {
	e, _, _ := newTestEngine(t, models.OverfundingAllow)
	ctx := context.Background()

	_, err := e.Activate(ctx, "fr-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = e.CreateToken(ctx, CreateTokenRequest{FranchiseID: "fr-1", Symbol: "FRX", TotalSupply: d("10"), UnitPrice: d("1")})
	require.NoError(t, err)

	_, err = e.Pause(ctx, "fr-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatus)

	tok, err := e.Activate(ctx, "fr-1")
	require.NoError(t, err)
	assert.Equal(t, models.TokenStatusActive, tok.Status)

	tok, err = e.Activate(ctx, "fr-1")
	require.NoError(t, err)
	assert.Equal(t, models.TokenStatusActive, tok.Status)

	tok, err = e.Pause(ctx, "fr-1")
	require.NoError(t, err)
	assert.Equal(t, models.TokenStatusPaused, tok.Status)

	_, err = e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("1"), TotalValue: d("1")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatus)

	tok, err = e.Activate(ctx, "fr-1")
	require.NoError(t, err)
	assert.Equal(t, models.TokenStatusActive, tok.Status)
}

// ==========================
// Mint / Burn
// ==========================

func TestMint_FirstPurchase(t *testing.T) {
	e, st, inv := newTestEngine(t, models.OverfundingAllow)
	activeToken(t, e)

	r, err := e.Mint(context.Background(), MintRequest{
		FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("1000"), TotalValue: d("1000"),
	})
	require.NoError(t, err)

	assert.True(t, d("1000").Equal(r.Holding.Balance))
	assert.True(t, d("1").Equal(r.Holding.AveragePurchasePrice))
	assert.True(t, d("1000").Equal(r.Token.CirculatingSupply))
	assert.Equal(t, models.TokenTxMint, r.Transaction.Kind)
	assert.True(t, d("1").Equal(r.Transaction.UnitPrice))

	assertSupplyMatchesHoldings(t, st, "fr-1")
	assert.Contains(t, inv.calls, "fr-1")
}

func TestMint_WeightedAverage(t *testing.T) {
	e, _, _ := newTestEngine(t, models.OverfundingAllow)
	activeToken(t, e)
	ctx := context.Background()

	_, err := e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("100"), TotalValue: d("100")})
	require.NoError(t, err)
	r, err := e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("100"), TotalValue: d("300")})
	require.NoError(t, err)

	// (1 * 100 + 300) / 200
	assert.True(t, d("2").Equal(r.Holding.AveragePurchasePrice), "got %s", r.Holding.AveragePurchasePrice)
	assert.True(t, d("200").Equal(r.Holding.TotalPurchased))
	assert.True(t, d("3").Equal(r.Transaction.UnitPrice))
}

func TestMint_ZeroValueFirstPurchase(t *testing.T) {
	e, _, _ := newTestEngine(t, models.OverfundingAllow)
	activeToken(t, e)

	r, err := e.Mint(context.Background(), MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("10"), TotalValue: d("0")})
	require.NoError(t, err)
	assert.True(t, r.Holding.AveragePurchasePrice.IsZero())
}

func TestMint_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     MintRequest
		wantErr error
	}{
		{"no token", MintRequest{FranchiseID: "fr-2", InvestorID: "inv-a", Amount: d("1"), TotalValue: d("1")}, apperrors.ErrNotFound},
		{"zero amount", MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("0"), TotalValue: d("1")}, apperrors.ErrInvalidInput},
		{"missing investor", MintRequest{FranchiseID: "fr-1", Amount: d("1"), TotalValue: d("1")}, apperrors.ErrInvalidInput},
		{"negative value", MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("1"), TotalValue: d("-1")}, apperrors.ErrInvalidInput},
		{"beyond supply", MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("100001"), TotalValue: d("1")}, apperrors.ErrSupplyExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, st, _ := newTestEngine(t, models.OverfundingAllow)
			activeToken(t, e)

			_, err := e.Mint(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)

			tok, err := st.GetToken(context.Background(), "fr-1")
			require.NoError(t, err)
			assert.True(t, tok.CirculatingSupply.IsZero())
		})
	}
}

func TestMint_PrecisionFollowsDecimals(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutFranchise(models.Franchise{ID: "fr-1"})
	e := NewEngine(st, Config{Decimals: 2}, nil, logger.NewTestLogger(t))
	activeToken(t, e)

	_, err := e.Mint(context.Background(), MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("1.001"), TotalValue: d("1")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = e.Mint(context.Background(), MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("1.01"), TotalValue: d("1")})
	assert.NoError(t, err)
}

func TestMint_OverfundingReject(t *testing.T) {
	e, st, _ := newTestEngine(t, models.OverfundingReject)
	activeToken(t, e)
	ctx := context.Background()

	_, err := e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("60000"), TotalValue: d("60000")})
	require.NoError(t, err)

	_, err = e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: "inv-b", Amount: d("40001"), TotalValue: d("40001")})
	assert.ErrorIs(t, err, apperrors.ErrFundingTargetExceeded)

	_, err = e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: "inv-b", Amount: d("40000"), TotalValue: d("40000")})
	assert.NoError(t, err)
	assertSupplyMatchesHoldings(t, st, "fr-1")
}

func TestMint_SettlementStatus(t *testing.T) {
	e, st, _ := newTestEngine(t, models.OverfundingAllow)
	activeToken(t, e)
	ctx := context.Background()

	settled, err := e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("1"), TotalValue: d("1"), ExternalRef: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusConfirmed, settled.Transaction.Status)
	assert.Equal(t, "0xabc", settled.Transaction.SettlementRef)

	pending, err := e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("1"), TotalValue: d("1")})
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusPending, pending.Transaction.Status)

	outbox, err := st.ListPendingOutbox(ctx, 0)
	require.NoError(t, err)
	require.Len(t, outbox, 1)
	assert.Equal(t, pending.Transaction.ID, outbox[0].RecordID)
	assert.Equal(t, models.OutboxSettlement, outbox[0].Topic)
	assert.Equal(t, models.LedgerToken, outbox[0].Ledger)
}

func TestMint_InvalidationFailureDoesNotFailMint(t *testing.T) {
	e, _, inv := newTestEngine(t, models.OverfundingAllow)
	activeToken(t, e)
	inv.err = errors.New("redis down")

	_, err := e.Mint(context.Background(), MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("1"), TotalValue: d("1")})
	assert.NoError(t, err)
}

func TestMintBurn_RoundTrip(t *testing.T) {
	e, st, _ := newTestEngine(t, models.OverfundingAllow)
	activeToken(t, e)
	ctx := context.Background()

	_, err := e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("1000"), TotalValue: d("1000")})
	require.NoError(t, err)

	r, err := e.Burn(ctx, BurnRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("1000")})
	require.NoError(t, err)

	assert.True(t, r.Holding.Balance.IsZero())
	assert.True(t, r.Token.CirculatingSupply.IsZero())
	assert.True(t, d("1000").Equal(r.Transaction.TotalValue))
	assert.Equal(t, models.TokenTxBurn, r.Transaction.Kind)
	assertSupplyMatchesHoldings(t, st, "fr-1")
}

func TestBurn_ValuedAtAveragePrice(t *testing.T) {
	e, _, _ := newTestEngine(t, models.OverfundingAllow)
	activeToken(t, e)
	ctx := context.Background()

	_, err := e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("100"), TotalValue: d("250")})
	require.NoError(t, err)

	r, err := e.Burn(ctx, BurnRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("40")})
	require.NoError(t, err)
	assert.True(t, d("100").Equal(r.Transaction.TotalValue), "got %s", r.Transaction.TotalValue)
	assert.True(t, d("2.5").Equal(r.Holding.AveragePurchasePrice))
	assert.True(t, d("60").Equal(r.Holding.Balance))
	assert.True(t, d("40").Equal(r.Holding.TotalSold))
}

func TestBurn_InsufficientBalanceHasNoEffect(t *testing.T) {
	e, st, _ := newTestEngine(t, models.OverfundingAllow)
	activeToken(t, e)
	ctx := context.Background()

	_, err := e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("100"), TotalValue: d("100"), ExternalRef: "ref"})
	require.NoError(t, err)

	beforeTok, _ := st.GetToken(ctx, "fr-1")
	beforeHolding, _ := st.GetHolding(ctx, "fr-1", "inv-a")
	beforeTxs, _ := st.ListTokenTransactions(ctx, "fr-1", 0)

	_, err = e.Burn(ctx, BurnRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("101")})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

	afterTok, _ := st.GetToken(ctx, "fr-1")
	afterHolding, _ := st.GetHolding(ctx, "fr-1", "inv-a")
	afterTxs, _ := st.ListTokenTransactions(ctx, "fr-1", 0)
	assert.Equal(t, beforeTok, afterTok)
	assert.Equal(t, beforeHolding, afterHolding)
	assert.Len(t, afterTxs, len(beforeTxs))
}

func TestBurn_NoHolding(t *testing.T) {
	e, _, _ := newTestEngine(t, models.OverfundingAllow)
	activeToken(t, e)

	_, err := e.Burn(context.Background(), BurnRequest{FranchiseID: "fr-1", InvestorID: "nobody", Amount: d("1")})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBurn_AllowedWhilePaused(t *testing.T) {
	e, _, _ := newTestEngine(t, models.OverfundingAllow)
	activeToken(t, e)
	ctx := context.Background()

	_, err := e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("5"), TotalValue: d("5")})
	require.NoError(t, err)
	_, err = e.Pause(ctx, "fr-1")
	require.NoError(t, err)

	_, err = e.Burn(ctx, BurnRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("5")})
	assert.NoError(t, err)
}

// ==========================
// Concurrency
// ==========================

func TestMint_ConcurrentNoLostUpdate(t *testing.T) {
	e, st, _ := newTestEngine(t, models.OverfundingAllow)
	activeToken(t, e)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, investor := range []string{"inv-a", "inv-b"} {
		wg.Add(1)
		go func(investor string) {
			defer wg.Done()
			_, err := e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: investor, Amount: d("500"), TotalValue: d("500")})
			errs <- err
		}(investor)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	tok, err := st.GetToken(ctx, "fr-1")
	require.NoError(t, err)
	assert.True(t, d("1000").Equal(tok.CirculatingSupply), "got %s", tok.CirculatingSupply)
	assertSupplyMatchesHoldings(t, st, "fr-1")
}

func TestMintBurn_ConcurrentMixedKeepsInvariant(t *testing.T) {
	e, st, _ := newTestEngine(t, models.OverfundingAllow)
	activeToken(t, e)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		investor := fmt.Sprintf("inv-%d", i%4)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: investor, Amount: d("10"), TotalValue: d("15")})
		}()
		go func() {
			defer wg.Done()
			_, _ = e.Burn(ctx, BurnRequest{FranchiseID: "fr-1", InvestorID: investor, Amount: d("5")})
		}()
	}
	wg.Wait()

	assertSupplyMatchesHoldings(t, st, "fr-1")
}

// ==========================
// ListTransactions
// ==========================

func TestListTransactions(t *testing.T) {
	e, _, _ := newTestEngine(t, models.OverfundingAllow)
	activeToken(t, e)
	ctx := context.Background()

	_, err := e.ListTransactions(ctx, "fr-404", 10)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	var last string
	for i := 0; i < 3; i++ {
		r, err := e.Mint(ctx, MintRequest{FranchiseID: "fr-1", InvestorID: "inv-a", Amount: d("1"), TotalValue: d("1")})
		require.NoError(t, err)
		last = r.Transaction.ID
	}

	txs, err := e.ListTransactions(ctx, "fr-1", 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, last, txs[0].ID)

	all, err := e.ListTransactions(ctx, "fr-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
