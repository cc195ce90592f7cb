package burntokens

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/ledger/store"
	"franchise-ledger/internal/ledger/token"
	"franchise-ledger/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// createTestHandler returns a handler over a token where inv-1 bought 1000
// shares for 1000 and then 1000 more for 2000.
func createTestHandler(t *testing.T) (*Handler, *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	log := logger.NewTestLogger(t)

	st := store.NewMemoryStore()
	st.PutFranchise(models.Franchise{ID: "fr-1", TotalInvestment: d("100000")})
	engine := token.NewEngine(st, token.Config{Decimals: 18, OverfundingPolicy: models.OverfundingAllow}, nil, log)

	_, err := engine.CreateToken(ctx, token.CreateTokenRequest{FranchiseID: "fr-1", Symbol: "FRX", TotalSupply: d("100000"), UnitPrice: d("1")})
	require.NoError(t, err)
	_, err = engine.Activate(ctx, "fr-1")
	require.NoError(t, err)
	for _, value := range []string{"1000", "2000"} {
		_, err = engine.Mint(ctx, token.MintRequest{FranchiseID: "fr-1", InvestorID: "inv-1", Amount: d("1000"), TotalValue: d(value), ExternalRef: "ref"})
		require.NoError(t, err)
	}

	return NewHandler(&Config{Enabled: true, MaxJobsActive: 5, Timeout: 5 * time.Second}, engine, nil, nil, log), st
}

func TestHandler_Execute_RedeemsAtAverage(t *testing.T) {
	h, _ := createTestHandler(t)

	out, err := h.Execute(context.Background(), &Input{FranchiseID: "fr-1", InvestorID: "inv-1", Amount: d("500"), ExternalRef: "0xburn"})
	require.NoError(t, err)
	assert.Equal(t, string(models.TxStatusConfirmed), out.TransactionStatus)
	assert.True(t, out.RedeemedValue.Equal(d("750")), "redeemed %s", out.RedeemedValue)
	assert.True(t, out.Balance.Equal(d("1500")))
	assert.True(t, out.TotalSold.Equal(d("500")))
	assert.True(t, out.CirculatingSupply.Equal(d("1500")))
}

func TestHandler_Execute_InsufficientBalance(t *testing.T) {
	h, st := createTestHandler(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, &Input{FranchiseID: "fr-1", InvestorID: "inv-1", Amount: d("2000.000001")})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

	_, err = h.Execute(ctx, &Input{FranchiseID: "fr-1", InvestorID: "inv-2", Amount: d("1")})
	assert.Error(t, err)

	tok, err := st.GetToken(ctx, "fr-1")
	require.NoError(t, err)
	assert.True(t, tok.CirculatingSupply.Equal(d("2000")))
}

func TestHandler_Run_FullExit(t *testing.T) {
	h, st := createTestHandler(t)
	ctx := context.Background()

	_, err := h.runner.Run(ctx, `{"franchiseId":"fr-1","investorId":"inv-1","amount":"2000"}`, h.run)
	require.NoError(t, err)

	holding, err := st.GetHolding(ctx, "fr-1", "inv-1")
	require.NoError(t, err)
	assert.True(t, holding.Balance.IsZero())
	assert.True(t, holding.TotalPurchased.Sub(holding.TotalSold).IsZero())
}
