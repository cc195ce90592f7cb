package minttokens

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/validation"
	"franchise-ledger/internal/ledger/store"
	"franchise-ledger/internal/ledger/token"
	"franchise-ledger/internal/models"
	"franchise-ledger/pkg/registry"
)

// ==========================
// Test Helper Functions
// ==========================

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createTestHandler(t *testing.T, policy models.OverfundingPolicy) (*Handler, *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	log := logger.NewTestLogger(t)

	st := store.NewMemoryStore()
	st.PutFranchise(models.Franchise{ID: "fr-1", BrandID: "brand-1", TotalInvestment: d("100000")})

	engine := token.NewEngine(st, token.Config{Decimals: 18, OverfundingPolicy: policy}, nil, log)
	_, err := engine.CreateToken(ctx, token.CreateTokenRequest{
		FranchiseID: "fr-1", Symbol: "FRX", TotalSupply: d("100000"), UnitPrice: d("1"),
	})
	require.NoError(t, err)
	_, err = engine.Activate(ctx, "fr-1")
	require.NoError(t, err)

	reg, err := registry.Default()
	require.NoError(t, err)
	validator, err := validation.NewSchemaValidator(reg)
	require.NoError(t, err)

	return NewHandler(&Config{Enabled: true, MaxJobsActive: 5, Timeout: 5 * time.Second}, engine, validator, nil, log), st
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_FirstPurchase(t *testing.T) {
	h, _ := createTestHandler(t, models.OverfundingAllow)

	out, err := h.Execute(context.Background(), &Input{
		FranchiseID: "fr-1",
		InvestorID:  "inv-1",
		Amount:      d("1000"),
		TotalValue:  d("1000"),
		ExternalRef: "0xsettled",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.TransactionID)
	assert.Equal(t, string(models.TxStatusConfirmed), out.TransactionStatus)
	assert.True(t, out.Holding.Balance.Equal(d("1000")))
	assert.True(t, out.Holding.AveragePurchasePrice.Equal(d("1")))
	assert.True(t, out.CirculatingSupply.Equal(d("1000")))
	assert.True(t, out.RemainingSupply.Equal(d("99000")))
}

func TestHandler_Execute_LogsBooking(t *testing.T) {
	h, _ := createTestHandler(t, models.OverfundingAllow)
	core, logs := observer.New(zapcore.DebugLevel)
	h.logger = logger.NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"taskType": TaskType})

	out, err := h.Execute(context.Background(), &Input{
		FranchiseID: "fr-1", InvestorID: "inv-1", Amount: d("10"), TotalValue: d("10"), ExternalRef: "0xsettled",
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("mint booked").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, TaskType, fields["taskType"])
	assert.Equal(t, "inv-1", fields["investorId"])
	assert.Equal(t, out.TransactionID, fields["transactionId"])
}

func TestHandler_Execute_PendingWithoutExternalRef(t *testing.T) {
	h, st := createTestHandler(t, models.OverfundingAllow)

	out, err := h.Execute(context.Background(), &Input{
		FranchiseID: "fr-1", InvestorID: "inv-1", Amount: d("5"), TotalValue: d("5"),
	})
	require.NoError(t, err)
	assert.Equal(t, string(models.TxStatusPending), out.TransactionStatus)

	pending, err := st.ListPendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, out.TransactionID, pending[0].RecordID)
}

func TestHandler_Execute_BusinessErrors(t *testing.T) {
	tests := []struct {
		name    string
		policy  models.OverfundingPolicy
		input   *Input
		wantErr error
	}{
		{
			name:    "beyond remaining supply",
			policy:  models.OverfundingAllow,
			input:   &Input{FranchiseID: "fr-1", InvestorID: "inv-1", Amount: d("100001"), TotalValue: d("1")},
			wantErr: apperrors.ErrSupplyExceeded,
		},
		{
			name:    "over the funding target",
			policy:  models.OverfundingReject,
			input:   &Input{FranchiseID: "fr-1", InvestorID: "inv-1", Amount: d("10"), TotalValue: d("100001")},
			wantErr: apperrors.ErrFundingTargetExceeded,
		},
		{
			name:    "zero amount",
			policy:  models.OverfundingAllow,
			input:   &Input{FranchiseID: "fr-1", InvestorID: "inv-1", Amount: decimal.Zero, TotalValue: d("1")},
			wantErr: apperrors.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, st := createTestHandler(t, tt.policy)
			_, err := h.Execute(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)

			tok, err := st.GetToken(context.Background(), "fr-1")
			require.NoError(t, err)
			assert.True(t, tok.CirculatingSupply.IsZero())
		})
	}
}

// ==========================
// Job Variable Tests
// ==========================

func TestHandler_Run_OutputVariables(t *testing.T) {
	h, _ := createTestHandler(t, models.OverfundingAllow)

	out, err := h.runner.Run(context.Background(),
		`{"franchiseId":"fr-1","investorId":"inv-1","amount":"2.5","totalValue":5,"externalRef":"ref"}`, h.run)
	require.NoError(t, err)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &vars))
	assert.Equal(t, "2.5", vars["circulatingSupply"])
	assert.Equal(t, "confirmed", vars["transactionStatus"])
	holding := vars["holding"].(map[string]interface{})
	assert.Equal(t, "2", holding["averagePurchasePrice"])
}

func TestHandler_Run_SchemaViolation(t *testing.T) {
	h, _ := createTestHandler(t, models.OverfundingAllow)

	_, err := h.runner.Run(context.Background(), `{"franchiseId":"fr-1","amount":"1","totalValue":"1"}`, h.run)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
