package createtoken

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func createTestHandler(t *testing.T) (*Handler, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	st.PutFranchise(models.Franchise{ID: "fr-1", BrandID: "brand-1", TotalInvestment: decimal.NewFromInt(100000)})

	reg, err := registry.Default()
	require.NoError(t, err)
	validator, err := validation.NewSchemaValidator(reg)
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	engine := token.NewEngine(st, token.Config{Decimals: 18, OverfundingPolicy: models.OverfundingAllow}, nil, log)
	return NewHandler(&Config{Enabled: true, MaxJobsActive: 5, Timeout: 5 * time.Second}, engine, validator, nil, log), st
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	h, st := createTestHandler(t)

	out, err := h.Execute(context.Background(), &Input{
		FranchiseID: "fr-1",
		Symbol:      " frx ",
		TotalSupply: decimal.NewFromInt(100000),
		UnitPrice:   decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.TokenID)
	assert.Equal(t, "FRX", out.Symbol)
	assert.Equal(t, string(models.TokenStatusCreated), out.Status)

	tok, err := st.GetToken(context.Background(), "fr-1")
	require.NoError(t, err)
	assert.Equal(t, out.TokenID, tok.ID)
	assert.True(t, tok.CirculatingSupply.IsZero())
}

func TestHandler_Execute_Duplicate(t *testing.T) {
	h, st := createTestHandler(t)
	ctx := context.Background()
	input := &Input{FranchiseID: "fr-1", Symbol: "FRX", TotalSupply: decimal.NewFromInt(10), UnitPrice: decimal.Zero}

	first, err := h.Execute(ctx, input)
	require.NoError(t, err)

	_, err = h.Execute(ctx, input)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	tok, err := st.GetToken(ctx, "fr-1")
	require.NoError(t, err)
	assert.Equal(t, first.TokenID, tok.ID)
}

// ==========================
// Job Variable Tests
// ==========================

func TestHandler_Run(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantCode  error
	}{
		{
			name:      "valid variables",
			variables: `{"franchiseId":"fr-1","symbol":"FRX","totalSupply":"1000","unitPrice":"2.5"}`,
		},
		{
			name:      "missing supply fails schema",
			variables: `{"franchiseId":"fr-1","symbol":"FRX","unitPrice":"2.5"}`,
			wantCode:  apperrors.ErrInvalidInput,
		},
		{
			name:      "symbol too long fails schema",
			variables: `{"franchiseId":"fr-1","symbol":"ABCDEFGHIJKLM","totalSupply":"1","unitPrice":"1"}`,
			wantCode:  apperrors.ErrInvalidInput,
		},
		{
			name:      "zero supply fails engine",
			variables: `{"franchiseId":"fr-1","symbol":"FRX","totalSupply":"0","unitPrice":"1"}`,
			wantCode:  apperrors.ErrInvalidInput,
		},
		{
			name:      "unknown franchise",
			variables: `{"franchiseId":"fr-9","symbol":"FRX","totalSupply":"1","unitPrice":"1"}`,
			wantCode:  apperrors.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := createTestHandler(t)
			out, err := h.runner.Run(context.Background(), tt.variables, h.run)
			if tt.wantCode != nil {
				assert.ErrorIs(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &Output{}, out)
		})
	}
}
