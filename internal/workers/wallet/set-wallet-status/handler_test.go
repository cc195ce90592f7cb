package setwalletstatus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/validation"
	"franchise-ledger/internal/currency"
	"franchise-ledger/internal/ledger/store"
	"franchise-ledger/internal/ledger/wallet"
	"franchise-ledger/internal/models"
	"franchise-ledger/pkg/registry"
)

func createTestHandler(t *testing.T) *Handler {
	t.Helper()
	log := logger.NewTestLogger(t)
	st := store.NewMemoryStore()
	st.PutFranchise(models.Franchise{ID: "fr-1"})

	rates, err := currency.NewStaticRate("ETH", "USD", "150")
	require.NoError(t, err)
	reg, err := registry.Default()
	require.NoError(t, err)
	validator, err := validation.NewSchemaValidator(reg)
	require.NoError(t, err)

	engine := wallet.NewEngine(st, rates, wallet.Config{}, nil, log)
	_, err = engine.CreateWallet(context.Background(), wallet.CreateWalletRequest{FranchiseID: "fr-1", Address: "0xwallet"})
	require.NoError(t, err)

	return NewHandler(&Config{Enabled: true, MaxJobsActive: 5, Timeout: 5 * time.Second}, engine, validator, nil, log)
}

func TestHandler_Execute_Lifecycle(t *testing.T) {
	h := createTestHandler(t)
	ctx := context.Background()

	steps := []struct {
		next    models.WalletStatus
		wantErr error
	}{
		{models.WalletStatusMaintenance, nil},
		{models.WalletStatusInactive, apperrors.ErrInvalidStatus},
		{models.WalletStatusSuspended, nil},
		{models.WalletStatusSuspended, nil},
		{models.WalletStatusMaintenance, apperrors.ErrInvalidStatus},
		{models.WalletStatusActive, nil},
	}

	for _, step := range steps {
		out, err := h.Execute(ctx, &Input{FranchiseID: "fr-1", Status: step.next})
		if step.wantErr != nil {
			assert.ErrorIs(t, err, step.wantErr, "to %s", step.next)
			continue
		}
		require.NoError(t, err, "to %s", step.next)
		assert.Equal(t, string(step.next), out.Status)
	}
}

func TestHandler_Run(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantErr   error
	}{
		{"deactivate", `{"franchiseId":"fr-1","status":"inactive"}`, nil},
		{"unknown status", `{"franchiseId":"fr-1","status":"frozen"}`, apperrors.ErrInvalidInput},
		{"missing status", `{"franchiseId":"fr-1"}`, apperrors.ErrInvalidInput},
		{"no wallet", `{"franchiseId":"fr-2","status":"inactive"}`, apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t)
			_, err := h.runner.Run(context.Background(), tt.variables, h.run)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
