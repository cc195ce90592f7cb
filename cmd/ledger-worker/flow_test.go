package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"franchise-ledger/internal/common/config"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/validation"
	"franchise-ledger/internal/ledger/fundraising"
	"franchise-ledger/internal/ledger/settlement"
	"franchise-ledger/internal/ledger/store"
	"franchise-ledger/internal/models"
	"franchise-ledger/pkg/registry"

	btk "franchise-ledger/internal/workers/token/burn-tokens"
	ctk "franchise-ledger/internal/workers/token/create-token"
	mtk "franchise-ledger/internal/workers/token/mint-tokens"
	tks "franchise-ledger/internal/workers/token/token-status"

	cwl "franchise-ledger/internal/workers/wallet/create-wallet"
	rwt "franchise-ledger/internal/workers/wallet/record-wallet-transaction"

	gfs "franchise-ledger/internal/workers/fundraising/get-fundraising-snapshot"
	cst "franchise-ledger/internal/workers/ledger/confirm-settlement"
	rcl "franchise-ledger/internal/workers/ledger/reconcile-ledger"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testConfig() *config.Config {
	return &config.Config{
		Ledger: config.LedgerConfig{
			TokenDecimals:     18,
			OverfundingPolicy: "clamp",
			NativeCurrency:    "ETH",
			ReportingCurrency: "USD",
			ConversionRate:    "2000",
			SnapshotCacheTTL:  60,
			ListLimitDefault:  50,
			ListLimitMax:      500,
		},
		Settlement: config.SettlementConfig{MaxAttempts: 3, BatchSize: 50},
	}
}

type flow struct {
	store     *store.MemoryStore
	gateway   *settlement.FakeClient
	engines   *engines
	validator *validation.SchemaValidator
	log       logger.Logger
}

func newFlow(t *testing.T) *flow {
	t.Helper()
	log := logger.NewTestLogger(t)

	st := store.NewMemoryStore()
	st.PutFranchise(models.Franchise{ID: "fr-1", BrandID: "brand-1", TotalInvestment: d("50000")})

	mr := miniredis.RunT(t)
	cache := fundraising.NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)

	gateway := settlement.NewFakeClient()
	eng, err := buildEngines(testConfig(), st, cache, gateway, nil, nil, log)
	require.NoError(t, err)

	reg, err := registry.Default()
	require.NoError(t, err)
	validator, err := validation.NewSchemaValidator(reg)
	require.NoError(t, err)

	return &flow{store: st, gateway: gateway, engines: eng, validator: validator, log: log}
}

func workerConfig() (time.Duration, int) {
	return 5 * time.Second, 1
}

// ==========================
// Full ledger lifecycle
// ==========================

func TestLedgerLifecycle(t *testing.T) {
	f := newFlow(t)
	ctx := context.Background()
	timeout, jobs := workerConfig()

	createToken := ctk.NewHandler(&ctk.Config{Enabled: true, MaxJobsActive: jobs, Timeout: timeout}, f.engines.tokens, f.validator, nil, f.log)
	activate := tks.NewActivateHandler(&tks.Config{Enabled: true, MaxJobsActive: jobs, Timeout: timeout}, f.engines.tokens, f.validator, nil, f.log)
	mint := mtk.NewHandler(&mtk.Config{Enabled: true, MaxJobsActive: jobs, Timeout: timeout}, f.engines.tokens, f.validator, nil, f.log)
	burn := btk.NewHandler(&btk.Config{Enabled: true, MaxJobsActive: jobs, Timeout: timeout}, f.engines.tokens, f.validator, nil, f.log)
	createWallet := cwl.NewHandler(&cwl.Config{Enabled: true, MaxJobsActive: jobs, Timeout: timeout}, f.engines.wallets, f.validator, nil, f.log)
	recordTx := rwt.NewHandler(&rwt.Config{Enabled: true, MaxJobsActive: jobs, Timeout: timeout}, f.engines.wallets, f.validator, nil, f.log)
	snapshot := gfs.NewHandler(&gfs.Config{Enabled: true, MaxJobsActive: jobs, Timeout: timeout}, f.engines.aggregator, f.validator, nil, f.log)
	confirm := cst.NewHandler(&cst.Config{Enabled: true, MaxJobsActive: jobs, Timeout: timeout}, f.engines.relay, f.validator, nil, f.log)
	reconcile := rcl.NewHandler(&rcl.Config{Enabled: true, MaxJobsActive: jobs, Timeout: timeout}, f.engines.reconciler, f.validator, nil, f.log)

	// 1. tokenize: 50000 shares at 1.00
	_, err := createToken.Execute(ctx, &ctk.Input{FranchiseID: "fr-1", Symbol: "frx", TotalSupply: d("50000"), UnitPrice: d("1")})
	require.NoError(t, err)
	_, err = activate.Execute(ctx, &tks.Input{FranchiseID: "fr-1"})
	require.NoError(t, err)

	// 2. one purchase settled on-chain already, one waiting for the gateway
	_, err = mint.Execute(ctx, &mtk.Input{FranchiseID: "fr-1", InvestorID: "inv-1", Amount: d("20000"), TotalValue: d("20000"), ExternalRef: "0xabc"})
	require.NoError(t, err)
	pending, err := mint.Execute(ctx, &mtk.Input{FranchiseID: "fr-1", InvestorID: "inv-2", Amount: d("10000"), TotalValue: d("12000")})
	require.NoError(t, err)
	assert.Equal(t, "pending", pending.TransactionStatus)

	// 3. settle the outbox
	settled, err := confirm.Execute(ctx, &cst.Input{})
	require.NoError(t, err)
	assert.Equal(t, 1, settled.Confirmed)
	rec, err := f.store.GetTokenTransaction(ctx, pending.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusConfirmed, rec.Status)
	assert.Equal(t, settlement.FakeReference(pending.TransactionID), rec.SettlementRef)

	// 4. progress: 20000 + 12000 of 50000
	snap, err := snapshot.Execute(ctx, &gfs.Input{FranchiseID: "fr-1"})
	require.NoError(t, err)
	assert.True(t, snap.Snapshot.AmountInvested.Equal(d("32000")))
	assert.True(t, snap.Snapshot.ProgressPercentage.Equal(d("64")))
	assert.Equal(t, "FRX", snap.Snapshot.TokenSymbol)

	// 5. a redemption invalidates the cached snapshot
	_, err = burn.Execute(ctx, &btk.Input{FranchiseID: "fr-1", InvestorID: "inv-2", Amount: d("5000"), ExternalRef: "0xdef"})
	require.NoError(t, err)
	snap, err = snapshot.Execute(ctx, &gfs.Input{FranchiseID: "fr-1"})
	require.NoError(t, err)
	assert.True(t, snap.Snapshot.SharesIssued.Equal(d("25000")))
	assert.True(t, snap.Snapshot.AmountInvested.Equal(d("26000")))

	// 6. cash side: funding, income mirrored to revenue, pending payout
	_, err = createWallet.Execute(ctx, &cwl.Input{FranchiseID: "fr-1", Address: "0xwallet", InitialBalance: d("1")})
	require.NoError(t, err)
	income, err := recordTx.Execute(ctx, &rwt.Input{FranchiseID: "fr-1", Kind: models.WalletTxIncome, NativeAmount: d("0.5"), Description: "march sales"})
	require.NoError(t, err)
	assert.True(t, income.ReportingAmount.Equal(d("1000")))
	payout, err := recordTx.Execute(ctx, &rwt.Input{FranchiseID: "fr-1", Kind: models.WalletTxPayout, NativeAmount: d("0.25"), ToRef: "inv-1", Status: models.TxStatusPending})
	require.NoError(t, err)
	assert.True(t, payout.Balance.Equal(d("1.25")))

	f.gateway.FailWith(payout.TransactionID, settlement.ErrRejected)
	settled, err = confirm.Execute(ctx, &cst.Input{})
	require.NoError(t, err)
	assert.Equal(t, 1, settled.Failed)
	// no indexer configured: the revenue projection entry is acknowledged
	assert.Equal(t, 1, settled.Skipped)

	// 7. a failed settlement leaves the booking and the books still balance
	report, err := reconcile.Execute(ctx, &rcl.Input{FranchiseID: "fr-1"})
	require.NoError(t, err)
	assert.True(t, report.Consistent, "mismatches: %+v", report.Report.Mismatches)
	assert.Equal(t, 3, report.Report.TokenTransactions)
	assert.Equal(t, 3, report.Report.WalletTransactions)
}

func TestBuildEngines_BadRate(t *testing.T) {
	cfg := testConfig()
	cfg.Ledger.ConversionRate = "zero"

	_, err := buildEngines(cfg, store.NewMemoryStore(), nil, settlement.NewFakeClient(), nil, nil, logger.NewNoOpLogger())
	assert.Error(t, err)
}

// ==========================
// Health endpoints
// ==========================

type failingStore struct {
	store.Store
}

func (failingStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

type stubBroker struct {
	err error
}

func (b stubBroker) HealthCheck(context.Context) error {
	return b.err
}

func getJSON(t *testing.T, url string) (int, map[string]string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealthMux(t *testing.T) {
	tests := []struct {
		name       string
		store      store.Store
		broker     healthChecker
		path       string
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name: "health", store: store.NewMemoryStore(), broker: stubBroker{}, path: "/health",
			wantStatus: http.StatusOK, wantBody: map[string]string{"status": "healthy"},
		},
		{
			name: "ready", store: store.NewMemoryStore(), broker: stubBroker{}, path: "/ready",
			wantStatus: http.StatusOK, wantBody: map[string]string{"status": "ready", "store": "ok", "zeebe": "ok"},
		},
		{
			name: "store down", store: failingStore{}, broker: stubBroker{}, path: "/ready",
			wantStatus: http.StatusServiceUnavailable, wantBody: map[string]string{"status": "not ready", "store": "connection refused"},
		},
		{
			name: "broker down", store: store.NewMemoryStore(), broker: stubBroker{err: errors.New("no topology")}, path: "/ready",
			wantStatus: http.StatusServiceUnavailable, wantBody: map[string]string{"status": "not ready", "zeebe": "no topology"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(healthMux(tt.store, tt.broker))
			defer srv.Close()

			status, body := getJSON(t, srv.URL+tt.path)
			assert.Equal(t, tt.wantStatus, status)
			for k, v := range tt.wantBody {
				assert.Equal(t, v, body[k], k)
			}
		})
	}
}

func TestHealthMux_Metrics(t *testing.T) {
	srv := httptest.NewServer(healthMux(store.NewMemoryStore(), stubBroker{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
