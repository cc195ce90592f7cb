// cmd/ledger-worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	commonaws "franchise-ledger/internal/common/aws"
	"franchise-ledger/internal/common/camunda"
	"franchise-ledger/internal/common/config"
	"franchise-ledger/internal/common/database"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/observability"
	"franchise-ledger/internal/common/validation"
	"franchise-ledger/internal/currency"
	"franchise-ledger/internal/ledger/fundraising"
	"franchise-ledger/internal/ledger/reconcile"
	"franchise-ledger/internal/ledger/settlement"
	"franchise-ledger/internal/ledger/store"
	"franchise-ledger/internal/ledger/token"
	"franchise-ledger/internal/ledger/wallet"
	"franchise-ledger/internal/models"
	"franchise-ledger/pkg/registry"

	// Token Workers
	btk "franchise-ledger/internal/workers/token/burn-tokens"
	ctk "franchise-ledger/internal/workers/token/create-token"
	mtk "franchise-ledger/internal/workers/token/mint-tokens"
	tks "franchise-ledger/internal/workers/token/token-status"

	// Wallet Workers
	cwl "franchise-ledger/internal/workers/wallet/create-wallet"
	rwt "franchise-ledger/internal/workers/wallet/record-wallet-transaction"
	sws "franchise-ledger/internal/workers/wallet/set-wallet-status"

	// Read & Maintenance Workers
	gfs "franchise-ledger/internal/workers/fundraising/get-fundraising-snapshot"
	cst "franchise-ledger/internal/workers/ledger/confirm-settlement"
	ltx "franchise-ledger/internal/workers/ledger/list-transactions"
	rcl "franchise-ledger/internal/workers/ledger/reconcile-ledger"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

type engines struct {
	tokens     *token.Engine
	wallets    *wallet.Engine
	aggregator *fundraising.Aggregator
	relay      *settlement.Relay
	reconciler *reconcile.Reconciler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting ledger worker...",
		zap.String("environment", cfg.App.Environment),
		zap.String("store", cfg.Database.Store),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Ledger store ---
	var st store.Store
	switch cfg.Database.Store {
	case "memory":
		zapLog.Warn("using in-memory ledger store; nothing survives a restart")
		st = store.NewMemoryStore()
	default:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		if err := pg.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("ledger schema migration failed", zap.Error(err))
		}
		st = store.NewPostgresStore(pg.DB)
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Redis snapshot cache ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Revenue search projection ---
	var indexer settlement.RevenueIndexer
	if cfg.Search.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		if err := esClient.EnsureIndex(ctx, cfg.Search.RevenueIndex); err != nil {
			zapLog.Fatal("revenue index setup failed", zap.Error(err))
		}
		indexer = settlement.NewElasticsearchIndexer(esClient.Client, cfg.Search.RevenueIndex)
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Search.RevenueIndex))
	}

	// --- Ledger event publisher ---
	var publisher settlement.EventPublisher
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := commonaws.NewSNSClient(ctx, cfg.Notifications.SNS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		publisher = settlement.NewSNSPublisher(snsClient, cfg.Notifications.SNS.TopicARN)
	}

	// --- Settlement gateway ---
	var gateway settlement.Client
	switch cfg.Settlement.Adapter {
	case "fake":
		zapLog.Warn("using fake settlement gateway")
		gateway = settlement.NewFakeClient()
	default:
		gateway = settlement.NewHTTPClient(cfg.Settlement.GatewayURL, cfg.Settlement.APIKey, config.GetDuration(cfg.Settlement.Timeout))
	}

	eng, err := buildEngines(cfg, st,
		fundraising.NewRedisCache(redis.Client, time.Duration(cfg.Ledger.SnapshotCacheTTL)*time.Second),
		gateway, indexer, publisher, log)
	if err != nil {
		zapLog.Fatal("ledger engine setup failed", zap.Error(err))
	}

	// --- Task registry & input validation ---
	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("task registry load failed", zap.Error(err))
	}
	validator, err := validation.NewSchemaValidator(reg)
	if err != nil {
		zapLog.Fatal("task schema compilation failed", zap.Error(err))
	}

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	workers := registerWorkers(cfg, zeebe, eng, validator, obs, log)
	zapLog.Info("Ledger workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           healthMux(st, zeebe),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Ledger worker stopped gracefully")
}

// buildEngines wires the ledger engines over one store. cache, indexer and
// publisher may be nil.
func buildEngines(cfg *config.Config, st store.Store, cache fundraising.Cache, gateway settlement.Client,
	indexer settlement.RevenueIndexer, publisher settlement.EventPublisher, log logger.Logger) (*engines, error) {
	rates, err := currency.NewStaticRate(cfg.Ledger.NativeCurrency, cfg.Ledger.ReportingCurrency, cfg.Ledger.ConversionRate)
	if err != nil {
		return nil, err
	}

	policy := models.OverfundingPolicy(cfg.Ledger.OverfundingPolicy)
	aggregator := fundraising.NewAggregator(st, cache, policy, log)

	return &engines{
		tokens: token.NewEngine(st, token.Config{
			Decimals:          cfg.Ledger.TokenDecimals,
			OverfundingPolicy: policy,
			ListLimitDefault:  cfg.Ledger.ListLimitDefault,
			ListLimitMax:      cfg.Ledger.ListLimitMax,
		}, aggregator, log),
		wallets: wallet.NewEngine(st, rates, wallet.Config{
			ListLimitDefault: cfg.Ledger.ListLimitDefault,
			ListLimitMax:     cfg.Ledger.ListLimitMax,
		}, aggregator, log),
		aggregator: aggregator,
		relay: settlement.NewRelay(st, gateway, indexer, publisher, settlement.RelayConfig{
			MaxAttempts: cfg.Settlement.MaxAttempts,
			BatchSize:   cfg.Settlement.BatchSize,
		}, log),
		reconciler: reconcile.NewReconciler(st, log),
	}, nil
}

type workerSpec struct {
	taskType      string
	maxJobsActive int
	timeout       time.Duration
	handler       camunda.JobHandler
}

func registerWorkers(cfg *config.Config, zeebe *camunda.Client, eng *engines, validator *validation.SchemaValidator, obs *observability.Observability, log logger.Logger) []*camunda.CamundaWorker {
	var specs []workerSpec

	// --- 1. Token Workers ---
	if c := ctk.LoadConfig(cfg); c.Enabled {
		specs = append(specs, workerSpec{ctk.TaskType, c.MaxJobsActive, c.Timeout, ctk.NewHandler(c, eng.tokens, validator, obs, log)})
	}
	if c := tks.LoadConfig(cfg, tks.TaskTypeActivate); c.Enabled {
		specs = append(specs, workerSpec{tks.TaskTypeActivate, c.MaxJobsActive, c.Timeout, tks.NewActivateHandler(c, eng.tokens, validator, obs, log)})
	}
	if c := tks.LoadConfig(cfg, tks.TaskTypePause); c.Enabled {
		specs = append(specs, workerSpec{tks.TaskTypePause, c.MaxJobsActive, c.Timeout, tks.NewPauseHandler(c, eng.tokens, validator, obs, log)})
	}
	if c := mtk.LoadConfig(cfg); c.Enabled {
		specs = append(specs, workerSpec{mtk.TaskType, c.MaxJobsActive, c.Timeout, mtk.NewHandler(c, eng.tokens, validator, obs, log)})
	}
	if c := btk.LoadConfig(cfg); c.Enabled {
		specs = append(specs, workerSpec{btk.TaskType, c.MaxJobsActive, c.Timeout, btk.NewHandler(c, eng.tokens, validator, obs, log)})
	}

	// --- 2. Wallet Workers ---
	if c := cwl.LoadConfig(cfg); c.Enabled {
		specs = append(specs, workerSpec{cwl.TaskType, c.MaxJobsActive, c.Timeout, cwl.NewHandler(c, eng.wallets, validator, obs, log)})
	}
	if c := rwt.LoadConfig(cfg); c.Enabled {
		specs = append(specs, workerSpec{rwt.TaskType, c.MaxJobsActive, c.Timeout, rwt.NewHandler(c, eng.wallets, validator, obs, log)})
	}
	if c := sws.LoadConfig(cfg); c.Enabled {
		specs = append(specs, workerSpec{sws.TaskType, c.MaxJobsActive, c.Timeout, sws.NewHandler(c, eng.wallets, validator, obs, log)})
	}

	// --- 3. Read & Maintenance Workers ---
	if c := gfs.LoadConfig(cfg); c.Enabled {
		specs = append(specs, workerSpec{gfs.TaskType, c.MaxJobsActive, c.Timeout, gfs.NewHandler(c, eng.aggregator, validator, obs, log)})
	}
	if c := ltx.LoadConfig(cfg); c.Enabled {
		specs = append(specs, workerSpec{ltx.TaskType, c.MaxJobsActive, c.Timeout, ltx.NewHandler(c, eng.tokens, eng.wallets, validator, obs, log)})
	}
	if c := cst.LoadConfig(cfg); c.Enabled {
		specs = append(specs, workerSpec{cst.TaskType, c.MaxJobsActive, c.Timeout, cst.NewHandler(c, eng.relay, validator, obs, log)})
	}
	if c := rcl.LoadConfig(cfg); c.Enabled {
		specs = append(specs, workerSpec{rcl.TaskType, c.MaxJobsActive, c.Timeout, rcl.NewHandler(c, eng.reconciler, validator, obs, log)})
	}

	started := make([]*camunda.CamundaWorker, 0, len(specs))
	for _, s := range specs {
		started = append(started, camunda.StartWorker(zeebe.Zeebe(), s.taskType, s.maxJobsActive, s.timeout, s.handler, log))
	}
	return started
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func healthMux(st store.Store, zeebe healthChecker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{"store": "ok", "zeebe": "ok"}
		status := http.StatusOK
		if err := st.Ping(ctx); err != nil {
			checks["store"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := zeebe.HealthCheck(ctx); err != nil {
			checks["zeebe"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		checks["status"] = "ready"
		if status != http.StatusOK {
			checks["status"] = "not ready"
		}
		writeStatus(w, status, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
