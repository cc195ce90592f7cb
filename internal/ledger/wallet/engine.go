// Package wallet implements the franchise cash wallet and its transaction
// engine. The wallet ledger is authoritative; wallet balances and totals are
// a projection updated in the same atomic unit as each ledger append.
package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/metrics"
	"franchise-ledger/internal/currency"
	"franchise-ledger/internal/ledger/store"
	"franchise-ledger/internal/models"
)

type Config struct {
	ListLimitDefault int
	ListLimitMax     int
}

// SnapshotInvalidator drops cached fundraising snapshots, which carry the
// wallet balance, after a wallet write.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, franchiseID string) error
}

type Engine struct {
	store       store.Store
	rates       currency.RateSource
	config      Config
	invalidator SnapshotInvalidator
	logger      logger.Logger

	now   func() time.Time
	newID func() string
}

// NewEngine builds the engine. invalidator may be nil.
func NewEngine(st store.Store, rates currency.RateSource, config Config, invalidator SnapshotInvalidator, log logger.Logger) *Engine {
	return &Engine{
		store:       st,
		rates:       rates,
		config:      config,
		invalidator: invalidator,
		logger:      logger.Component(log, "wallet-engine"),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
	}
}

type CreateWalletRequest struct {
	FranchiseID    string
	Address        string
	InitialBalance decimal.Decimal
}

type RecordTransactionRequest struct {
	FranchiseID string
	Kind        models.WalletTxKind
	// NativeAmount and ReportingAmount are magnitudes; the kind gives the sign.
	// A zero ReportingAmount is derived from NativeAmount with the rate source.
	NativeAmount    decimal.Decimal
	ReportingAmount decimal.Decimal
	Description     string
	Category        string
	FromRef         string
	ToRef           string
	ExternalRef     string
	// Status defaults to confirmed. Pending records are queued for settlement.
	Status models.TxStatus
}

type Result struct {
	Transaction models.WalletTransaction `json:"transaction"`
	Wallet      models.FranchiseWallet   `json:"wallet"`
}

// CreateWallet opens the wallet of a franchise. A positive initial balance is
// booked as a funding transaction so ledger and balance agree from the start.
func (e *Engine) CreateWallet(ctx context.Context, req CreateWalletRequest) (w *models.FranchiseWallet, err error) {
	defer func() { metrics.ObserveLedgerOperation("create_wallet", err) }()

	if req.FranchiseID == "" {
		return nil, apperrors.NewInvalidInputError("franchiseId is required")
	}
	if req.Address == "" {
		return nil, apperrors.NewInvalidInputError("address is required")
	}
	if req.InitialBalance.IsNegative() {
		return nil, apperrors.NewInvalidInputError("initialBalance must not be negative")
	}

	now := e.now()
	created := &models.FranchiseWallet{
		ID:               e.newID(),
		FranchiseID:      req.FranchiseID,
		Address:          req.Address,
		Balance:          decimal.Zero,
		ReportingBalance: decimal.Zero,
		TotalIncome:      decimal.Zero,
		TotalExpenses:    decimal.Zero,
		TotalPayouts:     decimal.Zero,
		TotalRoyalties:   decimal.Zero,
		Status:           models.WalletStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = e.store.WithFranchise(ctx, req.FranchiseID, func(tx store.Tx) error {
		if _, err := tx.GetFranchise(ctx, req.FranchiseID); err != nil {
			return err
		}
		if _, err := tx.GetWallet(ctx, req.FranchiseID); err == nil {
			return apperrors.NewAlreadyExistsError("wallet", req.FranchiseID)
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if err := tx.InsertWallet(ctx, created); err != nil {
			return err
		}
		if !req.InitialBalance.IsPositive() {
			return nil
		}

		funding := &models.WalletTransaction{
			ID:              e.newID(),
			WalletID:        created.ID,
			FranchiseID:     created.FranchiseID,
			Kind:            models.WalletTxFunding,
			NativeAmount:    req.InitialBalance,
			ReportingAmount: e.rates.Convert(req.InitialBalance),
			Description:     "initial balance",
			ToRef:           created.Address,
			Status:          models.TxStatusConfirmed,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		created.Apply(funding)
		if err := tx.AppendWalletTransaction(ctx, funding); err != nil {
			return err
		}
		return tx.UpdateWallet(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, created.FranchiseID)

	e.logger.Info("wallet created", map[string]interface{}{
		"franchiseId":    created.FranchiseID,
		"walletId":       created.ID,
		"initialBalance": req.InitialBalance.String(),
	})
	return created, nil
}

// RecordTransaction appends one cash movement and folds it into the wallet.
func (e *Engine) RecordTransaction(ctx context.Context, req RecordTransactionRequest) (result *Result, err error) {
	defer func() { metrics.ObserveLedgerOperation("record_wallet_transaction", err) }()

	if err := validateTransaction(&req); err != nil {
		return nil, err
	}
	if req.ReportingAmount.IsZero() {
		req.ReportingAmount = e.rates.Convert(req.NativeAmount)
	}

	err = e.store.WithFranchise(ctx, req.FranchiseID, func(tx store.Tx) error {
		w, err := tx.GetWallet(ctx, req.FranchiseID)
		if err != nil {
			return err
		}
		if w.Status != models.WalletStatusActive {
			return apperrors.NewInvalidStatusError("wallet", string(w.Status), string(req.Kind))
		}
		if req.Kind.Sign() < 0 && w.Balance.LessThan(req.NativeAmount) {
			return apperrors.NewInsufficientBalanceError(req.NativeAmount.String(), w.Balance.String())
		}

		now := e.now()
		rec := &models.WalletTransaction{
			ID:              e.newID(),
			WalletID:        w.ID,
			FranchiseID:     w.FranchiseID,
			Kind:            req.Kind,
			NativeAmount:    req.NativeAmount,
			ReportingAmount: req.ReportingAmount,
			Description:     req.Description,
			Category:        req.Category,
			FromRef:         req.FromRef,
			ToRef:           req.ToRef,
			SettlementRef:   req.ExternalRef,
			Status:          req.Status,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		w.Apply(rec)

		if err := tx.AppendWalletTransaction(ctx, rec); err != nil {
			return err
		}
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}
		if req.Kind == models.WalletTxIncome {
			if err := e.mirrorRevenue(ctx, tx, rec); err != nil {
				return err
			}
		}
		if rec.Status == models.TxStatusPending {
			if err := tx.EnqueueOutbox(ctx, &models.OutboxEntry{
				Topic:       models.OutboxSettlement,
				Ledger:      models.LedgerWallet,
				RecordID:    rec.ID,
				FranchiseID: rec.FranchiseID,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
		}

		result = &Result{Transaction: *rec, Wallet: *w}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, req.FranchiseID)

	e.logger.Info("wallet transaction recorded", map[string]interface{}{
		"franchiseId":     req.FranchiseID,
		"transactionId":   result.Transaction.ID,
		"kind":            string(req.Kind),
		"nativeAmount":    req.NativeAmount.String(),
		"reportingAmount": req.ReportingAmount.String(),
		"status":          string(result.Transaction.Status),
	})
	return result, nil
}

// mirrorRevenue writes the revenue reporting row and queues its search projection.
func (e *Engine) mirrorRevenue(ctx context.Context, tx store.Tx, rec *models.WalletTransaction) error {
	native, reporting := e.rates.Pair()
	if err := tx.AppendRevenueRecord(ctx, &models.RevenueRecord{
		ID:                  e.newID(),
		WalletTransactionID: rec.ID,
		FranchiseID:         rec.FranchiseID,
		NativeAmount:        rec.NativeAmount,
		ReportingAmount:     rec.ReportingAmount,
		NativeCurrency:      native,
		ReportingCurrency:   reporting,
		Description:         rec.Description,
		RecordedAt:          rec.CreatedAt,
	}); err != nil {
		return err
	}
	return tx.EnqueueOutbox(ctx, &models.OutboxEntry{
		Topic:       models.OutboxRevenueIndex,
		Ledger:      models.LedgerWallet,
		RecordID:    rec.ID,
		FranchiseID: rec.FranchiseID,
		CreatedAt:   rec.CreatedAt,
	})
}

// SetStatus moves the wallet along its lifecycle. Re-applying the current
// status is acknowledged without a write.
func (e *Engine) SetStatus(ctx context.Context, franchiseID string, next models.WalletStatus) (w *models.FranchiseWallet, err error) {
	defer func() { metrics.ObserveLedgerOperation("set_wallet_status", err) }()

	if !next.Valid() {
		return nil, apperrors.NewInvalidInputError("unknown wallet status " + string(next))
	}

	var previous models.WalletStatus
	err = e.store.WithFranchise(ctx, franchiseID, func(tx store.Tx) error {
		current, err := tx.GetWallet(ctx, franchiseID)
		if err != nil {
			return err
		}
		w = current
		previous = current.Status
		if current.Status == next {
			return nil
		}
		if !current.Status.CanTransitionTo(next) {
			return apperrors.NewInvalidStatusError("wallet", string(current.Status), string(next))
		}
		current.Status = next
		current.UpdatedAt = e.now()
		return tx.UpdateWallet(ctx, current)
	})
	if err != nil {
		return nil, err
	}

	if previous != next {
		e.invalidate(ctx, franchiseID)
		e.logger.Info("wallet status changed", map[string]interface{}{
			"franchiseId": franchiseID,
			"from":        string(previous),
			"to":          string(next),
		})
	}
	return w, nil
}

func (e *Engine) invalidate(ctx context.Context, franchiseID string) {
	if e.invalidator == nil {
		return
	}
	if err := e.invalidator.Invalidate(ctx, franchiseID); err != nil {
		e.logger.Warn("fundraising snapshot invalidation failed", map[string]interface{}{
			"franchiseId": franchiseID,
			"error":       err,
		})
	}
}

func (e *Engine) GetWallet(ctx context.Context, franchiseID string) (*models.FranchiseWallet, error) {
	return e.store.GetWallet(ctx, franchiseID)
}

// ListTransactions returns the wallet ledger of a franchise, newest first.
func (e *Engine) ListTransactions(ctx context.Context, franchiseID string, limit int) ([]models.WalletTransaction, error) {
	if _, err := e.store.GetWallet(ctx, franchiseID); err != nil {
		return nil, err
	}
	limit = store.ClampLimit(limit, e.config.ListLimitDefault, e.config.ListLimitMax)
	return e.store.ListWalletTransactions(ctx, franchiseID, limit)
}

func validateTransaction(req *RecordTransactionRequest) error {
	if req.FranchiseID == "" {
		return apperrors.NewInvalidInputError("franchiseId is required")
	}
	if !req.Kind.Valid() {
		return apperrors.NewInvalidInputError("unknown transaction kind " + string(req.Kind))
	}
	if !req.NativeAmount.IsPositive() {
		return apperrors.NewInvalidInputError("nativeAmount must be positive")
	}
	if req.ReportingAmount.IsNegative() {
		return apperrors.NewInvalidInputError("reportingAmount must not be negative")
	}
	switch req.Status {
	case "":
		req.Status = models.TxStatusConfirmed
	case models.TxStatusConfirmed, models.TxStatusPending:
	default:
		return apperrors.NewInvalidInputError("status must be pending or confirmed")
	}
	return nil
}
