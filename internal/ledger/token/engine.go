// Package token implements the franchise token registry and the mint/burn
// engine that keeps supply, holdings and the share ledger in step.
package token

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/metrics"
	"franchise-ledger/internal/ledger/store"
	"franchise-ledger/internal/models"
)

const (
	maxSymbolLength = 12
	priceScale      = 18
)

// SnapshotInvalidator drops cached fundraising snapshots after a supply change.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, franchiseID string) error
}

type Config struct {
	Decimals          int32
	OverfundingPolicy models.OverfundingPolicy
	ListLimitDefault  int
	ListLimitMax      int
}

type Engine struct {
	store       store.Store
	config      Config
	invalidator SnapshotInvalidator
	logger      logger.Logger

	now   func() time.Time
	newID func() string
}

// NewEngine builds the engine. invalidator may be nil.
func NewEngine(st store.Store, config Config, invalidator SnapshotInvalidator, log logger.Logger) *Engine {
	return &Engine{
		store:       st,
		config:      config,
		invalidator: invalidator,
		logger:      logger.Component(log, "token-engine"),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
	}
}

type CreateTokenRequest struct {
	FranchiseID string
	Symbol      string
	TotalSupply decimal.Decimal
	UnitPrice   decimal.Decimal
}

type MintRequest struct {
	FranchiseID string
	InvestorID  string
	Amount      decimal.Decimal
	TotalValue  decimal.Decimal
	ExternalRef string
}

type BurnRequest struct {
	FranchiseID string
	InvestorID  string
	Amount      decimal.Decimal
	ExternalRef string
}

// Receipt is the committed state after a mint or burn.
type Receipt struct {
	Transaction models.TokenTransaction `json:"transaction"`
	Holding     models.TokenHolding     `json:"holding"`
	Token       models.FranchiseToken   `json:"token"`
}

// CreateToken registers the single token of a franchise with zero circulation.
func (e *Engine) CreateToken(ctx context.Context, req CreateTokenRequest) (tok *models.FranchiseToken, err error) {
	defer func() { metrics.ObserveLedgerOperation("create_token", err) }()

	symbol, err := normalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	if req.FranchiseID == "" {
		return nil, apperrors.NewInvalidInputError("franchiseId is required")
	}
	if !req.TotalSupply.IsPositive() {
		return nil, apperrors.NewInvalidInputError("totalSupply must be positive")
	}
	if req.UnitPrice.IsNegative() {
		return nil, apperrors.NewInvalidInputError("unitPrice must not be negative")
	}
	if err := e.checkPrecision("totalSupply", req.TotalSupply); err != nil {
		return nil, err
	}

	now := e.now()
	created := &models.FranchiseToken{
		ID:                e.newID(),
		FranchiseID:       req.FranchiseID,
		Symbol:            symbol,
		Decimals:          e.config.Decimals,
		TotalSupply:       req.TotalSupply,
		CirculatingSupply: decimal.Zero,
		UnitPrice:         req.UnitPrice,
		Status:            models.TokenStatusCreated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = e.store.WithFranchise(ctx, req.FranchiseID, func(tx store.Tx) error {
		if _, err := tx.GetFranchise(ctx, req.FranchiseID); err != nil {
			return err
		}
		if _, err := tx.GetToken(ctx, req.FranchiseID); err == nil {
			return apperrors.NewAlreadyExistsError("token", req.FranchiseID)
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return tx.InsertToken(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("token created", map[string]interface{}{
		"franchiseId": created.FranchiseID,
		"tokenId":     created.ID,
		"symbol":      created.Symbol,
		"totalSupply": created.TotalSupply.String(),
	})
	return created, nil
}

// Activate moves a created or paused token to active. Activating an active
// token is acknowledged without a write.
func (e *Engine) Activate(ctx context.Context, franchiseID string) (*models.FranchiseToken, error) {
	tok, err := e.transition(ctx, franchiseID, models.TokenStatusActive)
	metrics.ObserveLedgerOperation("activate_token", err)
	return tok, err
}

// Pause stops minting on an active token. Pausing a paused token is acknowledged.
func (e *Engine) Pause(ctx context.Context, franchiseID string) (*models.FranchiseToken, error) {
	tok, err := e.transition(ctx, franchiseID, models.TokenStatusPaused)
	metrics.ObserveLedgerOperation("pause_token", err)
	return tok, err
}

func (e *Engine) transition(ctx context.Context, franchiseID string, next models.TokenStatus) (*models.FranchiseToken, error) {
	var out *models.FranchiseToken
	var changed bool

	err := e.store.WithFranchise(ctx, franchiseID, func(tx store.Tx) error {
		tok, err := tx.GetToken(ctx, franchiseID)
		if err != nil {
			return err
		}
		out = tok
		if tok.Status == next {
			return nil
		}
		if !tok.Status.CanTransitionTo(next) {
			return apperrors.NewInvalidStatusError("token", string(tok.Status), string(next))
		}
		tok.Status = next
		tok.UpdatedAt = e.now()
		changed = true
		return tx.UpdateToken(ctx, tok)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		e.logger.Info("token status changed", map[string]interface{}{
			"franchiseId": franchiseID,
			"status":      string(next),
		})
		e.invalidate(ctx, franchiseID)
	}
	return out, nil
}

// Mint issues shares to an investor. Holding, supply, ledger record and, for
// unsettled mints, the settlement intent are written as one unit.
func (e *Engine) Mint(ctx context.Context, req MintRequest) (receipt *Receipt, err error) {
	defer func() { metrics.ObserveLedgerOperation("mint", err) }()

	if err := e.validateMovement(req.FranchiseID, req.InvestorID, req.Amount); err != nil {
		return nil, err
	}
	if req.TotalValue.IsNegative() {
		return nil, apperrors.NewInvalidInputError("totalValue must not be negative")
	}

	err = e.store.WithFranchise(ctx, req.FranchiseID, func(tx store.Tx) error {
		tok, err := tx.GetToken(ctx, req.FranchiseID)
		if err != nil {
			return err
		}
		if tok.Status != models.TokenStatusActive {
			return apperrors.NewInvalidStatusError("token", string(tok.Status), "mint")
		}
		if remaining := tok.RemainingSupply(); req.Amount.GreaterThan(remaining) {
			return apperrors.NewSupplyExceededError(req.Amount.String(), remaining.String())
		}
		if e.config.OverfundingPolicy == models.OverfundingReject {
			if err := e.checkFundingTarget(ctx, tx, req); err != nil {
				return err
			}
		}

		now := e.now()
		holding, err := tx.GetHolding(ctx, req.FranchiseID, req.InvestorID)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			holding = &models.TokenHolding{
				FranchiseID:    req.FranchiseID,
				InvestorID:     req.InvestorID,
				Balance:        decimal.Zero,
				TotalPurchased: decimal.Zero,
				TotalSold:      decimal.Zero,
				CreatedAt:      now,
			}
		case err != nil:
			return err
		}

		lotPrice := req.TotalValue.DivRound(req.Amount, priceScale)
		holding.AveragePurchasePrice = weightedAverage(holding, req.Amount, req.TotalValue)
		holding.Balance = holding.Balance.Add(req.Amount)
		holding.TotalPurchased = holding.TotalPurchased.Add(req.Amount)
		holding.LastTransactionAt = now

		tok.CirculatingSupply = tok.CirculatingSupply.Add(req.Amount)
		tok.UpdatedAt = now

		rec := e.newRecord(tok, req.InvestorID, models.TokenTxMint, req.Amount, lotPrice, req.TotalValue, req.ExternalRef, now)
		if err := e.write(ctx, tx, tok, holding, rec); err != nil {
			return err
		}

		receipt = &Receipt{Transaction: *rec, Holding: *holding, Token: *tok}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("tokens minted", map[string]interface{}{
		"franchiseId":       req.FranchiseID,
		"investorId":        req.InvestorID,
		"amount":            req.Amount.String(),
		"transactionId":     receipt.Transaction.ID,
		"status":            string(receipt.Transaction.Status),
		"circulatingSupply": receipt.Token.CirculatingSupply.String(),
	})
	e.invalidate(ctx, req.FranchiseID)
	return receipt, nil
}

// Burn redeems shares from an investor at their average purchase price. A burn
// larger than the holding is rejected whole.
func (e *Engine) Burn(ctx context.Context, req BurnRequest) (receipt *Receipt, err error) {
	defer func() { metrics.ObserveLedgerOperation("burn", err) }()

	if err := e.validateMovement(req.FranchiseID, req.InvestorID, req.Amount); err != nil {
		return nil, err
	}

	err = e.store.WithFranchise(ctx, req.FranchiseID, func(tx store.Tx) error {
		tok, err := tx.GetToken(ctx, req.FranchiseID)
		if err != nil {
			return err
		}
		holding, err := tx.GetHolding(ctx, req.FranchiseID, req.InvestorID)
		if err != nil {
			return err
		}
		if holding.Balance.LessThan(req.Amount) {
			return apperrors.NewInsufficientBalanceError(req.Amount.String(), holding.Balance.String())
		}

		now := e.now()
		value := req.Amount.Mul(holding.AveragePurchasePrice).Round(priceScale)

		holding.Balance = holding.Balance.Sub(req.Amount)
		holding.TotalSold = holding.TotalSold.Add(req.Amount)
		holding.LastTransactionAt = now

		tok.CirculatingSupply = tok.CirculatingSupply.Sub(req.Amount)
		tok.UpdatedAt = now

		rec := e.newRecord(tok, req.InvestorID, models.TokenTxBurn, req.Amount, holding.AveragePurchasePrice, value, req.ExternalRef, now)
		if err := e.write(ctx, tx, tok, holding, rec); err != nil {
			return err
		}

		receipt = &Receipt{Transaction: *rec, Holding: *holding, Token: *tok}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("tokens burned", map[string]interface{}{
		"franchiseId":       req.FranchiseID,
		"investorId":        req.InvestorID,
		"amount":            req.Amount.String(),
		"transactionId":     receipt.Transaction.ID,
		"status":            string(receipt.Transaction.Status),
		"circulatingSupply": receipt.Token.CirculatingSupply.String(),
	})
	e.invalidate(ctx, req.FranchiseID)
	return receipt, nil
}

func (e *Engine) GetToken(ctx context.Context, franchiseID string) (*models.FranchiseToken, error) {
	return e.store.GetToken(ctx, franchiseID)
}

func (e *Engine) GetHolding(ctx context.Context, franchiseID, investorID string) (*models.TokenHolding, error) {
	return e.store.GetHolding(ctx, franchiseID, investorID)
}

// ListTransactions returns the share ledger of a franchise, newest first.
func (e *Engine) ListTransactions(ctx context.Context, franchiseID string, limit int) ([]models.TokenTransaction, error) {
	if _, err := e.store.GetToken(ctx, franchiseID); err != nil {
		return nil, err
	}
	limit = store.ClampLimit(limit, e.config.ListLimitDefault, e.config.ListLimitMax)
	return e.store.ListTokenTransactions(ctx, franchiseID, limit)
}

// weightedAverage folds a new lot into the holding's average purchase price.
// The first lot sets the average outright.
func weightedAverage(h *models.TokenHolding, amount, totalValue decimal.Decimal) decimal.Decimal {
	if h.TotalPurchased.IsZero() {
		return totalValue.DivRound(amount, priceScale)
	}
	cost := h.AveragePurchasePrice.Mul(h.TotalPurchased).Add(totalValue)
	return cost.DivRound(h.TotalPurchased.Add(amount), priceScale)
}

func (e *Engine) checkFundingTarget(ctx context.Context, tx store.Tx, req MintRequest) error {
	franchise, err := tx.GetFranchise(ctx, req.FranchiseID)
	if err != nil {
		return err
	}
	// no target configured means nothing to exceed
	if !franchise.TotalInvestment.IsPositive() {
		return nil
	}
	holdings, err := tx.ListHoldings(ctx, req.FranchiseID)
	if err != nil {
		return err
	}
	invested := decimal.Zero
	for i := range holdings {
		invested = invested.Add(holdings[i].CostBasis())
	}
	projected := invested.Add(req.TotalValue)
	if projected.GreaterThan(franchise.TotalInvestment) {
		return apperrors.NewFundingTargetExceededError(projected.String(), franchise.TotalInvestment.String())
	}
	return nil
}

func (e *Engine) newRecord(tok *models.FranchiseToken, investorID string, kind models.TokenTxKind, amount, unitPrice, value decimal.Decimal, externalRef string, now time.Time) *models.TokenTransaction {
	status := models.TxStatusPending
	if externalRef != "" {
		status = models.TxStatusConfirmed
	}
	return &models.TokenTransaction{
		ID:            e.newID(),
		FranchiseID:   tok.FranchiseID,
		TokenID:       tok.ID,
		InvestorID:    investorID,
		Kind:          kind,
		Amount:        amount,
		UnitPrice:     unitPrice,
		TotalValue:    value,
		SettlementRef: externalRef,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (e *Engine) write(ctx context.Context, tx store.Tx, tok *models.FranchiseToken, holding *models.TokenHolding, rec *models.TokenTransaction) error {
	if err := tx.UpsertHolding(ctx, holding); err != nil {
		return err
	}
	if err := tx.UpdateToken(ctx, tok); err != nil {
		return err
	}
	if err := tx.AppendTokenTransaction(ctx, rec); err != nil {
		return err
	}
	if rec.Status != models.TxStatusPending {
		return nil
	}
	return tx.EnqueueOutbox(ctx, &models.OutboxEntry{
		Topic:       models.OutboxSettlement,
		Ledger:      models.LedgerToken,
		RecordID:    rec.ID,
		FranchiseID: rec.FranchiseID,
		CreatedAt:   rec.CreatedAt,
	})
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

func (e *Engine) validateMovement(franchiseID, investorID string, amount decimal.Decimal) error {
	if franchiseID == "" {
		return apperrors.NewInvalidInputError("franchiseId is required")
	}
	if investorID == "" {
		return apperrors.NewInvalidInputError("investorId is required")
	}
	if !amount.IsPositive() {
		return apperrors.NewInvalidInputError("amount must be positive")
	}
	return e.checkPrecision("amount", amount)
}

func (e *Engine) checkPrecision(field string, v decimal.Decimal) error {
	if !v.Equal(v.Truncate(e.config.Decimals)) {
		return apperrors.NewInvalidInputError(field + " has more fractional digits than the token allows")
	}
	return nil
}

func normalizeSymbol(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if symbol == "" {
		return "", apperrors.NewInvalidInputError("symbol is required")
	}
	if len(symbol) > maxSymbolLength {
		return "", apperrors.NewInvalidInputError("symbol is longer than 12 characters")
	}
	for _, r := range symbol {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "", apperrors.NewInvalidInputError("symbol must be alphanumeric")
		}
	}
	return symbol, nil
}
