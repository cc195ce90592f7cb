// Package fundraising derives read-only funding progress views from the
// token registry, the holdings and the wallet.
package fundraising

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/metrics"
	"franchise-ledger/internal/ledger/store"
	"franchise-ledger/internal/models"
)

var hundred = decimal.NewFromInt(100)

const progressScale = 4

type Aggregator struct {
	store  store.Reader
	cache  Cache
	policy models.OverfundingPolicy
	logger logger.Logger
	now    func() time.Time
}

// NewAggregator builds an aggregator. cache may be nil.
func NewAggregator(st store.Reader, cache Cache, policy models.OverfundingPolicy, log logger.Logger) *Aggregator {
	return &Aggregator{
		store:  st,
		cache:  cache,
		policy: policy,
		logger: logger.Component(log, "fundraising"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Invalidate drops the cached snapshot of a franchise.
func (a *Aggregator) Invalidate(ctx context.Context, franchiseID string) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Invalidate(ctx, franchiseID)
}

// Snapshot returns the funding progress of one franchise. Cache failures are
// logged and the snapshot is computed from the store.
func (a *Aggregator) Snapshot(ctx context.Context, franchiseID string) (*models.FundraisingSnapshot, error) {
	// cacheable stays false when the generation is unknown
	var generation int64
	cacheable := false
	if a.cache != nil {
		cached, gen, err := a.cache.Get(ctx, franchiseID)
		switch {
		case err != nil:
			metrics.FundraisingCacheLookups.WithLabelValues("error").Inc()
			a.logger.Warn("fundraising cache read failed", map[string]interface{}{
				"franchiseId": franchiseID,
				"error":       err,
			})
		case cached != nil:
			metrics.FundraisingCacheLookups.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			metrics.FundraisingCacheLookups.WithLabelValues("miss").Inc()
			generation, cacheable = gen, true
		}
	}

	franchise, err := a.store.GetFranchise(ctx, franchiseID)
	if err != nil {
		return nil, err
	}
	snap, err := a.compute(ctx, franchise)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := a.cache.Set(ctx, snap, generation); err != nil {
			a.logger.Warn("fundraising cache write failed", map[string]interface{}{
				"franchiseId": franchiseID,
				"error":       err,
			})
		}
	}
	return snap, nil
}

func (a *Aggregator) compute(ctx context.Context, franchise *models.Franchise) (*models.FundraisingSnapshot, error) {
	tok, err := a.store.GetToken(ctx, franchise.ID)
	if err != nil {
		return nil, err
	}
	holdings, err := a.store.ListHoldings(ctx, franchise.ID)
	if err != nil {
		return nil, err
	}

	invested, issued := decimal.Zero, decimal.Zero
	investors := 0
	for i := range holdings {
		invested = invested.Add(holdings[i].CostBasis())
		issued = issued.Add(holdings[i].Balance)
		if holdings[i].Balance.IsPositive() {
			investors++
		}
	}

	snap := &models.FundraisingSnapshot{
		FranchiseID:           franchise.ID,
		TokenSymbol:           tok.Symbol,
		TokenStatus:           tok.Status,
		TotalInvestment:       franchise.TotalInvestment,
		AmountInvested:        invested,
		SharesIssued:          issued,
		SharesRemaining:       tok.TotalSupply.Sub(issued),
		ProgressPercentage:    a.progress(invested, franchise.TotalInvestment),
		AverageFranchiseValue: franchise.TotalInvestment,
		UnitPrice:             tok.UnitPrice,
		InvestorCount:         investors,
		WalletBalance:         decimal.Zero,
		WalletReportingValue:  decimal.Zero,
		ComputedAt:            a.now(),
	}

	w, err := a.store.GetWallet(ctx, franchise.ID)
	switch {
	case err == nil:
		snap.WalletBalance = w.Balance
		snap.WalletReportingValue = w.ReportingBalance
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}
	return snap, nil
}

// BrandRollup aggregates every franchise of a brand. Franchises without a
// token count towards the target and the average value but contribute no shares.
func (a *Aggregator) BrandRollup(ctx context.Context, brandID string) (*models.BrandRollup, error) {
	franchises, err := a.store.ListFranchisesByBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}
	if len(franchises) == 0 {
		return nil, apperrors.NewNotFoundError("brand", brandID)
	}

	rollup := &models.BrandRollup{
		BrandID:         brandID,
		FranchiseCount:  len(franchises),
		TotalInvestment: decimal.Zero,
		AmountInvested:  decimal.Zero,
		SharesIssued:    decimal.Zero,
		SharesRemaining: decimal.Zero,
		Franchises:      []models.FundraisingSnapshot{},
		ComputedAt:      a.now(),
	}

	for i := range franchises {
		rollup.TotalInvestment = rollup.TotalInvestment.Add(franchises[i].TotalInvestment)

		snap, err := a.Snapshot(ctx, franchises[i].ID)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rollup.AmountInvested = rollup.AmountInvested.Add(snap.AmountInvested)
		rollup.SharesIssued = rollup.SharesIssued.Add(snap.SharesIssued)
		rollup.SharesRemaining = rollup.SharesRemaining.Add(snap.SharesRemaining)
		rollup.Franchises = append(rollup.Franchises, *snap)
	}

	rollup.ProgressPercentage = a.progress(rollup.AmountInvested, rollup.TotalInvestment)
	rollup.AverageFranchiseValue = rollup.TotalInvestment.DivRound(decimal.NewFromInt(int64(rollup.FranchiseCount)), progressScale)
	return rollup, nil
}

func (a *Aggregator) progress(invested, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}
	p := invested.Mul(hundred).DivRound(target, progressScale)
	if a.policy == models.OverfundingClamp && p.GreaterThan(hundred) {
		return hundred
	}
	return p
}
