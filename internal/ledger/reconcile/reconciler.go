// Package reconcile replays the token and wallet ledgers of a franchise and
// compares the result with the stored projections.
package reconcile

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

const (
	CheckCirculatingVsHoldings = "circulating_supply_vs_holdings"
	CheckCirculatingVsLedger   = "circulating_supply_vs_ledger"
	CheckHoldingVsLedger       = "holding_balance_vs_ledger"
	CheckHoldingFlows          = "holding_balance_vs_flows"
	CheckWalletNative          = "wallet_balance_vs_ledger"
	CheckWalletReporting       = "wallet_reporting_balance_vs_ledger"
	CheckWalletCount           = "wallet_transaction_count"
)

type Mismatch struct {
	Check    string `json:"check"`
	Subject  string `json:"subject"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

type Report struct {
	FranchiseID        string     `json:"franchiseId"`
	TokenChecked       bool       `json:"tokenChecked"`
	WalletChecked      bool       `json:"walletChecked"`
	TokenTransactions  int        `json:"tokenTransactions"`
	WalletTransactions int        `json:"walletTransactions"`
	Mismatches         []Mismatch `json:"mismatches"`
	CheckedAt          time.Time  `json:"checkedAt"`
}

func (r *Report) Consistent() bool {
	return len(r.Mismatches) == 0
}

func (r *Report) add(check, subject string, expected, actual decimal.Decimal) {
	if expected.Equal(actual) {
		return
	}
	r.Mismatches = append(r.Mismatches, Mismatch{
		Check:    check,
		Subject:  subject,
		Expected: expected.String(),
		Actual:   actual.String(),
	})
}

type Reconciler struct {
	store  store.Store
	logger logger.Logger
}

func NewReconciler(st store.Store, log logger.Logger) *Reconciler {
	return &Reconciler{
		store:  st,
		logger: logger.Component(log, "reconciler"),
	}
}

// Franchise checks every projection of the franchise against its ledger.
// Every record is replayed whatever its settlement status, since a failed
// settlement does not undo the booking. A franchise without a token or wallet
// is reported with that side unchecked.
//
// All reads run inside the franchise's write unit, so writers of the same
// franchise wait and the report sees one committed state. Nothing is written.
func (r *Reconciler) Franchise(ctx context.Context, franchiseID string) (report *Report, err error) {
	defer func() { metrics.ObserveLedgerOperation("reconcile", err) }()

	if franchiseID == "" {
		return nil, apperrors.NewInvalidInputError("franchiseId is required")
	}
	report = &Report{FranchiseID: franchiseID, Mismatches: []Mismatch{}, CheckedAt: time.Now().UTC()}
	err = r.store.WithFranchise(ctx, franchiseID, func(tx store.Tx) error {
		if _, err := tx.GetFranchise(ctx, franchiseID); err != nil {
			return err
		}
		if err := checkToken(ctx, tx, report); err != nil {
			return err
		}
		return checkWallet(ctx, tx, report)
	})
	if err != nil {
		return nil, err
	}

	if !report.Consistent() {
		r.logger.Warn("ledger projection mismatch", map[string]interface{}{
			"franchiseId": franchiseID,
			"mismatches":  len(report.Mismatches),
		})
	}
	return report, nil
}

func checkToken(ctx context.Context, rd store.Reader, report *Report) error {
	tok, err := rd.GetToken(ctx, report.FranchiseID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	report.TokenChecked = true

	holdings, err := rd.ListHoldings(ctx, report.FranchiseID)
	if err != nil {
		return err
	}
	txs, err := rd.ListTokenTransactions(ctx, report.FranchiseID, 0)
	if err != nil {
		return err
	}
	report.TokenTransactions = len(txs)

	perInvestor := make(map[string]decimal.Decimal)
	minted, burned := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Kind {
		case models.TokenTxMint:
			minted = minted.Add(tx.Amount)
			perInvestor[tx.InvestorID] = perInvestor[tx.InvestorID].Add(tx.Amount)
		case models.TokenTxBurn:
			burned = burned.Add(tx.Amount)
			perInvestor[tx.InvestorID] = perInvestor[tx.InvestorID].Sub(tx.Amount)
		}
	}

	held := decimal.Zero
	for _, h := range holdings {
		held = held.Add(h.Balance)
		report.add(CheckHoldingFlows, h.InvestorID, h.TotalPurchased.Sub(h.TotalSold), h.Balance)
		report.add(CheckHoldingVsLedger, h.InvestorID, perInvestor[h.InvestorID], h.Balance)
		delete(perInvestor, h.InvestorID)
	}
	// ledger flows for investors that have no holding row at all
	for investor, net := range perInvestor {
		report.add(CheckHoldingVsLedger, investor, net, decimal.Zero)
	}

	report.add(CheckCirculatingVsHoldings, tok.Symbol, held, tok.CirculatingSupply)
	report.add(CheckCirculatingVsLedger, tok.Symbol, minted.Sub(burned), tok.CirculatingSupply)
	return nil
}

func checkWallet(ctx context.Context, rd store.Reader, report *Report) error {
	w, err := rd.GetWallet(ctx, report.FranchiseID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	report.WalletChecked = true

	txs, err := rd.ListWalletTransactions(ctx, report.FranchiseID, 0)
	if err != nil {
		return err
	}
	report.WalletTransactions = len(txs)

	native, reporting := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		native = native.Add(tx.Kind.Signed(tx.NativeAmount))
		reporting = reporting.Add(tx.Kind.Signed(tx.ReportingAmount))
	}

	report.add(CheckWalletNative, w.ID, native, w.Balance)
	report.add(CheckWalletReporting, w.ID, reporting, w.ReportingBalance)
	report.add(CheckWalletCount, w.ID, decimal.NewFromInt(int64(len(txs))), decimal.NewFromInt(w.TransactionCount))
	return nil
}
