package settlement

import (
	"context"
	"errors"
	"time"

	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/metrics"
	"franchise-ledger/internal/ledger/store"
	"franchise-ledger/internal/models"
)

type RelayConfig struct {
	MaxAttempts int
	BatchSize   int
}

// Relay drains the outbox. It only moves record status and never touches
// the aggregates the record was booked against.
type Relay struct {
	store     store.Store
	client    Client
	indexer   RevenueIndexer
	publisher EventPublisher
	config    RelayConfig
	logger    logger.Logger
	now       func() time.Time
}

// NewRelay builds a relay. indexer and publisher may be nil; without an
// indexer revenue entries are acknowledged and skipped.
func NewRelay(st store.Store, client Client, indexer RevenueIndexer, publisher EventPublisher, config RelayConfig, log logger.Logger) *Relay {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	return &Relay{
		store:     st,
		client:    client,
		indexer:   indexer,
		publisher: publisher,
		config:    config,
		logger:    logger.Component(log, "settlement-relay"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// BatchSize is the most entries one ProcessPending call handles.
func (r *Relay) BatchSize() int {
	return r.config.BatchSize
}

type Summary struct {
	Processed int `json:"processed"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Retried   int `json:"retried"`
	Indexed   int `json:"indexed"`
	Skipped   int `json:"skipped"`
}

// ProcessPending handles up to limit outbox entries, oldest first. limit <= 0
// uses the configured batch size.
func (r *Relay) ProcessPending(ctx context.Context, limit int) (*Summary, error) {
	if limit <= 0 || limit > r.config.BatchSize {
		limit = r.config.BatchSize
	}
	entries, err := r.store.ListPendingOutbox(ctx, limit)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return summary, apperrors.NewExternalServiceError(apperrors.ErrCodeSettlementFailed, "relay", err)
		}

		var result string
		switch entries[i].Topic {
		case models.OutboxSettlement:
			result, err = r.settle(ctx, entries[i])
		case models.OutboxRevenueIndex:
			result, err = r.indexRevenue(ctx, entries[i])
		default:
			result, err = "skipped", r.acknowledge(ctx, entries[i])
		}
		if err != nil {
			return summary, err
		}

		metrics.LedgerSettlements.WithLabelValues(string(entries[i].Topic), result).Inc()
		summary.Processed++
		switch result {
		case "confirmed":
			summary.Confirmed++
		case "failed":
			summary.Failed++
		case "retried":
			summary.Retried++
		case "indexed":
			summary.Indexed++
		default:
			summary.Skipped++
		}
	}

	if summary.Processed > 0 {
		r.logger.Info("outbox relayed", map[string]interface{}{
			"processed": summary.Processed,
			"confirmed": summary.Confirmed,
			"failed":    summary.Failed,
			"retried":   summary.Retried,
			"indexed":   summary.Indexed,
			"skipped":   summary.Skipped,
		})
	}
	return summary, nil
}

func (r *Relay) settle(ctx context.Context, entry models.OutboxEntry) (string, error) {
	in, pending, err := r.instruction(ctx, entry)
	if err != nil {
		return "", err
	}
	if !pending {
		return "skipped", r.acknowledge(ctx, entry)
	}

	receipt, submitErr := r.client.Submit(ctx, *in)
	if submitErr == nil {
		if err := r.finish(ctx, entry, models.TxStatusConfirmed, receipt.Reference, ""); err != nil {
			return "", err
		}
		r.publish(ctx, Event{
			Type: EventSettlementConfirmed, Ledger: entry.Ledger, RecordID: entry.RecordID,
			FranchiseID: entry.FranchiseID, Reference: receipt.Reference, OccurredAt: r.now(),
		})
		return "confirmed", nil
	}

	attempts := entry.Attempts + 1
	r.logger.Warn("settlement submission failed", map[string]interface{}{
		"recordId": entry.RecordID,
		"ledger":   string(entry.Ledger),
		"attempts": attempts,
		"error":    submitErr,
	})

	if errors.Is(submitErr, ErrRejected) || attempts >= r.config.MaxAttempts {
		if err := r.finish(ctx, entry, models.TxStatusFailed, "", submitErr.Error()); err != nil {
			return "", err
		}
		r.publish(ctx, Event{
			Type: EventSettlementFailed, Ledger: entry.Ledger, RecordID: entry.RecordID,
			FranchiseID: entry.FranchiseID, Reason: submitErr.Error(), OccurredAt: r.now(),
		})
		return "failed", nil
	}

	err = r.store.WithFranchise(ctx, entry.FranchiseID, func(tx store.Tx) error {
		return tx.RecordOutboxAttempt(ctx, entry.ID, submitErr.Error())
	})
	if err != nil {
		return "", err
	}
	return "retried", nil
}

// instruction loads the ledger record behind an entry. pending is false when
// the record was already settled by another path.
func (r *Relay) instruction(ctx context.Context, entry models.OutboxEntry) (*Instruction, bool, error) {
	switch entry.Ledger {
	case models.LedgerToken:
		rec, err := r.store.GetTokenTransaction(ctx, entry.RecordID)
		if err != nil {
			return nil, false, err
		}
		return &Instruction{
			IdempotencyKey: rec.ID,
			Ledger:         models.LedgerToken,
			FranchiseID:    rec.FranchiseID,
			Kind:           string(rec.Kind),
			Counterparty:   rec.InvestorID,
			Amount:         rec.Amount,
			Value:          rec.TotalValue,
		}, rec.Status == models.TxStatusPending, nil
	case models.LedgerWallet:
		rec, err := r.store.GetWalletTransaction(ctx, entry.RecordID)
		if err != nil {
			return nil, false, err
		}
		counterparty := rec.ToRef
		if rec.Kind.Sign() > 0 {
			counterparty = rec.FromRef
		}
		return &Instruction{
			IdempotencyKey: rec.ID,
			Ledger:         models.LedgerWallet,
			FranchiseID:    rec.FranchiseID,
			Kind:           string(rec.Kind),
			Counterparty:   counterparty,
			Amount:         rec.NativeAmount,
			Value:          rec.ReportingAmount,
		}, rec.Status == models.TxStatusPending, nil
	default:
		return nil, false, apperrors.NewInvalidInputError("unknown ledger " + string(entry.Ledger))
	}
}

// finish moves the record out of pending and closes the entry in one unit.
// A record settled concurrently is left as it is.
func (r *Relay) finish(ctx context.Context, entry models.OutboxEntry, status models.TxStatus, ref, lastError string) error {
	return r.store.WithFranchise(ctx, entry.FranchiseID, func(tx store.Tx) error {
		err := tx.SetTransactionStatus(ctx, entry.Ledger, entry.RecordID, status, ref)
		if err != nil && !errors.Is(err, apperrors.ErrInvalidStatus) {
			return err
		}
		if lastError != "" {
			if err := tx.RecordOutboxAttempt(ctx, entry.ID, lastError); err != nil {
				return err
			}
		}
		return tx.MarkOutboxProcessed(ctx, entry.ID)
	})
}

func (r *Relay) indexRevenue(ctx context.Context, entry models.OutboxEntry) (string, error) {
	if r.indexer == nil {
		return "skipped", r.acknowledge(ctx, entry)
	}
	rec, err := r.store.GetRevenueRecord(ctx, entry.RecordID)
	if err != nil {
		return "", err
	}

	indexErr := r.indexer.Index(ctx, rec)
	if indexErr == nil {
		return "indexed", r.acknowledge(ctx, entry)
	}

	attempts := entry.Attempts + 1
	r.logger.Warn("revenue indexing failed", map[string]interface{}{
		"recordId": entry.RecordID,
		"attempts": attempts,
		"error":    indexErr,
	})
	err = r.store.WithFranchise(ctx, entry.FranchiseID, func(tx store.Tx) error {
		if err := tx.RecordOutboxAttempt(ctx, entry.ID, indexErr.Error()); err != nil {
			return err
		}
		// the revenue row itself is durable; only the projection is given up
		if attempts >= r.config.MaxAttempts {
			return tx.MarkOutboxProcessed(ctx, entry.ID)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if attempts >= r.config.MaxAttempts {
		return "failed", nil
	}
	return "retried", nil
}

func (r *Relay) acknowledge(ctx context.Context, entry models.OutboxEntry) error {
	return r.store.WithFranchise(ctx, entry.FranchiseID, func(tx store.Tx) error {
		return tx.MarkOutboxProcessed(ctx, entry.ID)
	})
}

func (r *Relay) publish(ctx context.Context, event Event) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn("ledger event publish failed", map[string]interface{}{
			"eventType": event.Type,
			"recordId":  event.RecordID,
			"error":     err,
		})
	}
}
