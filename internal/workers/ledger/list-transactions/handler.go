// internal/workers/ledger/list-transactions/handler.go
package listtransactions

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"franchise-ledger/internal/common/camunda"
	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/observability"
	"franchise-ledger/internal/ledger/token"
	"franchise-ledger/internal/ledger/wallet"
	"franchise-ledger/internal/models"
)

const (
	TaskType = "list-transactions"
)

type Handler struct {
	config  *Config
	tokens  *token.Engine
	wallets *wallet.Engine
	runner  *camunda.Runner
	logger  logger.Logger
}

func NewHandler(config *Config, tokens *token.Engine, wallets *wallet.Engine, validator camunda.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		tokens:  tokens,
		wallets: wallets,
		runner: camunda.NewRunner(TaskType, camunda.RunnerOptions{
			Timeout:       config.Timeout,
			Validator:     validator,
			Observability: obs,
			Logger:        log,
		}),
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Handle(client, job, h.run)
}

func (h *Handler) run(ctx context.Context, variables []byte) (interface{}, error) {
	input, err := camunda.Decode[Input](variables)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, input)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.FranchiseID == "" {
		return nil, apperrors.NewInvalidInputError("franchiseId is required")
	}

	out := &Output{Ledger: input.Ledger}
	switch input.Ledger {
	case models.LedgerToken:
		txs, err := h.tokens.ListTransactions(ctx, input.FranchiseID, input.Limit)
		if err != nil {
			return nil, err
		}
		out.TokenTransactions = txs
		out.Count = len(txs)
	case models.LedgerWallet:
		txs, err := h.wallets.ListTransactions(ctx, input.FranchiseID, input.Limit)
		if err != nil {
			return nil, err
		}
		out.WalletTransactions = txs
		out.Count = len(txs)
	default:
		return nil, apperrors.NewInvalidInputError("ledger must be token or wallet")
	}
	h.logger.Debug("ledger page listed", map[string]interface{}{
		"franchiseId": input.FranchiseID,
		"ledger":      string(input.Ledger),
		"count":       out.Count,
	})
	return out, nil
}
