// internal/workers/token/burn-tokens/handler.go
package burntokens

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"franchise-ledger/internal/common/camunda"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/observability"
	"franchise-ledger/internal/ledger/token"
)

const (
	TaskType = "burn-tokens"
)

type Handler struct {
	config *Config
	engine *token.Engine
	runner *camunda.Runner
	logger logger.Logger
}

func NewHandler(config *Config, engine *token.Engine, validator camunda.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		engine: engine,
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

// Execute redeems shares at the holder's average purchase price.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	receipt, err := h.engine.Burn(ctx, token.BurnRequest{
		FranchiseID: input.FranchiseID,
		InvestorID:  input.InvestorID,
		Amount:      input.Amount,
		ExternalRef: input.ExternalRef,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Debug("burn booked", map[string]interface{}{
		"franchiseId":   input.FranchiseID,
		"investorId":    input.InvestorID,
		"transactionId": receipt.Transaction.ID,
	})
	return &Output{
		TransactionID:     receipt.Transaction.ID,
		TransactionStatus: string(receipt.Transaction.Status),
		RedeemedValue:     receipt.Transaction.TotalValue,
		Balance:           receipt.Holding.Balance,
		TotalSold:         receipt.Holding.TotalSold,
		CirculatingSupply: receipt.Token.CirculatingSupply,
	}, nil
}
