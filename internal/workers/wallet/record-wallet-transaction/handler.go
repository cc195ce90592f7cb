// internal/workers/wallet/record-wallet-transaction/handler.go
package recordwallettx

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"franchise-ledger/internal/common/camunda"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/observability"
	"franchise-ledger/internal/ledger/wallet"
)

const (
	TaskType = "record-wallet-transaction"
)

type Handler struct {
	config *Config
	engine *wallet.Engine
	runner *camunda.Runner
	logger logger.Logger
}

func NewHandler(config *Config, engine *wallet.Engine, validator camunda.Validator, obs *observability.Observability, log logger.Logger) *Handler {
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

// Execute books one cash movement. Pending movements are settled later by the
// confirm-settlement worker.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.engine.RecordTransaction(ctx, wallet.RecordTransactionRequest{
		FranchiseID:     input.FranchiseID,
		Kind:            input.Kind,
		NativeAmount:    input.NativeAmount,
		ReportingAmount: input.ReportingAmount,
		Description:     input.Description,
		Category:        input.Category,
		FromRef:         input.FromRef,
		ToRef:           input.ToRef,
		ExternalRef:     input.ExternalRef,
		Status:          input.Status,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Debug("wallet transaction booked", map[string]interface{}{
		"franchiseId":   input.FranchiseID,
		"transactionId": result.Transaction.ID,
		"kind":          string(input.Kind),
	})
	return &Output{
		TransactionID:     result.Transaction.ID,
		TransactionStatus: string(result.Transaction.Status),
		ReportingAmount:   result.Transaction.ReportingAmount,
		Balance:           result.Wallet.Balance,
		ReportingBalance:  result.Wallet.ReportingBalance,
		TransactionCount:  result.Wallet.TransactionCount,
	}, nil
}
