// internal/workers/wallet/set-wallet-status/handler.go
package setwalletstatus

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
	TaskType = "set-wallet-status"
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	w, err := h.engine.SetStatus(ctx, input.FranchiseID, input.Status)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("wallet status acknowledged", map[string]interface{}{
		"franchiseId": input.FranchiseID,
		"status":      string(w.Status),
	})
	return &Output{WalletID: w.ID, Status: string(w.Status)}, nil
}
