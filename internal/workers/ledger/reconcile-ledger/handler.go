// internal/workers/ledger/reconcile-ledger/handler.go
package reconcileledger

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"franchise-ledger/internal/common/camunda"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/observability"
	"franchise-ledger/internal/ledger/reconcile"
)

const (
	TaskType = "reconcile-ledger"
)

type Handler struct {
	config     *Config
	reconciler *reconcile.Reconciler
	runner     *camunda.Runner
	logger     logger.Logger
}

func NewHandler(config *Config, reconciler *reconcile.Reconciler, validator camunda.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		reconciler: reconciler,
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

// Execute reports drift as data; the process model decides whether an
// inconsistent ledger is an incident.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	report, err := h.reconciler.Franchise(ctx, input.FranchiseID)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("reconciliation finished", map[string]interface{}{
		"franchiseId": input.FranchiseID,
		"consistent":  report.Consistent(),
		"mismatches":  len(report.Mismatches),
	})
	return &Output{Consistent: report.Consistent(), Report: report}, nil
}
