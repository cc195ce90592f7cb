// internal/workers/fundraising/get-fundraising-snapshot/handler.go
package getfundraisingsnapshot

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"franchise-ledger/internal/common/camunda"
	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/observability"
	"franchise-ledger/internal/ledger/fundraising"
)

const (
	TaskType = "get-fundraising-snapshot"
)

type Handler struct {
	config     *Config
	aggregator *fundraising.Aggregator
	runner     *camunda.Runner
	logger     logger.Logger
}

func NewHandler(config *Config, aggregator *fundraising.Aggregator, validator camunda.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		aggregator: aggregator,
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
	switch {
	case input.FranchiseID != "" && input.BrandID != "":
		return nil, apperrors.NewInvalidInputError("franchiseId and brandId are mutually exclusive")
	case input.FranchiseID != "":
		snap, err := h.aggregator.Snapshot(ctx, input.FranchiseID)
		if err != nil {
			return nil, err
		}
		return &Output{Snapshot: snap}, nil
	case input.BrandID != "":
		rollup, err := h.aggregator.BrandRollup(ctx, input.BrandID)
		if err != nil {
			return nil, err
		}
		h.logger.Debug("brand rollup computed", map[string]interface{}{
			"brandId":        input.BrandID,
			"franchiseCount": rollup.FranchiseCount,
		})
		return &Output{Rollup: rollup}, nil
	default:
		return nil, apperrors.NewInvalidInputError("franchiseId or brandId is required")
	}
}
