// internal/workers/ledger/confirm-settlement/handler.go
package confirmsettlement

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"franchise-ledger/internal/common/camunda"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/observability"
	"franchise-ledger/internal/ledger/settlement"
)

const (
	TaskType = "confirm-settlement"
)

// Handler drains one batch of the settlement outbox per job. A timer-driven
// process model keeps calling it.
type Handler struct {
	config *Config
	relay  *settlement.Relay
	runner *camunda.Runner
	logger logger.Logger
}

func NewHandler(config *Config, relay *settlement.Relay, validator camunda.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		relay:  relay,
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
	limit := input.Limit
	if limit <= 0 || limit > h.relay.BatchSize() {
		limit = h.relay.BatchSize()
	}

	summary, err := h.relay.ProcessPending(ctx, limit)
	if err != nil {
		return nil, err
	}

	drained := summary.Processed < limit
	if !drained {
		h.logger.Debug("settlement batch full, entries may remain", map[string]interface{}{"limit": limit})
	}
	return &Output{
		Summary: *summary,
		Drained: drained,
	}, nil
}
