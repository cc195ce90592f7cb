// internal/workers/token/token-status/handler.go
package tokenstatus

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"franchise-ledger/internal/common/camunda"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/observability"
	"franchise-ledger/internal/ledger/token"
	"franchise-ledger/internal/models"
)

const (
	TaskTypeActivate = "activate-token"
	TaskTypePause    = "pause-token"
)

// Handler serves both lifecycle task types; target is the status the job asks for.
type Handler struct {
	config *Config
	engine *token.Engine
	target models.TokenStatus
	runner *camunda.Runner
	logger logger.Logger
}

func NewActivateHandler(config *Config, engine *token.Engine, validator camunda.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return newHandler(TaskTypeActivate, models.TokenStatusActive, config, engine, validator, obs, log)
}

func NewPauseHandler(config *Config, engine *token.Engine, validator camunda.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return newHandler(TaskTypePause, models.TokenStatusPaused, config, engine, validator, obs, log)
}

func newHandler(taskType string, target models.TokenStatus, config *Config, engine *token.Engine, validator camunda.Validator, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		engine: engine,
		target: target,
		runner: camunda.NewRunner(taskType, camunda.RunnerOptions{
			Timeout:       config.Timeout,
			Validator:     validator,
			Observability: obs,
			Logger:        log,
		}),
		logger: log.WithFields(map[string]interface{}{"taskType": taskType}),
	}
}

func (h *Handler) TaskType() string {
	return h.runner.TaskType()
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
	var (
		tok *models.FranchiseToken
		err error
	)
	if h.target == models.TokenStatusActive {
		tok, err = h.engine.Activate(ctx, input.FranchiseID)
	} else {
		tok, err = h.engine.Pause(ctx, input.FranchiseID)
	}
	if err != nil {
		return nil, err
	}
	h.logger.Debug("token status acknowledged", map[string]interface{}{
		"franchiseId": tok.FranchiseID,
		"status":      string(tok.Status),
	})
	return &Output{FranchiseID: tok.FranchiseID, TokenID: tok.ID, Status: string(tok.Status)}, nil
}
