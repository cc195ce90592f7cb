// internal/workers/token/create-token/handler.go
package createtoken

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
	TaskType = "create-token"
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

// Execute registers the token. A second call for the same franchise fails
// with ALREADY_EXISTS and changes nothing.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	tok, err := h.engine.CreateToken(ctx, token.CreateTokenRequest{
		FranchiseID: input.FranchiseID,
		Symbol:      input.Symbol,
		TotalSupply: input.TotalSupply,
		UnitPrice:   input.UnitPrice,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Debug("token created for job", map[string]interface{}{
		"franchiseId": input.FranchiseID,
		"tokenId":     tok.ID,
	})
	return &Output{
		TokenID:     tok.ID,
		Symbol:      tok.Symbol,
		Status:      string(tok.Status),
		TotalSupply: tok.TotalSupply,
	}, nil
}
