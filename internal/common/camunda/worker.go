// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/common/logger"
	"franchise-ledger/internal/common/metrics"
	"franchise-ledger/internal/common/observability"
)

// ExecuteFunc runs one job against raw JSON variables and returns the
// variables to complete it with.
type ExecuteFunc func(ctx context.Context, variables []byte) (interface{}, error)

type Validator interface {
	Validate(taskType string, variables []byte) error
}

type RunnerOptions struct {
	Timeout       time.Duration
	Validator     Validator
	Observability *observability.Observability
	Logger        logger.Logger
}

// Runner owns the job lifecycle shared by every ledger task: schema check,
// execution under a deadline, then completion or error handling.
type Runner struct {
	taskType  string
	timeout   time.Duration
	validator Validator
	errors    *apperrors.ErrorHandler
	obs       *observability.Observability
	logger    logger.Logger
}

func NewRunner(taskType string, opts RunnerOptions) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": taskType})
	return &Runner{
		taskType:  taskType,
		timeout:   opts.Timeout,
		validator: opts.Validator,
		errors:    apperrors.NewErrorHandler(log),
		obs:       opts.Observability,
		logger:    log,
	}
}

func (r *Runner) TaskType() string {
	return r.taskType
}

// Run validates variables and executes fn. It never talks to the broker.
func (r *Runner) Run(ctx context.Context, variables string, fn ExecuteFunc) (interface{}, error) {
	raw := []byte(variables)
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if r.validator != nil {
		if err := r.validator.Validate(r.taskType, raw); err != nil {
			return nil, err
		}
	}
	return fn(ctx, raw)
}

// Handle is the body of a Zeebe job handler.
func (r *Runner) Handle(client worker.JobClient, job entities.Job, fn ExecuteFunc) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(r.taskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(r.taskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	r.logger.Debug("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	output, err := r.Run(ctx, job.Variables, fn)
	if err != nil {
		bpmnErr := r.errors.HandleJobError(ctx, client, job, err)
		metrics.WorkerJobsFailed.WithLabelValues(r.taskType, bpmnErr.Code).Inc()
		r.observe(ctx, "failed", start)
		return
	}

	if err := r.complete(ctx, client, job, output); err != nil {
		r.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		metrics.WorkerJobsFailed.WithLabelValues(r.taskType, string(apperrors.ErrCodeWorkflowEngineFailed)).Inc()
		r.observe(ctx, "failed", start)
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(r.taskType).Inc()
	r.observe(ctx, "completed", start)
}

func (r *Runner) complete(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) error {
	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		return err
	}
	_, err = cmd.Send(ctx)
	return err
}

func (r *Runner) observe(ctx context.Context, status string, start time.Time) {
	elapsed := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(r.taskType).Observe(elapsed.Seconds())
	r.obs.RecordJob(ctx, r.taskType, status, elapsed)
}

// Decode unmarshals job variables into T. Malformed variables are an
// INVALID_INPUT business error, never retried.
func Decode[T any](variables []byte) (*T, error) {
	var in T
	if err := json.Unmarshal(variables, &in); err != nil {
		return nil, apperrors.NewInvalidInputError("parse job variables: " + err.Error())
	}
	return &in, nil
}

// JobHandler is implemented by every ledger task handler.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// StartWorker opens a job worker for taskType on the given client.
func StartWorker(client zbc.Client, taskType string, maxJobsActive int, timeout time.Duration, handler JobHandler, log logger.Logger) *CamundaWorker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(maxJobsActive).
		Timeout(timeout).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": maxJobsActive,
		"timeoutMs":     timeout.Milliseconds(),
	})
	return &CamundaWorker{worker: jobWorker, logger: log, taskType: taskType}
}

func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.worker.Close()
	w.worker.AwaitClose()
}
