package mailnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"notification-workers/internal/common/camunda"
	"notification-workers/internal/common/config"
	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/common/observability"
	"notification-workers/internal/common/validation"
	"notification-workers/internal/dispatch"
	"notification-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType   = "notification.mail.send"
	WorkerName = "mail-notification"
)

// Dispatcher is the part of dispatch.Dispatcher the handler needs.
type Dispatcher interface {
	Send(ctx context.Context, n *models.Notification) (*dispatch.Result, error)
}

// ReadinessCheck reports whether a downstream dependency can take traffic.
type ReadinessCheck func(ctx context.Context) error

type Handler struct {
	config        *Config
	logger        logger.Logger
	camunda       *camunda.Client
	dispatcher    Dispatcher
	observability *observability.Observability
	errorHandler  *errors.ErrorHandler
	checks        map[string]ReadinessCheck
	jobWorker     worker.JobWorker
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Camunda       *camunda.Client
	CustomConfig  *Config
	Logger        logger.Logger
	Dispatcher    Dispatcher
	Observability *observability.Observability
	// Checks are run by HealthCheck after the broker check, keyed by name.
	Checks map[string]ReadinessCheck
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", WorkerName, err)
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required for %s", WorkerName)
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.WithFields(map[string]interface{}{"worker": TaskType})

	return &Handler{
		config:        workerConfig,
		logger:        loggerInstance,
		camunda:       opts.Camunda,
		dispatcher:    opts.Dispatcher,
		observability: opts.Observability,
		errorHandler:  errors.NewErrorHandler(loggerInstance),
		checks:        opts.Checks,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing mail notification", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	output, err := h.process(ctx, job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// process turns a job into its output variables. Recipient failures are part
// of the output; only unreadable input or a dispatcher error fails the job.
func (h *Handler) process(ctx context.Context, job entities.Job) (*Output, error) {
	if !h.config.Enabled {
		h.logger.Info("Worker disabled by configuration", nil)
		return skippedOutput(), nil
	}

	n, err := h.parseInput(job)
	if err != nil {
		return nil, err
	}

	if !n.HasChannel(models.ChannelMail) {
		h.logger.Info("MAIL channel not requested, skipping", map[string]interface{}{
			"jobKey":   job.GetKey(),
			"eventId":  n.EventID,
			"channels": n.Channels,
		})
		return skippedOutput(), nil
	}

	start := time.Now()
	res, err := h.dispatcher.Send(ctx, n)
	if err != nil {
		return nil, err
	}

	output := newOutput(n, res)
	h.observability.RecordDispatch(ctx, n.Application, output.Status, len(n.Contacts), time.Since(start))

	return output, nil
}

func (h *Handler) parseInput(job entities.Job) (*models.Notification, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}

	result := validation.ValidateInput(variables, GetInputSchema())
	if !result.Valid {
		return nil, errors.NewValidationFailedError(
			fmt.Sprintf("Validation errors: %v", result.GetErrorMessages()),
		)
	}

	var n models.Notification
	if err := json.Unmarshal([]byte(job.GetVariables()), &n); err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}

	return &n, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(output.Variables())
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("Mail notification completed", map[string]interface{}{
		"jobKey":   job.GetKey(),
		"dispatch": output.Status,
		"sent":     output.Sent,
		"failed":   output.Failed,
	})
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("camunda client is required to register %s", TaskType)
	}

	jobWorker, err := camunda.OpenWorker(h.camunda.GetClient(), camunda.WorkerOptions{
		TaskType:       TaskType,
		MaxJobsActive:  h.config.MaxJobsActive,
		Timeout:        h.config.Timeout,
		FetchVariables: InputVariables,
		Handler:        h.Handle,
		Logger:         h.logger,
	})
	if err != nil {
		return err
	}

	h.jobWorker = jobWorker
	return nil
}

func (h *Handler) Close() {
	if h.jobWorker != nil {
		h.logger.Info("Shutting down worker gracefully", nil)
		h.jobWorker.Close()
		h.jobWorker.AwaitClose()
		h.jobWorker = nil
	}
}

func (h *Handler) HealthCheck(ctx context.Context) error {
	if h.camunda != nil {
		if err := h.camunda.HealthCheck(ctx); err != nil {
			return fmt.Errorf("camunda health check failed: %w", err)
		}
	}

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			return fmt.Errorf("%s health check failed: %w", name, err)
		}
	}

	return nil
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) GetConfig() *Config {
	return h.config
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers[WorkerName]; exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.MaxJobsActive > 0 {
				cfg.MaxJobsActive = workerCfg.MaxJobsActive
			}
			if workerCfg.Timeout > 0 {
				cfg.Timeout = time.Duration(workerCfg.Timeout) * time.Millisecond
			}
		}
	}

	return cfg
}
