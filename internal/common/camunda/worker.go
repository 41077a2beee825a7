// internal/common/camunda/worker.go
package camunda

import (
	"fmt"
	"time"

	"notification-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// WorkerOptions describes one job worker subscription.
type WorkerOptions struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
	// FetchVariables limits the variables activated with each job. Empty
	// fetches every process variable.
	FetchVariables []string
	Handler        worker.JobHandler
	Logger         logger.Logger
}

// OpenWorker starts polling for opts.TaskType. Close the returned worker to
// stop activating new jobs; in-flight handlers finish first.
func OpenWorker(client zbc.Client, opts WorkerOptions) (worker.JobWorker, error) {
	if opts.TaskType == "" {
		return nil, fmt.Errorf("task type is required")
	}
	if opts.Handler == nil {
		return nil, fmt.Errorf("job handler is required for %s", opts.TaskType)
	}

	step := client.NewJobWorker().
		JobType(opts.TaskType).
		Handler(opts.Handler).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		Name(fmt.Sprintf("%s-worker", opts.TaskType))

	if len(opts.FetchVariables) > 0 {
		step = step.FetchVariables(opts.FetchVariables...)
	}

	jobWorker := step.Open()

	if opts.Logger != nil {
		opts.Logger.Info("Job worker opened", map[string]interface{}{
			"taskType":       opts.TaskType,
			"maxJobsActive":  opts.MaxJobsActive,
			"timeout":        opts.Timeout.String(),
			"fetchVariables": opts.FetchVariables,
		})
	}

	return jobWorker, nil
}
