package dispatch

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
)

// DefaultPoolSize is used when NewPool receives a non-positive size.
var DefaultPoolSize = runtime.NumCPU() * 4

// PanicError is returned for a task that panicked.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("recipient task panicked: %v", e.Value)
}

// Pool bounds how many recipient tasks run at once across every dispatch
// sharing it. Scheduled tasks are never cancelled.
type Pool struct {
	sema   chan struct{}
	logger logger.Logger
}

func NewPool(size int, log logger.Logger) *Pool {
	if size < 1 {
		size = DefaultPoolSize
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Pool{sema: make(chan struct{}, size), logger: log}
}

func (p *Pool) Size() int {
	return cap(p.sema)
}

// Run executes every task and waits for all of them. errs[i] holds the
// error of tasks[i]; a panic is converted into a *PanicError.
func (p *Pool) Run(tasks []func() error) []error {
	errs := make([]error, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task func() error) {
			defer wg.Done()

			p.sema <- struct{}{}
			metrics.DispatchPoolInFlight.Inc()
			defer func() {
				metrics.DispatchPoolInFlight.Dec()
				<-p.sema
			}()

			errs[i] = p.safeCall(task)
		}(i, task)
	}
	wg.Wait()

	return errs
}

func (p *Pool) safeCall(task func() error) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			p.logger.Error("Panic in recipient task", map[string]interface{}{
				"panic": fmt.Sprint(rvr),
				"stack": string(stack),
			})
			err = &PanicError{Value: rvr, Stack: stack}
		}
	}()
	return task()
}
