package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/john2100013/kpi-review/pkg/logger"
)

const defaultJobTimeout = time.Minute

// Job is one detached side effect.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

// Func wraps fn as a Job.
func Func(name string, fn func(ctx context.Context) error) Job {
	return funcJob{name: name, fn: fn}
}

// SendJob wraps one Sender call as a Job. A failed send is reported as the job error.
func SendJob(sender Sender, companyID uint, address, templateType string, vars map[string]string) Job {
	return Func("send:"+templateType, func(ctx context.Context) error {
		res := sender.Send(ctx, companyID, address, templateType, vars)
		if !res.Success {
			return res.Err
		}
		return nil
	})
}

// Runner executes detached jobs in the background. Each job gets its own
// timeout and panic recovery, and outlives the request that started it.
type Runner struct {
	timeout time.Duration
	log     *logger.Logger
	wg      sync.WaitGroup
}

// NewRunner creates a runner.
func NewRunner(timeout time.Duration, log *logger.Logger) *Runner {
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	return &Runner{timeout: timeout, log: log.Component("effects")}
}

// Go starts the jobs and returns immediately.
func (r *Runner) Go(ctx context.Context, jobs ...Job) {
	base := context.WithoutCancel(ctx)
	for _, job := range jobs {
		r.wg.Add(1)
		go func(job Job) {
			defer r.wg.Done()
			err := r.run(base, job)
			switch {
			case err == nil:
			case errors.Is(err, ErrDisabled):
				r.log.Debug().Str("job", job.Name()).Msg("Notifications disabled, skipped")
			default:
				r.log.Warn().Err(err).Str("job", job.Name()).Msg("Detached effect failed")
			}
		}(job)
	}
}

func (r *Runner) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panic: %v", job.Name(), rec)
			r.log.Error().Str("job", job.Name()).Interface("panic", rec).Msg("Recovered from panic in detached effect")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return job.Run(ctx)
}

// Wait blocks until every started job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Drain waits for running jobs or until ctx is done.
func (r *Runner) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("detached effects still running: %w", ctx.Err())
	}
}
