// Package watch regenerates configured calendars on a cron schedule.
package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"icalgen/internal/config"
	appLog "icalgen/internal/log"
	"icalgen/internal/pipeline"
)

// Runner performs one conversion. *pipeline.Converter satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// Job is one calendar to regenerate.
type Job struct {
	ID      string
	Request pipeline.Request
}

// Outcome is the result of one job in a pass.
type Outcome struct {
	ID         string
	EventCount int
	Err        error
}

// Jobs converts configured jobs into requests. Dates are interpreted in loc.
func Jobs(cfgs []config.JobConfig, loc *time.Location) ([]Job, error) {
	if loc == nil {
		loc = time.Local
	}
	jobs := make([]Job, 0, len(cfgs))
	for _, jc := range cfgs {
		start, err := time.ParseInLocation(time.DateOnly, jc.Start, loc)
		if err != nil {
			return nil, fmt.Errorf("watch: job %q start: %w", jc.ID, err)
		}
		end, err := time.ParseInLocation(time.DateOnly, jc.End, loc)
		if err != nil {
			return nil, fmt.Errorf("watch: job %q end: %w", jc.ID, err)
		}
		jobs = append(jobs, Job{
			ID: jc.ID,
			Request: pipeline.Request{
				Image:   jc.Image,
				PageURL: jc.URL,
				Start:   start,
				End:     end,
				Output:  jc.Output,
			},
		})
	}
	return jobs, nil
}

// Watcher runs every job on each cron tick.
type Watcher struct {
	spec   string
	runner Runner
	jobs   []Job

	mu     sync.Mutex
	cron   *cron.Cron
	runCtx context.Context
	cancel context.CancelFunc
}

// New validates spec as a standard 5-field cron expression.
func New(spec string, runner Runner, jobs []Job) (*Watcher, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("watch: invalid refresh schedule %q: %w", spec, err)
	}
	return &Watcher{spec: spec, runner: runner, jobs: jobs}, nil
}

// RunOnce regenerates every job sequentially. A failing job does not stop
// the others.
func (w *Watcher) RunOnce(ctx context.Context) []Outcome {
	out := make([]Outcome, 0, len(w.jobs))
	for _, job := range w.jobs {
		if err := ctx.Err(); err != nil {
			out = append(out, Outcome{ID: job.ID, Err: err})
			continue
		}

		res, err := w.runner.Run(ctx, job.Request)
		if err != nil {
			appLog.Error("watch job failed", err, "job", job.ID)
			out = append(out, Outcome{ID: job.ID, Err: err})
			continue
		}
		appLog.Info("watch job completed", "job", job.ID, "output", res.Output, "event_count", len(res.Events))
		out = append(out, Outcome{ID: job.ID, EventCount: len(res.Events)})
	}
	return out
}

// Start schedules RunOnce on the cron spec. Calling Start twice is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return nil
	}

	w.runCtx, w.cancel = context.WithCancel(ctx)
	c := cron.New()
	if _, err := c.AddFunc(w.spec, func() { w.RunOnce(w.runCtx) }); err != nil {
		w.cancel()
		return fmt.Errorf("watch: schedule: %w", err)
	}
	c.Start()
	w.cron = c

	appLog.Info("watch started", "refresh", w.spec, "job_count", len(w.jobs))
	return nil
}

// Stop cancels in-flight jobs and waits for them to return.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron == nil {
		return
	}
	w.cancel()
	<-w.cron.Stop().Done()
	w.cron = nil
	appLog.Info("watch stopped")
}
