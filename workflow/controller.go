package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/models"
	"github.com/mmdatafocus/fulfillment_backend/reports"
	"github.com/mmdatafocus/fulfillment_backend/shipment"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
)

type RunState string

const (
	StatePreparing  RunState = "preparing"
	StateResolving  RunState = "resolving"
	StateGenerating RunState = "generating"
	StateDone       RunState = "done"
	StateHalted     RunState = "halted"
	StateFailed     RunState = "failed"
)

type RunProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// RunStatus is the externally visible state of the latest run.
type RunStatus struct {
	RunId      string                 `json:"run_id"`
	State      RunState               `json:"state"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
	Failures   []models.ParseFailure  `json:"failures"`
	Halt       *models.ValidationHalt `json:"halt,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Progress   RunProgress            `json:"progress"`
	Shipments  map[string]string      `json:"shipments,omitempty"`
	Unresolved []string               `json:"unresolved,omitempty"`
	Documents  string                 `json:"documents,omitempty"`
	Outputs    []reports.Output       `json:"outputs,omitempty"`
	TotalNeed  int                    `json:"total_need"`
}

// Controller runs the phases in the background for the HTTP surface and keeps the latest status.
// Prepare runs synchronously so halts reach the caller; resolution and generation run on the worker.
type Controller struct {
	runner  *Runner
	baseCtx context.Context

	// OnSettings is called after settings are replaced, e.g. to hand new credentials to the resolver.
	OnSettings func(config.Settings)

	mu       sync.Mutex
	settings config.Settings
	current  *RunStatus
	done     chan struct{}
}

// NewController wires the worker's progress callback into the run status.
// baseCtx bounds the background phases, typically the process signal context.
func NewController(baseCtx context.Context, runner *Runner) *Controller {
	c := &Controller{runner: runner, baseCtx: baseCtx, settings: runner.Settings}
	runner.Worker.OnProgress = func(done, total int) {
		c.update(func(s *RunStatus) { s.Progress = RunProgress{Done: done, Total: total} })
	}
	return c
}

func (c *Controller) Settings() config.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// SetSettings applies to the next run; a run in flight keeps the settings it started with.
func (c *Controller) SetSettings(s config.Settings) {
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
	if c.OnSettings != nil {
		c.OnSettings(s)
	}
}

// Current returns a copy of the latest run status.
func (c *Controller) Current() (RunStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return RunStatus{}, utils.ErrNoActiveRun
	}
	return *c.current, nil
}

// Wait blocks until the background phases of the latest run finish.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Controller) update(fn func(s *RunStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		fn(c.current)
	}
}

func (c *Controller) finish(state RunState, err error) {
	now := time.Now()
	c.update(func(s *RunStatus) {
		s.State = state
		s.FinishedAt = &now
		if err != nil {
			s.Error = err.Error()
			var halt *models.ValidationHalt
			if errors.As(err, &halt) {
				s.Halt = halt
			}
		}
	})
}

// Start prepares a run from the archive and hands resolution to the background.
// It returns utils.ErrRunInFlight while another run holds the guard and a *models.ValidationHalt
// when a gate stops the run before any external call.
func (c *Controller) Start(ctx context.Context, zipPath string) (RunStatus, error) {
	runner := *c.runner
	runner.Settings = c.Settings()

	release, err := runner.Guard.Acquire(ctx, runner.guardKey())
	if err != nil {
		return RunStatus{}, err
	}

	ctx, runId := utils.EnsureRunId(ctx)
	done := make(chan struct{})
	c.mu.Lock()
	c.current = &RunStatus{RunId: runId, State: StatePreparing, StartedAt: time.Now()}
	c.done = done
	c.mu.Unlock()

	p, err := runner.Prepare(ctx, zipPath)
	if p != nil {
		c.update(func(s *RunStatus) { s.Failures = p.Failures })
	}
	if err != nil {
		var halt *models.ValidationHalt
		if errors.As(err, &halt) {
			c.finish(StateHalted, err)
		} else {
			c.finish(StateFailed, err)
		}
		release()
		close(done)
		status, _ := c.Current()
		return status, err
	}

	bg := utils.SetRunIdInContext(c.baseCtx, runId)
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		bg = utils.SetCorrelationIdInContext(bg, cid)
	}
	ch, err := runner.Resolve(bg, p)
	if err != nil {
		c.finish(StateFailed, err)
		release()
		close(done)
		status, _ := c.Current()
		return status, err
	}
	c.update(func(s *RunStatus) {
		s.State = StateResolving
		s.Progress = RunProgress{Total: len(shipment.RefsFromParsed(p.Orders))}
	})

	go func() {
		defer close(done)
		defer release()
		c.complete(bg, &runner, p, ch)
	}()

	status, _ := c.Current()
	return status, nil
}

func (c *Controller) complete(ctx context.Context, runner *Runner, p *Prepared, ch <-chan shipment.Result) {
	res := <-ch
	c.update(func(s *RunStatus) {
		s.Shipments = res.Shipments
		s.Unresolved = res.Unresolved()
		s.Documents = res.Documents
	})
	if res.Err != nil {
		runner.notify(ctx, NotifyFailed, res.Err.Error(), nil)
		c.finish(StateFailed, res.Err)
		return
	}
	runner.notify(ctx, NotifyResolved, "shipment resolution finished", res.Unresolved())

	c.update(func(s *RunStatus) { s.State = StateGenerating })
	g, err := runner.Generate(ctx, p, res)
	if g != nil {
		c.update(func(s *RunStatus) {
			s.Outputs = g.Outputs
			s.TotalNeed = g.TotalNeed
		})
	}
	if err != nil {
		config.LogError(logger, "workflow", "Controller.complete", "generate reports", p.RunId, err)
		c.finish(StateFailed, err)
		return
	}
	c.finish(StateDone, nil)
	logger.WithFields(logrus.Fields{"run_id": p.RunId, "total_need": g.TotalNeed}).Info("run finished")
}
