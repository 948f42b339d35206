package readiness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/student"
)

const jobName = "readiness"

// BatchSize is the number of students written per UPDATE.
var BatchSize = 500

// Actions
const (
	ActionReset = "reset"
	ActionDecay = "decay"
)

var ErrInvalidAction = errors.New("invalid readiness action")

type (
	Store interface {
		ListReadiness(ctx context.Context, exec ...core.DBExecutor) ([]student.Readiness, error)
		SetReadiness(ctx context.Context, batch []student.Readiness, at time.Time, exec ...core.DBExecutor) (int, error)
	}

	Result struct {
		Action     string        `json:"action"`
		Processed  int           `json:"processed"`
		Updated    int           `json:"updated"`
		StartedAt  time.Time     `json:"started_at"`
		FinishedAt time.Time     `json:"finished_at"`
		Took       time.Duration `json:"-"`
	}

	Service struct {
		store   Store
		tx      core.TxRunner
		logger  core.Logger
		metrics core.Metrics
	}
)

func NewService(store Store, tx core.TxRunner, logger core.Logger, metrics core.Metrics) *Service {
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &Service{store: store, tx: tx, logger: logger, metrics: metrics}
}

// ParseAction defaults to ActionDecay.
func ParseAction(s string) (string, error) {
	switch action := core.CleanString(s, true /* lower */); action {
	case "":
		return ActionDecay, nil
	case ActionReset, ActionDecay:
		return action, nil
	default:
		return "", errors.Wrap(ErrInvalidAction, s)
	}
}

// Run runs the given action.
func (svc *Service) Run(ctx context.Context, action string) (Result, error) {
	switch action {
	case ActionReset:
		return svc.Reset(ctx)
	case ActionDecay:
		return svc.Decay(ctx)
	default:
		return Result{}, errors.Wrap(ErrInvalidAction, action)
	}
}

// Reset sets every student's readiness to student.MaxReadiness.
func (svc *Service) Reset(ctx context.Context) (Result, error) {
	return svc.run(ctx, ActionReset, func(r student.Readiness) (int, bool) {
		return student.MaxReadiness, true
	})
}

// Decay lowers every positive readiness by one. Students at zero are left untouched.
func (svc *Service) Decay(ctx context.Context) (Result, error) {
	return svc.run(ctx, ActionDecay, func(r student.Readiness) (int, bool) {
		v := student.ClampReadiness(r.Value)
		if v <= student.MinReadiness {
			return v, false
		}
		return v - 1, true
	})
}

// run computes the new values and writes them in chunks of BatchSize, all in one transaction.
func (svc *Service) run(ctx context.Context, action string, next func(student.Readiness) (int, bool)) (Result, error) {
	res := Result{Action: action, StartedAt: core.NowFunc().UTC()}

	current, err := svc.store.ListReadiness(ctx)
	if err != nil {
		return res, errors.Wrap(err, "listing readiness")
	}
	res.Processed = len(current)

	updates := make([]student.Readiness, 0, len(current))
	for _, r := range current {
		if v, ok := next(r); ok {
			updates = append(updates, student.Readiness{StudentID: r.StudentID, Value: v})
		}
	}

	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		for i, chunk := range chunks(updates, BatchSize) {
			n, err := svc.store.SetReadiness(ctx, chunk, res.StartedAt, exec)
			if err != nil {
				return errors.Wrapf(err, "writing chunk %d", i)
			}
			res.Updated += n
		}
		return nil
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("readiness %s failed: %v", action, err), err)
		return Result{Action: action, StartedAt: res.StartedAt, Processed: res.Processed}, err
	}

	res.FinishedAt = core.NowFunc().UTC()
	res.Took = res.FinishedAt.Sub(res.StartedAt)
	svc.metrics.JobRun(jobName, action, res.Processed, res.Updated, res.Took)
	svc.logger.Info(fmt.Sprintf(
		"readiness %s: processed=%d updated=%d took=%s", action, res.Processed, res.Updated, res.Took,
	))
	return res, nil
}

func chunks(items []student.Readiness, size int) [][]student.Readiness {
	if size <= 0 {
		size = len(items)
	}
	var out [][]student.Readiness
	for size > 0 && len(items) > 0 {
		n := size
		if len(items) < n {
			n = len(items)
		}
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}

// Summary formats the result for humans.
func (r Result) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "action=%s processed=%d updated=%d", r.Action, r.Processed, r.Updated)
	if r.Took > 0 {
		fmt.Fprintf(&sb, " took=%s", r.Took.Round(time.Millisecond))
	}
	return sb.String()
}
