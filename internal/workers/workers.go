package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"streakAPI/services"
	"streakAPI/utils"
)

const (
	defaultConcurrency = 8
	defaultUserTimeout = 10 * time.Second
	defaultRunTimeout  = 30 * time.Minute
)

type ActiveUserLister interface {
	ListActiveUIDs(ctx context.Context) ([]string, error)
}

type Reconciler interface {
	Validate(ctx context.Context, uid string, today string) (services.ValidationResult, error)
}

type RunSummary struct {
	Today     string `json:"today"`
	Checked   int    `json:"checked"`
	Advanced  int    `json:"advanced"`
	Preserved int    `json:"preserved"`
	Reset     int    `json:"reset"`
	Unchanged int    `json:"unchanged"`
	Failed    int    `json:"failed"`
}

// ReconciliationWorker periodically validates every running streak so that
// broken runs are reset even for users who never open the app.
type ReconciliationWorker struct {
	lister      ActiveUserLister
	reconciler  Reconciler
	loc         *time.Location
	log         *logrus.Logger
	concurrency int
	userTimeout time.Duration
	now         func() time.Time

	cron *cron.Cron
}

func NewReconciliationWorker(lister ActiveUserLister, reconciler Reconciler, loc *time.Location, log *logrus.Logger) *ReconciliationWorker {
	if loc == nil {
		loc = time.UTC
	}
	return &ReconciliationWorker{
		lister:      lister,
		reconciler:  reconciler,
		loc:         loc,
		log:         log,
		concurrency: defaultConcurrency,
		userTimeout: defaultUserTimeout,
		now:         time.Now,
	}
}

// Start schedules RunOnce with a standard five-field cron expression.
func (w *ReconciliationWorker) Start(schedule string) error {
	c := cron.New(cron.WithLocation(w.loc))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
		defer cancel()

		summary, err := w.RunOnce(ctx)
		entry := w.log.WithFields(logrus.Fields{
			"today":     summary.Today,
			"checked":   summary.Checked,
			"advanced":  summary.Advanced,
			"preserved": summary.Preserved,
			"reset":     summary.Reset,
			"failed":    summary.Failed,
		})
		if err != nil {
			entry.WithError(err).Error("streak reconciliation run failed")
			return
		}
		entry.Info("streak reconciliation run finished")
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}

	w.cron = c
	c.Start()
	w.log.WithField("schedule", schedule).Info("streak reconciliation worker started")
	return nil
}

// Stop halts scheduling and waits for a running pass until ctx is done.
func (w *ReconciliationWorker) Stop(ctx context.Context) {
	if w.cron == nil {
		return
	}
	select {
	case <-w.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce validates every active streak. A failure for one user is counted
// and logged; it does not stop the pass.
func (w *ReconciliationWorker) RunOnce(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{Today: utils.DayOf(w.now(), w.loc)}

	uids, err := w.lister.ListActiveUIDs(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list active streaks: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, uid := range uids {
		uid := uid
		g.Go(func() error {
			uctx, cancel := context.WithTimeout(gctx, w.userTimeout)
			defer cancel()

			res, err := w.reconciler.Validate(uctx, uid, summary.Today)

			mu.Lock()
			defer mu.Unlock()
			summary.Checked++
			if err != nil {
				summary.Failed++
				w.log.WithField("uid", uid).WithError(err).Warn("streak reconciliation failed")
				return nil
			}
			switch res.Outcome {
			case services.OutcomeAdvanced:
				summary.Advanced++
			case services.OutcomePreserved:
				summary.Preserved++
			case services.OutcomeReset:
				summary.Reset++
			default:
				summary.Unchanged++
			}
			return nil
		})
	}

	_ = g.Wait()
	return summary, ctx.Err()
}
