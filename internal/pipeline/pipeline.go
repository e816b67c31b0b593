// Package pipeline maps stage names to the batch task lists the CLI
// and the scheduler dispatch.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"factorlab/internal/batch"
	"factorlab/internal/calendar"
	"factorlab/internal/config"
	"factorlab/internal/errors"
	"factorlab/internal/factors"
	"factorlab/internal/logger"
	"factorlab/internal/scoring"
	"factorlab/internal/signal"
	"factorlab/internal/simulation"
	"factorlab/internal/tabular"
	"factorlab/internal/testret"
)

// Stage names accepted by Run.
const (
	StageTestRet = "testret"
	StageFactors = "factors"
	StageFema    = "fema"
	StageIC      = "ic"
	StageICSum   = "icsum"
	StageGP      = "gp"
	StageGPSum   = "gpsum"
	StageSig     = "sig"
	StageSimu    = "simu"
	StageSimuSum = "simusum"
)

// Runner wires the stage engines to one batch pool.
type Runner struct {
	cfg  *config.ResearchConfig
	cal  *calendar.Calendar
	pool *batch.Pool
	log  logger.Logger

	testret *testret.Engine
	factors *factors.Engine
	scoring *scoring.Engine
	signal  *signal.Engine
	simu    *simulation.Engine
}

func NewRunner(store *tabular.Store, cal *calendar.Calendar, cfg *config.ResearchConfig, pool *batch.Pool, log logger.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		cal:     cal,
		pool:    pool,
		log:     log,
		testret: testret.NewEngine(store, cal, cfg.Universe, log),
		factors: factors.NewEngine(store, cal, cfg, log),
		scoring: scoring.NewEngine(store, cal, cfg, log),
		signal:  signal.NewEngine(store, cal, cfg, log),
		simu:    simulation.NewEngine(store, cal, cfg, log),
	}
}

// Run dispatches one stage over [bgn, stp). filter keeps only tasks
// whose label starts with it; empty keeps everything. Unit failures
// never cancel siblings; the stage reports them collectively after
// every unit has finished.
func (r *Runner) Run(ctx context.Context, stage, filter, mode, bgn, stp string) error {
	var tasks []batch.Task
	switch stage {
	case StageTestRet:
		tasks = r.testRetTasks(mode, bgn, stp)
	case StageFactors:
		tasks = r.factorTasks(mode, bgn, stp)
	case StageFema:
		tasks = r.femaTasks(mode, bgn, stp)
	case StageIC, StageGP:
		tasks = r.scoreTasks(stage, mode, bgn, stp)
	case StageICSum:
		tasks = []batch.Task{{Label: "ic_summary", Run: func(ctx context.Context) error {
			return r.scoring.RunICSummary(ctx, r.averagedLabels(), r.cfg.Summary.ICIRThreshold, bgn, stp)
		}}}
	case StageGPSum:
		tasks = []batch.Task{{Label: "gp_summary", Run: func(ctx context.Context) error {
			return r.scoring.RunGPSummary(ctx, r.averagedLabels(), r.cfg.Summary.SharpeThreshold, bgn, stp)
		}}}
	case StageSig:
		tasks = r.signalTasks(mode, bgn, stp)
	case StageSimu:
		tasks = r.simuTasks(mode, bgn, stp)
	case StageSimuSum:
		tasks = []batch.Task{{Label: "simu_summary", Run: func(ctx context.Context) error {
			return r.simu.RunSummary(ctx, r.sids(), bgn, stp)
		}}}
	default:
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("unknown stage %q", stage))
	}

	if filter != "" {
		kept := tasks[:0]
		for _, t := range tasks {
			if strings.HasPrefix(t.Label, filter) {
				kept = append(kept, t)
			}
		}
		tasks = kept
	}
	if len(tasks) == 0 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("stage %s has no tasks for filter %q", stage, filter))
	}

	if failed := r.pool.RunAll(ctx, stage, tasks); failed > 0 {
		return errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("stage %s finished with %d of %d units failed", stage, failed, len(tasks)))
	}
	return nil
}

func (r *Runner) testRetTasks(mode, bgn, stp string) []batch.Task {
	var tasks []batch.Task
	for _, retType := range []string{"o", "c"} {
		rt := retType
		tasks = append(tasks, batch.Task{
			Label: testret.Label(rt),
			Run: func(ctx context.Context) error {
				return r.testret.Run(ctx, rt, mode, bgn, stp)
			},
		})
	}
	return tasks
}

// factorTasks enumerates one unit per exposure family and parameter
// combination; combinations that emit several labels (POS, SMT) stay
// one unit, named by their shared parameters.
func (r *Runner) factorTasks(mode, bgn, stp string) []batch.Task {
	f := &r.cfg.Factors
	var tasks []batch.Task
	add := func(label string, run func(ctx context.Context) error) {
		tasks = append(tasks, batch.Task{Label: label, Run: run})
	}

	for _, w := range f.AmtWindows {
		w := w
		add(config.AmtLabel(w), func(ctx context.Context) error {
			return r.factors.RunAMT(ctx, w, mode, bgn, stp)
		})
	}
	for _, w := range f.SgmWindows {
		w := w
		add(config.SgmLabel(w), func(ctx context.Context) error {
			return r.factors.RunSGM(ctx, w, mode, bgn, stp)
		})
	}
	for _, w := range f.SizeWindows {
		w := w
		add(config.SizeLabel(w), func(ctx context.Context) error {
			return r.factors.RunSIZE(ctx, w, mode, bgn, stp)
		})
	}
	for i, w := range f.BetaWindows {
		w := w
		add(config.BetaLabel(w), func(ctx context.Context) error {
			return r.factors.RunBETA(ctx, w, mode, bgn, stp)
		})
		if i > 0 {
			base := f.BetaWindows[0]
			add(config.BetaDiffLabel(w), func(ctx context.Context) error {
				return r.factors.RunBETADiff(ctx, w, base, mode, bgn, stp)
			})
		}
	}
	families := make([]string, 0, len(f.CxWindows))
	for fam := range f.CxWindows {
		families = append(families, fam)
	}
	sort.Strings(families)
	for _, fam := range families {
		fam := fam
		for _, w := range f.CxWindows[fam] {
			w := w
			for _, p := range f.TopProps {
				p := p
				add(config.CxLabel(fam, w, p), func(ctx context.Context) error {
					return r.factors.RunCX(ctx, fam, w, p, mode, bgn, stp)
				})
			}
		}
	}
	for _, q := range f.TopPlayerQtys {
		q := q
		add(fmt.Sprintf("POSQ%02d", q), func(ctx context.Context) error {
			return r.factors.RunPOS(ctx, q, mode, bgn, stp)
		})
	}
	for _, w := range f.SmtWindows {
		w := w
		for _, lbd := range f.SmtLambdas {
			lbd := lbd
			add(fmt.Sprintf("SMT%03dT%02d", w, int(lbd*10)), func(ctx context.Context) error {
				return r.factors.RunSMT(ctx, w, lbd, mode, bgn, stp)
			})
		}
	}
	return tasks
}

func (r *Runner) femaTasks(mode, bgn, stp string) []batch.Task {
	var tasks []batch.Task
	for _, factor := range config.FactorLabels(&r.cfg.Factors) {
		factor := factor
		for _, w := range r.cfg.MovAveWindows {
			w := w
			tasks = append(tasks, batch.Task{
				Label: config.MALabel(factor, w),
				Run: func(ctx context.Context) error {
					return r.factors.RunMA(ctx, factor, w, mode, bgn, stp)
				},
			})
		}
	}
	return tasks
}

func (r *Runner) scoreTasks(stage, mode, bgn, stp string) []batch.Task {
	var tasks []batch.Task
	for _, label := range r.averagedLabels() {
		label := label
		run := func(ctx context.Context) error {
			return r.scoring.RunIC(ctx, label, mode, bgn, stp)
		}
		if stage == StageGP {
			run = func(ctx context.Context) error {
				return r.scoring.RunGP(ctx, label, mode, bgn, stp)
			}
		}
		tasks = append(tasks, batch.Task{Label: label, Run: run})
	}
	return tasks
}

func (r *Runner) signalTasks(mode, bgn, stp string) []batch.Task {
	var tasks []batch.Task
	for _, sc := range r.cfg.Signals.Fixed {
		sc := sc
		tasks = append(tasks, batch.Task{
			Label: sc.SID,
			Run: func(ctx context.Context) error {
				return r.signal.RunFixed(ctx, sc, mode, bgn, stp)
			},
		})
	}
	for _, dc := range r.cfg.Signals.Dynamic {
		dc := dc
		tasks = append(tasks, batch.Task{
			Label: dc.SID,
			Run: func(ctx context.Context) error {
				return r.signal.RunDynamic(ctx, dc, mode, bgn, stp)
			},
		})
	}
	return tasks
}

func (r *Runner) simuTasks(mode, bgn, stp string) []batch.Task {
	var tasks []batch.Task
	for _, sid := range r.sids() {
		sid := sid
		tasks = append(tasks, batch.Task{
			Label: sid,
			Run: func(ctx context.Context) error {
				return r.simu.Run(ctx, sid, mode, bgn, stp)
			},
		})
	}
	return tasks
}

// averagedLabels lists every moving-averaged exposure label, the form
// the scoring stages consume.
func (r *Runner) averagedLabels() []string {
	var out []string
	for _, factor := range config.FactorLabels(&r.cfg.Factors) {
		for _, w := range r.cfg.MovAveWindows {
			out = append(out, config.MALabel(factor, w))
		}
	}
	return out
}

func (r *Runner) sids() []string {
	var out []string
	for _, sc := range r.cfg.Signals.Fixed {
		out = append(out, sc.SID)
	}
	for _, dc := range r.cfg.Signals.Dynamic {
		out = append(out, dc.SID)
	}
	return out
}
