package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"factorlab/internal/batch"
	"factorlab/internal/cache"
	"factorlab/internal/calendar"
	"factorlab/internal/config"
	"factorlab/internal/database"
	"factorlab/internal/logger"
	"factorlab/internal/pipeline"
	"factorlab/internal/tabular"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "配置文件路径")
		stages     = flag.String("stage", "", "comma separated stages: testret,factors,fema,ic,icsum,gp,gpsum,sig,simu,simusum (or 'all')")
		factor     = flag.String("factor", "", "only run units whose label starts with this prefix")
		mode       = flag.String("mode", "append", "persistence mode: overwrite or append")
		bgn        = flag.String("bgn", "", "first trade date, inclusive (yyyymmdd)")
		stp        = flag.String("stp", "", "stop trade date, exclusive (yyyymmdd)")
		workers    = flag.Int("workers", 0, "batch pool size, 0 uses the configured value")
		daemon     = flag.Bool("daemon", false, "stay resident and run the configured stages on the cron schedule")
	)
	flag.Parse()

	// .env 仅用于本地开发, 不存在时忽略
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{
		Level:      logger.LogLevel(cfg.Logging.Level),
		Format:     logger.LogFormat(cfg.Logging.Format),
		Output:     cfg.Logging.Output,
		Filename:   cfg.Logging.Filename,
		MaxSize:    cfg.Logging.MaxSize,
		MaxAge:     cfg.Logging.MaxAge,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})

	if !*daemon && *stages == "" {
		log.Error("nothing to do: pass -stage or -daemon")
		os.Exit(2)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	c := cache.New(cfg.Redis)
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cal, err := calendar.Load(ctx, db, c)
	if err != nil {
		log.Error("load trading calendar", "error", err)
		os.Exit(1)
	}

	n := *workers
	if n <= 0 {
		n = cfg.Research.Schedule.Workers
	}
	store := tabular.NewStore(db, tabular.NewRegistry(&cfg.Research))
	pool := batch.NewPool(n, log)

	if cfg.Monitoring.PrometheusEnabled {
		go serveMetrics(cfg.Monitoring, log)
	}

	if *daemon {
		runDaemon(ctx, db, store, pool, cfg, log, stageList(*stages), *factor)
		return
	}

	runner := pipeline.NewRunner(store, cal, &cfg.Research, pool, log)
	for _, stage := range stageList(*stages) {
		if err := runner.Run(ctx, stage, *factor, *mode, *bgn, *stp); err != nil {
			log.Error("stage failed", "stage", stage, "error", err)
			os.Exit(1)
		}
	}
}

// allStages is the full pipeline in dependency order.
var allStages = []string{
	pipeline.StageTestRet, pipeline.StageFactors, pipeline.StageFema,
	pipeline.StageIC, pipeline.StageICSum,
	pipeline.StageGP, pipeline.StageGPSum,
	pipeline.StageSig, pipeline.StageSimu, pipeline.StageSimuSum,
}

func stageList(spec string) []string {
	if spec == "" || spec == "all" {
		return allStages
	}
	var out []string
	for _, s := range strings.Split(spec, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// runDaemon keeps the process resident and appends the latest trading
// day to every configured stage on the cron schedule. The calendar is
// reloaded on every trigger; the upstream loader extends it daily.
func runDaemon(ctx context.Context, db *database.DB, store *tabular.Store, pool *batch.Pool, cfg *config.Config, log logger.Logger, stages []string, factor string) {
	if !cfg.Research.Schedule.Enabled {
		log.Error("daemon mode requires research.schedule.enabled")
		os.Exit(2)
	}

	sched := batch.NewScheduler(log)
	err := sched.Schedule(cfg.Research.Schedule.Cron, "daily-append", func() {
		cal, err := calendar.Load(ctx, db, nil)
		if err != nil {
			log.Error("reload trading calendar", "error", err)
			return
		}
		bgn, stp, err := latestDayRange(cal)
		if err != nil {
			log.Error("resolve latest trading day", "error", err)
			return
		}
		runner := pipeline.NewRunner(store, cal, &cfg.Research, pool, log)
		for _, stage := range stages {
			if err := runner.Run(ctx, stage, factor, "append", bgn, stp); err != nil {
				log.Error("scheduled stage failed", "stage", stage, "error", err)
				return
			}
		}
	})
	if err != nil {
		log.Error("register cron job", "error", err)
		os.Exit(1)
	}

	sched.Start()
	log.Info("scheduler started", "cron", cfg.Research.Schedule.Cron, "stages", strings.Join(stages, ","))
	<-ctx.Done()
	sched.Stop()
	log.Info("scheduler stopped")
}

// latestDayRange returns a one-day [bgn, stp) window covering the
// calendar's last trading date.
func latestDayRange(cal *calendar.Calendar) (string, string, error) {
	last := cal.Last()
	d, err := time.Parse("20060102", last)
	if err != nil {
		return "", "", err
	}
	return last, d.AddDate(0, 0, 1).Format("20060102"), nil
}

func serveMetrics(cfg config.MonitoringConfig, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.PrometheusPath, promhttp.Handler())
	log.Info("metrics endpoint up", "addr", cfg.PrometheusAddr, "path", cfg.PrometheusPath)
	if err := http.ListenAndServe(cfg.PrometheusAddr, mux); err != nil {
		log.Error("metrics server", "error", err)
	}
}
