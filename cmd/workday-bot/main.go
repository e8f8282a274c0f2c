package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dgmosdaegu/work-day-bot/internal/handler"
	"github.com/dgmosdaegu/work-day-bot/internal/middleware"
	"github.com/dgmosdaegu/work-day-bot/internal/models"
	"github.com/dgmosdaegu/work-day-bot/internal/notify"
	"github.com/dgmosdaegu/work-day-bot/internal/portal"
	"github.com/dgmosdaegu/work-day-bot/internal/service"
	"github.com/dgmosdaegu/work-day-bot/internal/sheet"
	"github.com/dgmosdaegu/work-day-bot/internal/vocab"
	"github.com/dgmosdaegu/work-day-bot/pkg/config"
	"github.com/dgmosdaegu/work-day-bot/pkg/jobs"
	"github.com/dgmosdaegu/work-day-bot/pkg/logger"
	corsmiddleware "github.com/dgmosdaegu/work-day-bot/pkg/middleware/cors"
	reqidmiddleware "github.com/dgmosdaegu/work-day-bot/pkg/middleware/requestid"
	"github.com/dgmosdaegu/work-day-bot/pkg/storage"
)

type options struct {
	serve bool
	mode  string
	file  string
	date  string
}

func main() {
	var opts options
	flag.BoolVar(&opts.serve, "serve", false, "run the scheduler and ops HTTP server instead of a one-shot check")
	flag.StringVar(&opts.mode, "mode", "auto", "run mode: auto, morning or evening")
	flag.StringVar(&opts.file, "file", "", "analyze a local workbook instead of the portal, report to stdout")
	flag.StringVar(&opts.date, "date", "", "target date as YYYY-MM-DD, default today")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	code := run(cfg, logr, opts)
	logr.Sync() //nolint:errcheck
	os.Exit(code)
}

// run wires the pipeline and executes the selected mode. Exit codes: 0 for
// a completed run, 1 for configuration or bootstrap problems, 2 when the
// check itself failed.
func run(cfg *config.Config, logr *zap.Logger, opts options) int {
	if !models.RunMode(opts.mode).Valid() {
		fmt.Fprintf(os.Stderr, "invalid -mode %q: want auto, morning or evening\n", opts.mode)
		return 1
	}
	if opts.date != "" {
		if _, err := time.Parse("2006-01-02", opts.date); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -date %q: want YYYY-MM-DD\n", opts.date)
			return 1
		}
	}

	vocabLoader := vocab.NewLoader(cfg.Vocabulary.File, logr)
	metrics := service.NewMetricsService()
	reader := sheet.NewReader(logr)
	normalizer := service.NewNormalizerService(logr, metrics)
	reports := service.NewReportService(logr)
	times := standardTimesFrom(cfg.Attendance, logr)
	attendance := service.NewAttendanceService(reader, normalizer, vocabLoader, reports, times, logr)

	if opts.file != "" {
		return runLocal(cfg, logr, attendance, opts)
	}

	portalClient, err := portal.NewClient(portal.Config{
		LoginURL:      cfg.Portal.LoginURL,
		ReportURL:     cfg.Portal.ReportURL,
		Username:      cfg.Portal.Username,
		Password:      cfg.Portal.Password,
		UsernameField: cfg.Portal.UsernameField,
		PasswordField: cfg.Portal.PasswordField,
		UserAgent:     cfg.Portal.UserAgent,
		Timeout:       cfg.Portal.Timeout,
	}, logr)
	if err != nil {
		logr.Sugar().Errorw("portal client init failed", "error", err)
		return 1
	}

	store, err := storage.NewLocalStorage(cfg.Snapshot.Dir)
	if err != nil {
		logr.Sugar().Errorw("snapshot storage init failed", "error", err)
		return 1
	}
	snapshots := service.NewSnapshotService(store, reports, service.SnapshotConfig{
		Format: cfg.Snapshot.Format,
		TTL:    cfg.Snapshot.TTL,
	}, logr, nil, nil, nil)

	runCfg := service.RunConfig{
		SheetName:            cfg.Attendance.SheetName,
		EveningThresholdHour: cfg.Attendance.EveningThresholdHour,
		SendSnapshot:         cfg.Telegram.SendSnapshot,
	}

	var runs *service.RunService
	if cfg.Telegram.BotToken == "" {
		logr.Sugar().Warnw("telegram token missing, reports stay local")
		runs = service.NewRunService(portalClient, attendance, nil, snapshots, metrics, nil, logr, runCfg)
	} else {
		notifier, err := notify.New(cfg.Telegram.BotToken, notify.Config{
			ChatID:     cfg.Telegram.ChatID,
			Retries:    cfg.Telegram.Retries,
			RetryDelay: cfg.Telegram.RetryDelay,
		}, metrics, logr)
		if err != nil {
			logr.Sugar().Errorw("telegram init failed", "error", err)
			return 1
		}
		runs = service.NewRunService(portalClient, attendance, notifier, snapshots, metrics, nil, logr, runCfg)
	}

	if !opts.serve {
		record, err := runs.Execute(context.Background(), service.RunRequest{
			Mode: models.RunMode(opts.mode),
			Date: opts.date,
		})
		if record.Report != "" {
			fmt.Println(record.Report)
		}
		if err != nil {
			logr.Sugar().Errorw("run failed", "run_id", record.ID, "error", err)
			return 2
		}
		return 0
	}

	return serve(cfg, logr, vocabLoader, runs, snapshots, metrics)
}

// runLocal analyzes a saved workbook without touching the portal or
// Telegram. Useful for verifying rule changes against a known export.
func runLocal(cfg *config.Config, logr *zap.Logger, attendance *service.AttendanceService, opts options) int {
	data, err := os.ReadFile(opts.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read workbook: %v\n", err)
		return 1
	}

	now := time.Now()
	targetDate := now
	if opts.date != "" {
		targetDate, _ = time.ParseInLocation("2006-01-02", opts.date, now.Location())
	}
	mode := models.RunMode(opts.mode).Resolve(now, cfg.Attendance.EveningThresholdHour)

	report := attendance.Analyze(data, cfg.Attendance.SheetName, targetDate, mode)
	fmt.Println(report.Text)
	if report.Failed() {
		return 2
	}
	logr.Sugar().Infow("local analysis finished",
		"file", opts.file,
		"date", targetDate.Format("2006-01-02"),
		"employees", report.Counts.TotalEmployees,
	)
	return 0
}

// serve runs the scheduler and the ops HTTP server until SIGINT/SIGTERM.
func serve(cfg *config.Config, logr *zap.Logger, vocabLoader *vocab.Loader, runs *service.RunService, snapshots *service.SnapshotService, metrics *service.MetricsService) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Vocabulary.Watch {
		if err := vocabLoader.Watch(ctx); err != nil {
			logr.Sugar().Warnw("vocabulary watch failed", "error", err)
		}
		defer vocabLoader.Stop()
	}

	scheduler := jobs.NewScheduler(logr)
	if cfg.Schedule.Enabled {
		check := func(mode models.RunMode) jobs.JobFunc {
			return func(ctx context.Context) error {
				_, err := runs.Execute(ctx, service.RunRequest{Mode: mode})
				return err
			}
		}
		if err := scheduler.AddDaily("morning-check", cfg.Schedule.Morning, cfg.Schedule.WeekdaysOnly, check(models.RunModeMorning)); err != nil {
			logr.Sugar().Errorw("schedule morning check failed", "error", err)
			return 1
		}
		if err := scheduler.AddDaily("evening-check", cfg.Schedule.Evening, cfg.Schedule.WeekdaysOnly, check(models.RunModeEvening)); err != nil {
			logr.Sugar().Errorw("schedule evening check failed", "error", err)
			return 1
		}
	} else {
		logr.Sugar().Infow("scheduler disabled, runs trigger via the API only")
	}
	if err := scheduler.AddInterval("snapshot-cleanup", 12*time.Hour, func(context.Context) error {
		removed, err := snapshots.Cleanup()
		if removed > 0 {
			logr.Sugar().Infow("expired snapshots pruned", "removed", removed)
		}
		return err
	}); err != nil {
		logr.Sugar().Errorw("schedule snapshot cleanup failed", "error", err)
		return 1
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics)
	runHandler := handler.NewRunHandler(runs)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.OpsToken == "" {
		logr.Sugar().Warnw("OPS_TOKEN empty, run endpoints are unauthenticated")
	}
	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.TokenAuth(cfg.OpsToken))
	api.POST("/runs", runHandler.Trigger)
	api.GET("/runs", runHandler.List)
	api.GET("/runs/last", runHandler.Last)
	api.GET("/runs/last/report", runHandler.LastReport)
	api.GET("/stats", metricsHandler.Stats)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logr.Sugar().Infow("shutdown signal received")
	case err := <-errCh:
		logr.Sugar().Errorw("server failed", "error", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
		return 1
	}
	logr.Sugar().Infow("server stopped")
	return 0
}

// standardTimesFrom materializes the configured workday. Each malformed
// clock keeps its default so one bad value cannot sink the whole run.
func standardTimesFrom(cfg config.AttendanceConfig, logr *zap.Logger) models.StandardTimes {
	times := models.DefaultStandardTimes()
	set := func(key, raw string, dst *models.ClockTime) {
		if raw == "" {
			return
		}
		parsed, err := models.ParseClock(raw)
		if err != nil {
			logr.Sugar().Warnw("invalid clock in config, keeping default", "key", key, "value", raw)
			return
		}
		*dst = parsed
	}
	set("WORK_START", cfg.WorkStart, &times.WorkStart)
	set("WORK_END", cfg.WorkEnd, &times.WorkEnd)
	set("LUNCH_START", cfg.LunchStart, &times.LunchStart)
	set("LUNCH_END", cfg.LunchEnd, &times.LunchEnd)
	set("MORNING_HALF_EXPECTED_START", cfg.MorningHalfStart, &times.MorningHalfStart)
	set("AFTERNOON_HALF_EXPECTED_END", cfg.AfternoonHalfEnd, &times.AfternoonHalfEnd)
	if cfg.EveningThresholdHour > 0 {
		times.EveningThresholdHour = cfg.EveningThresholdHour
	}
	return times
}
