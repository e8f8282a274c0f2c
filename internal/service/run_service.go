package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dgmosdaegu/work-day-bot/internal/models"
	appErrors "github.com/dgmosdaegu/work-day-bot/pkg/errors"
)

type sessionClient interface {
	Login(ctx context.Context) error
	FetchReport(ctx context.Context, date time.Time) ([]byte, error)
}

type dayAnalyzer interface {
	Analyze(data []byte, sheetName string, targetDate time.Time, mode models.RunMode) models.AnalysisReport
}

type reportNotifier interface {
	Send(ctx context.Context, text string) error
	SendDocument(ctx context.Context, filename string, payload []byte, caption string) error
}

type snapshotExporter interface {
	Export(report models.AnalysisReport) (string, error)
	Load(filename string) ([]byte, error)
}

// RunRequest triggers one attendance check. An empty mode means auto; an
// empty date means today.
type RunRequest struct {
	Mode models.RunMode `json:"mode" validate:"omitempty,run_mode"`
	Date string         `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// RunConfig tunes run orchestration.
type RunConfig struct {
	SheetName            string
	EveningThresholdHour int
	SendSnapshot         bool
	HistoryLimit         int
}

// RunService executes the full check (login, download, analyze, snapshot,
// deliver) and keeps a bounded in-memory history of finished runs for the
// ops endpoints. One run at a time: a second Execute while one is in flight
// fails fast with a conflict instead of queueing.
type RunService struct {
	portal     sessionClient
	attendance dayAnalyzer
	notifier   reportNotifier
	snapshots  snapshotExporter
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        RunConfig

	runMu  sync.Mutex
	histMu sync.RWMutex
	runs   []models.RunRecord
}

// NewRunService wires the run orchestrator. Notifier and snapshots may be
// nil (local analysis without delivery); validator and logger may be nil.
func NewRunService(
	portal sessionClient,
	attendance dayAnalyzer,
	notifier reportNotifier,
	snapshots snapshotExporter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg RunConfig,
) *RunService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "세부현황_B"
	}
	if cfg.EveningThresholdHour <= 0 {
		cfg.EveningThresholdHour = 18
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	svc := &RunService{
		portal:     portal,
		attendance: attendance,
		notifier:   notifier,
		snapshots:  snapshots,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
	svc.validator.RegisterValidation("run_mode", func(fl validator.FieldLevel) bool {
		return models.RunMode(fl.Field().String()).Valid()
	})
	return svc
}

// Execute performs one attendance check end to end. The returned record is
// also kept in the run history; err is non-nil whenever the run did not
// produce a delivered, successful report.
func (s *RunService) Execute(ctx context.Context, req RunRequest) (models.RunRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.RunRecord{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run request")
	}
	if !s.runMu.TryLock() {
		return models.RunRecord{}, appErrors.Clone(appErrors.ErrRunInProgress, "")
	}
	defer s.runMu.Unlock()

	now := time.Now()
	mode := req.Mode
	if mode == "" {
		mode = models.RunModeAuto
	}
	mode = mode.Resolve(now, s.cfg.EveningThresholdHour)

	targetDate := now
	if req.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.Date, now.Location())
		if err != nil {
			return models.RunRecord{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid run date")
		}
		targetDate = parsed
	}

	record := models.RunRecord{
		ID:         uuid.NewString(),
		Mode:       mode,
		TargetDate: targetDate.Format("2006-01-02"),
		StartedAt:  now,
	}
	s.logger.Sugar().Infow("run started", "run_id", record.ID, "mode", string(mode), "date", record.TargetDate)

	if err := s.portal.Login(ctx); err != nil {
		return s.finishFailed(ctx, record, err)
	}
	data, err := s.portal.FetchReport(ctx, targetDate)
	if err != nil {
		return s.finishFailed(ctx, record, err)
	}

	report := s.attendance.Analyze(data, s.cfg.SheetName, targetDate, mode)
	record.Counts = report.Counts
	record.Report = report.Text

	if report.Failed() {
		// The diagnostic still goes out through the normal channel.
		record.Delivered = s.deliverText(ctx, report.Text)
		record.Error = "analysis did not run"
		return s.finish(record, models.RunStatusFailed),
			appErrors.Clone(appErrors.ErrAnalysisFailed, "")
	}

	if s.snapshots != nil {
		name, err := s.snapshots.Export(report)
		if err != nil {
			s.logger.Sugar().Warnw("snapshot export failed", "run_id", record.ID, "error", err)
		} else {
			record.SnapshotFile = name
		}
	}

	if s.notifier != nil {
		if err := s.notifier.Send(ctx, report.Text); err != nil {
			record.Error = err.Error()
			finished := s.finish(record, models.RunStatusFailed)
			return finished, err
		}
		record.Delivered = true
		s.sendSnapshotDocument(ctx, &record)
	}

	return s.finish(record, models.RunStatusSucceeded), nil
}

// Recent returns up to limit finished runs, newest first.
func (s *RunService) Recent(limit int) []models.RunRecord {
	s.histMu.RLock()
	defer s.histMu.RUnlock()
	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}
	out := make([]models.RunRecord, limit)
	copy(out, s.runs[:limit])
	return out
}

// Last returns the most recent run, if any.
func (s *RunService) Last() (models.RunRecord, bool) {
	s.histMu.RLock()
	defer s.histMu.RUnlock()
	if len(s.runs) == 0 {
		return models.RunRecord{}, false
	}
	return s.runs[0], true
}

// finishFailed handles collaborator failures before analysis: the operator
// gets a one-line diagnostic through the same channel as a normal report.
func (s *RunService) finishFailed(ctx context.Context, record models.RunRecord, cause error) (models.RunRecord, error) {
	record.Error = cause.Error()
	record.Counts = models.SummaryCounts{TotalEmployees: -1}
	record.Report = fmt.Sprintf("%s attendance check failed: %v", record.TargetDate, cause)
	record.Delivered = s.deliverText(ctx, record.Report)
	return s.finish(record, models.RunStatusFailed), cause
}

func (s *RunService) deliverText(ctx context.Context, text string) bool {
	if s.notifier == nil {
		return false
	}
	if err := s.notifier.Send(ctx, text); err != nil {
		s.logger.Sugar().Errorw("diagnostic delivery failed", "error", err)
		return false
	}
	return true
}

// sendSnapshotDocument attaches the stored snapshot to the delivery. Best
// effort: the report text is already out, so a failed upload only logs.
func (s *RunService) sendSnapshotDocument(ctx context.Context, record *models.RunRecord) {
	if !s.cfg.SendSnapshot || record.SnapshotFile == "" || s.snapshots == nil {
		return
	}
	payload, err := s.snapshots.Load(record.SnapshotFile)
	if err != nil {
		s.logger.Sugar().Warnw("snapshot load failed", "file", record.SnapshotFile, "error", err)
		return
	}
	if err := s.notifier.SendDocument(ctx, record.SnapshotFile, payload, record.TargetDate); err != nil {
		s.logger.Sugar().Warnw("snapshot delivery failed", "file", record.SnapshotFile, "error", err)
	}
}

func (s *RunService) finish(record models.RunRecord, status models.RunStatus) models.RunRecord {
	record.Status = status
	record.FinishedAt = time.Now()
	s.metrics.ObserveRun(string(record.Mode), status, record.FinishedAt.Sub(record.StartedAt), record.Counts)

	s.histMu.Lock()
	s.runs = append([]models.RunRecord{record}, s.runs...)
	if len(s.runs) > s.cfg.HistoryLimit {
		s.runs = s.runs[:s.cfg.HistoryLimit]
	}
	s.histMu.Unlock()

	s.logger.Sugar().Infow("run finished",
		"run_id", record.ID,
		"status", string(status),
		"delivered", record.Delivered,
		"duration", record.FinishedAt.Sub(record.StartedAt),
	)
	return record
}
