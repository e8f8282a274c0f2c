package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dgmosdaegu/work-day-bot/internal/models"
	appErrors "github.com/dgmosdaegu/work-day-bot/pkg/errors"
	"github.com/dgmosdaegu/work-day-bot/pkg/export"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
	Path(filename string) string
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type tableRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type datasetBuilder interface {
	DetailDataset(report models.AnalysisReport) export.Dataset
	SummaryDataset(report models.AnalysisReport) export.Dataset
}

// SnapshotConfig tunes snapshot format and retention.
type SnapshotConfig struct {
	Format string
	TTL    time.Duration
}

// SnapshotService persists one rendered file per run and prunes expired
// ones. XLSX and CSV carry the full per-employee detail; the PDF form is a
// counts-only table because the core fonts cannot render Korean names.
type SnapshotService struct {
	storage fileStorage
	builder datasetBuilder
	csv     csvRenderer
	xlsx    tableRenderer
	pdf     tableRenderer
	cfg     SnapshotConfig
	logger  *zap.Logger
}

// NewSnapshotService constructs a SnapshotService. Nil renderers fall back
// to the package defaults; logger may be nil.
func NewSnapshotService(storage fileStorage, builder datasetBuilder, cfg SnapshotConfig, logger *zap.Logger, csv csvRenderer, xlsx tableRenderer, pdf tableRenderer) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	switch cfg.Format {
	case "csv", "pdf", "xlsx":
	default:
		cfg.Format = "xlsx"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &SnapshotService{
		storage: storage,
		builder: builder,
		csv:     csv,
		xlsx:    xlsx,
		pdf:     pdf,
		cfg:     cfg,
		logger:  logger,
	}
}

// Export renders the report in the configured format and stores it,
// returning the stored filename.
func (s *SnapshotService) Export(report models.AnalysisReport) (string, error) {
	if report.Failed() {
		return "", appErrors.Clone(appErrors.ErrValidation, "failed analysis has no snapshot")
	}

	title := fmt.Sprintf("Attendance %s", report.TargetDate.Format("2006-01-02"))
	var payload []byte
	var err error
	switch s.cfg.Format {
	case "csv":
		payload, err = s.csv.Render(s.builder.DetailDataset(report))
	case "pdf":
		payload, err = s.pdf.Render(s.builder.SummaryDataset(report), title)
	default:
		payload, err = s.xlsx.Render(s.builder.DetailDataset(report), title)
	}
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render snapshot")
	}

	filename := s.buildFilename(report)
	stored, err := s.storage.Save(filename, payload)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store snapshot")
	}
	s.logger.Sugar().Infow("snapshot stored", "file", stored, "format", s.cfg.Format, "bytes", len(payload))
	return stored, nil
}

// Path resolves a stored snapshot name to its absolute location.
func (s *SnapshotService) Path(filename string) string {
	return s.storage.Path(filename)
}

// Load reads a stored snapshot back, e.g. to attach it to a delivery.
func (s *SnapshotService) Load(filename string) ([]byte, error) {
	data, err := s.storage.Read(filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "load snapshot")
	}
	return data, nil
}

// Cleanup drops snapshots older than the retention window and reports how
// many were removed.
func (s *SnapshotService) Cleanup() (int, error) {
	removed, err := s.storage.CleanupOlderThan(s.cfg.TTL)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "cleanup snapshots")
	}
	if len(removed) > 0 {
		s.logger.Sugar().Infow("expired snapshots removed", "count", len(removed))
	}
	return len(removed), nil
}

func (s *SnapshotService) buildFilename(report models.AnalysisReport) string {
	mode := sanitizeSnapshotName(string(report.Mode))
	return fmt.Sprintf("attendance_%s_%s_%s.%s",
		report.TargetDate.Format("20060102"),
		mode,
		time.Now().UTC().Format("150405"),
		s.cfg.Format,
	)
}

func sanitizeSnapshotName(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 40 {
		return result[:40]
	}
	return result
}
