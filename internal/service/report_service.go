package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-standby-api/internal/dto"
	"github.com/noah-isme/sma-standby-api/internal/models"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
	"github.com/noah-isme/sma-standby-api/pkg/export"
)

type waitingAssignmentLister interface {
	List(ctx context.Context, filter models.WaitingAssignmentFilter) ([]models.WaitingAssignment, error)
}

type timetableReader interface {
	FindBatch(ctx context.Context, id string) (*models.TimetableBatch, error)
	ListSessionDetails(ctx context.Context, batchID string) ([]models.ClassSessionDetail, error)
}

type datasetRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ReportConfig tunes summary caching and spreadsheet layout.
type ReportConfig struct {
	CacheTTL    time.Duration
	RightToLeft bool
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

var exportContentTypes = map[models.ExportFormat]string{
	models.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	models.FormatCSV:  "text/csv; charset=utf-8",
	models.FormatPDF:  "application/pdf",
}

// ReportService summarizes standby coverage and renders exports.
type ReportService struct {
	assignments waitingAssignmentLister
	timetables  timetableReader
	cache       *CacheService
	renderers   map[models.ExportFormat]datasetRenderer
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ReportConfig
}

// NewReportService constructs a ReportService with the CSV, XLSX and PDF renderers.
func NewReportService(assignments waitingAssignmentLister, timetables timetableReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg ReportConfig) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		assignments: assignments,
		timetables:  timetables,
		cache:       cache,
		renderers: map[models.ExportFormat]datasetRenderer{
			models.FormatXLSX: export.NewXLSXExporter(cfg.RightToLeft),
			models.FormatCSV:  export.NewCSVExporter(),
			models.FormatPDF:  export.NewPDFExporter(),
		},
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// WaitingSummary folds the assignments dated within [from, to] into per-teacher buckets.
func (s *ReportService) WaitingSummary(ctx context.Context, query dto.WaitingReportQuery) ([]models.WaitingSummary, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report query")
	}
	from, to, err := parseWindow(query.From, query.To)
	if err != nil {
		return nil, err
	}
	return s.summary(ctx, from, to, granularityOf(query.Granularity))
}

// Export renders the selected dataset in the requested format.
func (s *ReportService) Export(ctx context.Context, query dto.ExportQuery) (*ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}

	var (
		data  export.Dataset
		title string
		name  string
	)
	switch models.ExportKind(query.Kind) {
	case models.ExportWaiting:
		if query.From == "" || query.To == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "waiting exports require from and to")
		}
		from, to, err := parseWindow(query.From, query.To)
		if err != nil {
			return nil, err
		}
		granularity := granularityOf(query.Granularity)
		summaries, err := s.summary(ctx, from, to, granularity)
		if err != nil {
			return nil, err
		}
		data = waitingDataset(summaries)
		title = fmt.Sprintf("Waiting periods %s to %s", query.From, query.To)
		name = fmt.Sprintf("waiting_%s_%s_%s", granularity, query.From, query.To)
	case models.ExportTimetable:
		if query.BatchID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "timetable exports require batchId")
		}
		batch, err := s.timetables.FindBatch(ctx, query.BatchID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable batch not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable batch")
		}
		sessions, err := s.timetables.ListSessionDetails(ctx, batch.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
		}
		data = timetableDataset(sessions)
		title = "Timetable " + batch.CreatedAt.Format("2006-01-02")
		name = "timetable_" + batch.ID
	}

	format := models.ExportFormat(query.Format)
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	content, err := renderer.Render(data, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("report exported", zap.String("kind", query.Kind), zap.String("format", query.Format), zap.Int("rows", len(data.Rows)))
	return &ExportFile{
		Filename:    name + "." + string(format),
		ContentType: exportContentTypes[format],
		Content:     content,
	}, nil
}

func (s *ReportService) summary(ctx context.Context, from, to time.Time, granularity models.Granularity) ([]models.WaitingSummary, error) {
	key := CacheKey("reports", "waiting", string(granularity), from.Format(dateLayout), to.Format(dateLayout))
	var cached []models.WaitingSummary
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	assignments, err := s.assignments.List(ctx, models.WaitingAssignmentFilter{From: &from, To: &to})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waiting assignments")
	}
	summaries := AggregateWaiting(assignments, granularity)
	s.cache.Set(ctx, key, summaries, s.cfg.CacheTTL)
	return summaries, nil
}

func parseWindow(rawFrom, rawTo string) (time.Time, time.Time, error) {
	from, err := time.Parse(dateLayout, rawFrom)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "from must use YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, rawTo)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to must use YYYY-MM-DD")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return from, to, nil
}

func granularityOf(raw string) models.Granularity {
	if models.Granularity(raw) == models.GranularityMonth {
		return models.GranularityMonth
	}
	return models.GranularityWeek
}

func waitingDataset(summaries []models.WaitingSummary) export.Dataset {
	data := export.Dataset{Headers: []string{"Period", "Teacher", "Assignments", "Notified", "Confirmed"}}
	for _, s := range summaries {
		data.Rows = append(data.Rows, map[string]string{
			"Period":      s.Period,
			"Teacher":     s.TeacherName,
			"Assignments": strconv.Itoa(s.Assignments),
			"Notified":    strconv.Itoa(s.Notified),
			"Confirmed":   strconv.Itoa(s.Confirmed),
		})
	}
	return data
}

func timetableDataset(sessions []models.ClassSessionDetail) export.Dataset {
	slots := make(map[string]models.TimeSlot)
	order := make(map[string]int)
	for i, slot := range models.DefaultTimeSlots() {
		slots[slot.ID] = slot
		order[slot.ID] = i
	}
	sorted := append([]models.ClassSessionDetail(nil), sessions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ClassName != sorted[j].ClassName {
			return sorted[i].ClassName < sorted[j].ClassName
		}
		return order[sorted[i].TimeSlotID] < order[sorted[j].TimeSlotID]
	})

	data := export.Dataset{Headers: []string{"Class", "Day", "Period", "Time", "Subject", "Teacher", "Kind"}}
	for _, s := range sorted {
		slot := slots[s.TimeSlotID]
		data.Rows = append(data.Rows, map[string]string{
			"Class":   s.ClassName,
			"Day":     string(slot.Day),
			"Period":  strconv.Itoa(slot.Period),
			"Time":    slot.StartTime + "-" + slot.EndTime,
			"Subject": s.SubjectName,
			"Teacher": s.TeacherName,
			"Kind":    string(s.Kind),
		})
	}
	return data
}
