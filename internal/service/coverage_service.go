package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-standby-api/internal/dto"
	"github.com/noah-isme/sma-standby-api/internal/models"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type coverageRoster interface {
	Ensure(ctx context.Context, day time.Time) (*RosterState, error)
	StartWeek(ctx context.Context, day time.Time) (*RosterState, error)
	Save(ctx context.Context, exec sqlx.ExtContext, roster *RosterState) error
}

type coverageTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type waitingAssignmentStore interface {
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.WaitingAssignment) error
	DeleteBatch(ctx context.Context, exec sqlx.ExtContext, batchID string) (int64, error)
	List(ctx context.Context, filter models.WaitingAssignmentFilter) ([]models.WaitingAssignment, error)
}

type assignmentNotifier interface {
	DispatchAssignments(ctx context.Context, assignments []models.WaitingAssignment, channel models.Channel) error
}

// CoverageConfig governs undo retention.
type CoverageConfig struct {
	SnapshotTTL time.Duration
}

type coverageUndo struct {
	BatchID  string
	Snapshot RosterSnapshot
}

// CoverageService turns absence events into persisted waiting assignments.
// Allocations against the same week are serialized; each batch keeps a roster
// snapshot so it can be undone as a whole.
type CoverageService struct {
	roster      coverageRoster
	teachers    coverageTeacherReader
	assignments waitingAssignmentStore
	notifier    assignmentNotifier
	cache       *CacheService
	tx          txProvider
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger

	snapshots *ttlStore[coverageUndo]

	mu      sync.Mutex
	weekMu  map[string]*sync.Mutex
	history map[string][]string
}

// NewCoverageService wires coverage dependencies.
func NewCoverageService(
	roster coverageRoster,
	teachers coverageTeacherReader,
	assignments waitingAssignmentStore,
	notifier assignmentNotifier,
	cache *CacheService,
	tx txProvider,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg CoverageConfig,
) *CoverageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 12 * time.Hour
	}
	return &CoverageService{
		roster:      roster,
		teachers:    teachers,
		assignments: assignments,
		notifier:    notifier,
		cache:       cache,
		tx:          tx,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		snapshots:   newTTLStore[coverageUndo](cfg.SnapshotTTL),
		weekMu:      make(map[string]*sync.Mutex),
		history:     make(map[string][]string),
	}
}

// Allocate validates an absence event, distributes its periods over the
// week's roster and persists the assignments and counters atomically.
// Periods nobody could take are returned in Uncovered.
func (s *CoverageService) Allocate(ctx context.Context, req dto.AllocateCoverageRequest) (*models.CoverageBatch, error) {
	event, channel, err := s.parseEvent(req)
	if err != nil {
		return nil, err
	}

	absent, err := s.teachers.FindByID(ctx, event.AbsentTeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "absent teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absent teacher")
	}

	weekStart := WeekStartOf(event.Date)
	unlock := s.lockWeek(weekStart)
	defer unlock()

	roster, err := s.roster.Ensure(ctx, event.Date)
	if err != nil {
		return nil, err
	}
	snapshot := roster.Snapshot()

	// Absence is per day; the flag is restored before the counters are saved.
	var wasAvailable bool
	if t, ok := roster.Teacher(absent.ID); ok {
		wasAvailable = t.IsAvailable
	}
	roster.MarkUnavailable(absent.ID)

	batchID := uuid.NewString()
	result := AllocateSubstitutes(AllocationInput{
		BatchID:           batchID,
		AbsentTeacherID:   absent.ID,
		AbsentTeacherName: absent.Name,
		Date:              event.Date,
		Periods:           event.Periods,
	}, roster)

	if t, ok := roster.Teacher(absent.ID); ok {
		t.IsAvailable = wasAvailable
	}

	if err := s.persist(ctx, roster, result.Assignments); err != nil {
		roster.Restore(snapshot)
		return nil, err
	}

	s.remember(weekStart, coverageUndo{BatchID: batchID, Snapshot: snapshot})
	s.metrics.RecordAllocation(len(result.Assignments), len(result.Uncovered))
	s.cache.Invalidate(ctx, "reports")

	if len(result.Uncovered) > 0 {
		s.logger.Warn("absence only partially covered",
			zap.String("batch_id", batchID),
			zap.String("absent_teacher_id", absent.ID),
			zap.Int("uncovered", len(result.Uncovered)),
		)
	}

	if req.Notify && s.notifier != nil && len(result.Assignments) > 0 {
		if err := s.notifier.DispatchAssignments(ctx, result.Assignments, channel); err != nil {
			s.logger.Warn("failed to dispatch notifications", zap.String("batch_id", batchID), zap.Error(err))
		}
	}

	return &models.CoverageBatch{
		ID:          batchID,
		WeekStart:   weekStart,
		Assignments: result.Assignments,
		Uncovered:   result.Uncovered,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Undo discards an allocation batch and restores the roster counters captured
// before it ran. Only the most recent batch of a week can be undone.
func (s *CoverageService) Undo(ctx context.Context, batchID string) (*dto.UndoCoverageResponse, error) {
	undo, ok := s.snapshots.Get(batchID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "allocation batch not found or no longer undoable")
	}
	weekStart := undo.Snapshot.WeekStart
	unlock := s.lockWeek(weekStart)
	defer unlock()

	if latest := s.latest(weekStart); latest != batchID {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only the most recent allocation of the week can be undone")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	removed, err := s.assignments.DeleteBatch(ctx, tx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete allocation batch")
	}
	restored := NewRosterState(weekStart, nil)
	restored.Restore(undo.Snapshot)
	if err = s.roster.Save(ctx, tx, restored); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore week counters")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit undo")
	}

	s.forget(weekStart, batchID)
	s.cache.Invalidate(ctx, "reports")
	s.logger.Info("allocation undone", zap.String("batch_id", batchID), zap.Int64("removed", removed))

	return &dto.UndoCoverageResponse{BatchID: batchID, Removed: removed, Restored: len(restored.Teachers)}, nil
}

// StartWeek resets the week's counters while holding the week lock. Pending
// undo snapshots of that week are dropped since they predate the reset.
func (s *CoverageService) StartWeek(ctx context.Context, day time.Time) (*RosterState, error) {
	weekStart := WeekStartOf(day)
	unlock := s.lockWeek(weekStart)
	defer unlock()

	roster, err := s.roster.StartWeek(ctx, day)
	if err != nil {
		return nil, err
	}
	dropped := s.forgetWeek(weekStart)
	s.cache.Invalidate(ctx, "reports")
	if dropped > 0 {
		s.logger.Info("undo history cleared by week reset", zap.Time("week_start", weekStart), zap.Int("batches", dropped))
	}
	return roster, nil
}

// Assignments lists persisted assignments.
func (s *CoverageService) Assignments(ctx context.Context, query dto.AssignmentQuery) ([]models.WaitingAssignment, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment query")
	}
	filter := models.WaitingAssignmentFilter{SubstituteTeacherID: query.TeacherID, BatchID: query.BatchID}
	if query.From != "" {
		from, _ := time.Parse(dateLayout, query.From)
		filter.From = &from
	}
	if query.To != "" {
		to, _ := time.Parse(dateLayout, query.To)
		filter.To = &to
	}
	list, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waiting assignments")
	}
	return list, nil
}

func (s *CoverageService) parseEvent(req dto.AllocateCoverageRequest) (models.AbsentTeacherEvent, models.Channel, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.AbsentTeacherEvent{}, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation payload")
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return models.AbsentTeacherEvent{}, "", appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}

	seen := make(map[int]struct{}, len(req.Periods))
	periods := make([]models.UncoveredPeriod, 0, len(req.Periods))
	for _, p := range req.Periods {
		if _, dup := seen[p.PeriodNumber]; dup {
			return models.AbsentTeacherEvent{}, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate period number %d", p.PeriodNumber))
		}
		seen[p.PeriodNumber] = struct{}{}
		periods = append(periods, models.UncoveredPeriod{
			PeriodNumber: p.PeriodNumber,
			ClassName:    strings.TrimSpace(p.ClassName),
			Subject:      strings.TrimSpace(p.Subject),
		})
	}

	return models.AbsentTeacherEvent{
		AbsentTeacherID: strings.TrimSpace(req.AbsentTeacherID),
		Date:            date,
		Periods:         periods,
	}, models.Channel(req.Channel), nil
}

func (s *CoverageService) persist(ctx context.Context, roster *RosterState, assignments []models.WaitingAssignment) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.assignments.CreateBatch(ctx, tx, assignments); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist waiting assignments")
	}
	if err = s.roster.Save(ctx, tx, roster); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist week counters")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit allocation")
	}
	return nil
}

func weekKey(weekStart time.Time) string {
	return weekStart.Format(dateLayout)
}

func (s *CoverageService) lockWeek(weekStart time.Time) func() {
	key := weekKey(weekStart)
	s.mu.Lock()
	m, ok := s.weekMu[key]
	if !ok {
		m = &sync.Mutex{}
		s.weekMu[key] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (s *CoverageService) remember(weekStart time.Time, undo coverageUndo) {
	s.snapshots.Save(undo.BatchID, undo)
	key := weekKey(weekStart)
	s.mu.Lock()
	s.prune(key)
	s.history[key] = append(s.history[key], undo.BatchID)
	s.mu.Unlock()
}

func (s *CoverageService) latest(weekStart time.Time) string {
	key := weekKey(weekStart)
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := s.prune(key)
	if len(stack) == 0 {
		return ""
	}
	return stack[len(stack)-1]
}

// prune drops batch IDs whose snapshots have expired. Callers hold s.mu.
func (s *CoverageService) prune(key string) []string {
	stack := s.history[key]
	live := stack[:0]
	for _, id := range stack {
		if _, ok := s.snapshots.Get(id); ok {
			live = append(live, id)
		}
	}
	if len(live) == 0 {
		delete(s.history, key)
		return nil
	}
	s.history[key] = live
	return live
}

func (s *CoverageService) forgetWeek(weekStart time.Time) int {
	key := weekKey(weekStart)
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := s.history[key]
	for _, id := range stack {
		s.snapshots.Delete(id)
	}
	delete(s.history, key)
	return len(stack)
}

func (s *CoverageService) forget(weekStart time.Time, batchID string) {
	s.snapshots.Delete(batchID)
	key := weekKey(weekStart)
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := s.history[key]
	if n := len(stack); n > 0 && stack[n-1] == batchID {
		s.history[key] = stack[:n-1]
	}
}
