package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-standby-api/internal/dto"
	"github.com/noah-isme/sma-standby-api/internal/models"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
)

type timetableStore interface {
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, batch *models.TimetableBatch) error
	InsertSessions(ctx context.Context, exec sqlx.ExtContext, sessions []models.ClassSession) error
	InsertUnresolved(ctx context.Context, exec sqlx.ExtContext, batchID string, demands []models.UnresolvedDemand) error
	ListBatches(ctx context.Context) ([]models.TimetableBatch, error)
	FindBatch(ctx context.Context, id string) (*models.TimetableBatch, error)
	ListSessionDetails(ctx context.Context, batchID string) ([]models.ClassSessionDetail, error)
	ListLocked(ctx context.Context) ([]models.ClassSession, error)
	SetLocked(ctx context.Context, batchID, sessionID string, locked bool) (*models.ClassSession, error)
	ListUnresolved(ctx context.Context, batchID string) ([]models.UnresolvedDemand, error)
	DeleteBatch(ctx context.Context, id string) error
}

type classLister interface {
	List(ctx context.Context) ([]models.Class, error)
}

type subjectLister interface {
	List(ctx context.Context) ([]models.Subject, error)
}

// TimetableConfig governs proposal retention and the default search budget.
type TimetableConfig struct {
	ProposalTTL time.Duration
	MaxAttempts int
}

type timetableProposal struct {
	Seed   int64
	Result TimetableResult
}

// TimetableService previews generated timetables and persists accepted ones.
type TimetableService struct {
	store     timetableStore
	classes   classLister
	subjects  subjectLister
	teachers  activeTeacherLister
	tx        txProvider
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableConfig
	proposals *ttlStore[timetableProposal]
}

// NewTimetableService wires timetable dependencies.
func NewTimetableService(
	store timetableStore,
	classes classLister,
	subjects subjectLister,
	teachers activeTeacherLister,
	tx txProvider,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &TimetableService{
		store:     store,
		classes:   classes,
		subjects:  subjects,
		teachers:  teachers,
		tx:        tx,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		proposals: newTTLStore[timetableProposal](cfg.ProposalTTL),
	}
}

// Generate builds a proposal around the currently locked sessions. The proposal
// lives in memory until it is saved or expires; the same seed replays it.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}

	input, err := s.loadInput(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := ValidateTimetableInput(input); err != nil {
		return nil, err
	}

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}
	maxAttempts := s.cfg.MaxAttempts
	if req.MaxAttempts > 0 {
		maxAttempts = req.MaxAttempts
	}

	proposalID := uuid.NewString()
	input.BatchID = proposalID
	result := GenerateTimetable(input, GeneratorOptions{
		Rand:        rand.New(rand.NewSource(seed)),
		MaxAttempts: maxAttempts,
	})
	s.metrics.RecordGeneration(result)
	s.proposals.Save(proposalID, timetableProposal{Seed: seed, Result: result})

	s.logger.Info("timetable proposal generated",
		zap.String("proposal_id", proposalID),
		zap.Int64("seed", seed),
		zap.Int("sessions", len(result.Sessions)),
		zap.Int("unresolved", len(result.Unresolved)),
	)

	return &dto.GenerateTimetableResponse{
		ProposalID: proposalID,
		Seed:       seed,
		Sessions:   result.Sessions,
		Unresolved: result.Unresolved,
		Attempts:   result.Attempts,
	}, nil
}

// Save persists a proposal as a draft batch together with its unresolved demand.
func (s *TimetableService) Save(ctx context.Context, req dto.SaveTimetableRequest) (batch *models.TimetableBatch, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save payload")
	}
	proposal, ok := s.proposals.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
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

	batch = &models.TimetableBatch{
		ID:              req.ProposalID,
		Status:          models.TimetableStatusDraft,
		Seed:            proposal.Seed,
		SessionCount:    len(proposal.Result.Sessions),
		UnresolvedCount: len(proposal.Result.Unresolved),
	}
	if err = s.store.CreateBatch(ctx, tx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable batch")
	}
	if err = s.store.InsertSessions(ctx, tx, proposal.Result.Sessions); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store sessions")
	}
	if err = s.store.InsertUnresolved(ctx, tx, batch.ID, proposal.Result.Unresolved); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store unresolved demand")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable")
	}

	s.proposals.Delete(req.ProposalID)
	s.logger.Info("timetable saved", zap.String("batch_id", batch.ID), zap.Int("sessions", batch.SessionCount))
	return batch, nil
}

// Discard removes a saved batch and its sessions.
func (s *TimetableService) Discard(ctx context.Context, batchID string) error {
	if err := s.store.DeleteBatch(ctx, batchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable batch not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable batch")
	}
	return nil
}

// LockSession pins a saved session to its slot, or releases it. Pinned
// sessions constrain every later generation.
func (s *TimetableService) LockSession(ctx context.Context, batchID, sessionID string, req dto.LockSessionRequest) (*models.ClassSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lock payload")
	}
	session, err := s.store.SetLocked(ctx, batchID, sessionID, *req.Locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session lock")
	}
	s.logger.Info("session lock changed",
		zap.String("batch_id", batchID), zap.String("session_id", sessionID), zap.Bool("locked", session.IsLocked))
	return session, nil
}

// Batches lists saved batches.
func (s *TimetableService) Batches(ctx context.Context) ([]models.TimetableBatch, error) {
	batches, err := s.store.ListBatches(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable batches")
	}
	return batches, nil
}

// Sessions returns a saved batch with its named sessions and unresolved demand.
func (s *TimetableService) Sessions(ctx context.Context, batchID string) (*dto.TimetableSessionsResponse, error) {
	batch, err := s.store.FindBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable batch")
	}
	sessions, err := s.store.ListSessionDetails(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	unresolved, err := s.store.ListUnresolved(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unresolved demand")
	}
	return &dto.TimetableSessionsResponse{
		Batch:      *batch,
		Slots:      models.DefaultTimeSlots(),
		Sessions:   sessions,
		Unresolved: unresolved,
	}, nil
}

func (s *TimetableService) loadInput(ctx context.Context, req dto.GenerateTimetableRequest) (TimetableInput, error) {
	classes, err := s.classes.List(ctx)
	if err != nil {
		return TimetableInput{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
	}
	subjects, err := s.subjects.List(ctx)
	if err != nil {
		return TimetableInput{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	teachers, err := s.teachers.ListActive(ctx)
	if err != nil {
		return TimetableInput{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	locked, err := s.store.ListLocked(ctx)
	if err != nil {
		return TimetableInput{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load locked sessions")
	}

	classes, err = selectByID(classes, req.ClassIDs, func(c models.Class) string { return c.ID }, "class")
	if err != nil {
		return TimetableInput{}, err
	}
	subjects, err = selectByID(subjects, req.SubjectIDs, func(s models.Subject) string { return s.ID }, "subject")
	if err != nil {
		return TimetableInput{}, err
	}

	return TimetableInput{
		Classes:  classes,
		Subjects: subjects,
		Teachers: teachers,
		Slots:    models.DefaultTimeSlots(),
		Locked:   locked,
	}, nil
}

// selectByID keeps the items named by ids, in the order of ids. An empty
// selection keeps everything.
func selectByID[T any](items []T, ids []string, id func(T) string, kind string) ([]T, error) {
	if len(ids) == 0 {
		return items, nil
	}
	byID := make(map[string]T, len(items))
	for _, item := range items {
		byID[id(item)] = item
	}
	out := make([]T, 0, len(ids))
	for _, want := range ids {
		item, ok := byID[want]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %q not found", kind, want))
		}
		out = append(out, item)
	}
	return out, nil
}
