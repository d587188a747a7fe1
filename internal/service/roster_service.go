package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-standby-api/internal/models"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
)

type activeTeacherLister interface {
	ListActive(ctx context.Context) ([]models.Teacher, error)
}

type rosterStore interface {
	ListWeek(ctx context.Context, weekStart time.Time) ([]models.Teacher, error)
	SaveCounters(ctx context.Context, exec sqlx.ExtContext, counters []models.TeacherWeekCounter) error
	DeleteWeek(ctx context.Context, exec sqlx.ExtContext, weekStart time.Time) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// RosterService seeds and loads the weekly teacher counters.
type RosterService struct {
	teachers activeTeacherLister
	store    rosterStore
	ranks    RankTable
	tx       txProvider
	logger   *zap.Logger
}

// NewRosterService constructs a RosterService.
func NewRosterService(teachers activeTeacherLister, store rosterStore, ranks RankTable, tx txProvider, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{teachers: teachers, store: store, ranks: ranks, tx: tx, logger: logger}
}

// StartWeek resets the counters of the week containing day: weekly loads go to
// zero and standby capacity is refilled from the rank table.
func (s *RosterService) StartWeek(ctx context.Context, day time.Time) (*RosterState, error) {
	weekStart := WeekStartOf(day)
	teachers, err := s.teachers.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	roster, err := SeedRoster(weekStart, teachers, s.ranks)
	if err != nil {
		return nil, err
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

	if err = s.store.DeleteWeek(ctx, tx, weekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset week")
	}
	if err = s.store.SaveCounters(ctx, tx, roster.Counters()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save week counters")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit week counters")
	}

	s.logger.Info("week started", zap.Time("week_start", weekStart), zap.Int("teachers", len(roster.Teachers)))
	return roster, nil
}

// Load returns the roster of the week containing day.
func (s *RosterService) Load(ctx context.Context, day time.Time) (*RosterState, error) {
	weekStart := WeekStartOf(day)
	teachers, err := s.store.ListWeek(ctx, weekStart)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	if len(teachers) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "week has not been started")
	}
	return NewRosterState(weekStart, teachers), nil
}

// Ensure loads the week's roster, starting the week first when it has no counters yet.
func (s *RosterService) Ensure(ctx context.Context, day time.Time) (*RosterState, error) {
	roster, err := s.Load(ctx, day)
	if err == nil {
		return roster, nil
	}
	if appErr := appErrors.FromError(err); appErr.Code != appErrors.ErrNotFound.Code {
		return nil, err
	}
	return s.StartWeek(ctx, day)
}

// Save persists the roster counters using exec, typically a transaction.
func (s *RosterService) Save(ctx context.Context, exec sqlx.ExtContext, roster *RosterState) error {
	return s.store.SaveCounters(ctx, exec, roster.Counters())
}
