package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-standby-api/internal/dto"
	"github.com/noah-isme/sma-standby-api/internal/models"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
}

// TeacherService orchestrates teacher operations. Quotas are always derived
// from the rank table, never accepted from the client.
type TeacherService struct {
	repo      teacherRepository
	ranks     RankTable
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService.
func NewTeacherService(repo teacherRepository, ranks RankTable, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, ranks: ranks, validator: validate, logger: logger}
}

// List returns teachers plus pagination data.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	if filter.Rank != "" && !filter.Rank.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown rank filter")
	}
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return teachers, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}

// Create registers a new teacher with quotas derived from rank and specialization.
func (s *TeacherService) Create(ctx context.Context, req dto.CreateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	teacher := &models.Teacher{
		Name:           strings.TrimSpace(req.Name),
		Phone:          normalizeOptional(req.Phone),
		Rank:           models.Rank(req.Rank),
		Specialization: strings.TrimSpace(req.Specialization),
		Subjects:       normalizeList(req.Subjects),
		Active:         true,
	}
	if err := s.applyQuota(teacher); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	s.logger.Info("teacher created", zap.String("teacher_id", teacher.ID), zap.String("rank", string(teacher.Rank)))
	return teacher, nil
}

// Update modifies an existing teacher and re-derives its quotas.
func (s *TeacherService) Update(ctx context.Context, id string, req dto.UpdateTeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		teacher.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		teacher.Phone = normalizeOptional(req.Phone)
	}
	if req.Rank != nil {
		teacher.Rank = models.Rank(*req.Rank)
	}
	if req.Specialization != nil {
		teacher.Specialization = strings.TrimSpace(*req.Specialization)
	}
	if req.Subjects != nil {
		teacher.Subjects = normalizeList(req.Subjects)
	}
	if req.Active != nil {
		teacher.Active = *req.Active
	}
	if err := s.applyQuota(teacher); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	return teacher, nil
}

// Quota exposes the rank table lookup with caller-side rank validation.
func (s *TeacherService) Quota(rank, specialization string) (models.Quota, error) {
	r := models.Rank(strings.ToUpper(strings.TrimSpace(rank)))
	if !r.Valid() {
		return models.Quota{}, appErrors.Clone(appErrors.ErrValidation, "rank must be one of PRACTITIONER, ADVANCED, EXPERT")
	}
	return s.ranks.Quota(r, specialization)
}

// QuotaTable lists every rank's quotas.
func (s *TeacherService) QuotaTable() []models.Quota {
	return s.ranks.Table()
}

func (s *TeacherService) applyQuota(teacher *models.Teacher) error {
	q, err := s.ranks.Quota(teacher.Rank, teacher.Specialization)
	if err != nil {
		return err
	}
	teacher.WeeklyQuota = q.Weekly
	teacher.WaitingQuota = q.Waiting
	return nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
