package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-standby-api/internal/dto"
	"github.com/noah-isme/sma-standby-api/internal/models"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
)

type mockTeacherRepo struct {
	items      map[string]*models.Teacher
	listResult []models.Teacher
	listTotal  int
	listErr    error
	lastFilter models.TeacherFilter
	created    int
}

func newMockTeacherRepo() *mockTeacherRepo {
	return &mockTeacherRepo{items: map[string]*models.Teacher{}}
}

func (m *mockTeacherRepo) List(_ context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listResult, m.listTotal, nil
}

func (m *mockTeacherRepo) FindByID(_ context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := m.items[id]; ok {
		cp := *teacher
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) Create(_ context.Context, teacher *models.Teacher) error {
	m.created++
	teacher.ID = "teacher-new"
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Update(_ context.Context, teacher *models.Teacher) error {
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func strPtr(v string) *string { return &v }

func TestTeacherServiceCreateDerivesQuota(t *testing.T) {
	repo := newMockTeacherRepo()
	svc := NewTeacherService(repo, NewRankTable(), nil, zap.NewNop())

	teacher, err := svc.Create(context.Background(), dto.CreateTeacherRequest{
		Name:           "  أحمد  ",
		Phone:          strPtr("+966500000001"),
		Rank:           "EXPERT",
		Specialization: "تربية فكرية",
		Subjects:       []string{"رياضيات", " رياضيات ", ""},
	})
	require.NoError(t, err)

	assert.Equal(t, "أحمد", teacher.Name)
	assert.Equal(t, 14, teacher.WeeklyQuota)
	assert.Equal(t, DefaultWaitingQuota, teacher.WaitingQuota)
	assert.Equal(t, []string{"رياضيات"}, []string(teacher.Subjects))
	assert.True(t, teacher.Active)
}

func TestTeacherServiceCreateValidation(t *testing.T) {
	repo := newMockTeacherRepo()
	svc := NewTeacherService(repo, NewRankTable(), nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateTeacherRequest{Name: "x", Rank: "HEADMASTER"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.CreateTeacherRequest{Name: "x", Rank: "EXPERT", Phone: strPtr("0500")})
	require.Error(t, err)
	assert.Zero(t, repo.created)
}

func TestTeacherServiceUpdateRederivesQuota(t *testing.T) {
	repo := newMockTeacherRepo()
	repo.items["t1"] = &models.Teacher{ID: "t1", Name: "سارة", Rank: models.RankPractitioner, WeeklyQuota: 24, WaitingQuota: 5, Active: true}
	svc := NewTeacherService(repo, NewRankTable(), nil, nil)

	updated, err := svc.Update(context.Background(), "t1", dto.UpdateTeacherRequest{
		Rank:           strPtr("ADVANCED"),
		Specialization: strPtr("صعوبات تعلم"),
		Subjects:       []string{" علوم", "", "علوم ", "لغتي"},
	})
	require.NoError(t, err)
	assert.Equal(t, 16, updated.WeeklyQuota)
	assert.Equal(t, 16, repo.items["t1"].WeeklyQuota)
	assert.Equal(t, []string{"علوم", "لغتي"}, []string(updated.Subjects))

	_, err = svc.Update(context.Background(), "ghost", dto.UpdateTeacherRequest{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceListPagination(t *testing.T) {
	repo := newMockTeacherRepo()
	repo.listResult = []models.Teacher{{ID: "t1"}}
	repo.listTotal = 41
	svc := NewTeacherService(repo, NewRankTable(), nil, nil)

	teachers, pagination, err := svc.List(context.Background(), models.TeacherFilter{Page: 0, PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, teachers, 1)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 41}, pagination)

	_, _, err = svc.List(context.Background(), models.TeacherFilter{Rank: "CHIEF"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	repo.listErr = errors.New("db down")
	_, _, err = svc.List(context.Background(), models.TeacherFilter{})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceQuotaLookup(t *testing.T) {
	svc := NewTeacherService(newMockTeacherRepo(), NewRankTable(), nil, nil)

	q, err := svc.Quota("practitioner", "رياضيات")
	require.NoError(t, err)
	assert.Equal(t, 24, q.Weekly)
	assert.Equal(t, 5, q.Waiting)
	assert.False(t, q.SpecialEd)

	_, err = svc.Quota("", "")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Len(t, svc.QuotaTable(), 6)
}

type curriculumRepoStub struct {
	classes  []models.Class
	subjects []models.Subject
}

type classRepoStub struct{ *curriculumRepoStub }

func (c classRepoStub) List(context.Context) ([]models.Class, error) { return c.classes, nil }

func (c classRepoStub) Create(_ context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = class.Name
	}
	c.classes = append(c.classes, *class)
	return nil
}

type subjectRepoStub struct{ *curriculumRepoStub }

func (s subjectRepoStub) List(context.Context) ([]models.Subject, error) { return s.subjects, nil }

func (s subjectRepoStub) Create(_ context.Context, subject *models.Subject) error {
	s.subjects = append(s.subjects, *subject)
	return nil
}

func TestCurriculumServiceCreatesAndLists(t *testing.T) {
	store := &curriculumRepoStub{}
	svc := NewCurriculumService(classRepoStub{store}, subjectRepoStub{store}, nil, nil)
	ctx := context.Background()

	class, err := svc.CreateClass(ctx, dto.CreateClassRequest{Name: " 1-1 ", Grade: "1"})
	require.NoError(t, err)
	assert.Equal(t, "1-1", class.ID)

	subject, err := svc.CreateSubject(ctx, dto.CreateSubjectRequest{ID: "math", Name: "رياضيات", WeeklyHours: 6, Grades: []string{"1", "1", "2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, []string(subject.Grades))

	classes, err := svc.ListClasses(ctx)
	require.NoError(t, err)
	assert.Len(t, classes, 1)
	subjects, err := svc.ListSubjects(ctx)
	require.NoError(t, err)
	assert.Len(t, subjects, 1)

	_, err = svc.CreateSubject(ctx, dto.CreateSubjectRequest{Name: "", WeeklyHours: -1})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
