package handler

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-standby-api/internal/dto"
	"github.com/noah-isme/sma-standby-api/internal/models"
	"github.com/noah-isme/sma-standby-api/internal/service"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
)

type teacherServiceMock struct {
	filter  models.TeacherFilter
	created dto.CreateTeacherRequest
}

func (m *teacherServiceMock) List(_ context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	m.filter = filter
	return []models.Teacher{{ID: "t1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *teacherServiceMock) Get(_ context.Context, id string) (*models.Teacher, error) {
	if id != "t1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return &models.Teacher{ID: id}, nil
}

func (m *teacherServiceMock) Create(_ context.Context, req dto.CreateTeacherRequest) (*models.Teacher, error) {
	m.created = req
	return &models.Teacher{ID: "t2", Name: req.Name}, nil
}

func (m *teacherServiceMock) Update(_ context.Context, id string, _ dto.UpdateTeacherRequest) (*models.Teacher, error) {
	return &models.Teacher{ID: id}, nil
}

func (m *teacherServiceMock) Quota(rank, specialization string) (models.Quota, error) {
	return service.NewRankTable().Quota(models.Rank(rank), specialization)
}

func (m *teacherServiceMock) QuotaTable() []models.Quota {
	return service.NewRankTable().Table()
}

type rosterServiceMock struct {
	started time.Time
}

func (m *rosterServiceMock) StartWeek(_ context.Context, day time.Time) (*service.RosterState, error) {
	m.started = day
	return service.NewRosterState(service.WeekStartOf(day), []models.Teacher{{ID: "t1"}}), nil
}

func (m *rosterServiceMock) Load(_ context.Context, day time.Time) (*service.RosterState, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "week has not been started")
}

func TestTeacherHandlerRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &teacherServiceMock{}
	h := NewTeacherHandler(svc)
	r := gin.New()
	r.GET("/teachers", h.List)
	r.GET("/teachers/:id", h.Get)
	r.POST("/teachers", h.Create)
	r.PUT("/teachers/:id", h.Update)
	r.GET("/ranks/quota", h.Quota)

	w := perform(r, http.MethodGet, "/teachers?rank=expert&active=false&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RankExpert, svc.filter.Rank)
	require.NotNil(t, svc.filter.Active)
	assert.False(t, *svc.filter.Active)
	assert.Equal(t, 5, svc.filter.PageSize)
	assert.Contains(t, w.Body.String(), `"pagination"`)

	w = perform(r, http.MethodGet, "/teachers/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(r, http.MethodPost, "/teachers", []byte(`{"name":"أحمد","rank":"EXPERT"}`))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "أحمد", svc.created.Name)

	w = perform(r, http.MethodPut, "/teachers/t1", []byte(`{"active":false}`))
	assert.Equal(t, http.StatusOK, w.Code)

	q := url.Values{"rank": {"EXPERT"}, "specialization": {"تربية فكرية"}}
	w = perform(r, http.MethodGet, "/ranks/quota?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"weekly":14`)

	w = perform(r, http.MethodGet, "/ranks/quota", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRosterHandlerRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &rosterServiceMock{}
	h := NewRosterHandler(svc, svc)
	r := gin.New()
	r.POST("/roster/weeks", h.StartWeek)
	r.GET("/roster/weeks/:weekStart", h.Get)

	w := perform(r, http.MethodPost, "/roster/weeks", []byte(`{"weekStart":"2026-10-21"}`))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"weekStart":"2026-10-18"`)
	assert.Equal(t, 21, svc.started.Day())

	w = perform(r, http.MethodPost, "/roster/weeks", []byte(`{"weekStart":"21-10-2026"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodGet, "/roster/weeks/2026-10-18", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(r, http.MethodGet, "/roster/weeks/latest", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type pingStub struct{ err error }

func (p pingStub) PingContext(context.Context) error { return p.err }

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	healthy := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{"postgres": pingStub{}})
	broken := NewMetricsHandler(nil, map[string]Pinger{"redis": pingStub{err: assert.AnError}})
	r.GET("/ready", healthy.Ready)
	r.GET("/ready-broken", broken.Ready)
	r.GET("/metrics", healthy.Prometheus)
	r.GET("/metrics-off", broken.Prometheus)
	r.GET("/health", healthy.Health)

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, perform(r, http.MethodGet, "/ready-broken", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/metrics", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, perform(r, http.MethodGet, "/metrics-off", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/health", nil).Code)
}
