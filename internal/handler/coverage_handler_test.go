package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-standby-api/internal/dto"
	"github.com/noah-isme/sma-standby-api/internal/middleware"
	"github.com/noah-isme/sma-standby-api/internal/models"
	"github.com/noah-isme/sma-standby-api/internal/service"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
)

type coverageServiceMock struct {
	allocateReq dto.AllocateCoverageRequest
	query       dto.AssignmentQuery
	batch       *models.CoverageBatch
	undoErr     error
}

func (m *coverageServiceMock) Allocate(_ context.Context, req dto.AllocateCoverageRequest) (*models.CoverageBatch, error) {
	m.allocateReq = req
	return m.batch, nil
}

func (m *coverageServiceMock) Undo(_ context.Context, batchID string) (*dto.UndoCoverageResponse, error) {
	if m.undoErr != nil {
		return nil, m.undoErr
	}
	return &dto.UndoCoverageResponse{BatchID: batchID, Removed: 2}, nil
}

func (m *coverageServiceMock) Assignments(_ context.Context, query dto.AssignmentQuery) ([]models.WaitingAssignment, error) {
	m.query = query
	return []models.WaitingAssignment{{ID: "wa-1"}}, nil
}

type notificationServiceMock struct {
	channel      models.Channel
	substituteID string
}

func (m *notificationServiceMock) Preview(_ context.Context, id, substituteID string, channel models.Channel, _ string) (string, error) {
	m.channel = channel
	m.substituteID = substituteID
	return "msg-" + id, nil
}

func (m *notificationServiceMock) Dispatch(_ context.Context, _ string, channel models.Channel) error {
	m.channel = channel
	return nil
}

func (m *notificationServiceMock) Confirm(_ context.Context, id, substituteID string) (*models.WaitingAssignment, error) {
	m.substituteID = substituteID
	return &models.WaitingAssignment{ID: id, IsConfirmedBySubstitute: true}, nil
}

func withClaims(role models.UserRole, userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role})
		c.Next()
	}
}

func coverageRouter(h *CoverageHandler, role models.UserRole, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withClaims(role, userID))
	r.POST("/coverage/allocations", h.Allocate)
	r.DELETE("/coverage/allocations/:batchId", h.Undo)
	r.GET("/coverage/assignments", h.Assignments)
	r.POST("/coverage/assignments/:id/notify", h.Notify)
	r.POST("/coverage/assignments/:id/confirm", h.Confirm)
	r.GET("/coverage/assignments/:id/message", h.Message)
	return r
}

func perform(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCoverageHandlerAllocate(t *testing.T) {
	svc := &coverageServiceMock{batch: &models.CoverageBatch{
		ID:        "b1",
		Uncovered: []models.UncoveredPeriod{{PeriodNumber: 2, ClassName: "1-1", Subject: "رياضيات"}},
	}}
	r := coverageRouter(NewCoverageHandler(svc, &notificationServiceMock{}), models.RoleAdmin, "a1")

	body := []byte(`{"absentTeacherId":"t1","date":"2026-10-19","periods":[{"periodNumber":2,"className":"1-1","subject":"رياضيات"}],"notify":true}`)
	w := perform(r, http.MethodPost, "/coverage/allocations", body)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "t1", svc.allocateReq.AbsentTeacherID)
	assert.True(t, svc.allocateReq.Notify)
	var envelope struct {
		Data models.CoverageBatch   `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "b1", envelope.Data.ID)
	assert.Equal(t, false, envelope.Meta["complete"])

	w = perform(r, http.MethodPost, "/coverage/allocations", []byte(`{"absentTeacherId":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCoverageHandlerUndoConflict(t *testing.T) {
	svc := &coverageServiceMock{undoErr: appErrors.Clone(appErrors.ErrConflict, "only the most recent allocation of the week can be undone")}
	r := coverageRouter(NewCoverageHandler(svc, &notificationServiceMock{}), models.RoleAdmin, "a1")

	w := perform(r, http.MethodDelete, "/coverage/allocations/b1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "CONFLICT")
}

func TestCoverageHandlerTeacherSeesOwnAssignments(t *testing.T) {
	svc := &coverageServiceMock{}
	notifier := &notificationServiceMock{}
	r := coverageRouter(NewCoverageHandler(svc, notifier), models.RoleTeacher, "t7")

	w := perform(r, http.MethodGet, "/coverage/assignments?teacherId=t1&from=2026-10-18", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t7", svc.query.TeacherID)
	assert.Equal(t, "2026-10-18", svc.query.From)

	w = perform(r, http.MethodPost, "/coverage/assignments/wa-1/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t7", notifier.substituteID)
}

func TestCoverageHandlerNotifyAndPreview(t *testing.T) {
	notifier := &notificationServiceMock{}
	r := coverageRouter(NewCoverageHandler(&coverageServiceMock{}, notifier), models.RoleAdmin, "a1")

	w := perform(r, http.MethodPost, "/coverage/assignments/wa-1/notify", []byte(`{"channel":"sms"}`))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.ChannelSMS, notifier.channel)

	w = perform(r, http.MethodPost, "/coverage/assignments/wa-1/notify", []byte(`{"channel":"fax"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodPost, "/coverage/assignments/wa-1/notify", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.Channel(""), notifier.channel)

	w = perform(r, http.MethodGet, "/coverage/assignments/wa-1/message?channel=WhatsApp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ChannelWhatsApp, notifier.channel)
	assert.Contains(t, w.Body.String(), "msg-wa-1")
	assert.Equal(t, "", notifier.substituteID)

	w = perform(r, http.MethodPost, "/coverage/assignments/wa-1/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", notifier.substituteID)
}

type assignmentLookup map[string]models.WaitingAssignment

func (a assignmentLookup) FindByID(_ context.Context, id string) (*models.WaitingAssignment, error) {
	item, ok := a[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (a assignmentLookup) MarkNotified(context.Context, string) error  { return nil }
func (a assignmentLookup) MarkConfirmed(context.Context, string) error { return nil }

func TestCoverageHandlerMessageScopedToSubstitute(t *testing.T) {
	store := assignmentLookup{"wa-1": {
		ID:                    "wa-1",
		AbsentTeacherName:     "خالد",
		SubstituteTeacherID:   "t1",
		SubstituteTeacherName: "أحمد",
		Date:                  time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		PeriodNumber:          3,
		ClassName:             "1-1",
		Subject:               "رياضيات",
	}}
	notifier := service.NewNotificationService(store, nil, nil, nil, nil,
		service.NotificationConfig{SchoolName: "مدرسة النور", DefaultChannel: models.ChannelSMS})

	r := coverageRouter(NewCoverageHandler(&coverageServiceMock{}, notifier), models.RoleTeacher, "t9")
	w := perform(r, http.MethodGet, "/coverage/assignments/wa-1/message", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")
	assert.NotContains(t, w.Body.String(), "أحمد")

	r = coverageRouter(NewCoverageHandler(&coverageServiceMock{}, notifier), models.RoleTeacher, "t1")
	w = perform(r, http.MethodGet, "/coverage/assignments/wa-1/message", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "أحمد")

	r = coverageRouter(NewCoverageHandler(&coverageServiceMock{}, notifier), models.RoleAdmin, "a1")
	w = perform(r, http.MethodGet, "/coverage/assignments/wa-1/message", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
