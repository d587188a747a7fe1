package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/sma-standby-api/internal/dto"
	"github.com/noah-isme/sma-standby-api/internal/models"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
)

type memCacheRepo struct {
	data map[string][]byte
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{data: map[string][]byte{}}
}

func (m *memCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

type countingAssignments struct {
	items []models.WaitingAssignment
	calls int
}

func (c *countingAssignments) List(_ context.Context, filter models.WaitingAssignmentFilter) ([]models.WaitingAssignment, error) {
	c.calls++
	var out []models.WaitingAssignment
	for _, a := range c.items {
		if filter.From != nil && a.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && a.Date.After(*filter.To) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func reportAssignments() *countingAssignments {
	return &countingAssignments{items: []models.WaitingAssignment{
		{ID: "1", SubstituteTeacherID: "t1", SubstituteTeacherName: "أحمد", Date: allocDate, IsNotificationSent: true},
		{ID: "2", SubstituteTeacherID: "t1", SubstituteTeacherName: "أحمد", Date: allocDate.AddDate(0, 0, 1), IsConfirmedBySubstitute: true},
		{ID: "3", SubstituteTeacherID: "t2", SubstituteTeacherName: "سارة", Date: allocDate.AddDate(0, 0, 7)},
		{ID: "4", SubstituteTeacherID: "t2", SubstituteTeacherName: "سارة", Date: allocDate.AddDate(0, 2, 0)},
	}}
}

func TestReportServiceWaitingSummaryCaches(t *testing.T) {
	assignments := reportAssignments()
	cacheRepo := newMemCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewReportService(assignments, newFakeTimetableStore(), cache, nil, nil, ReportConfig{})
	ctx := context.Background()
	query := dto.WaitingReportQuery{From: "2026-10-18", To: "2026-10-31"}

	summaries, err := svc.WaitingSummary(ctx, query)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "2026-W43", summaries[0].Period)
	assert.Equal(t, 2, summaries[0].Assignments)
	assert.Equal(t, 1, summaries[0].Notified)
	assert.Equal(t, 1, summaries[0].Confirmed)
	assert.Equal(t, "2026-W44", summaries[1].Period)

	again, err := svc.WaitingSummary(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, summaries, again)
	assert.Equal(t, 1, assignments.calls)

	cache.Invalidate(ctx, "reports")
	_, err = svc.WaitingSummary(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 2, assignments.calls)
}

func TestReportServiceWaitingSummaryMonthly(t *testing.T) {
	svc := NewReportService(reportAssignments(), newFakeTimetableStore(), nil, nil, nil, ReportConfig{})

	summaries, err := svc.WaitingSummary(context.Background(), dto.WaitingReportQuery{From: "2026-10-01", To: "2026-12-31", Granularity: "month"})
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "2026-10", summaries[0].Period)
	assert.Equal(t, "2026-12", summaries[2].Period)
}

func TestReportServiceWaitingSummaryRejectsWindow(t *testing.T) {
	svc := NewReportService(reportAssignments(), newFakeTimetableStore(), nil, nil, nil, ReportConfig{})

	_, err := svc.WaitingSummary(context.Background(), dto.WaitingReportQuery{From: "2026-10-31", To: "2026-10-01"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.WaitingSummary(context.Background(), dto.WaitingReportQuery{From: "2026-10-01"})
	require.Error(t, err)
}

func TestReportServiceExportWaitingFormats(t *testing.T) {
	svc := NewReportService(reportAssignments(), newFakeTimetableStore(), nil, nil, nil, ReportConfig{RightToLeft: true})
	ctx := context.Background()

	csvFile, err := svc.Export(ctx, dto.ExportQuery{Kind: "waiting", Format: "csv", From: "2026-10-18", To: "2026-10-31"})
	require.NoError(t, err)
	assert.Equal(t, "waiting_week_2026-10-18_2026-10-31.csv", csvFile.Filename)
	assert.Contains(t, csvFile.ContentType, "text/csv")
	assert.Contains(t, string(csvFile.Content), "2026-W43,أحمد,2,1,1")

	xlsxFile, err := svc.Export(ctx, dto.ExportQuery{Kind: "waiting", Format: "xlsx", From: "2026-10-18", To: "2026-10-31"})
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(xlsxFile.Content))
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 1)

	pdfFile, err := svc.Export(ctx, dto.ExportQuery{Kind: "waiting", Format: "pdf", From: "2026-10-18", To: "2026-10-31"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfFile.Content, []byte("%PDF")))

	_, err = svc.Export(ctx, dto.ExportQuery{Kind: "waiting", Format: "csv"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceExportTimetable(t *testing.T) {
	store := newFakeTimetableStore()
	store.batches["b1"] = models.TimetableBatch{ID: "b1", CreatedAt: allocDate}
	store.sessions["b1"] = []models.ClassSession{
		{ID: "s2", BatchID: "b1", TimeSlotID: "MON-1", Kind: models.SessionBasic},
		{ID: "s1", BatchID: "b1", TimeSlotID: "SUN-2", Kind: models.SessionBasic},
	}
	svc := NewReportService(reportAssignments(), store, nil, nil, nil, ReportConfig{})
	ctx := context.Background()

	file, err := svc.Export(ctx, dto.ExportQuery{Kind: "timetable", Format: "csv", BatchID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, "timetable_b1.csv", file.Filename)
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(file.Content), "\ufeff")), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Class,Day,Period,Time,Subject,Teacher,Kind", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], ",SUNDAY,2,07:50-08:35"))

	_, err = svc.Export(ctx, dto.ExportQuery{Kind: "timetable", Format: "csv"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Export(ctx, dto.ExportQuery{Kind: "timetable", Format: "pdf", BatchID: "missing"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
