package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-standby-api/internal/dto"
	"github.com/noah-isme/sma-standby-api/internal/models"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
)

type fakeTimetableStore struct {
	batches    map[string]models.TimetableBatch
	sessions   map[string][]models.ClassSession
	unresolved map[string][]models.UnresolvedDemand
	locked     []models.ClassSession
	insertErr  error
}

func newFakeTimetableStore() *fakeTimetableStore {
	return &fakeTimetableStore{
		batches:    map[string]models.TimetableBatch{},
		sessions:   map[string][]models.ClassSession{},
		unresolved: map[string][]models.UnresolvedDemand{},
	}
}

func (f *fakeTimetableStore) CreateBatch(_ context.Context, _ sqlx.ExtContext, batch *models.TimetableBatch) error {
	f.batches[batch.ID] = *batch
	return nil
}

func (f *fakeTimetableStore) InsertSessions(_ context.Context, _ sqlx.ExtContext, sessions []models.ClassSession) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, s := range sessions {
		f.sessions[s.BatchID] = append(f.sessions[s.BatchID], s)
	}
	return nil
}

func (f *fakeTimetableStore) InsertUnresolved(_ context.Context, _ sqlx.ExtContext, batchID string, demands []models.UnresolvedDemand) error {
	f.unresolved[batchID] = append(f.unresolved[batchID], demands...)
	return nil
}

func (f *fakeTimetableStore) ListBatches(context.Context) ([]models.TimetableBatch, error) {
	out := make([]models.TimetableBatch, 0, len(f.batches))
	for _, b := range f.batches {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeTimetableStore) FindBatch(_ context.Context, id string) (*models.TimetableBatch, error) {
	b, ok := f.batches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &b, nil
}

func (f *fakeTimetableStore) ListSessionDetails(_ context.Context, batchID string) ([]models.ClassSessionDetail, error) {
	out := make([]models.ClassSessionDetail, 0)
	for _, s := range f.sessions[batchID] {
		out = append(out, models.ClassSessionDetail{ClassSession: s})
	}
	return out, nil
}

func (f *fakeTimetableStore) ListLocked(context.Context) ([]models.ClassSession, error) {
	return f.locked, nil
}

func (f *fakeTimetableStore) SetLocked(_ context.Context, batchID, sessionID string, locked bool) (*models.ClassSession, error) {
	sessions := f.sessions[batchID]
	for i := range sessions {
		if sessions[i].ID != sessionID {
			continue
		}
		sessions[i].IsLocked = locked
		kept := f.locked[:0]
		for _, l := range f.locked {
			if l.ID != sessionID {
				kept = append(kept, l)
			}
		}
		f.locked = kept
		if locked {
			f.locked = append(f.locked, sessions[i])
		}
		session := sessions[i]
		return &session, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTimetableStore) ListUnresolved(_ context.Context, batchID string) ([]models.UnresolvedDemand, error) {
	return f.unresolved[batchID], nil
}

func (f *fakeTimetableStore) DeleteBatch(_ context.Context, id string) error {
	if _, ok := f.batches[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.batches, id)
	delete(f.sessions, id)
	delete(f.unresolved, id)
	return nil
}

type staticClasses []models.Class

func (s staticClasses) List(context.Context) ([]models.Class, error) { return s, nil }

type staticSubjects []models.Subject

func (s staticSubjects) List(context.Context) ([]models.Subject, error) { return s, nil }

type staticTeachers []models.Teacher

func (s staticTeachers) ListActive(context.Context) ([]models.Teacher, error) { return s, nil }

func newTimetableFixture(t *testing.T) (*TimetableService, *fakeTimetableStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := newFakeTimetableStore()
	classes := staticClasses{{ID: "c1", Name: "1-1", Grade: "1"}, {ID: "c2", Name: "1-2", Grade: "1"}}
	subjects := staticSubjects{
		{ID: "math", Name: "رياضيات", WeeklyHours: 4},
		{ID: "sci", Name: "علوم", WeeklyHours: 2},
	}
	teachers := staticTeachers{
		{ID: "t1", Name: "T1", Subjects: []string{"رياضيات"}, Active: true},
		{ID: "t2", Name: "T2", Subjects: []string{"علوم"}, Active: true},
	}
	svc := NewTimetableService(store, classes, subjects, teachers, sqlx.NewDb(db, "sqlmock"), nil, nil, nil, TimetableConfig{})
	return svc, store, mock
}

func int64Ptr(v int64) *int64 { return &v }

func TestTimetableServiceGenerateIsReproducibleBySeed(t *testing.T) {
	svc, _, _ := newTimetableFixture(t)
	ctx := context.Background()

	first, err := svc.Generate(ctx, dto.GenerateTimetableRequest{Seed: int64Ptr(7)})
	require.NoError(t, err)
	second, err := svc.Generate(ctx, dto.GenerateTimetableRequest{Seed: int64Ptr(7)})
	require.NoError(t, err)

	assert.Equal(t, int64(7), first.Seed)
	assert.NotEqual(t, first.ProposalID, second.ProposalID)
	require.Len(t, first.Sessions, 12)
	require.Len(t, second.Sessions, 12)
	for i := range first.Sessions {
		assert.Equal(t, first.Sessions[i].TimeSlotID, second.Sessions[i].TimeSlotID)
		assert.Equal(t, first.ProposalID, first.Sessions[i].BatchID)
	}
	assert.Empty(t, first.Unresolved)
}

func TestTimetableServiceGenerateSelection(t *testing.T) {
	svc, _, _ := newTimetableFixture(t)
	ctx := context.Background()

	res, err := svc.Generate(ctx, dto.GenerateTimetableRequest{ClassIDs: []string{"c2"}, SubjectIDs: []string{"sci"}, Seed: int64Ptr(1)})
	require.NoError(t, err)
	require.Len(t, res.Sessions, 2)
	for _, s := range res.Sessions {
		assert.Equal(t, "c2", s.ClassID)
		assert.Equal(t, "sci", s.SubjectID)
	}

	_, err = svc.Generate(ctx, dto.GenerateTimetableRequest{ClassIDs: []string{"missing"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Generate(ctx, dto.GenerateTimetableRequest{MaxAttempts: -1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceGenerateRespectsLockedSessions(t *testing.T) {
	svc, store, _ := newTimetableFixture(t)
	store.locked = []models.ClassSession{{ID: "l1", TeacherID: "t1", ClassID: "c1", SubjectID: "math", TimeSlotID: "SUN-1", IsLocked: true}}

	res, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: int64Ptr(3)})
	require.NoError(t, err)
	for _, s := range res.Sessions {
		if s.TimeSlotID == "SUN-1" {
			assert.NotEqual(t, "t1", s.TeacherID)
			assert.NotEqual(t, "c1", s.ClassID)
		}
	}
}

func TestTimetableServiceSaveAndLoad(t *testing.T) {
	svc, store, mock := newTimetableFixture(t)
	ctx := context.Background()

	proposal, err := svc.Generate(ctx, dto.GenerateTimetableRequest{Seed: int64Ptr(5)})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	batch, err := svc.Save(ctx, dto.SaveTimetableRequest{ProposalID: proposal.ProposalID})
	require.NoError(t, err)
	assert.Equal(t, proposal.ProposalID, batch.ID)
	assert.Equal(t, int64(5), batch.Seed)
	assert.Equal(t, len(proposal.Sessions), batch.SessionCount)
	assert.NoError(t, mock.ExpectationsWereMet())

	loaded, err := svc.Sessions(ctx, batch.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Sessions, len(proposal.Sessions))
	assert.Len(t, loaded.Slots, models.PeriodsPerDay*len(models.SchoolDays))

	_, err = svc.Save(ctx, dto.SaveTimetableRequest{ProposalID: proposal.ProposalID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Discard(ctx, batch.ID))
	assert.Empty(t, store.batches)
	err = svc.Discard(ctx, batch.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceSaveRollsBack(t *testing.T) {
	svc, store, mock := newTimetableFixture(t)
	ctx := context.Background()
	store.insertErr = errors.New("boom")

	proposal, err := svc.Generate(ctx, dto.GenerateTimetableRequest{Seed: int64Ptr(5)})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Save(ctx, dto.SaveTimetableRequest{ProposalID: proposal.ProposalID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = svc.Sessions(ctx, "unknown")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceLockSessionConstrainsGeneration(t *testing.T) {
	svc, store, mock := newTimetableFixture(t)
	ctx := context.Background()

	proposal, err := svc.Generate(ctx, dto.GenerateTimetableRequest{Seed: int64Ptr(9)})
	require.NoError(t, err)
	require.NotEmpty(t, proposal.Sessions)

	mock.ExpectBegin()
	mock.ExpectCommit()
	batch, err := svc.Save(ctx, dto.SaveTimetableRequest{ProposalID: proposal.ProposalID})
	require.NoError(t, err)

	pinned := proposal.Sessions[0]
	locked := true
	session, err := svc.LockSession(ctx, batch.ID, pinned.ID, dto.LockSessionRequest{Locked: &locked})
	require.NoError(t, err)
	assert.True(t, session.IsLocked)
	require.Len(t, store.locked, 1)

	next, err := svc.Generate(ctx, dto.GenerateTimetableRequest{Seed: int64Ptr(9)})
	require.NoError(t, err)
	for _, s := range next.Sessions {
		if s.TimeSlotID == pinned.TimeSlotID {
			assert.NotEqual(t, pinned.TeacherID, s.TeacherID)
			assert.NotEqual(t, pinned.ClassID, s.ClassID)
		}
	}

	released := false
	_, err = svc.LockSession(ctx, batch.ID, pinned.ID, dto.LockSessionRequest{Locked: &released})
	require.NoError(t, err)
	assert.Empty(t, store.locked)

	_, err = svc.LockSession(ctx, batch.ID, "ghost", dto.LockSessionRequest{Locked: &locked})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.LockSession(ctx, batch.ID, pinned.ID, dto.LockSessionRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
