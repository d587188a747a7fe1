package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-standby-api/internal/models"
)

// TimetableRepository persists generated timetable batches, their sessions and
// their unresolved demand.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs a TimetableRepository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateBatch inserts the batch header.
func (r *TimetableRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, batch *models.TimetableBatch) error {
	if batch == nil {
		return fmt.Errorf("timetable batch payload is nil")
	}
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.Status == "" {
		batch.Status = models.TimetableStatusDraft
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO timetable_batches (id, status, seed, session_count, unresolved_count, created_at)
VALUES (:id, :status, :seed, :session_count, :unresolved_count, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, batch); err != nil {
		return fmt.Errorf("create timetable batch: %w", err)
	}
	return nil
}

// InsertSessions stores the sessions of a batch.
func (r *TimetableRepository) InsertSessions(ctx context.Context, exec sqlx.ExtContext, sessions []models.ClassSession) error {
	target := r.exec(exec)
	const query = `INSERT INTO class_sessions (id, batch_id, teacher_id, class_id, subject_id, time_slot_id, kind, is_locked, created_at)
VALUES (:id, :batch_id, :teacher_id, :class_id, :subject_id, :time_slot_id, :kind, :is_locked, :created_at)`
	for i := range sessions {
		if _, err := sqlx.NamedExecContext(ctx, target, query, &sessions[i]); err != nil {
			return fmt.Errorf("insert class session: %w", err)
		}
	}
	return nil
}

// InsertUnresolved stores the demand a batch could not place.
func (r *TimetableRepository) InsertUnresolved(ctx context.Context, exec sqlx.ExtContext, batchID string, demands []models.UnresolvedDemand) error {
	target := r.exec(exec)
	const query = `INSERT INTO timetable_unresolved (batch_id, class_id, subject_id, reason) VALUES ($1, $2, $3, $4)`
	for _, d := range demands {
		if _, err := target.ExecContext(ctx, query, batchID, d.ClassID, d.SubjectID, d.Reason); err != nil {
			return fmt.Errorf("insert unresolved demand: %w", err)
		}
	}
	return nil
}

// ListBatches returns saved batches, newest first.
func (r *TimetableRepository) ListBatches(ctx context.Context) ([]models.TimetableBatch, error) {
	const query = `SELECT id, status, seed, session_count, unresolved_count, created_at FROM timetable_batches ORDER BY created_at DESC`
	var batches []models.TimetableBatch
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, fmt.Errorf("list timetable batches: %w", err)
	}
	return batches, nil
}

// FindBatch fetches a batch header.
func (r *TimetableRepository) FindBatch(ctx context.Context, id string) (*models.TimetableBatch, error) {
	const query = `SELECT id, status, seed, session_count, unresolved_count, created_at FROM timetable_batches WHERE id = $1`
	var batch models.TimetableBatch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListSessionDetails returns a batch's sessions with teacher, class and subject names resolved.
func (r *TimetableRepository) ListSessionDetails(ctx context.Context, batchID string) ([]models.ClassSessionDetail, error) {
	const query = `SELECT s.id, s.batch_id, s.teacher_id, s.class_id, s.subject_id, s.time_slot_id, s.kind, s.is_locked, s.created_at,
	COALESCE(t.name, '') AS teacher_name, COALESCE(c.name, '') AS class_name, COALESCE(sub.name, '') AS subject_name
FROM class_sessions s
LEFT JOIN teachers t ON t.id = s.teacher_id
LEFT JOIN classes c ON c.id = s.class_id
LEFT JOIN subjects sub ON sub.id = s.subject_id
WHERE s.batch_id = $1
ORDER BY c.name ASC, s.time_slot_id ASC`
	var sessions []models.ClassSessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, batchID); err != nil {
		return nil, fmt.Errorf("list class sessions: %w", err)
	}
	return sessions, nil
}

// ListLocked returns locked sessions across all batches; they constrain new generations.
func (r *TimetableRepository) ListLocked(ctx context.Context) ([]models.ClassSession, error) {
	const query = `SELECT id, batch_id, teacher_id, class_id, subject_id, time_slot_id, kind, is_locked, created_at
FROM class_sessions WHERE is_locked = TRUE`
	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("list locked sessions: %w", err)
	}
	return sessions, nil
}

// SetLocked pins or releases one session of a batch.
func (r *TimetableRepository) SetLocked(ctx context.Context, batchID, sessionID string, locked bool) (*models.ClassSession, error) {
	const query = `UPDATE class_sessions SET is_locked = $1 WHERE id = $2 AND batch_id = $3
RETURNING id, batch_id, teacher_id, class_id, subject_id, time_slot_id, kind, is_locked, created_at`
	var session models.ClassSession
	if err := r.db.GetContext(ctx, &session, query, locked, sessionID, batchID); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListUnresolved returns the unplaced demand of a batch.
func (r *TimetableRepository) ListUnresolved(ctx context.Context, batchID string) ([]models.UnresolvedDemand, error) {
	const query = `SELECT class_id, subject_id, reason FROM timetable_unresolved WHERE batch_id = $1`
	var demands []models.UnresolvedDemand
	if err := r.db.SelectContext(ctx, &demands, query, batchID); err != nil {
		return nil, fmt.Errorf("list unresolved demand: %w", err)
	}
	return demands, nil
}

// DeleteBatch removes a batch; sessions and unresolved rows cascade.
func (r *TimetableRepository) DeleteBatch(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM timetable_batches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timetable batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete timetable batch: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
