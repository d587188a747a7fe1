package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-standby-api/internal/models"
)

const waitingAssignmentColumns = `id, batch_id, absent_teacher_id, absent_teacher_name, substitute_teacher_id, substitute_teacher_name,
	date, period_number, class_name, subject, is_notification_sent, is_confirmed_by_substitute, created_at`

// WaitingAssignmentRepository persists standby coverage records.
type WaitingAssignmentRepository struct {
	db *sqlx.DB
}

// NewWaitingAssignmentRepository constructs a WaitingAssignmentRepository.
func NewWaitingAssignmentRepository(db *sqlx.DB) *WaitingAssignmentRepository {
	return &WaitingAssignmentRepository{db: db}
}

func (r *WaitingAssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateBatch inserts the assignments produced by one allocation.
func (r *WaitingAssignmentRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.WaitingAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	target := r.exec(exec)
	query := `INSERT INTO waiting_assignments (` + waitingAssignmentColumns + `)
VALUES (:id, :batch_id, :absent_teacher_id, :absent_teacher_name, :substitute_teacher_id, :substitute_teacher_name,
	:date, :period_number, :class_name, :subject, :is_notification_sent, :is_confirmed_by_substitute, :created_at)`
	for i := range assignments {
		if _, err := sqlx.NamedExecContext(ctx, target, query, &assignments[i]); err != nil {
			return fmt.Errorf("create waiting assignment: %w", err)
		}
	}
	return nil
}

// List returns assignments matching the filter ordered by date and period.
func (r *WaitingAssignmentRepository) List(ctx context.Context, filter models.WaitingAssignmentFilter) ([]models.WaitingAssignment, error) {
	var conditions []string
	var args []interface{}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)))
	}
	if filter.SubstituteTeacherID != "" {
		args = append(args, filter.SubstituteTeacherID)
		conditions = append(conditions, fmt.Sprintf("substitute_teacher_id = $%d", len(args)))
	}
	if filter.BatchID != "" {
		args = append(args, filter.BatchID)
		conditions = append(conditions, fmt.Sprintf("batch_id = $%d", len(args)))
	}

	query := "SELECT " + waitingAssignmentColumns + " FROM waiting_assignments"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date ASC, period_number ASC, created_at ASC"

	var assignments []models.WaitingAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list waiting assignments: %w", err)
	}
	return assignments, nil
}

// FindByID fetches a single assignment.
func (r *WaitingAssignmentRepository) FindByID(ctx context.Context, id string) (*models.WaitingAssignment, error) {
	query := "SELECT " + waitingAssignmentColumns + " FROM waiting_assignments WHERE id = $1"
	var assignment models.WaitingAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// MarkNotified flags the assignment as delivered to the substitute.
func (r *WaitingAssignmentRepository) MarkNotified(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE waiting_assignments SET is_notification_sent = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark assignment notified: %w", err)
	}
	return nil
}

// MarkConfirmed flags the assignment as acknowledged by the substitute.
func (r *WaitingAssignmentRepository) MarkConfirmed(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE waiting_assignments SET is_confirmed_by_substitute = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark assignment confirmed: %w", err)
	}
	return nil
}

// DeleteBatch removes every assignment of an allocation batch.
func (r *WaitingAssignmentRepository) DeleteBatch(ctx context.Context, exec sqlx.ExtContext, batchID string) (int64, error) {
	res, err := r.exec(exec).ExecContext(ctx, `DELETE FROM waiting_assignments WHERE batch_id = $1`, batchID)
	if err != nil {
		return 0, fmt.Errorf("delete waiting assignment batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete waiting assignment batch: %w", err)
	}
	return affected, nil
}
