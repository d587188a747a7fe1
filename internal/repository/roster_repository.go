package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-standby-api/internal/models"
)

// RosterRepository persists per-week teacher counters.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs a RosterRepository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

func (r *RosterRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// SaveCounters upserts counter rows for a week.
func (r *RosterRepository) SaveCounters(ctx context.Context, exec sqlx.ExtContext, counters []models.TeacherWeekCounter) error {
	if len(counters) == 0 {
		return nil
	}
	target := r.exec(exec)

	const query = `
INSERT INTO teacher_week_counters (week_start, teacher_id, weekly_quota, waiting_quota, current_weekly_load, remaining_waiting_periods, is_available)
VALUES (:week_start, :teacher_id, :weekly_quota, :waiting_quota, :current_weekly_load, :remaining_waiting_periods, :is_available)
ON CONFLICT (week_start, teacher_id) DO UPDATE
SET weekly_quota = EXCLUDED.weekly_quota,
    waiting_quota = EXCLUDED.waiting_quota,
    current_weekly_load = EXCLUDED.current_weekly_load,
    remaining_waiting_periods = EXCLUDED.remaining_waiting_periods,
    is_available = EXCLUDED.is_available`

	for i := range counters {
		if _, err := sqlx.NamedExecContext(ctx, target, query, &counters[i]); err != nil {
			return fmt.Errorf("save week counter %s: %w", counters[i].TeacherID, err)
		}
	}
	return nil
}

// ListWeek returns the teachers of a week joined with their counters, in roster order.
func (r *RosterRepository) ListWeek(ctx context.Context, weekStart time.Time) ([]models.Teacher, error) {
	const query = `SELECT t.id, t.name, t.phone, t.rank, t.specialization, t.subjects, c.weekly_quota, c.waiting_quota, t.active,
	c.current_weekly_load, c.remaining_waiting_periods, c.is_available, t.created_at, t.updated_at
FROM teacher_week_counters c
JOIN teachers t ON t.id = c.teacher_id
WHERE c.week_start = $1
ORDER BY t.created_at ASC, t.id ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, weekStart); err != nil {
		return nil, fmt.Errorf("list week roster: %w", err)
	}
	return teachers, nil
}

// DeleteWeek drops the counters of a week so it can be seeded again.
func (r *RosterRepository) DeleteWeek(ctx context.Context, exec sqlx.ExtContext, weekStart time.Time) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM teacher_week_counters WHERE week_start = $1`, weekStart); err != nil {
		return fmt.Errorf("delete week roster: %w", err)
	}
	return nil
}
