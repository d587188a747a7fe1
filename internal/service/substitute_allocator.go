package service

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-standby-api/internal/models"
)

// AllocationInput describes one absence event handed to the allocator.
type AllocationInput struct {
	BatchID           string
	AbsentTeacherID   string
	AbsentTeacherName string
	Date              time.Time
	Periods           []models.UncoveredPeriod
	// NewID generates assignment ids. Defaults to uuid.NewString.
	NewID func() string
	Now   time.Time
}

// AllocationResult carries the emitted assignments and the periods left uncovered
// once the eligible pool ran dry.
type AllocationResult struct {
	Assignments []models.WaitingAssignment
	Uncovered   []models.UncoveredPeriod
}

// AllocateSubstitutes distributes the uncovered periods round-robin over the
// eligible teachers, least loaded first. Counters on roster are mutated in
// place; snapshot the roster beforehand to be able to undo.
func AllocateSubstitutes(input AllocationInput, roster *RosterState) AllocationResult {
	newID := input.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	pool := eligiblePool(roster)
	ring := newSubstituteRing(len(pool))

	result := AllocationResult{Assignments: make([]models.WaitingAssignment, 0, len(input.Periods))}
	for i, period := range input.Periods {
		if ring.empty() {
			result.Uncovered = append(result.Uncovered, input.Periods[i:]...)
			break
		}

		cur := ring.cursor
		teacher := pool[cur]
		teacher.CurrentWeeklyLoad++
		teacher.RemainingWaitingPeriods--

		result.Assignments = append(result.Assignments, models.WaitingAssignment{
			ID:                    newID(),
			BatchID:               input.BatchID,
			AbsentTeacherID:       input.AbsentTeacherID,
			AbsentTeacherName:     input.AbsentTeacherName,
			SubstituteTeacherID:   teacher.ID,
			SubstituteTeacherName: teacher.Name,
			Date:                  input.Date,
			PeriodNumber:          period.PeriodNumber,
			ClassName:             period.ClassName,
			Subject:               period.Subject,
			CreatedAt:             now,
		})

		if teacher.RemainingWaitingPeriods <= 0 {
			ring.remove(cur)
		} else {
			ring.advance()
		}
	}
	return result
}

// eligiblePool returns pointers to available teachers with standby capacity,
// ordered by weekly load ascending then remaining capacity descending. Full
// ties keep roster order.
func eligiblePool(roster *RosterState) []*models.Teacher {
	if roster == nil {
		return nil
	}
	pool := make([]*models.Teacher, 0, len(roster.Teachers))
	for i := range roster.Teachers {
		t := &roster.Teachers[i]
		if t.IsAvailable && t.RemainingWaitingPeriods > 0 {
			pool = append(pool, t)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].CurrentWeeklyLoad != pool[j].CurrentWeeklyLoad {
			return pool[i].CurrentWeeklyLoad < pool[j].CurrentWeeklyLoad
		}
		return pool[i].RemainingWaitingPeriods > pool[j].RemainingWaitingPeriods
	})
	return pool
}

// substituteRing is a circular doubly linked list over fixed pool indices.
// Removing the cursor moves it to its successor, so no member is skipped or
// visited twice while the pool shrinks.
type substituteRing struct {
	next   []int
	prev   []int
	cursor int
	size   int
}

func newSubstituteRing(n int) *substituteRing {
	r := &substituteRing{next: make([]int, n), prev: make([]int, n), size: n}
	for i := 0; i < n; i++ {
		r.next[i] = (i + 1) % n
		r.prev[i] = (i - 1 + n) % n
	}
	return r
}

func (r *substituteRing) empty() bool { return r.size == 0 }

func (r *substituteRing) advance() {
	r.cursor = r.next[r.cursor]
}

func (r *substituteRing) remove(i int) {
	r.size--
	if r.size == 0 {
		return
	}
	n, p := r.next[i], r.prev[i]
	r.next[p] = n
	r.prev[n] = p
	if r.cursor == i {
		r.cursor = n
	}
}
