package service

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-standby-api/internal/models"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
)

const (
	// DefaultMaxAttempts bounds the random slot search for one repetition.
	DefaultMaxAttempts = 50
	// maxWeeklyRepetitions caps a subject's sessions per class to one per school day.
	maxWeeklyRepetitions = 5
)

// TimetableInput is the master data for one generation run.
type TimetableInput struct {
	BatchID  string
	Classes  []models.Class
	Subjects []models.Subject
	Teachers []models.Teacher
	// Slots defaults to models.DefaultTimeSlots.
	Slots []models.TimeSlot
	// Locked sessions already occupy their slots and take part in conflict checks.
	Locked []models.ClassSession
}

// GeneratorOptions tunes the randomized slot search.
type GeneratorOptions struct {
	Rand        *rand.Rand
	MaxAttempts int
	NewID       func() string
	Now         time.Time
}

// TimetableResult always carries both the placed sessions and the demand that
// could not be placed.
type TimetableResult struct {
	Sessions   []models.ClassSession     `json:"sessions"`
	Unresolved []models.UnresolvedDemand `json:"unresolved"`
	Attempts   int                       `json:"attempts"`
}

// ValidateTimetableInput rejects malformed master data before generation starts.
func ValidateTimetableInput(input TimetableInput) error {
	classes := make(map[string]struct{}, len(input.Classes))
	for _, c := range input.Classes {
		if c.ID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "class id is required")
		}
		if _, dup := classes[c.ID]; dup {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate class %q", c.ID))
		}
		classes[c.ID] = struct{}{}
	}
	subjects := make(map[string]struct{}, len(input.Subjects))
	for _, s := range input.Subjects {
		if s.WeeklyHours < 0 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("subject %q has negative weekly hours", s.ID))
		}
		if _, dup := subjects[s.ID]; dup {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate subject %q", s.ID))
		}
		subjects[s.ID] = struct{}{}
	}
	return nil
}

type slotOccupancy struct {
	teachers map[[2]string]struct{}
	classes  map[[2]string]struct{}
}

func newSlotOccupancy(locked []models.ClassSession) *slotOccupancy {
	o := &slotOccupancy{
		teachers: make(map[[2]string]struct{}),
		classes:  make(map[[2]string]struct{}),
	}
	for _, s := range locked {
		o.take(s.TeacherID, s.ClassID, s.TimeSlotID)
	}
	return o
}

func (o *slotOccupancy) conflicts(teacherID, classID, slotID string) bool {
	if _, busy := o.teachers[[2]string{teacherID, slotID}]; busy {
		return true
	}
	_, busy := o.classes[[2]string{classID, slotID}]
	return busy
}

func (o *slotOccupancy) take(teacherID, classID, slotID string) {
	o.teachers[[2]string{teacherID, slotID}] = struct{}{}
	o.classes[[2]string{classID, slotID}] = struct{}{}
}

// GenerateTimetable places every (class, applicable subject, repetition) on a
// random conflict-free slot. The first teacher whose subjects contain the
// subject name teaches it. A repetition whose search exhausts MaxAttempts is
// reported as unresolved and generation continues.
func GenerateTimetable(input TimetableInput, opts GeneratorOptions) TimetableResult {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	slots := input.Slots
	if len(slots) == 0 {
		slots = models.DefaultTimeSlots()
	}

	occupied := newSlotOccupancy(input.Locked)
	result := TimetableResult{
		Sessions:   []models.ClassSession{},
		Unresolved: []models.UnresolvedDemand{},
	}

	for _, class := range input.Classes {
		for _, subject := range input.Subjects {
			if !subject.AppliesTo(class) {
				continue
			}
			reps := subject.WeeklyHours
			if reps > maxWeeklyRepetitions {
				reps = maxWeeklyRepetitions
			}
			teacher, ok := qualifiedTeacher(input.Teachers, subject.Name)

			for rep := 0; rep < reps; rep++ {
				if !ok {
					result.Unresolved = append(result.Unresolved, models.UnresolvedDemand{
						ClassID: class.ID, SubjectID: subject.ID, Reason: models.ReasonNoTeacher,
					})
					continue
				}

				placed := false
				for attempt := 0; attempt < maxAttempts; attempt++ {
					result.Attempts++
					slot := slots[rng.Intn(len(slots))]
					if occupied.conflicts(teacher.ID, class.ID, slot.ID) {
						continue
					}
					occupied.take(teacher.ID, class.ID, slot.ID)
					result.Sessions = append(result.Sessions, models.ClassSession{
						ID:         newID(),
						BatchID:    input.BatchID,
						TeacherID:  teacher.ID,
						ClassID:    class.ID,
						SubjectID:  subject.ID,
						TimeSlotID: slot.ID,
						Kind:       models.SessionBasic,
						CreatedAt:  now,
					})
					placed = true
					break
				}
				if !placed {
					result.Unresolved = append(result.Unresolved, models.UnresolvedDemand{
						ClassID: class.ID, SubjectID: subject.ID, Reason: models.ReasonNoSlot,
					})
				}
			}
		}
	}
	return result
}

func qualifiedTeacher(teachers []models.Teacher, subjectName string) (models.Teacher, bool) {
	for _, t := range teachers {
		if t.Teaches(subjectName) {
			return t, true
		}
	}
	return models.Teacher{}, false
}
