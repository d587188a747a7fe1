package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTimeSlotsCatalog(t *testing.T) {
	slots := DefaultTimeSlots()
	assert.Len(t, slots, 35)

	first := slots[0]
	assert.Equal(t, "SUN-1", first.ID)
	assert.Equal(t, "07:00", first.StartTime)
	assert.Equal(t, "07:45", first.EndTime)

	last := slots[len(slots)-1]
	assert.Equal(t, "THU-7", last.ID)
	assert.Equal(t, "12:00", last.StartTime)
	assert.Equal(t, "12:45", last.EndTime)

	seen := map[string]bool{}
	for _, s := range slots {
		assert.False(t, seen[s.ID], "duplicate slot %s", s.ID)
		seen[s.ID] = true
	}
}

func TestSubjectAppliesTo(t *testing.T) {
	all := Subject{Name: "الرياضيات"}
	assert.True(t, all.AppliesTo(Class{Grade: "1"}))

	upper := Subject{Name: "الفيزياء", Grades: []string{"2", "3"}}
	assert.False(t, upper.AppliesTo(Class{Grade: "1"}))
	assert.True(t, upper.AppliesTo(Class{Grade: "3"}))
}

func TestRankValid(t *testing.T) {
	assert.True(t, RankExpert.Valid())
	assert.False(t, Rank("JUNIOR").Valid())
}
