package models

import (
	"time"

	"github.com/lib/pq"
)

// Subject represents an academic subject and its weekly demand.
type Subject struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	WeeklyHours int    `db:"weekly_hours" json:"weekly_hours"`
	// MaxConsecutive is stored for reporting; the generator does not enforce it.
	MaxConsecutive int `db:"max_consecutive" json:"max_consecutive"`
	// Grades restricts the subject to classes of these grades. Empty means every class.
	Grades    pq.StringArray `db:"grades" json:"grades"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// AppliesTo reports whether the subject is taught in class c.
func (s Subject) AppliesTo(c Class) bool {
	if len(s.Grades) == 0 {
		return true
	}
	for _, g := range s.Grades {
		if g == c.Grade {
			return true
		}
	}
	return false
}
