package models

// Rank is the professional tier driving the quota table.
type Rank string

const (
	RankPractitioner Rank = "PRACTITIONER"
	RankAdvanced     Rank = "ADVANCED"
	RankExpert       Rank = "EXPERT"
)

// Ranks lists the closed set of ranks in ascending seniority.
var Ranks = []Rank{RankPractitioner, RankAdvanced, RankExpert}

// Valid reports whether r belongs to the closed rank set.
func (r Rank) Valid() bool {
	switch r {
	case RankPractitioner, RankAdvanced, RankExpert:
		return true
	}
	return false
}

// Quota is the weekly teaching load and standby capacity of a teacher.
type Quota struct {
	Rank           Rank   `json:"rank"`
	Specialization string `json:"specialization"`
	SpecialEd      bool   `json:"special_education"`
	Weekly         int    `json:"weekly"`
	Waiting        int    `json:"waiting"`
}
