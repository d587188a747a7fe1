package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-standby-api/internal/models"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
)

// DefaultWaitingQuota is the weekly standby capacity for every rank.
const DefaultWaitingQuota = 5

// specialEducationKeywords mark a specialization as special education.
var specialEducationKeywords = []string{
	"intellectual disability",
	"learning difficulties",
	"learning disabilities",
	"autism",
	"disability",
	"special education",
	"تربية فكرية",
	"صعوبات تعلم",
	"توحد",
	"تربية خاصة",
	"إعاقة",
	"اعاقة",
}

type rankQuota struct {
	general int
	special int
	waiting int
}

// RankTable maps (rank, specialization) to weekly teaching and standby quotas.
type RankTable struct {
	rows     map[models.Rank]rankQuota
	keywords []string
}

// NewRankTable returns the standard quota table.
func NewRankTable() RankTable {
	return RankTable{
		rows: map[models.Rank]rankQuota{
			models.RankPractitioner: {general: 24, special: 18, waiting: DefaultWaitingQuota},
			models.RankAdvanced:     {general: 22, special: 16, waiting: DefaultWaitingQuota},
			models.RankExpert:       {general: 18, special: 14, waiting: DefaultWaitingQuota},
		},
		keywords: specialEducationKeywords,
	}
}

// Quota resolves the quotas for rank and specialization. A rank outside the
// closed set is a caller bug and yields ErrConfiguration.
func (t RankTable) Quota(rank models.Rank, specialization string) (models.Quota, error) {
	row, ok := t.rows[rank]
	if !ok {
		return models.Quota{}, appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("unknown rank %q", rank))
	}
	special := t.IsSpecialEducation(specialization)
	weekly := row.general
	if special {
		weekly = row.special
	}
	return models.Quota{
		Rank:           rank,
		Specialization: specialization,
		SpecialEd:      special,
		Weekly:         weekly,
		Waiting:        row.waiting,
	}, nil
}

// IsSpecialEducation reports whether specialization contains a special-education keyword.
func (t RankTable) IsSpecialEducation(specialization string) bool {
	normalized := strings.ToLower(strings.TrimSpace(specialization))
	if normalized == "" {
		return false
	}
	for _, kw := range t.keywords {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// Table lists the general and special quotas of every rank in seniority order.
func (t RankTable) Table() []models.Quota {
	out := make([]models.Quota, 0, len(models.Ranks)*2)
	for _, rank := range models.Ranks {
		row, ok := t.rows[rank]
		if !ok {
			continue
		}
		out = append(out,
			models.Quota{Rank: rank, Weekly: row.general, Waiting: row.waiting},
			models.Quota{Rank: rank, SpecialEd: true, Weekly: row.special, Waiting: row.waiting},
		)
	}
	return out
}
