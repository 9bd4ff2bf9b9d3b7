package accountability

import (
	"sort"
	"time"

	"github.com/bekzatkhan/supply-accountability/internal/model"
)

// NomenclatureCount is the per-nomenclature row of a session summary.
type NomenclatureCount struct {
	Name         string `json:"name"`
	Total        int    `json:"total"`
	AccountedFor int    `json:"accounted_for"`
}

// Summary is the completion report of a session.
type Summary struct {
	PerNomenclature []NomenclatureCount `json:"per_nomenclature"`
	Total           int                 `json:"total"`
	AccountedFor    int                 `json:"accounted_for"`
	PercentComplete float64             `json:"percent_complete"`
	CompletedAt     time.Time           `json:"completed_at"`
}

// Summarize reduces the final item snapshot of a session into a
// Summary. It is a pure function of its inputs. Grouping is by
// nomenclature display name, not by equipment-master identity, so two
// distinct master records sharing a display name are merged into one
// row. Rows are sorted by name for stable output.
func Summarize(items []model.AccountabilityItem, completedAt time.Time) Summary {
	type counts struct{ total, accounted int }
	byName := make(map[string]*counts)

	s := Summary{CompletedAt: completedAt}
	for _, it := range items {
		c, ok := byName[it.Nomenclature]
		if !ok {
			c = &counts{}
			byName[it.Nomenclature] = c
		}
		c.total++
		s.Total++
		if it.Status == model.ItemStatusAccountedFor {
			c.accounted++
			s.AccountedFor++
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := byName[name]
		s.PerNomenclature = append(s.PerNomenclature, NomenclatureCount{
			Name:         name,
			Total:        c.total,
			AccountedFor: c.accounted,
		})
	}

	if s.Total > 0 {
		s.PercentComplete = float64(s.AccountedFor) / float64(s.Total) * 100
	}
	return s
}
