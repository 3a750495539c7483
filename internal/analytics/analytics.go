// Package analytics computes dashboard aggregates over a contract table.
package analytics

import (
	"sort"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

// TopDepartments caps the department breakdown.
const TopDepartments = 10

// Count is one bucket of a categorical breakdown.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Month aggregates contracts signed in one calendar month.
type Month struct {
	Month string  `json:"month"`
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// Summary is the aggregate view of a table.
type Summary struct {
	TotalContracts  int     `json:"total_contracts"`
	TotalValue      float64 `json:"total_value"`
	AverageDuration float64 `json:"avg_duration"`
	ByDepartment    []Count `json:"contracts_by_department"`
	ByType          []Count `json:"contracts_by_type"`
	Monthly         []Month `json:"monthly_contracts"`
}

// Summarize aggregates table. Rows without a duration are left out of the
// average and rows without a signing date are left out of the monthly series.
func Summarize(table models.Table) Summary {
	s := Summary{
		TotalContracts: len(table),
		ByDepartment:   []Count{},
		ByType:         []Count{},
		Monthly:        []Month{},
	}

	departments := make(map[string]int)
	types := make(map[string]int)
	months := make(map[string]*Month)
	var durationSum, durationRows int

	for i := range table {
		c := &table[i]
		s.TotalValue += c.ContractValue
		departments[c.Department]++
		types[c.ContractType]++

		if c.DurationDays != nil {
			durationSum += *c.DurationDays
			durationRows++
		}
		if c.SigningDate != nil {
			key := c.SigningDate.Format("2006-01")
			m, ok := months[key]
			if !ok {
				m = &Month{Month: key}
				months[key] = m
			}
			m.Count++
			m.Value += c.ContractValue
		}
	}

	if durationRows > 0 {
		s.AverageDuration = float64(durationSum) / float64(durationRows)
	}
	s.ByDepartment = ranked(departments, TopDepartments)
	s.ByType = ranked(types, 0)

	for _, m := range months {
		s.Monthly = append(s.Monthly, *m)
	}
	sort.Slice(s.Monthly, func(i, j int) bool {
		return s.Monthly[i].Month < s.Monthly[j].Month
	})
	return s
}

// ranked orders buckets by count descending then name, keeping at most limit
// entries when limit > 0.
func ranked(counts map[string]int, limit int) []Count {
	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
