// Package changes finds contracts that appeared between two snapshots.
package changes

import "github.com/cefbursatil/TransportContractAnalyzer/internal/models"

// DetectNew returns the rows of current whose contract id does not occur in
// previous, in the order they appear in current. With an empty previous
// table every row of current is new.
func DetectNew(current, previous models.Table) models.Table {
	if len(previous) == 0 {
		return current.Clone()
	}

	seen := previous.IDs()
	out := make(models.Table, 0)
	for i := range current {
		if _, ok := seen[current[i].ContractID]; !ok {
			out = append(out, current[i])
		}
	}
	return out
}
