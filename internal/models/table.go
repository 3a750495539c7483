package models

import (
	"sort"
	"time"

	"github.com/uptrace/bun"
)

// Table is an unordered collection of contracts sharing one dataset tag.
// Tables are treated as immutable once published; helpers return copies.
type Table []Contract

// Clone returns a shallow copy of the table.
func (t Table) Clone() Table {
	if t == nil {
		return Table{}
	}
	out := make(Table, len(t))
	copy(out, t)
	return out
}

// IDs returns the set of contract ids in the table.
func (t Table) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(t))
	for i := range t {
		ids[t[i].ContractID] = struct{}{}
	}
	return ids
}

// HasColumn reports whether name is canonical or present as an attribute of any row.
func (t Table) HasColumn(name string) bool {
	if _, ok := columnKinds[name]; ok {
		return true
	}
	for i := range t {
		if _, ok := t[i].Attributes[name]; ok {
			return true
		}
	}
	return false
}

// Maps renders every row with Contract.ToMap.
func (t Table) Maps() []map[string]any {
	out := make([]map[string]any, 0, len(t))
	for i := range t {
		out = append(out, t[i].ToMap())
	}
	return out
}

// SortedBySigningDate returns a copy ordered by signing date, newest first,
// with undated rows last.
func (t Table) SortedBySigningDate() Table {
	out := t.Clone()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].SigningDate, out[j].SigningDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return out
}

// Snapshot is a persisted, timestamped table for one dataset tag.
type Snapshot struct {
	bun.BaseModel `bun:"table:snapshots,alias:snap"`

	ID         int64       `bun:"id,pk,autoincrement" json:"-"`
	Name       string      `bun:"name,unique,notnull" json:"name"`
	DatasetTag DatasetTag  `bun:"dataset_tag,notnull" json:"dataset_tag"`
	TakenAt    time.Time   `bun:"taken_at,notnull" json:"taken_at"`
	RowCount   int         `bun:"row_count,notnull" json:"row_count"`
	CreatedAt  time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"-"`
	Contracts  []*Contract `bun:"rel:has-many,join:id=snapshot_id" json:"-"`
}
