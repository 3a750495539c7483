package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// Contract is one normalized SECOP record.
type Contract struct {
	bun.BaseModel `bun:"table:snapshot_contracts,alias:sc"`

	ID         int64 `bun:"id,pk,autoincrement" json:"-"`
	SnapshotID int64 `bun:"snapshot_id,notnull" json:"-"`

	ContractID      string     `bun:"contract_id,notnull" json:"contract_id"`
	DatasetTag      DatasetTag `bun:"dataset_tag,notnull" json:"dataset_tag"`
	EntityName      string     `bun:"entity_name,notnull" json:"entity_name"`
	Department      string     `bun:"department,notnull" json:"department"`
	ContractType    string     `bun:"contract_type,notnull" json:"contract_type"`
	Description     string     `bun:"description,notnull" json:"description"`
	Status          string     `bun:"status,notnull" json:"status"`
	CategoryCode    string     `bun:"category_code,notnull" json:"category_code"`
	Phase           string     `bun:"phase,notnull" json:"phase"`
	ProcessURL      string     `bun:"process_url,notnull" json:"process_url"`
	ContractValue   float64    `bun:"contract_value,notnull" json:"contract_value"`
	SigningDate     *time.Time `bun:"signing_date" json:"signing_date,omitempty"`
	PublicationDate *time.Time `bun:"publication_date" json:"publication_date,omitempty"`
	DurationDays    *int       `bun:"duration_days" json:"duration_days,omitempty"`
	AddedDays       *int       `bun:"added_days" json:"added_days,omitempty"`
	Attributes      StringMap  `bun:"attributes,type:json" json:"attributes,omitempty"`
}

// Validate performs basic sanity checks before persisting.
func (c *Contract) Validate() error {
	if c.ContractID == "" {
		return errors.New("contract_id is required")
	}
	if !c.DatasetTag.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownDataset, c.DatasetTag)
	}
	if c.ContractValue < 0 || math.IsNaN(c.ContractValue) || math.IsInf(c.ContractValue, 0) {
		return fmt.Errorf("contract_value must be a finite non-negative number, got %v", c.ContractValue)
	}
	return nil
}

// ColumnKind describes how a column is compared by filters.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindNumber
	KindDate
)

// Canonical column names.
const (
	ColContractID      = "contract_id"
	ColDatasetTag      = "dataset_tag"
	ColEntityName      = "entity_name"
	ColDepartment      = "department"
	ColContractType    = "contract_type"
	ColDescription     = "description"
	ColStatus          = "status"
	ColCategoryCode    = "category_code"
	ColPhase           = "phase"
	ColProcessURL      = "process_url"
	ColContractValue   = "contract_value"
	ColSigningDate     = "signing_date"
	ColPublicationDate = "publication_date"
	ColDurationDays    = "duration_days"
	ColAddedDays       = "added_days"
)

var columnKinds = map[string]ColumnKind{
	ColContractID:      KindText,
	ColDatasetTag:      KindText,
	ColEntityName:      KindText,
	ColDepartment:      KindText,
	ColContractType:    KindText,
	ColDescription:     KindText,
	ColStatus:          KindText,
	ColCategoryCode:    KindText,
	ColPhase:           KindText,
	ColProcessURL:      KindText,
	ColContractValue:   KindNumber,
	ColSigningDate:     KindDate,
	ColPublicationDate: KindDate,
	ColDurationDays:    KindNumber,
	ColAddedDays:       KindNumber,
}

// CanonicalColumn reports the kind of a canonical column.
func CanonicalColumn(name string) (ColumnKind, bool) {
	kind, ok := columnKinds[name]
	return kind, ok
}

// Text returns the column value as a string. The boolean is false when the
// value is null or the column does not exist on this row.
func (c *Contract) Text(name string) (string, bool) {
	switch name {
	case ColContractID:
		return c.ContractID, true
	case ColDatasetTag:
		return string(c.DatasetTag), true
	case ColEntityName:
		return c.EntityName, true
	case ColDepartment:
		return c.Department, true
	case ColContractType:
		return c.ContractType, true
	case ColDescription:
		return c.Description, true
	case ColStatus:
		return c.Status, true
	case ColCategoryCode:
		return c.CategoryCode, true
	case ColPhase:
		return c.Phase, true
	case ColProcessURL:
		return c.ProcessURL, true
	case ColContractValue:
		return FormatNumber(c.ContractValue), true
	case ColSigningDate:
		return formatDate(c.SigningDate)
	case ColPublicationDate:
		return formatDate(c.PublicationDate)
	case ColDurationDays:
		return formatInt(c.DurationDays)
	case ColAddedDays:
		return formatInt(c.AddedDays)
	}
	v, ok := c.Attributes[name]
	return v, ok
}

// Number returns a numeric column. Attributes are parsed on demand.
func (c *Contract) Number(name string) (float64, bool) {
	switch name {
	case ColContractValue:
		return c.ContractValue, true
	case ColDurationDays:
		return intValue(c.DurationDays)
	case ColAddedDays:
		return intValue(c.AddedDays)
	}
	if _, canonical := columnKinds[name]; canonical {
		return 0, false
	}
	v, ok := c.Attributes[name]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Date returns a date column. Attributes are parsed as RFC 3339 or plain dates.
func (c *Contract) Date(name string) (time.Time, bool) {
	switch name {
	case ColSigningDate:
		return dateValue(c.SigningDate)
	case ColPublicationDate:
		return dateValue(c.PublicationDate)
	}
	if _, canonical := columnKinds[name]; canonical {
		return time.Time{}, false
	}
	v, ok := c.Attributes[name]
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{AttributeTimeLayout, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ToMap renders the record as a plain mapping for notification channels.
func (c *Contract) ToMap() map[string]any {
	m := map[string]any{
		ColContractID:    c.ContractID,
		ColDatasetTag:    string(c.DatasetTag),
		ColEntityName:    c.EntityName,
		ColDepartment:    c.Department,
		ColContractType:  c.ContractType,
		ColDescription:   c.Description,
		ColStatus:        c.Status,
		ColCategoryCode:  c.CategoryCode,
		ColPhase:         c.Phase,
		ColProcessURL:    c.ProcessURL,
		ColContractValue: c.ContractValue,
	}
	if s, ok := formatDate(c.SigningDate); ok {
		m[ColSigningDate] = s
	}
	if s, ok := formatDate(c.PublicationDate); ok {
		m[ColPublicationDate] = s
	}
	if c.DurationDays != nil {
		m[ColDurationDays] = *c.DurationDays
	}
	if c.AddedDays != nil {
		m[ColAddedDays] = *c.AddedDays
	}
	return m
}

// AttributeTimeLayout is the layout of date-like attributes after normalization.
const AttributeTimeLayout = "2006-01-02T15:04:05"

// FormatNumber renders a float without exponent or trailing zeros.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatDate(t *time.Time) (string, bool) {
	if t == nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

func formatInt(i *int) (string, bool) {
	if i == nil {
		return "", false
	}
	return strconv.Itoa(*i), true
}

func intValue(i *int) (float64, bool) {
	if i == nil {
		return 0, false
	}
	return float64(*i), true
}

func dateValue(t *time.Time) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}
