package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// NotSpecified fills text fields that the source left empty.
const NotSpecified = "No especificado"

// DatasetTag identifies which SECOP dataset a record came from.
type DatasetTag string

const (
	DatasetActive     DatasetTag = "ACTIVE"
	DatasetHistorical DatasetTag = "HISTORICAL"
)

// AllDatasets lists the known dataset tags in presentation order.
func AllDatasets() []DatasetTag {
	return []DatasetTag{DatasetActive, DatasetHistorical}
}

// Valid reports whether the tag is one of the known datasets.
func (t DatasetTag) Valid() bool {
	return t == DatasetActive || t == DatasetHistorical
}

// Lower returns the lowercase tag, used in URLs and object names.
func (t DatasetTag) Lower() string {
	return strings.ToLower(string(t))
}

// ParseDatasetTag accepts the tag in any case ("active", "HISTORICAL").
func ParseDatasetTag(s string) (DatasetTag, error) {
	tag := DatasetTag(strings.ToUpper(strings.TrimSpace(s)))
	if !tag.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDataset, s)
	}
	return tag, nil
}

// RunStatus is the outcome of a refresh cycle.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunSkipped   RunStatus = "skipped"
)

// RunTrigger records what started a refresh cycle.
type RunTrigger string

const (
	TriggerSchedule RunTrigger = "schedule"
	TriggerManual   RunTrigger = "manual"
)

// StringMap stores unmapped source columns in SQLite as JSON.
type StringMap map[string]string

func (m StringMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *StringMap) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = StringMap{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("failed to scan StringMap")
	}
	if len(raw) == 0 {
		*m = StringMap{}
		return nil
	}
	return json.Unmarshal(raw, (*map[string]string)(m))
}
