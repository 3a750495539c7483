package models

import "errors"

var (
	// ErrUnknownDataset is returned for tags other than ACTIVE and HISTORICAL.
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrSnapshotWrite wraps failures to persist a snapshot.
	ErrSnapshotWrite = errors.New("snapshot write failed")
	// ErrUnknownColumn is returned when a column is neither canonical nor a source attribute.
	ErrUnknownColumn = errors.New("unknown column")
)
