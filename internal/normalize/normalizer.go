package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/config"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

// Normalizer turns raw source rows into canonical contract tables.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize maps raw rows of dataset tag onto the canonical schema, coerces
// values, drops duplicate ids and, when enabled in search, keeps only rows
// whose description matches a keyword. It never fails: an unknown tag yields
// an empty table.
func (n *Normalizer) Normalize(raw []map[string]any, tag models.DatasetTag, search config.SearchConfig) models.Table {
	schema, ok := SchemaFor(tag)
	if !ok {
		n.logger.Error("no schema for dataset", "dataset", string(tag))
		return models.Table{}
	}
	if len(raw) == 0 {
		return models.Table{}
	}

	var matcher *KeywordMatcher
	if search.KeywordFilterActive() {
		matcher = NewKeywordMatcher(search.Keywords)
	}

	table := make(models.Table, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	var duplicates, unmatched int

	for _, rec := range raw {
		c := schema.contract(rec)
		if !matcher.Match(c.Description) {
			unmatched++
			continue
		}
		if seen[c.ContractID] {
			duplicates++
			continue
		}
		seen[c.ContractID] = true
		table = append(table, c)
	}

	n.logger.Info("normalized dataset",
		"dataset", string(tag),
		"raw", len(raw),
		"kept", len(table),
		"keyword_filtered", unmatched,
		"duplicates", duplicates,
	)
	return table
}

func (s Schema) contract(rec map[string]any) models.Contract {
	c := models.Contract{
		DatasetTag:      s.Dataset,
		ContractID:      s.text(rec, models.ColContractID),
		EntityName:      Text(s.first(rec, models.ColEntityName)),
		Department:      Text(s.first(rec, models.ColDepartment)),
		ContractType:    Text(s.first(rec, models.ColContractType)),
		Description:     Text(s.first(rec, models.ColDescription)),
		Status:          Text(s.first(rec, models.ColStatus)),
		CategoryCode:    Text(s.first(rec, models.ColCategoryCode)),
		Phase:           Text(s.first(rec, models.ColPhase)),
		ProcessURL:      Text(s.first(rec, models.ColProcessURL)),
		ContractValue:   s.currency(rec, models.ColContractValue),
		SigningDate:     s.date(rec, models.ColSigningDate),
		PublicationDate: s.date(rec, models.ColPublicationDate),
		DurationDays:    s.integer(rec, models.ColDurationDays),
		AddedDays:       s.integer(rec, models.ColAddedDays),
		Attributes:      s.attributes(rec),
	}
	if c.ContractID == "" {
		c.ContractID = syntheticID(rec)
	}
	return c
}

// first returns the first non-blank source value for column.
func (s Schema) first(rec map[string]any, column string) any {
	for _, src := range s.Columns[column] {
		if v, ok := rec[src]; ok && rawText(v) != "" {
			return v
		}
	}
	return nil
}

func (s Schema) text(rec map[string]any, column string) string {
	return rawText(s.first(rec, column))
}

// currency prefers the first source with a positive amount, so an unawarded
// process falls back from the awarded value to its base price.
func (s Schema) currency(rec map[string]any, column string) float64 {
	for _, src := range s.Columns[column] {
		if v := Currency(rec[src]); v > 0 {
			return v
		}
	}
	return 0
}

func (s Schema) date(rec map[string]any, column string) *time.Time {
	for _, src := range s.Columns[column] {
		if t := Date(rec[src]); t != nil {
			return t
		}
	}
	return nil
}

func (s Schema) integer(rec map[string]any, column string) *int {
	for _, src := range s.Columns[column] {
		if n := Int(rec[src]); n != nil {
			return n
		}
	}
	return nil
}

// attributes keeps unmapped source columns as text. Date-like columns are
// normalized to one layout and dropped when invalid.
func (s Schema) attributes(rec map[string]any) models.StringMap {
	attrs := make(models.StringMap)
	for key, v := range rec {
		if s.mapped(key) {
			continue
		}
		if strings.Contains(key, "fecha") {
			if t := Date(v); t != nil {
				attrs[key] = t.Format(models.AttributeTimeLayout)
			}
			continue
		}
		if text := rawText(v); text != "" {
			attrs[key] = text
		}
	}
	return attrs
}

// syntheticID derives a stable id from the record content for rows the source
// published without one.
func syntheticID(rec map[string]any) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(rawText(rec[k])))
		h.Write([]byte{0})
	}
	return "h-" + hex.EncodeToString(h.Sum(nil))[:16]
}
