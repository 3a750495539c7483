package filter

import (
	"net/url"
	"testing"
	"time"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func days(n int) *int { return &n }

func sample() models.Table {
	return models.Table{
		{
			ContractID:    "A",
			DatasetTag:    models.DatasetHistorical,
			EntityName:    "Alcaldía de Medellín",
			Department:    "Antioquia",
			ContractType:  "Prestación de servicios",
			Description:   "Servicio de transporte escolar",
			ContractValue: 1_000_000,
			SigningDate:   date("2024-01-15"),
			DurationDays:  days(30),
			Attributes:    models.StringMap{"modalidad": "Licitación", "valor_pagado": "500"},
		},
		{
			ContractID:    "B",
			DatasetTag:    models.DatasetHistorical,
			EntityName:    "Gobernación del Valle",
			Department:    "Valle del Cauca",
			ContractType:  "Suministro",
			Description:   "Alquiler de vehículos",
			ContractValue: 5_000_000,
			SigningDate:   date("2024-03-01"),
			DurationDays:  days(90),
			Attributes:    models.StringMap{"modalidad": "Contratación directa"},
		},
		{
			ContractID:    "C",
			DatasetTag:    models.DatasetHistorical,
			EntityName:    "Alcaldía de Cali",
			Department:    "Valle del Cauca",
			ContractType:  "Prestación de servicios",
			Description:   "Transporte de personal",
			ContractValue: 250_000,
			Attributes:    models.StringMap{"valor_pagado": "1200", "fecha_de_inicio": "2024-02-10T08:00:00"},
		},
	}
}

func idsOf(t models.Table) []string {
	out := make([]string, 0, len(t))
	for _, c := range t {
		out = append(out, c.ContractID)
	}
	return out
}

func sameIDs(t *testing.T, got models.Table, want ...string) {
	t.Helper()
	ids := idsOf(got)
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want []string
	}{
		{"empty spec", Spec{}, []string{"A", "B", "C"}},
		{"zero value ignored", Spec{models.ColDepartment: {}}, []string{"A", "B", "C"}},
		{"numeric range", Spec{models.ColContractValue: Between(500_000, 5_000_000)}, []string{"A", "B"}},
		{"open lower bound", Spec{models.ColContractValue: Between(nil, 1_000_000)}, []string{"A", "C"}},
		{"open upper bound", Spec{models.ColContractValue: Between(1_000_001, nil)}, []string{"B"}},
		{"inverted range", Spec{models.ColContractValue: Between(10, 1)}, []string{}},
		{"date range inclusive", Spec{models.ColSigningDate: Between("2024-01-15", "2024-03-01")}, []string{"A", "B"}},
		{"date range with time bound", Spec{models.ColSigningDate: Between(time.Date(2024, 2, 1, 23, 0, 0, 0, time.UTC), nil)}, []string{"B"}},
		{"null dates excluded", Spec{models.ColSigningDate: Between("2000-01-01", nil)}, []string{"A", "B"}},
		{"membership", Spec{models.ColDepartment: In("Antioquia", "Cundinamarca")}, []string{"A"}},
		{"membership on numbers", Spec{models.ColDurationDays: In(90)}, []string{"B"}},
		{"membership from string slice", Spec{models.ColEntityName: In([]string{"Alcaldía de Cali", "Otra"})}, []string{"C"}},
		{"membership from number slice", Spec{models.ColContractValue: In([]float64{1_000_000, 250_000})}, []string{"A", "C"}},
		{"membership mixes slices and scalars", Spec{models.ColContractID: In("A", []any{"B"})}, []string{"A", "B"}},
		{"match ignores case", Spec{models.ColDescription: Match("TRANSPORTE")}, []string{"A", "C"}},
		{"match with accents", Spec{models.ColEntityName: Match("alcaldía")}, []string{"A", "C"}},
		{"conditions combine", Spec{
			models.ColDepartment:   In("Valle del Cauca"),
			models.ColContractType: Match("servicios"),
		}, []string{"C"}},
		{"attribute text", Spec{"modalidad": Match("directa")}, []string{"B"}},
		{"attribute number range", Spec{"valor_pagado": Between("1000", nil)}, []string{"C"}},
		{"attribute date range", Spec{"fecha_de_inicio": Between("2024-02-10", "2024-02-10")}, []string{"C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sameIDs(t, Apply(sample(), tt.spec), tt.want...)
		})
	}
}

func TestApplyRejectsInvalidSpec(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{"unknown column", Spec{"no_such_column": Match("x")}},
		{"range on text", Spec{models.ColDepartment: Between("a", "z")}},
		{"date bound on number", Spec{models.ColContractValue: Between("2024-01-01", nil)}},
		{"number bound on date", Spec{models.ColSigningDate: Between(true, nil)}},
		{"bad date string", Spec{models.ColSigningDate: Between("yesterday", nil)}},
		{"empty slice member", Spec{models.ColEntityName: In([]string{})}},
		{"map member", Spec{models.ColEntityName: In(map[string]int{"A": 1})}},
		{"nil member", Spec{models.ColEntityName: In(nil)}},
		{"one bad among good", Spec{
			models.ColDepartment: In("Antioquia"),
			"missing":            Match("x"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sameIDs(t, Apply(sample(), tt.spec), "A", "B", "C")
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	table := sample()
	out := Apply(table, Spec{models.ColContractID: In("B")})
	sameIDs(t, out, "B")
	out[0].ContractID = "changed"
	sameIDs(t, table, "A", "B", "C")
}

func TestApplyEmptyTable(t *testing.T) {
	out := Apply(models.Table{}, Spec{models.ColContractValue: Between(1, 2)})
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %d rows", len(out))
	}
}

func TestParseQuery(t *testing.T) {
	q := url.Values{
		"department":         {"Valle del Cauca"},
		"contract_type":      {"Suministro", "Prestación de servicios"},
		"contract_value.min": {"200000"},
		"signing_date.max":   {"2024-12-31"},
		"limit":              {"10"},
		"offset":             {"5"},
		"sort":               {"signing_date"},
		"duration_days.min":  {""},
		"duration_days.max":  {""},
	}
	spec := ParseQuery(q)

	for _, key := range []string{"limit", "offset", "sort"} {
		if _, ok := spec[key]; ok {
			t.Fatalf("reserved key %q parsed as a column", key)
		}
	}
	if v := spec[models.ColDepartment]; v.kind != kindMatch || v.pattern != "Valle del Cauca" {
		t.Fatalf("department = %+v", v)
	}
	if v := spec[models.ColContractType]; v.kind != kindIn || len(v.values) != 2 {
		t.Fatalf("contract_type = %+v", v)
	}
	if v := spec[models.ColContractValue]; v.kind != kindRange || v.lo != "200000" || v.hi != nil {
		t.Fatalf("contract_value = %+v", v)
	}
	if v := spec[models.ColSigningDate]; v.kind != kindRange || v.lo != nil || v.hi != "2024-12-31" {
		t.Fatalf("signing_date = %+v", v)
	}
	if v := spec[models.ColDurationDays]; !v.IsZero() {
		t.Fatalf("empty bounds should be a no-op, got %+v", v)
	}

	// C has no signing date, so only B survives.
	sameIDs(t, Apply(sample(), spec), "B")
}
