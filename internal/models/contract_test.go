package models

import (
	"errors"
	"testing"
	"time"
)

func TestContractValidate(t *testing.T) {
	valid := &Contract{ContractID: "CO1.PCCNTR.1", DatasetTag: DatasetActive, ContractValue: 1000}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid contract, got error: %v", err)
	}

	if err := (&Contract{DatasetTag: DatasetActive}).Validate(); err == nil {
		t.Fatalf("expected error for missing contract id")
	}

	err := (&Contract{ContractID: "x", DatasetTag: "OTHER"}).Validate()
	if !errors.Is(err, ErrUnknownDataset) {
		t.Fatalf("expected ErrUnknownDataset, got %v", err)
	}

	if err := (&Contract{ContractID: "x", DatasetTag: DatasetHistorical, ContractValue: -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative value")
	}
}

func TestParseDatasetTag(t *testing.T) {
	for _, in := range []string{"active", "ACTIVE", " Active "} {
		tag, err := ParseDatasetTag(in)
		if err != nil || tag != DatasetActive {
			t.Fatalf("ParseDatasetTag(%q) = %v, %v", in, tag, err)
		}
	}
	if _, err := ParseDatasetTag("archived"); !errors.Is(err, ErrUnknownDataset) {
		t.Fatalf("expected ErrUnknownDataset, got %v", err)
	}
}

func TestContractColumnAccessors(t *testing.T) {
	signed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	days := 90
	c := Contract{
		ContractID:    "A-1",
		DatasetTag:    DatasetHistorical,
		Department:    "Antioquia",
		ContractValue: 1500000,
		SigningDate:   &signed,
		DurationDays:  &days,
		Attributes: StringMap{
			"modalidad":    "Licitación pública",
			"fecha_de_fin": "2024-06-01T00:00:00",
			"valor_pagado": "250000.5",
			"not_a_number": "abc",
		},
	}

	if s, ok := c.Text(ColContractValue); !ok || s != "1500000" {
		t.Fatalf("unexpected text for value: %q %v", s, ok)
	}
	if s, ok := c.Text(ColSigningDate); !ok || s != "2024-03-01" {
		t.Fatalf("unexpected text for signing date: %q %v", s, ok)
	}
	if _, ok := c.Text(ColPublicationDate); ok {
		t.Fatalf("expected null publication date")
	}
	if s, ok := c.Text("modalidad"); !ok || s != "Licitación pública" {
		t.Fatalf("unexpected attribute text: %q", s)
	}
	if n, ok := c.Number(ColDurationDays); !ok || n != 90 {
		t.Fatalf("unexpected duration: %v %v", n, ok)
	}
	if _, ok := c.Number(ColAddedDays); ok {
		t.Fatalf("expected null added days")
	}
	if n, ok := c.Number("valor_pagado"); !ok || n != 250000.5 {
		t.Fatalf("unexpected attribute number: %v %v", n, ok)
	}
	if _, ok := c.Number("not_a_number"); ok {
		t.Fatalf("expected unparseable attribute to be null")
	}
	if d, ok := c.Date("fecha_de_fin"); !ok || d.Month() != time.June {
		t.Fatalf("unexpected attribute date: %v %v", d, ok)
	}
	if _, ok := c.Number(ColEntityName); ok {
		t.Fatalf("text column must not read as number")
	}
}

func TestContractToMap(t *testing.T) {
	signed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	c := Contract{ContractID: "A-1", DatasetTag: DatasetActive, EntityName: "ACME", ContractValue: 10, SigningDate: &signed}
	m := c.ToMap()
	if m[ColEntityName] != "ACME" || m[ColSigningDate] != "2024-03-01" || m[ColContractValue] != 10.0 {
		t.Fatalf("unexpected map: %#v", m)
	}
	if _, ok := m[ColDurationDays]; ok {
		t.Fatalf("null duration must be omitted")
	}
}

func TestTableHelpers(t *testing.T) {
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	table := Table{
		{ContractID: "a", SigningDate: &d1},
		{ContractID: "b"},
		{ContractID: "c", SigningDate: &d2, Attributes: StringMap{"extra": "1"}},
	}

	sorted := table.SortedBySigningDate()
	if sorted[0].ContractID != "c" || sorted[1].ContractID != "a" || sorted[2].ContractID != "b" {
		t.Fatalf("unexpected order: %v %v %v", sorted[0].ContractID, sorted[1].ContractID, sorted[2].ContractID)
	}
	if table[0].ContractID != "a" || table[1].ContractID != "b" {
		t.Fatalf("sorting must not mutate the source table")
	}

	if !table.HasColumn(ColDepartment) || !table.HasColumn("extra") || table.HasColumn("missing") {
		t.Fatalf("unexpected HasColumn results")
	}
	if len(table.IDs()) != 3 {
		t.Fatalf("expected 3 ids")
	}
}

func TestStringMapScan(t *testing.T) {
	var m StringMap
	if err := m.Scan(`{"a":"1"}`); err != nil || m["a"] != "1" {
		t.Fatalf("scan string: %v %v", m, err)
	}
	if err := m.Scan([]byte(`{"b":"2"}`)); err != nil || m["b"] != "2" {
		t.Fatalf("scan bytes: %v %v", m, err)
	}
	if err := m.Scan(nil); err != nil || len(m) != 0 {
		t.Fatalf("scan nil: %v %v", m, err)
	}
	if err := m.Scan(42); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}

func TestRefreshRunFinish(t *testing.T) {
	start := time.Now()
	run := NewRefreshRun(TriggerManual, start)
	if run.RunID == "" || run.Status != RunRunning {
		t.Fatalf("unexpected new run: %+v", run)
	}
	run.Finish(start.Add(time.Second), errors.New("boom"))
	if run.Status != RunFailed || run.ErrorLog == nil || *run.ErrorLog != "boom" {
		t.Fatalf("unexpected failed run: %+v", run)
	}
	if run.Duration() != time.Second {
		t.Fatalf("unexpected duration %v", run.Duration())
	}
}
