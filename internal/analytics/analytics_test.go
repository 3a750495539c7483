package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

func signed(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func intp(n int) *int { return &n }

func TestSummarize(t *testing.T) {
	table := models.Table{
		{ContractID: "1", Department: "Antioquia", ContractType: "Suministro", ContractValue: 100, DurationDays: intp(30), SigningDate: signed("2024-01-10")},
		{ContractID: "2", Department: "Antioquia", ContractType: "Obra", ContractValue: 200, DurationDays: intp(60), SigningDate: signed("2024-01-25")},
		{ContractID: "3", Department: "Cauca", ContractType: "Suministro", ContractValue: 300, SigningDate: signed("2023-12-01")},
		{ContractID: "4", Department: models.NotSpecified, ContractType: "Suministro", ContractValue: 400},
	}

	s := Summarize(table)

	if s.TotalContracts != 4 {
		t.Fatalf("TotalContracts = %d", s.TotalContracts)
	}
	if s.TotalValue != 1000 {
		t.Fatalf("TotalValue = %v", s.TotalValue)
	}
	if s.AverageDuration != 45 {
		t.Fatalf("AverageDuration = %v", s.AverageDuration)
	}
	if len(s.ByDepartment) != 3 || s.ByDepartment[0] != (Count{"Antioquia", 2}) {
		t.Fatalf("ByDepartment = %+v", s.ByDepartment)
	}
	if len(s.ByType) != 2 || s.ByType[0] != (Count{"Suministro", 3}) || s.ByType[1] != (Count{"Obra", 1}) {
		t.Fatalf("ByType = %+v", s.ByType)
	}

	want := []Month{{"2023-12", 1, 300}, {"2024-01", 2, 300}}
	if len(s.Monthly) != len(want) {
		t.Fatalf("Monthly = %+v", s.Monthly)
	}
	for i := range want {
		if s.Monthly[i] != want[i] {
			t.Fatalf("Monthly[%d] = %+v, want %+v", i, s.Monthly[i], want[i])
		}
	}
}

func TestSummarizeTopDepartments(t *testing.T) {
	var table models.Table
	for i := 0; i < 15; i++ {
		for j := 0; j <= i; j++ {
			table = append(table, models.Contract{
				ContractID: fmt.Sprintf("%d-%d", i, j),
				Department: fmt.Sprintf("dept-%02d", i),
			})
		}
	}

	s := Summarize(table)
	if len(s.ByDepartment) != TopDepartments {
		t.Fatalf("got %d departments, want %d", len(s.ByDepartment), TopDepartments)
	}
	if s.ByDepartment[0].Name != "dept-14" || s.ByDepartment[0].Count != 15 {
		t.Fatalf("top department = %+v", s.ByDepartment[0])
	}
	if last := s.ByDepartment[TopDepartments-1]; last.Name != "dept-05" {
		t.Fatalf("last department = %+v", last)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalContracts != 0 || s.TotalValue != 0 || s.AverageDuration != 0 {
		t.Fatalf("unexpected totals: %+v", s)
	}
	if s.ByDepartment == nil || s.ByType == nil || s.Monthly == nil {
		t.Fatal("breakdowns should be empty slices so they encode as []")
	}
}
