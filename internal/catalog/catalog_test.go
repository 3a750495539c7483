package catalog

import (
	"sync"
	"testing"
	"time"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

func TestPublishAndGet(t *testing.T) {
	c := New()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return at }

	if table, ts := c.Get(models.DatasetActive); len(table) != 0 || !ts.IsZero() {
		t.Fatalf("expected empty catalog, got %d rows at %v", len(table), ts)
	}

	src := models.Table{{ContractID: "A"}, {ContractID: "B"}}
	c.Publish(models.DatasetActive, src)
	src[0].ContractID = "mutated"

	got, ts := c.Get(models.DatasetActive)
	if len(got) != 2 || got[0].ContractID != "A" {
		t.Fatalf("publish did not copy the table: %+v", got)
	}
	if !ts.Equal(at) {
		t.Fatalf("published at %v, want %v", ts, at)
	}

	got[1].ContractID = "mutated"
	again, _ := c.Get(models.DatasetActive)
	if again[1].ContractID != "B" {
		t.Fatal("get handed out the stored table")
	}
}

func TestStats(t *testing.T) {
	c := New()
	c.Publish(models.DatasetHistorical, models.Table{{ContractID: "A"}})

	stats := c.Stats()
	if len(stats) != 2 {
		t.Fatalf("got %d entries", len(stats))
	}
	if stats[0].Dataset != models.DatasetActive || stats[0].Rows != 0 || !stats[0].PublishedAt.IsZero() {
		t.Fatalf("active entry = %+v", stats[0])
	}
	if stats[1].Dataset != models.DatasetHistorical || stats[1].Rows != 1 {
		t.Fatalf("historical entry = %+v", stats[1])
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Publish(models.DatasetActive, models.Table{{ContractID: "A"}})
		}()
		go func() {
			defer wg.Done()
			c.Get(models.DatasetActive)
			c.Stats()
		}()
	}
	wg.Wait()
}
