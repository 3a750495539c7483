// Package catalog holds the latest published table per dataset for readers.
package catalog

import (
	"sync"
	"time"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

// Entry describes one published table.
type Entry struct {
	Dataset     models.DatasetTag `json:"dataset"`
	Rows        int               `json:"rows"`
	PublishedAt time.Time         `json:"published_at"`
}

type published struct {
	table models.Table
	at    time.Time
}

// Catalog is safe for concurrent use. Tables go in and out as copies.
type Catalog struct {
	mu     sync.RWMutex
	tables map[models.DatasetTag]published
	now    func() time.Time
}

func New() *Catalog {
	return &Catalog{
		tables: make(map[models.DatasetTag]published),
		now:    time.Now,
	}
}

// Publish replaces the table for tag.
func (c *Catalog) Publish(tag models.DatasetTag, table models.Table) {
	p := published{table: table.Clone(), at: c.now()}
	c.mu.Lock()
	c.tables[tag] = p
	c.mu.Unlock()
}

// Get returns a copy of the table for tag and when it was published. The
// table is empty and the time zero when nothing was published yet.
func (c *Catalog) Get(tag models.DatasetTag) (models.Table, time.Time) {
	c.mu.RLock()
	p, ok := c.tables[tag]
	c.mu.RUnlock()
	if !ok {
		return models.Table{}, time.Time{}
	}
	return p.table.Clone(), p.at
}

// Stats lists every dataset in canonical order.
func (c *Catalog) Stats() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(models.AllDatasets()))
	for _, tag := range models.AllDatasets() {
		p := c.tables[tag]
		out = append(out, Entry{Dataset: tag, Rows: len(p.table), PublishedAt: p.at})
	}
	return out
}
