// Package notify announces newly detected contracts.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

// Subject is the title of every announcement; the date is appended.
const Subject = "Nuevos Contratos de Transporte"

// Notifier delivers a batch of new contracts to recipients. It reports
// whether delivery succeeded and never returns an error to the caller.
type Notifier interface {
	Notify(ctx context.Context, contracts []map[string]any, recipients []string) bool
}

// Multi fans out to every child and succeeds when any child succeeds.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, contracts []map[string]any, recipients []string) bool {
	ok := false
	for _, n := range m {
		if n == nil {
			continue
		}
		if n.Notify(ctx, contracts, recipients) {
			ok = true
		}
	}
	return ok
}

// text reads a contract field for display.
func text(c map[string]any, key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return "N/A"
	}
	switch s := v.(type) {
	case string:
		if s == "" {
			return "N/A"
		}
		return s
	default:
		return fmt.Sprint(s)
	}
}

// amount reads the contract value, tolerating the shapes a map may carry.
func amount(c map[string]any) float64 {
	switch v := c[models.ColContractValue].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}
