package secop

import (
	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

// Record is one raw row as returned by the Socrata JSON endpoint.
type Record = map[string]any

// Endpoint describes one SECOP dataset on datos.gov.co.
type Endpoint struct {
	Dataset models.DatasetTag
	URL     string
	// CategoryField is the column matched against the category code with LIKE.
	CategoryField string
	// Phase, when set, restricts rows to that procurement phase.
	Phase   string
	OrderBy string
}

// ActiveEndpoint is SECOP II processes currently receiving offers.
func ActiveEndpoint(url string) Endpoint {
	return Endpoint{
		Dataset:       models.DatasetActive,
		URL:           url,
		CategoryField: "codigo_principal_de_categoria",
		Phase:         "Presentación de oferta",
		OrderBy:       "fecha_de_publicacion DESC",
	}
}

// HistoricalEndpoint is signed SECOP II contracts.
func HistoricalEndpoint(url string) Endpoint {
	return Endpoint{
		Dataset:       models.DatasetHistorical,
		URL:           url,
		CategoryField: "codigo_de_categoria_principal",
		OrderBy:       "fecha_de_firma DESC NULLS LAST",
	}
}

// Outcome classifies a full-dataset fetch.
type Outcome int

const (
	OutcomeComplete Outcome = iota
	OutcomePartial
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomePartial:
		return "partial"
	default:
		return "failed"
	}
}

// FetchResult is the outcome of Fetcher.FetchAll.
type FetchResult struct {
	Dataset     models.DatasetTag
	Records     []Record
	Expected    int
	Pages       int
	PagesFailed int
	Outcome     Outcome
	Err         error
}
