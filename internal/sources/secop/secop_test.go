package secop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

// mockLimiter is a no-op limiter for tests.
type mockLimiter struct {
	retries  int
	waits    atomic.Int32
	reserves atomic.Int32
	resets   atomic.Int32
}

func (m *mockLimiter) Wait(_ context.Context) error { m.waits.Add(1); return nil }
func (m *mockLimiter) Reserve() time.Duration       { m.reserves.Add(1); return 0 }
func (m *mockLimiter) RetryAfter(int) time.Duration { return time.Millisecond }
func (m *mockLimiter) MaxRetries() int              { return m.retries }
func (m *mockLimiter) Reset()                       { m.resets.Add(1) }

func TestQueryBuilder(t *testing.T) {
	q := NewQueryBuilder().
		WhereLike("codigo", "V1.811022%").
		WhereEquals("fase", "O'Brien").
		OrderBy("fecha DESC").
		Page(2000, 1000).
		Build()

	want := "SELECT * WHERE codigo LIKE 'V1.811022%' AND fase = 'O''Brien' ORDER BY fecha DESC LIMIT 1000 OFFSET 2000"
	if q != want {
		t.Fatalf("unexpected query:\n got %s\nwant %s", q, want)
	}
}

func TestEndpointQueries(t *testing.T) {
	active := ActiveEndpoint("http://example/active.json")
	count := CountQuery(active, "V1.811022%")
	if count != "SELECT count(*) WHERE codigo_principal_de_categoria LIKE 'V1.811022%' AND fase = 'Presentación de oferta'" {
		t.Fatalf("unexpected active count query: %s", count)
	}

	hist := HistoricalEndpoint("http://example/hist.json")
	page := PageQuery(hist, "V1.811022%", 0, 1000)
	if !strings.Contains(page, "codigo_de_categoria_principal LIKE 'V1.811022%'") ||
		!strings.Contains(page, "ORDER BY fecha_de_firma DESC NULLS LAST") ||
		strings.Contains(page, "fase") {
		t.Fatalf("unexpected historical page query: %s", page)
	}
}

func TestPageWindows(t *testing.T) {
	w := pageWindows(2500, 1000)
	if len(w) != 3 || w[0].Offset != 0 || w[1].Offset != 1000 || w[2].Offset != 2000 {
		t.Fatalf("unexpected windows: %+v", w)
	}
	if len(pageWindows(0, 1000)) != 0 {
		t.Fatalf("expected no windows for empty dataset")
	}
}

// socrata is a fake Socrata endpoint serving total rows, failing the pages
// whose offsets are listed in failOffsets.
type socrata struct {
	total       int
	failOffsets map[int]bool
	token       string

	mu       sync.Mutex
	pages    int
	inFlight int
	maxSeen  int
}

func (s *socrata) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.token != "" && r.Header.Get(appTokenHeader) != s.token {
		http.Error(w, "missing token", http.StatusForbidden)
		return
	}
	q := r.URL.Query().Get("$query")
	if strings.HasPrefix(q, "SELECT count(*)") {
		_ = json.NewEncoder(w).Encode([]map[string]string{{"count": fmt.Sprint(s.total)}})
		return
	}

	var limit, offset int
	if _, err := fmt.Sscanf(q[strings.Index(q, "LIMIT"):], "LIMIT %d OFFSET %d", &limit, &offset); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.pages++
	s.inFlight++
	if s.inFlight > s.maxSeen {
		s.maxSeen = s.inFlight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()
	time.Sleep(5 * time.Millisecond)

	if s.failOffsets[offset] {
		http.Error(w, "boom", http.StatusBadRequest)
		return
	}
	rows := make([]map[string]string, 0, limit)
	for i := offset; i < offset+limit && i < s.total; i++ {
		rows = append(rows, map[string]string{"id_contrato": fmt.Sprintf("C-%d", i)})
	}
	_ = json.NewEncoder(w).Encode(rows)
}

func (s *socrata) stats() (pages, maxSeen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages, s.maxSeen
}

func newTestFetcher(srv *httptest.Server, limiter *mockLimiter) *Fetcher {
	client := NewClient(limiter, 5*time.Second, "", nil)
	return NewFetcher(FetcherConfig{Client: client, Endpoint: HistoricalEndpoint(srv.URL)})
}

func TestFetchAllComplete(t *testing.T) {
	api := &socrata{total: 2350}
	srv := httptest.NewServer(api)
	defer srv.Close()

	limiter := &mockLimiter{}
	res := newTestFetcher(srv, limiter).FetchAll(context.Background(), "V1%", 100)

	if res.Outcome != OutcomeComplete || res.Err != nil {
		t.Fatalf("expected complete fetch, got %v (%v)", res.Outcome, res.Err)
	}
	if len(res.Records) != 2350 || res.Expected != 2350 || res.Pages != 24 {
		t.Fatalf("unexpected result: records=%d expected=%d pages=%d", len(res.Records), res.Expected, res.Pages)
	}
	if _, maxSeen := api.stats(); maxSeen > DefaultWorkers {
		t.Fatalf("expected at most %d concurrent pages, saw %d", DefaultWorkers, maxSeen)
	}
	if got := int(limiter.waits.Load()); got != 25 {
		t.Fatalf("expected limiter wait per request (25), got %d", got)
	}
	if got := int(limiter.reserves.Load()); got != 25 {
		t.Fatalf("expected limiter consulted per request (25), got %d", got)
	}
	if got := limiter.resets.Load(); got != 1 {
		t.Fatalf("expected one limiter reset per fetch, got %d", got)
	}
}

func TestFetchAllZeroRowsSkipsPages(t *testing.T) {
	api := &socrata{total: 0}
	srv := httptest.NewServer(api)
	defer srv.Close()

	res := newTestFetcher(srv, &mockLimiter{}).FetchAll(context.Background(), "V1%", 1000)
	if res.Outcome != OutcomeComplete || len(res.Records) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if pages, _ := api.stats(); pages != 0 {
		t.Fatalf("expected no page requests, got %d", pages)
	}
}

func TestFetchAllPartial(t *testing.T) {
	api := &socrata{total: 300, failOffsets: map[int]bool{100: true}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	res := newTestFetcher(srv, &mockLimiter{}).FetchAll(context.Background(), "V1%", 100)
	if res.Outcome != OutcomePartial {
		t.Fatalf("expected partial outcome, got %v", res.Outcome)
	}
	if len(res.Records) != 200 || res.PagesFailed != 1 {
		t.Fatalf("unexpected partial result: records=%d failed=%d", len(res.Records), res.PagesFailed)
	}
}

func TestFetchAllCountFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(srv, &mockLimiter{})
	res := f.FetchAll(context.Background(), "V1%", 100)
	if res.Outcome != OutcomeFailed || res.Err == nil {
		t.Fatalf("expected failed outcome, got %+v", res)
	}
	if n := f.Count(context.Background(), "V1%"); n != 0 {
		t.Fatalf("expected 0 on count failure, got %d", n)
	}
}

func TestFetchPageFailureReturnsEmpty(t *testing.T) {
	api := &socrata{total: 10, failOffsets: map[int]bool{0: true}}
	srv := httptest.NewServer(api)
	defer srv.Close()

	rows, err := newTestFetcher(srv, &mockLimiter{}).FetchPage(context.Background(), "V1%", 0, 10)
	if err == nil {
		t.Fatalf("expected error")
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", rows)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"count":"7"}]`))
	}))
	defer srv.Close()

	client := NewClient(&mockLimiter{retries: 2}, time.Second, "", nil)
	n, err := client.Count(context.Background(), srv.URL, "SELECT count(*)")
	if err != nil || n != 7 {
		t.Fatalf("expected 7 after retry, got %d (%v)", n, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(&mockLimiter{retries: 3}, time.Second, "", nil)
	if _, err := client.Query(context.Background(), srv.URL, "SELECT *"); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestClientSendsAppToken(t *testing.T) {
	api := &socrata{total: 3, token: "secret"}
	srv := httptest.NewServer(api)
	defer srv.Close()

	client := NewClient(&mockLimiter{}, time.Second, "secret", nil)
	f := NewFetcher(FetcherConfig{Client: client, Endpoint: ActiveEndpoint(srv.URL)})
	if n := f.Count(context.Background(), "V1%"); n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
	if f.Endpoint().Dataset != models.DatasetActive {
		t.Fatalf("unexpected dataset")
	}
}
