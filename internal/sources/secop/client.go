package secop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/ratelimit"
)

const appTokenHeader = "X-App-Token"

// Client executes SoQL queries against Socrata resource endpoints.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	appToken   string
	logger     *slog.Logger
}

// NewClient creates a new Socrata client. Every request, retries included,
// first waits on limiter.
func NewClient(limiter ratelimit.Limiter, timeout time.Duration, appToken string, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		appToken:   appToken,
		logger:     logger,
	}
}

// statusError is a non-200 response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	var syntaxErr *json.SyntaxError
	return !errors.As(err, &syntaxErr)
}

// Query runs soql against endpoint and returns the decoded rows.
func (c *Client) Query(ctx context.Context, endpoint, soql string) ([]Record, error) {
	var lastErr error
	for attempt := 0; attempt <= c.limiter.MaxRetries(); attempt++ {
		if attempt > 0 {
			if err := ratelimit.Sleep(ctx, c.limiter.RetryAfter(attempt)); err != nil {
				return nil, err
			}
			c.logger.Debug("retrying query", "endpoint", endpoint, "attempt", attempt, "error", lastErr)
		}

		rows, err := c.do(ctx, endpoint, soql)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, lastErr
}

// ResetLimiter clears the pacing state left over from an earlier run.
func (c *Client) ResetLimiter() {
	c.limiter.Reset()
}

func (c *Client) do(ctx context.Context, endpoint, soql string) ([]Record, error) {
	if wait := c.limiter.Reserve(); wait > 0 {
		c.logger.Debug("rate limited", "endpoint", endpoint, "wait", wait)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("$query", soql)
	u := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.appToken != "" {
		req.Header.Set(appTokenHeader, c.appToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}

	var rows []Record
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return rows, nil
}

// Count runs a count(*) statement and parses the single result row.
func (c *Client) Count(ctx context.Context, endpoint, soql string) (int, error) {
	rows, err := c.Query(ctx, endpoint, soql)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, key := range []string{"count", "count_1"} {
		if v, ok := rows[0][key]; ok {
			return parseCount(v)
		}
	}
	return 0, fmt.Errorf("count missing from response: %v", rows[0])
}

func parseCount(v any) (int, error) {
	switch x := v.(type) {
	case string:
		return strconv.Atoi(x)
	case json.Number:
		n, err := x.Int64()
		return int(n), err
	case float64:
		return int(x), nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
