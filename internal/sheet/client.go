package sheet

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Fetcher retrieves a published sheet as a parsed table.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([][]string, error)
}

// Client fetches published CSV documents over HTTPS. Every fetch is a full
// download of the sheet; the source offers no keyed or incremental queries,
// and results are never cached so directory changes take effect immediately.
type Client struct {
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a sheet client with the given request timeout
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Fetch downloads and parses the CSV document at rawURL. A cache-busting
// timestamp parameter is appended so intermediaries cannot serve stale
// copies of the sheet.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([][]string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sheet URL: %w", err)
	}

	q := u.Query()
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("sheet fetch failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet response: %w", err)
	}

	return Parse(string(body)), nil
}
