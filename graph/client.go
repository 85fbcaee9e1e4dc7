package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// defaultPageSize is the page size hint sent with the first request.
	// 999 is the service maximum and minimizes round-trips.
	defaultPageSize = 999

	// defaultMaxPages caps the continuation chain. A user in more groups
	// than this is outside any realistic deployment; the cap guards
	// against a looping or hostile continuation link.
	defaultMaxPages = 100

	// maxErrorBodyBytes caps how much of an error body is read for logging.
	maxErrorBodyBytes = 4 << 10

	// groupODataType marks group-type directory objects in membership
	// results, which also contain directory roles and other object types.
	groupODataType = "#microsoft.graph.group"
)

// directoryObject is one entry of a membership page. The response schema is
// fixed, so fields are mapped explicitly.
type directoryObject struct {
	ODataType   string `json:"@odata.type"`
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// membershipPage is one page of transitiveMemberOf results. NextLink, when
// present, is the verbatim URL of the next page: the service, not the
// client, controls the next-page query shape.
type membershipPage struct {
	Value    []directoryObject `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// graphError is the standard Graph error envelope.
type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Config holds Graph client configuration
type Config struct {
	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// RequestsPerSecond throttles outbound Graph calls. Zero uses a
	// conservative default.
	RequestsPerSecond float64

	// PageSize overrides the page size hint (default 999, the service max).
	PageSize int

	// MaxPages overrides the continuation chain cap (default 100).
	MaxPages int
}

// Client is a paginated, rate-limited Microsoft Graph membership client.
// It is stateless apart from the limiter and safe for concurrent use.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	pageSize   int
	maxPages   int
}

// NewClient creates a Graph membership client.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = defaultPageSize
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)),
		logger:     logger,
		pageSize:   pageSize,
		maxPages:   maxPages,
	}
}

// TransitiveGroups returns the display names of every group the user is a
// transitive member of, unique and sorted. Any HTTP or parse error on any
// page fails the whole fetch; accumulated names are discarded so a partial
// membership is never mistaken for the complete one.
func (c *Client) TransitiveGroups(ctx context.Context, graphBaseURL, accessToken, objectID string) ([]string, error) {
	if objectID == "" {
		return nil, fmt.Errorf("directory object ID is required")
	}
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	query := url.Values{
		"$select": {"id,displayName"},
		"$top":    {strconv.Itoa(c.pageSize)},
	}
	next := fmt.Sprintf("%s/v1.0/users/%s/transitiveMemberOf?%s",
		graphBaseURL, url.PathEscape(objectID), query.Encode())

	seen := make(map[string]struct{})
	pages := 0

	for next != "" {
		pages++
		if pages > c.maxPages {
			return nil, fmt.Errorf("membership pagination exceeded %d pages", c.maxPages)
		}

		page, err := c.fetchPage(ctx, next, accessToken)
		if err != nil {
			return nil, fmt.Errorf("membership page %d: %w", pages, err)
		}

		for _, obj := range page.Value {
			if obj.ODataType != groupODataType || obj.DisplayName == "" {
				continue
			}
			seen[obj.DisplayName] = struct{}{}
		}

		next = page.NextLink
	}

	c.logger.Debug("membership fetch complete", "pages", pages, "groups", len(seen))

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// fetchPage issues one authenticated page request.
func (c *Client) fetchPage(ctx context.Context, pageURL, accessToken string) (*membershipPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request returned status %d: %s", resp.StatusCode, readGraphError(resp.Body))
	}

	var page membershipPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	return &page, nil
}

// readGraphError extracts the service's error detail for the logs.
func readGraphError(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))
	if err != nil || len(raw) == 0 {
		return "no error detail"
	}

	var ge graphError
	if err := json.Unmarshal(raw, &ge); err == nil && ge.Error.Code != "" {
		return fmt.Sprintf("%s: %s", ge.Error.Code, ge.Error.Message)
	}
	return string(raw)
}
