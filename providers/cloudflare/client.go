package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gitlab.bluewillows.net/root/acmeweaver/internal/metrics"
	"gitlab.bluewillows.net/root/acmeweaver/pkg/challenge"
	"gitlab.bluewillows.net/root/acmeweaver/pkg/httputil"
)

const (
	// DefaultAPIEndpoint is the Cloudflare v4 REST API base URL.
	DefaultAPIEndpoint = "https://api.cloudflare.com/client/v4"

	// DefaultTimeout is the default HTTP timeout for API calls.
	DefaultTimeout = 30 * time.Second
)

// apiError is a single error entry in a Cloudflare API response.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// resultInfo carries pagination metadata for list responses.
type resultInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	Count      int `json:"count"`
	TotalCount int `json:"total_count"`
}

// apiResponse is the standard Cloudflare API response envelope.
type apiResponse struct {
	Success    bool              `json:"success"`
	Errors     []apiError        `json:"errors"`
	Messages   []json.RawMessage `json:"messages"`
	Result     json.RawMessage   `json:"result"`
	ResultInfo *resultInfo       `json:"result_info"`
}

// totalPages returns the page count the provider reported, or 0 when the
// response carried no pagination metadata, which ends iteration after the
// current page.
func (r *apiResponse) totalPages() int {
	if r.ResultInfo == nil {
		return 0
	}
	return r.ResultInfo.TotalPages
}

// createRecordRequest is the body for record creation calls.
type createRecordRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}

// Auth selects one of the two Cloudflare authentication modes. GlobalKey
// is sent alone as a bearer credential; APIKey and APIMail are sent as the
// legacy X-Auth-Key and X-Auth-Email header pair. The modes are mutually
// exclusive.
type Auth struct {
	GlobalKey string
	APIKey    string
	APIMail   string
}

// bearer reports whether bearer authentication is in effect.
func (a Auth) bearer() bool {
	return a.GlobalKey != ""
}

// Client is a minimal Cloudflare REST API client covering the zone and
// DNS record calls the challenge lifecycle needs.
type Client struct {
	apiEndpoint string
	auth        Auth
	httpClient  *http.Client
	logger      *slog.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAPIEndpoint overrides the API base URL. Used in tests.
func WithAPIEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.apiEndpoint = endpoint
	}
}

// NewClient creates a new Cloudflare API client.
func NewClient(auth Auth, opts ...ClientOption) *Client {
	c := &Client{
		apiEndpoint: DefaultAPIEndpoint,
		auth:        auth,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = httputil.NewClient(&httputil.ClientConfig{
			Timeout: DefaultTimeout,
			Logger:  c.logger,
		})
	}

	return c
}

// applyAuth sets the authentication headers for the configured mode.
func (c *Client) applyAuth(req *http.Request) {
	if c.auth.bearer() {
		req.Header.Set("Authorization", "Bearer "+c.auth.GlobalKey)
		return
	}
	req.Header.Set("X-Auth-Key", c.auth.APIKey)
	req.Header.Set("X-Auth-Email", c.auth.APIMail)
}

// doRequest performs an API request and decodes the response envelope.
// A response with success=false is returned as an error carrying the
// provider's first error code and message.
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiEndpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.applyAuth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveAPIRequest(method, 0)
		return nil, fmt.Errorf("%w: %w", challenge.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	metrics.ObserveAPIRequest(method, resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing response (status %d): %w", resp.StatusCode, err)
	}

	if !apiResp.Success {
		return nil, c.responseError(resp.StatusCode, &apiResp)
	}

	return &apiResp, nil
}

// responseError builds an error from a failed API response envelope.
func (c *Client) responseError(status int, resp *apiResponse) error {
	errMsg := "unknown error"
	errCode := 0
	if len(resp.Errors) > 0 {
		errMsg = resp.Errors[0].Message
		errCode = resp.Errors[0].Code
	}

	err := fmt.Errorf("API error: %s (code: %d)", errMsg, errCode)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%w: %w", challenge.ErrUnauthorized, err)
	}
	return err
}

// Ping verifies connectivity and credentials. Bearer tokens are checked
// against the token verification endpoint; the key+email pair against the
// user endpoint, since token verification rejects that mode.
func (c *Client) Ping(ctx context.Context) error {
	path := "/user"
	if c.auth.bearer() {
		path = "/user/tokens/verify"
	}

	if _, err := c.doRequest(ctx, http.MethodGet, path, nil); err != nil {
		return fmt.Errorf("cloudflare ping failed: %w", err)
	}
	return nil
}

// Zones begins a paginated walk over the account's zones.
func (c *Client) Zones(ctx context.Context) ZoneIterator {
	return newPager(ctx, defaultPerPage, c.listZonesPage)
}

// listZonesPage fetches one page of the zone listing.
func (c *Client) listZonesPage(ctx context.Context, page, perPage int) ([]Zone, int, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	resp, err := c.doRequest(ctx, http.MethodGet, "/zones?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("listing zones: %w", err)
	}

	var zones []Zone
	if err := json.Unmarshal(resp.Result, &zones); err != nil {
		return nil, 0, fmt.Errorf("parsing zones: %w", err)
	}

	c.logger.Debug("fetched zone page",
		slog.Int("page", page),
		slog.Int("count", len(zones)),
	)

	return zones, resp.totalPages(), nil
}

// ListTXT returns the TXT records at name within the zone. The listing is
// filtered server-side by type and name, then re-checked client-side so a
// lax server filter cannot leak records at other names.
func (c *Client) ListTXT(ctx context.Context, zoneID, name string) ([]Record, error) {
	iter := newPager(ctx, defaultPerPage, func(ctx context.Context, page, perPage int) ([]Record, int, error) {
		params := url.Values{}
		params.Set("type", "TXT")
		params.Set("name", name)
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(perPage))

		resp, err := c.doRequest(ctx, http.MethodGet, "/zones/"+zoneID+"/dns_records?"+params.Encode(), nil)
		if err != nil {
			return nil, 0, fmt.Errorf("listing records: %w", err)
		}

		var records []Record
		if err := json.Unmarshal(resp.Result, &records); err != nil {
			return nil, 0, fmt.Errorf("parsing records: %w", err)
		}

		return records, resp.totalPages(), nil
	})

	var records []Record
	for iter.Next() {
		rec := iter.Current()
		if rec.Name != name {
			continue
		}
		records = append(records, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	c.logger.Debug("listed TXT records",
		slog.String("zone_id", zoneID),
		slog.String("name", name),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// CreateTXT publishes a TXT record in the zone.
func (c *Client) CreateTXT(ctx context.Context, zoneID, name, content string, ttl int) (*Record, error) {
	body, err := json.Marshal(createRecordRequest{
		Type:    "TXT",
		Name:    name,
		Content: content,
		TTL:     ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/zones/"+zoneID+"/dns_records", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(resp.Result, &rec); err != nil {
		return nil, fmt.Errorf("parsing record: %w", err)
	}

	c.logger.Info("created TXT record",
		slog.String("zone_id", zoneID),
		slog.String("name", name),
		slog.String("record_id", rec.ID),
		slog.Int("ttl", ttl),
	)

	return &rec, nil
}

// DeleteRecord deletes a single record by id.
func (c *Client) DeleteRecord(ctx context.Context, zoneID, recordID string) error {
	if _, err := c.doRequest(ctx, http.MethodDelete, "/zones/"+zoneID+"/dns_records/"+recordID, nil); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}

	c.logger.Info("deleted TXT record",
		slog.String("zone_id", zoneID),
		slog.String("record_id", recordID),
	)

	return nil
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)
