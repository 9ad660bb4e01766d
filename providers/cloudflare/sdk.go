package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	cfapi "github.com/cloudflare/cloudflare-go/v4"
	"github.com/cloudflare/cloudflare-go/v4/dns"
	"github.com/cloudflare/cloudflare-go/v4/option"
	"github.com/cloudflare/cloudflare-go/v4/packages/pagination"
	"github.com/cloudflare/cloudflare-go/v4/zones"

	"gitlab.bluewillows.net/root/acmeweaver/internal/metrics"
	"gitlab.bluewillows.net/root/acmeweaver/pkg/challenge"
)

// SDKClient implements API on top of the official Cloudflare Go SDK.
type SDKClient struct {
	api      *cfapi.Client
	endpoint string
	logger   *slog.Logger
}

// SDKOption is a functional option for configuring the SDKClient.
type SDKOption func(*SDKClient)

// WithSDKLogger sets a custom logger.
func WithSDKLogger(logger *slog.Logger) SDKOption {
	return func(s *SDKClient) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSDKEndpoint overrides the API base URL. Used in tests.
func WithSDKEndpoint(endpoint string) SDKOption {
	return func(s *SDKClient) {
		s.endpoint = endpoint
	}
}

// NewSDKClient creates an SDK-backed Cloudflare client.
func NewSDKClient(auth Auth, opts ...SDKOption) *SDKClient {
	s := &SDKClient{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	reqOpts := []option.RequestOption{}
	if auth.bearer() {
		reqOpts = append(reqOpts, option.WithAPIToken(auth.GlobalKey))
	} else {
		reqOpts = append(reqOpts,
			option.WithAPIKey(auth.APIKey),
			option.WithAPIEmail(auth.APIMail),
		)
	}
	if s.endpoint != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.endpoint))
	}
	reqOpts = append(reqOpts, option.WithMiddleware(observeRequests))

	s.api = cfapi.NewClient(reqOpts...)

	return s
}

// observeRequests counts every SDK round-trip in the API request metric.
func observeRequests(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	resp, err := next(req)
	if resp != nil {
		metrics.ObserveAPIRequest(req.Method, resp.StatusCode)
	} else {
		metrics.ObserveAPIRequest(req.Method, 0)
	}
	return resp, err
}

// mapSDKError translates SDK failures into the shared error taxonomy.
func mapSDKError(err error) error {
	if err == nil {
		return nil
	}
	var apierr *cfapi.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == http.StatusUnauthorized || apierr.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %w", challenge.ErrUnauthorized, err)
		}
	}
	return err
}

// Ping verifies connectivity and credentials with a single zone listing.
func (s *SDKClient) Ping(ctx context.Context) error {
	if _, err := s.api.Zones.List(ctx, zones.ZoneListParams{}); err != nil {
		return fmt.Errorf("cloudflare ping failed: %w", mapSDKError(err))
	}
	return nil
}

// sdkZoneIterator adapts the SDK's auto-pager to ZoneIterator.
type sdkZoneIterator struct {
	pager   *pagination.V4PagePaginationArrayAutoPager[zones.Zone]
	current Zone
}

func (it *sdkZoneIterator) Next() bool {
	if !it.pager.Next() {
		return false
	}
	z := it.pager.Current()
	it.current = Zone{ID: z.ID, Name: z.Name}
	return true
}

func (it *sdkZoneIterator) Current() Zone {
	return it.current
}

func (it *sdkZoneIterator) Err() error {
	return mapSDKError(it.pager.Err())
}

// Zones begins a paginated walk over the account's zones.
func (s *SDKClient) Zones(ctx context.Context) ZoneIterator {
	return &sdkZoneIterator{
		pager: s.api.Zones.ListAutoPaging(ctx, zones.ZoneListParams{}),
	}
}

// ListTXT returns the TXT records at name within the zone.
func (s *SDKClient) ListTXT(ctx context.Context, zoneID, name string) ([]Record, error) {
	pager := s.api.DNS.Records.ListAutoPaging(ctx, dns.RecordListParams{
		ZoneID: cfapi.F(zoneID),
		Name:   cfapi.F(dns.RecordListParamsName{Exact: cfapi.F(name)}),
		Type:   cfapi.F(dns.RecordListParamsType("TXT")),
	})

	var records []Record
	for pager.Next() {
		rec := pager.Current()
		if rec.Name != name {
			continue
		}
		records = append(records, Record{
			ID:      rec.ID,
			Type:    string(rec.Type),
			Name:    rec.Name,
			Content: rec.Content,
			TTL:     int(rec.TTL),
		})
	}
	if err := pager.Err(); err != nil {
		return nil, fmt.Errorf("listing records: %w", mapSDKError(err))
	}

	s.logger.Debug("listed TXT records",
		slog.String("zone_id", zoneID),
		slog.String("name", name),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// CreateTXT publishes a TXT record in the zone.
func (s *SDKClient) CreateTXT(ctx context.Context, zoneID, name, content string, ttl int) (*Record, error) {
	rec, err := s.api.DNS.Records.New(ctx, dns.RecordNewParams{
		ZoneID: cfapi.F(zoneID),
		Record: dns.TXTRecordParam{
			Name:    cfapi.F(name),
			Type:    cfapi.F(dns.TXTRecordTypeTXT),
			Content: cfapi.F(content),
			TTL:     cfapi.F(dns.TTL(ttl)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating record: %w", mapSDKError(err))
	}

	s.logger.Info("created TXT record",
		slog.String("zone_id", zoneID),
		slog.String("name", name),
		slog.String("record_id", rec.ID),
		slog.Int("ttl", ttl),
	)

	return &Record{
		ID:      rec.ID,
		Type:    string(rec.Type),
		Name:    rec.Name,
		Content: rec.Content,
		TTL:     int(rec.TTL),
	}, nil
}

// DeleteRecord deletes a single record by id.
func (s *SDKClient) DeleteRecord(ctx context.Context, zoneID, recordID string) error {
	if _, err := s.api.DNS.Records.Delete(ctx, recordID, dns.RecordDeleteParams{
		ZoneID: cfapi.F(zoneID),
	}); err != nil {
		return fmt.Errorf("deleting record: %w", mapSDKError(err))
	}

	s.logger.Info("deleted TXT record",
		slog.String("zone_id", zoneID),
		slog.String("record_id", recordID),
	)

	return nil
}

// Ensure SDKClient implements API at compile time.
var _ API = (*SDKClient)(nil)
