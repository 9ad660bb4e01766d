package cloudflare

import "context"

// Zone identifies a DNS zone in the account.
type Zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Record is a DNS record in a zone. Only TXT records are managed here.
type Record struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}

// ZoneIterator walks a zone listing one page at a time. Next reports
// whether another zone is available, Current returns it, and Err surfaces
// the failure that ended iteration early. Iterators are single-use: every
// listing starts a fresh page-1 traversal.
type ZoneIterator interface {
	Next() bool
	Current() Zone
	Err() error
}

// API is the minimal Cloudflare surface the challenge lifecycle needs.
// Two implementations exist: Client speaks the REST API directly and
// SDKClient delegates to the official Go SDK. Which one backs a Provider
// is chosen at construction time via Config.Mode.
type API interface {
	// Ping verifies connectivity and the configured credentials.
	Ping(ctx context.Context) error

	// Zones begins a paginated walk over the account's zones.
	Zones(ctx context.Context) ZoneIterator

	// ListTXT returns the TXT records at name within the zone. Records
	// whose name does not match exactly are filtered out regardless of
	// what the server-side filter returned.
	ListTXT(ctx context.Context, zoneID, name string) ([]Record, error)

	// CreateTXT publishes a TXT record and returns it with the id the
	// provider assigned.
	CreateTXT(ctx context.Context, zoneID, name, content string, ttl int) (*Record, error)

	// DeleteRecord deletes a single record by id.
	DeleteRecord(ctx context.Context, zoneID, recordID string) error
}
