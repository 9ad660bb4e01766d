// Package challenge defines the ACME DNS-01 challenge model and the
// lifecycle contract implemented by DNS providers.
//
// A challenge describes exactly one TXT record: Prefix + "." + Zone is the
// fully-qualified record name and Authorization is the value the ACME server
// expects to find there. Orchestrators drive providers through the Provider
// interface; the JSON field names follow the wire shape used by Greenlock
// and ACME.js style integrations.
package challenge

import "context"

// Challenge carries the parameters of a single DNS-01 challenge.
type Challenge struct {
	// Prefix is the record label prepended to the zone,
	// usually "_acme-challenge".
	Prefix string `json:"dnsPrefix"`

	// Zone is the domain being authorized.
	Zone string `json:"dnsZone"`

	// Authorization is the TXT value proving control of the domain.
	Authorization string `json:"dnsAuthorization"`

	// Removed marks a challenge whose record has already been deleted.
	// It is consulted only while confirming deletion and never persisted.
	Removed bool `json:"removed,omitempty"`
}

// FQDN returns the fully-qualified record name for the challenge.
func (c *Challenge) FQDN() string {
	return c.Prefix + "." + c.Zone
}

// Record is a published TXT record as seen through the challenge lifecycle.
type Record struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Provider is the DNS-01 challenge lifecycle contract.
//
// Init is called once before any other method and must be cheap. Set
// publishes the challenge record; Remove deletes it and waits for the
// deletion to become visible. Get reports the currently published record
// for a challenge, or nil when none matches; it is best-effort and never
// fails. Zones lists the zone names the backing account can publish into.
type Provider interface {
	Init(ctx context.Context) error
	Set(ctx context.Context, ch *Challenge) error
	Remove(ctx context.Context, ch *Challenge) error
	Get(ctx context.Context, ch *Challenge) (*Record, error)
	Zones(ctx context.Context) ([]string, error)
}
