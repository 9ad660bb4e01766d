// Package cloudflare implements the ACME DNS-01 challenge lifecycle for
// Cloudflare DNS: provisioning challenge TXT records, removing them after
// validation, and confirming both through public DNS.
package cloudflare

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/acmeweaver/internal/metrics"
	"gitlab.bluewillows.net/root/acmeweaver/pkg/challenge"
	"gitlab.bluewillows.net/root/acmeweaver/pkg/propagation"
)

// Verifier confirms record changes through public DNS.
// Implemented by *propagation.Verifier.
type Verifier interface {
	VerifyPresent(ctx context.Context, fqdn, value string, waitFor time.Duration, retries int) error
	VerifyAbsent(ctx context.Context, fqdn, value string, waitFor time.Duration, retries int) error
}

// Provider implements challenge.Provider for Cloudflare DNS.
type Provider struct {
	config   *Config
	api      API
	verifier Verifier
	logger   *slog.Logger
}

// ProviderOption is a functional option for configuring the Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets a custom logger for the provider.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithAPI sets a custom API client, overriding the one selected by
// Config.Mode.
func WithAPI(api API) ProviderOption {
	return func(p *Provider) {
		if api != nil {
			p.api = api
		}
	}
}

// WithVerifier sets a custom propagation verifier.
func WithVerifier(verifier Verifier) ProviderOption {
	return func(p *Provider) {
		if verifier != nil {
			p.verifier = verifier
		}
	}
}

// New creates a new Cloudflare challenge provider.
func New(config *Config, opts ...ProviderOption) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		config: config,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.api == nil {
		api, err := newAPI(config, p.logger)
		if err != nil {
			return nil, err
		}
		p.api = api
	}

	if p.verifier == nil {
		p.verifier = propagation.New(
			propagation.WithResolver(config.Resolver),
			propagation.WithLogger(p.logger),
		)
	}

	return p, nil
}

// newAPI builds the API client selected by Config.Mode.
func newAPI(config *Config, logger *slog.Logger) (API, error) {
	switch config.Mode {
	case ModeSDK:
		return NewSDKClient(config.Auth(),
			WithSDKEndpoint(config.Endpoint),
			WithSDKLogger(logger),
		), nil
	case ModeHTTP:
		return NewClient(config.Auth(),
			WithAPIEndpoint(config.Endpoint),
			WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown API mode %q", config.Mode)
	}
}

// NewFromEnv creates a provider from ACMEWEAVER_CLOUDFLARE_* environment
// variables.
func NewFromEnv(opts ...ProviderOption) (*Provider, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	return New(config, opts...)
}

// NewFromMap creates a provider from a settings map keyed by the same
// uppercase names the environment variables use. This is how file-based
// configuration reaches the provider.
func NewFromMap(settings map[string]string, opts ...ProviderOption) (*Provider, error) {
	config, err := ConfigFromMap(settings)
	if err != nil {
		return nil, err
	}

	return New(config, opts...)
}

// Type returns "cloudflare".
func (p *Provider) Type() string {
	return "cloudflare"
}

// Ping checks connectivity to the Cloudflare API.
func (p *Provider) Ping(ctx context.Context) error {
	return p.api.Ping(ctx)
}

// Init prepares the provider for use. The Cloudflare API needs no session
// setup, so there is nothing to do.
func (p *Provider) Init(ctx context.Context) error {
	return nil
}

// Set provisions the TXT record for a pending challenge and, when
// VerifyPropagation is enabled, waits until public DNS serves it.
func (p *Provider) Set(ctx context.Context, ch *challenge.Challenge) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveChallenge("set", time.Since(start), err) }()

	if ch == nil {
		return challenge.ErrChallengeRequired
	}

	name := ch.FQDN()

	zone, err := p.resolveZone(ctx, name)
	if err != nil {
		return challenge.WrapError("cloudflare", "set", err)
	}

	record, err := p.api.CreateTXT(ctx, zone.ID, name, ch.Authorization, p.config.TTL)
	if err != nil {
		return challenge.WrapError("cloudflare", "set", fmt.Errorf("creating TXT record: %w", err))
	}
	metrics.RecordsCreatedTotal.WithLabelValues(zone.Name).Inc()

	p.logger.Info("set challenge record",
		slog.String("name", name),
		slog.String("zone", zone.Name),
		slog.String("record_id", record.ID),
	)

	if p.config.VerifyPropagation {
		if err := p.verifyPresent(ctx, name, ch.Authorization, p.config.WaitFor, p.config.Retries); err != nil {
			return challenge.WrapError("cloudflare", "set", err)
		}
	}

	return nil
}

// Remove deletes every TXT record carrying the challenge value and waits
// until public DNS stops serving it. Removal is confirmed with the
// default propagation budget regardless of VerifyPropagation.
func (p *Provider) Remove(ctx context.Context, ch *challenge.Challenge) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveChallenge("remove", time.Since(start), err) }()

	if ch == nil {
		return challenge.ErrChallengeRequired
	}

	name := ch.FQDN()

	zone, err := p.resolveZone(ctx, name)
	if err != nil {
		return challenge.WrapError("cloudflare", "remove", err)
	}

	records, err := p.api.ListTXT(ctx, zone.ID, name)
	if err != nil {
		return challenge.WrapError("cloudflare", "remove", fmt.Errorf("listing TXT records: %w", err))
	}
	if len(records) == 0 {
		return challenge.WrapError("cloudflare", "remove", fmt.Errorf("%w: no TXT records at %q", challenge.ErrRecordNotFound, name))
	}

	deleted := 0
	for _, rec := range records {
		if rec.Content != ch.Authorization {
			continue
		}
		if err := p.api.DeleteRecord(ctx, zone.ID, rec.ID); err != nil {
			return challenge.WrapError("cloudflare", "remove", fmt.Errorf("deleting record %s: %w", rec.ID, err))
		}
		metrics.RecordsDeletedTotal.WithLabelValues(zone.Name).Inc()
		deleted++
	}

	p.logger.Info("removed challenge records",
		slog.String("name", name),
		slog.String("zone", zone.Name),
		slog.Int("deleted", deleted),
	)

	if err := p.verifyAbsent(ctx, name, ch.Authorization, propagation.DefaultWaitFor, propagation.DefaultRetries); err != nil {
		return challenge.WrapError("cloudflare", "remove", err)
	}

	return nil
}

// Get looks up the TXT record for a challenge. Lookup trouble of any kind
// yields a nil record rather than an error, so callers can poll without
// special-casing transient API failures. Only a nil challenge is rejected.
func (p *Provider) Get(ctx context.Context, ch *challenge.Challenge) (rec *challenge.Record, err error) {
	start := time.Now()
	defer func() { metrics.ObserveChallenge("get", time.Since(start), err) }()

	if ch == nil {
		return nil, challenge.ErrChallengeRequired
	}

	name := ch.FQDN()

	zone, err := p.resolveZone(ctx, name)
	if err != nil {
		p.logger.Debug("zone resolution failed during lookup",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	records, err := p.api.ListTXT(ctx, zone.ID, name)
	if err != nil {
		p.logger.Debug("record listing failed during lookup",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	for _, r := range records {
		if r.Name == name && r.Content == ch.Authorization {
			return &challenge.Record{ID: r.ID, Name: r.Name, Content: r.Content}, nil
		}
	}

	return nil, nil
}

// Zones lists the zone names visible to the configured credentials, in
// API order.
func (p *Provider) Zones(ctx context.Context) (names []string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveChallenge("zones", time.Since(start), err) }()

	iter := p.api.Zones(ctx)
	for iter.Next() {
		names = append(names, iter.Current().Name)
	}
	if err := iter.Err(); err != nil {
		return nil, challenge.WrapError("cloudflare", "zones", fmt.Errorf("listing zones: %w", err))
	}

	return names, nil
}

// resolveZone finds the first zone in listing order whose name is a
// suffix of the record name. The match is plain string comparison, not
// label aware.
func (p *Provider) resolveZone(ctx context.Context, name string) (*Zone, error) {
	iter := p.api.Zones(ctx)
	for iter.Next() {
		zone := iter.Current()
		if strings.HasSuffix(name, zone.Name) {
			return &zone, nil
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("listing zones: %w", err)
	}

	return nil, fmt.Errorf("%w for %q", challenge.ErrZoneNotFound, name)
}

func (p *Provider) verifyPresent(ctx context.Context, name, value string, waitFor time.Duration, retries int) error {
	start := time.Now()
	err := p.verifier.VerifyPresent(ctx, name, value, waitFor, retries)
	metrics.ObservePropagation("present", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("verifying propagation: %w", err)
	}

	return nil
}

func (p *Provider) verifyAbsent(ctx context.Context, name, value string, waitFor time.Duration, retries int) error {
	start := time.Now()
	err := p.verifier.VerifyAbsent(ctx, name, value, waitFor, retries)
	metrics.ObservePropagation("absent", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("verifying removal: %w", err)
	}

	return nil
}

// Ensure Provider implements challenge.Provider at compile time.
var _ challenge.Provider = (*Provider)(nil)
