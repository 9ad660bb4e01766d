// Package solver drives a complete ACME DNS-01 order against a directory
// endpoint, fulfilling authorizations through a challenge provider. It is
// the end-to-end harness behind the solve command: it proves the provider
// publishes records an ACME server accepts, finalizing one test order along
// the way.
package solver

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/acme"

	"gitlab.bluewillows.net/root/acmeweaver/internal/metrics"
	"gitlab.bluewillows.net/root/acmeweaver/pkg/challenge"
)

// DefaultDirectoryURL is the Let's Encrypt staging directory. The production
// directory is never the default; a test harness must opt into real issuance.
const DefaultDirectoryURL = "https://acme-staging-v02.api.letsencrypt.org/directory"

// challengeType is the only ACME challenge type this solver fulfills.
const challengeType = "dns-01"

// challengePrefix is the record label ACME validators query.
const challengePrefix = "_acme-challenge"

// Solver obtains one certificate through DNS-01 challenges. Each Solve call
// registers a fresh throwaway account, so no state persists between runs.
type Solver struct {
	provider     challenge.Provider
	directoryURL string
	httpClient   *http.Client
	logger       *slog.Logger
}

// Option is a functional option for configuring the Solver.
type Option func(*Solver)

// WithDirectoryURL sets the ACME directory endpoint.
func WithDirectoryURL(url string) Option {
	return func(s *Solver) {
		if url != "" {
			s.directoryURL = url
		}
	}
}

// WithHTTPClient sets the HTTP client used for ACME calls. A Pebble
// directory needs one that accepts its self-signed certificate.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *Solver) {
		if httpClient != nil {
			s.httpClient = httpClient
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Solver) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Solver that fulfills challenges through provider.
func New(provider challenge.Provider, opts ...Option) (*Solver, error) {
	if provider == nil {
		return nil, errors.New("challenge provider is required")
	}

	s := &Solver{
		provider:     provider,
		directoryURL: DefaultDirectoryURL,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Solve orders a certificate for domain, fulfilling every authorization via
// DNS-01, and returns the issued certificate chain in DER form. The
// challenge records are removed again before Solve returns, whether or not
// the order succeeds.
func (s *Solver) Solve(ctx context.Context, domain string) (chain [][]byte, err error) {
	defer func() {
		status := "issued"
		if err != nil {
			status = "failed"
		}
		metrics.ACMEOrdersTotal.WithLabelValues(status).Inc()
	}()

	if domain == "" {
		return nil, errors.New("domain is required")
	}

	accountKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating account key: %w", err)
	}

	client := &acme.Client{
		Key:          accountKey,
		DirectoryURL: s.directoryURL,
		HTTPClient:   s.httpClient,
	}

	if _, err := client.Register(ctx, &acme.Account{}, acme.AcceptTOS); err != nil &&
		!errors.Is(err, acme.ErrAccountAlreadyExists) {
		return nil, fmt.Errorf("registering account: %w", err)
	}

	s.logger.Info("acme order starting",
		slog.String("domain", domain),
		slog.String("directory", s.directoryURL),
	)

	order, err := client.AuthorizeOrder(ctx, acme.DomainIDs(domain))
	if err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}

	for _, authzURL := range order.AuthzURLs {
		authz, err := client.GetAuthorization(ctx, authzURL)
		if err != nil {
			return nil, fmt.Errorf("fetching authorization: %w", err)
		}
		if authz.Status == acme.StatusValid {
			continue
		}

		if err := s.fulfillAuthorization(ctx, client, authz); err != nil {
			return nil, err
		}
	}

	order, err = client.WaitOrder(ctx, order.URI)
	if err != nil {
		return nil, fmt.Errorf("waiting for order: %w", err)
	}

	csr, err := newCSR(domain)
	if err != nil {
		return nil, err
	}

	chain, _, err = client.CreateOrderCert(ctx, order.FinalizeURL, csr, true)
	if err != nil {
		return nil, fmt.Errorf("finalizing order: %w", err)
	}

	s.logger.Info("acme order complete",
		slog.String("domain", domain),
		slog.Int("chain_length", len(chain)),
	)

	return chain, nil
}

// fulfillAuthorization publishes the DNS-01 record for one authorization,
// accepts the challenge, and waits for the server to validate it. The
// record is removed after validation, successful or not.
func (s *Solver) fulfillAuthorization(ctx context.Context, client *acme.Client, authz *acme.Authorization) error {
	chal := dns01Challenge(authz)
	if chal == nil {
		return fmt.Errorf("authorization for %q offers no %s challenge", authz.Identifier.Value, challengeType)
	}

	value, err := client.DNS01ChallengeRecord(chal.Token)
	if err != nil {
		return fmt.Errorf("computing challenge record: %w", err)
	}

	ch := challengeFor(authz.Identifier.Value, value)

	if err := s.provider.Set(ctx, ch); err != nil {
		return fmt.Errorf("publishing challenge record: %w", err)
	}

	defer func() {
		// Remove runs its own absence verification; failures only cost a
		// leftover TXT record, so they are logged rather than surfaced.
		if err := s.provider.Remove(ctx, ch); err != nil {
			s.logger.Warn("cleaning up challenge record failed",
				slog.String("name", ch.FQDN()),
				slog.String("error", err.Error()),
			)
		}
	}()

	if _, err := client.Accept(ctx, chal); err != nil {
		return fmt.Errorf("accepting challenge: %w", err)
	}

	if _, err := client.WaitAuthorization(ctx, authz.URI); err != nil {
		return fmt.Errorf("waiting for authorization: %w", err)
	}

	s.logger.Info("authorization validated", slog.String("domain", authz.Identifier.Value))

	return nil
}

// dns01Challenge returns the authorization's dns-01 challenge, or nil when
// the server offers none.
func dns01Challenge(authz *acme.Authorization) *acme.Challenge {
	for _, chal := range authz.Challenges {
		if chal.Type == challengeType {
			return chal
		}
	}
	return nil
}

// challengeFor builds the provider challenge descriptor for a domain's
// DNS-01 record value.
func challengeFor(domain, value string) *challenge.Challenge {
	return &challenge.Challenge{
		Prefix:        challengePrefix,
		Zone:          domain,
		Authorization: value,
	}
}

// newCSR builds a DER-encoded certificate signing request for domain with a
// throwaway P-256 key. The key is discarded; the solver proves challenge
// handling, it does not deploy certificates.
func newCSR(domain string) ([]byte, error) {
	certKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating certificate key: %w", err)
	}

	csr, err := x509.CreateCertificateRequest(rand.Reader, &x509.CertificateRequest{
		Subject:  pkix.Name{CommonName: domain},
		DNSNames: []string{domain},
	}, certKey)
	if err != nil {
		return nil, fmt.Errorf("creating certificate request: %w", err)
	}

	return csr, nil
}
