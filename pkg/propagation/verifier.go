// Package propagation confirms DNS record visibility through a public
// resolver before or after challenge records change.
//
// Verification queries a fixed external resolver (1.1.1.1 by default)
// rather than the system default, so the check observes the same view an
// outside validator would. Presence and absence share one bounded polling
// loop with a fixed delay between attempts and no backoff.
package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Defaults for the verification loop.
const (
	// DefaultResolver is the external DNS server queried for TXT records.
	DefaultResolver = "1.1.1.1:53"

	// DefaultWaitFor is the fixed delay between verification attempts.
	DefaultWaitFor = 10 * time.Second

	// DefaultRetries bounds the number of verification attempts.
	DefaultRetries = 30

	// DefaultQueryTimeout is the timeout for a single DNS exchange.
	DefaultQueryTimeout = 10 * time.Second
)

// Sentinel errors for propagation checks.
var (
	// ErrNotVerified is returned when the expected DNS state could not be
	// confirmed within the retry budget.
	ErrNotVerified = errors.New("could not verify dns propagation")

	// ErrNameNotFound is returned when the resolver reports NXDOMAIN.
	ErrNameNotFound = errors.New("dns name does not exist")

	// ErrQueryFailed is returned when a DNS exchange fails or the server
	// answers with an unexpected rcode.
	ErrQueryFailed = errors.New("dns query failed")
)

// lookupFunc resolves the TXT values published at a name. Each TXT record's
// segments are joined with a single space.
type lookupFunc func(ctx context.Context, fqdn string) ([]string, error)

// Verifier polls a DNS resolver until a TXT record reaches the expected
// state. The zero delay/retry arguments of the Verify methods fall back to
// the package defaults.
type Verifier struct {
	resolver string
	timeout  time.Duration
	logger   *slog.Logger
	lookup   lookupFunc
}

// Option is a functional option for configuring the Verifier.
type Option func(*Verifier)

// WithResolver sets the DNS server to query, as host:port.
func WithResolver(resolver string) Option {
	return func(v *Verifier) {
		if resolver != "" {
			v.resolver = resolver
		}
	}
}

// WithQueryTimeout sets the timeout for a single DNS exchange.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(v *Verifier) {
		if timeout > 0 {
			v.timeout = timeout
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// New creates a Verifier.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		resolver: DefaultResolver,
		timeout:  DefaultQueryTimeout,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(v)
	}

	v.lookup = v.lookupTXT

	return v
}

// Resolver returns the configured DNS server address.
func (v *Verifier) Resolver() string {
	return v.resolver
}

// VerifyPresent polls until the TXT records at fqdn include value.
// A name that resolves without the value, resolves to no data, or fails to
// resolve at all counts as a failed attempt.
func (v *Verifier) VerifyPresent(ctx context.Context, fqdn, value string, waitFor time.Duration, retries int) error {
	return v.verify(ctx, fqdn, value, true, waitFor, retries)
}

// VerifyAbsent polls until the TXT records at fqdn no longer include
// value. A name that resolves to no data counts as absent; a failed query
// counts as a failed attempt.
func (v *Verifier) VerifyAbsent(ctx context.Context, fqdn, value string, waitFor time.Duration, retries int) error {
	return v.verify(ctx, fqdn, value, false, waitFor, retries)
}

func (v *Verifier) verify(ctx context.Context, fqdn, value string, wantPresent bool, waitFor time.Duration, retries int) error {
	if waitFor <= 0 {
		waitFor = DefaultWaitFor
	}
	if retries < 1 {
		retries = DefaultRetries
	}

	mode := "absent"
	if wantPresent {
		mode = "present"
	}

	for attempt := 1; attempt <= retries; attempt++ {
		values, err := v.lookup(ctx, fqdn)
		if err == nil && slices.Contains(values, value) == wantPresent {
			v.logger.Debug("propagation verified",
				slog.String("name", fqdn),
				slog.String("mode", mode),
				slog.Int("attempt", attempt),
			)
			return nil
		}

		if err != nil {
			v.logger.Debug("propagation check failed",
				slog.String("name", fqdn),
				slog.String("mode", mode),
				slog.Int("attempt", attempt),
				slog.Int("retries", retries),
				slog.String("error", err.Error()),
			)
		} else {
			v.logger.Debug("propagation not confirmed",
				slog.String("name", fqdn),
				slog.String("mode", mode),
				slog.Int("attempt", attempt),
				slog.Int("retries", retries),
				slog.Int("records", len(values)),
			)
		}

		// Every failed attempt is followed by the full delay, the final
		// one included.
		if err := sleepContext(ctx, waitFor); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w for %s", ErrNotVerified, fqdn)
}

// lookupTXT queries the configured resolver for TXT records at fqdn.
// Truncated or timed-out UDP exchanges are retried once over TCP.
func (v *Verifier) lookupTXT(ctx context.Context, fqdn string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(fqdn), dns.TypeTXT)
	m.SetEdns0(4096, false)
	m.RecursionDesired = true

	udp := &dns.Client{Net: "udp", Timeout: v.timeout}
	in, _, err := udp.ExchangeContext(ctx, m, v.resolver)

	if (in != nil && in.Truncated) || isUDPTimeout(err) {
		tcp := &dns.Client{Net: "tcp", Timeout: v.timeout}
		in, _, err = tcp.ExchangeContext(ctx, m, v.resolver)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s", ErrNameNotFound, fqdn)
	default:
		return nil, fmt.Errorf("%w: server returned %s", ErrQueryFailed, dns.RcodeToString[in.Rcode])
	}

	var values []string
	for _, rr := range in.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		values = append(values, strings.Join(txt.Txt, " "))
	}

	return values, nil
}

// isUDPTimeout reports whether err is a network timeout, which warrants
// retrying the query over TCP.
func isUDPTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
