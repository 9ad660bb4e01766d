// Package pebble runs the Pebble ACME test server in a Docker container for
// end-to-end solver tests. Pebble is Let's Encrypt's small ACME server
// built for exactly this kind of harness.
package pebble

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"gitlab.bluewillows.net/root/acmeweaver/pkg/httputil"
)

// Defaults for the Pebble container.
const (
	// DefaultImage is the Pebble container image.
	DefaultImage = "ghcr.io/letsencrypt/pebble:latest"

	// DefaultPort is the host port the directory is published on.
	DefaultPort = 14000

	// startupTimeout bounds how long Start waits for the directory to
	// answer.
	startupTimeout = 30 * time.Second
)

// Server manages one Pebble container.
type Server struct {
	host        string
	pebbleImage string
	port        int
	alwaysValid bool
	logger      *slog.Logger

	cli         *client.Client
	containerID string
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithHost sets the Docker host address, e.g. "unix:///var/run/docker.sock"
// or "tcp://localhost:2375". If not set, the client uses the DOCKER_HOST
// environment variable or falls back to the default socket.
func WithHost(host string) Option {
	return func(s *Server) {
		s.host = host
	}
}

// WithImage overrides the Pebble container image.
func WithImage(img string) Option {
	return func(s *Server) {
		if img != "" {
			s.pebbleImage = img
		}
	}
}

// WithPort sets the host port the directory is published on.
func WithPort(port int) Option {
	return func(s *Server) {
		if port > 0 {
			s.port = port
		}
	}
}

// WithAlwaysValid makes Pebble accept every challenge without validating
// it. Tests that exercise the order flow rather than DNS itself use this so
// they need no publicly visible records.
func WithAlwaysValid(alwaysValid bool) Option {
	return func(s *Server) {
		s.alwaysValid = alwaysValid
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New connects to the Docker daemon and verifies it is reachable.
func New(ctx context.Context, opts ...Option) (*Server, error) {
	s := &Server{
		pebbleImage: DefaultImage,
		port:        DefaultPort,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	clientOpts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if s.host != "" {
		clientOpts = append(clientOpts, client.WithHost(s.host))
	}

	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("pinging docker daemon: %w", err)
	}

	s.cli = cli
	return s, nil
}

// DirectoryURL returns the ACME directory endpoint of the running server.
// Pebble serves HTTPS with a self-signed certificate; clients need TLS
// verification disabled.
func (s *Server) DirectoryURL() string {
	return fmt.Sprintf("https://localhost:%d/dir", s.port)
}

// HTTPClient returns an HTTP client that accepts Pebble's self-signed
// certificate.
func (s *Server) HTTPClient() *http.Client {
	return httputil.NewClient(&httputil.ClientConfig{
		TLSSkipVerify: true,
		Logger:        s.logger,
	})
}

// Start pulls the image, creates and starts the container, and waits until
// the directory endpoint answers.
func (s *Server) Start(ctx context.Context) error {
	reader, err := s.cli.ImagePull(ctx, s.pebbleImage, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pulling pebble image: %w", err)
	}
	// The pull completes when the stream is drained.
	_, _ = io.Copy(io.Discard, reader)
	reader.Close()

	containerPort := nat.Port("14000/tcp")

	env := []string{"PEBBLE_VA_NOSLEEP=1"}
	if s.alwaysValid {
		env = append(env, "PEBBLE_VA_ALWAYS_VALID=1")
	}

	resp, err := s.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        s.pebbleImage,
			Env:          env,
			ExposedPorts: nat.PortSet{containerPort: struct{}{}},
		},
		&container.HostConfig{
			AutoRemove: true,
			PortBindings: nat.PortMap{
				containerPort: []nat.PortBinding{{
					HostIP:   "127.0.0.1",
					HostPort: fmt.Sprintf("%d", s.port),
				}},
			},
		},
		nil, nil, "")
	if err != nil {
		return fmt.Errorf("creating pebble container: %w", err)
	}
	s.containerID = resp.ID

	if err := s.cli.ContainerStart(ctx, s.containerID, container.StartOptions{}); err != nil {
		return fmt.Errorf("starting pebble container: %w", err)
	}

	s.logger.Info("pebble started",
		slog.String("container_id", s.containerID[:12]),
		slog.String("directory", s.DirectoryURL()),
	)

	return s.waitReady(ctx)
}

// waitReady polls the directory endpoint until it answers.
func (s *Server) waitReady(ctx context.Context) error {
	httpClient := s.HTTPClient()

	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.DirectoryURL(), nil)
		if err != nil {
			return fmt.Errorf("creating readiness request: %w", err)
		}

		resp, err := httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("pebble did not become ready: %w", ctx.Err())
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Stop removes the container.
func (s *Server) Stop(ctx context.Context) error {
	if s.containerID == "" {
		return nil
	}

	if err := s.cli.ContainerRemove(ctx, s.containerID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("removing pebble container: %w", err)
	}

	s.logger.Info("pebble stopped", slog.String("container_id", s.containerID[:12]))
	s.containerID = ""

	return nil
}

// Close releases the Docker client.
func (s *Server) Close() error {
	return s.cli.Close()
}
