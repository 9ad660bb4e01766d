package main

import (
	"encoding/pem"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"gitlab.bluewillows.net/root/acmeweaver/internal/solver"
	"gitlab.bluewillows.net/root/acmeweaver/pkg/httputil"
)

var (
	flagSolveDomain    string
	flagSolveDirectory string
	flagSolveInsecure  bool
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Run a complete ACME DNS-01 order as an end-to-end test",
	Long: `solve registers a throwaway account with an ACME directory, orders a
certificate for the domain, fulfills the DNS-01 challenge through the
configured provider, and prints the issued chain as PEM. The default
directory is the Let's Encrypt staging environment; point --directory at a
local Pebble instance (with --insecure) for an offline run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		p, err := newProvider()
		if err != nil {
			return err
		}
		if err := p.Init(ctx); err != nil {
			return err
		}

		var httpClient *http.Client
		if flagSolveInsecure {
			httpClient = httputil.NewClient(&httputil.ClientConfig{
				TLSSkipVerify: true,
				Logger:        logger,
			})
		}

		s, err := solver.New(p,
			solver.WithDirectoryURL(flagSolveDirectory),
			solver.WithHTTPClient(httpClient),
			solver.WithLogger(logger),
		)
		if err != nil {
			return err
		}

		chain, err := s.Solve(ctx, flagSolveDomain)
		if err != nil {
			return err
		}

		for _, der := range chain {
			if err := pem.Encode(os.Stdout, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
				return fmt.Errorf("encoding certificate: %w", err)
			}
		}
		return nil
	},
}

func init() {
	solveCmd.Flags().StringVar(&flagSolveDomain, "domain", "", "domain to order a certificate for")
	solveCmd.Flags().StringVar(&flagSolveDirectory, "directory", solver.DefaultDirectoryURL, "ACME directory URL")
	solveCmd.Flags().BoolVar(&flagSolveInsecure, "insecure", false, "skip TLS verification of the directory (Pebble)")
	_ = solveCmd.MarkFlagRequired("domain")
}
