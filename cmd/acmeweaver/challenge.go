package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gitlab.bluewillows.net/root/acmeweaver/pkg/challenge"
	"gitlab.bluewillows.net/root/acmeweaver/pkg/propagation"
)

// Challenge flags shared by set, remove, and get. One subcommand runs per
// invocation, so the shared variables cannot collide.
var (
	flagPrefix        string
	flagZone          string
	flagAuthorization string
)

func addChallengeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagPrefix, "prefix", "_acme-challenge", "record label prepended to the zone")
	cmd.Flags().StringVar(&flagZone, "zone", "", "domain being authorized")
	cmd.Flags().StringVar(&flagAuthorization, "authorization", "", "TXT value proving control of the domain")
	_ = cmd.MarkFlagRequired("zone")
	_ = cmd.MarkFlagRequired("authorization")
}

func flagChallenge() *challenge.Challenge {
	return &challenge.Challenge{
		Prefix:        flagPrefix,
		Zone:          flagZone,
		Authorization: flagAuthorization,
	}
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Publish a challenge TXT record",
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

		ch := flagChallenge()
		if err := p.Set(ctx, ch); err != nil {
			return err
		}

		logger.Info("challenge record set", slog.String("name", ch.FQDN()))
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a challenge TXT record and confirm its disappearance",
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

		ch := flagChallenge()
		if err := p.Remove(ctx, ch); err != nil {
			return err
		}

		logger.Info("challenge record removed", slog.String("name", ch.FQDN()))
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Look up a published challenge record (prints null if absent)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		p, err := newProvider()
		if err != nil {
			return err
		}

		rec, err := p.Get(ctx, flagChallenge())
		if err != nil {
			return err
		}

		return json.NewEncoder(os.Stdout).Encode(rec)
	},
}

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List the zone names visible to the configured account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		p, err := newProvider()
		if err != nil {
			return err
		}

		names, err := p.Zones(ctx)
		if err != nil {
			return err
		}

		return json.NewEncoder(os.Stdout).Encode(names)
	},
}

// Verify flags.
var (
	flagVerifyName    string
	flagVerifyValue   string
	flagVerifyAbsent  bool
	flagVerifyWait    time.Duration
	flagVerifyRetries int
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the propagation verifier standalone",
	Long: `verify polls the configured public resolver until a TXT record
reaches the expected state: present with the given value, or absent when
--absent is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		v := propagation.New(
			propagation.WithResolver(cfg.Provider["RESOLVER"]),
			propagation.WithLogger(logger),
		)

		mode := "present"
		verify := v.VerifyPresent
		if flagVerifyAbsent {
			mode = "absent"
			verify = v.VerifyAbsent
		}

		if err := verify(ctx, flagVerifyName, flagVerifyValue, flagVerifyWait, flagVerifyRetries); err != nil {
			return err
		}

		fmt.Printf("verified %s: %s\n", mode, flagVerifyName)
		return nil
	},
}

func init() {
	addChallengeFlags(setCmd)
	addChallengeFlags(removeCmd)
	addChallengeFlags(getCmd)

	verifyCmd.Flags().StringVar(&flagVerifyName, "name", "", "fully-qualified record name to query")
	verifyCmd.Flags().StringVar(&flagVerifyValue, "value", "", "expected TXT value")
	verifyCmd.Flags().BoolVar(&flagVerifyAbsent, "absent", false, "verify the value is gone instead of present")
	verifyCmd.Flags().DurationVar(&flagVerifyWait, "wait", 0, "delay between attempts (default 10s)")
	verifyCmd.Flags().IntVar(&flagVerifyRetries, "retries", 0, "maximum attempts (default 30)")
	_ = verifyCmd.MarkFlagRequired("name")
	_ = verifyCmd.MarkFlagRequired("value")
}
