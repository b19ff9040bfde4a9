package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/preflight"
	"courier/internal/transport"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check directories, credentials, and gateway reachability",
		Long: "Run readiness checks for every configured gateway.\n\n" +
			"Credentials are loaded the same way a send would load them and each gateway\n" +
			"is dialed and pinged over HTTP/2. Use --offline to skip the dials.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dialer := transport.NewHTTP2Dialer(
				transport.WithConnectTimeout(time.Duration(cfg.Pool.ConnectTimeoutSeconds) * time.Second),
			)
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{Dialer: dialer, Offline: offline})

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Readiness", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if len(cfg.APNs) == 0 {
				fmt.Fprintln(out, renderStatusLine("Gateways", statusWarn, "no [[apns]] entries configured", colorize))
			}
			if failed := preflight.Failed(results); failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip gateway dials")
	return cmd
}
