package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/token"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var decode bool

	cmd := &cobra.Command{
		Use:   "token <configuration>",
		Short: "Print the provider token a token-auth configuration would send",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, "", func(rt *runtime) error {
				tok, err := rt.engine.Token(args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !decode {
					fmt.Fprintln(out, tok)
					return nil
				}
				parts := strings.Split(tok, ".")
				if len(parts) != 3 {
					return fmt.Errorf("token has %d segments, want 3", len(parts))
				}
				header, err := token.DecodeSegment(parts[0])
				if err != nil {
					return fmt.Errorf("decode header: %w", err)
				}
				claims, err := token.DecodeSegment(parts[1])
				if err != nil {
					return fmt.Errorf("decode claims: %w", err)
				}
				fmt.Fprintf(out, "Header:  %s\n", header)
				fmt.Fprintf(out, "Claims:  %s\n", claims)
				fmt.Fprintf(out, "Refresh: every %s\n", token.RefreshInterval.Round(time.Minute))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&decode, "decode", false, "Print the decoded header and claims instead of the token")
	return cmd
}
