package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"courier/internal/push"
)

type configSummary struct {
	Name        string  `json:"name"`
	Environment string  `json:"environment"`
	Auth        string  `json:"auth"`
	Address     string  `json:"address"`
	Topic       string  `json:"topic,omitempty"`
	RateLimit   float64 `json:"rate_per_second,omitempty"`
	Default     bool    `json:"default"`
}

func newConfigsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "configs",
		Short: "List configured gateway configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			summaries := make([]configSummary, 0, len(cfg.APNs))
			for _, entry := range cfg.APNs {
				pcfg, err := push.FromConfig(entry)
				if err != nil {
					return err
				}
				host, port := pcfg.Address()
				summaries = append(summaries, configSummary{
					Name:        entry.Name,
					Environment: pcfg.Environment.String(),
					Auth:        entry.AuthMode(),
					Address:     host + ":" + strconv.Itoa(port),
					Topic:       firstNonEmpty(entry.Topic, cfg.Push.Topic),
					RateLimit:   entry.RatePerSecond,
					Default:     entry.Name == cfg.Push.DefaultConfiguration,
				})
			}

			if jsonOutput {
				return writeJSON(cmd, summaries)
			}
			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No [[apns]] configurations defined")
				return nil
			}
			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, []string{
					s.Name,
					s.Environment,
					s.Auth,
					s.Address,
					s.Topic,
					rateLabel(s.RateLimit),
					yesNo(s.Default),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Environment", "Auth", "Address", "Topic", "Rate", "Default"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func rateLabel(rate float64) string {
	if rate <= 0 {
		return "-"
	}
	return strconv.FormatFloat(rate, 'f', -1, 64) + "/s"
}
