package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/deliverylog"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the delivery log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *deliverylog.Store) error {
				entries, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					if entries == nil {
						entries = []deliverylog.Entry{}
					}
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No deliveries recorded")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						e.ID,
						e.StartedAt.Local().Format("2006-01-02 15:04:05"),
						e.Configuration,
						e.Topic,
						strconv.Itoa(e.Recipients),
						strconv.Itoa(e.Delivered),
						failedLabel(e),
						e.Duration.Round(time.Millisecond).String(),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Started", "Configuration", "Topic", "Recipients", "Delivered", "Failed", "Elapsed"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of deliveries to show")
	historyCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryUnregisteredCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func failedLabel(e deliverylog.Entry) string {
	if e.Aggregated {
		return "all"
	}
	return strconv.Itoa(e.Failed)
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <delivery-id>",
		Short: "Show the per-recipient responses of one delivery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *deliverylog.Store) error {
				entry, outcomes, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if entry == nil {
					return fmt.Errorf("delivery %s not found", args[0])
				}
				if jsonOutput {
					return writeJSON(cmd, struct {
						Delivery  *deliverylog.Entry    `json:"delivery"`
						Responses []deliverylog.Outcome `json:"responses"`
					}{entry, outcomes})
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Delivery "+entry.ID, colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Configuration", statusInfo, entry.Configuration, colorize))
				fmt.Fprintln(out, renderStatusLine("Started", statusInfo, entry.StartedAt.Local().Format(time.RFC3339), colorize))
				fmt.Fprintln(out, renderStatusLine("Payload", statusInfo, entry.Payload, colorize))
				kind := statusOK
				if entry.Failed > 0 {
					kind = statusWarn
				}
				if entry.Aggregated || entry.Delivered == 0 {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine("Delivered", kind, fmt.Sprintf("%d of %d", entry.Delivered, entry.Recipients), colorize))

				rows := make([][]string, 0, len(outcomes))
				for _, o := range outcomes {
					detail := o.Reason
					if detail == "" && o.Status != 200 {
						detail = o.Body
					}
					rows = append(rows, []string{strconv.Itoa(o.Position + 1), shortToken(o.Recipient), strconv.Itoa(o.Status), detail, o.APNsID})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Recipient", "Status", "Detail", "APNs ID"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryUnregisteredCommand(ctx *commandContext) *cobra.Command {
	var configuration string

	cmd := &cobra.Command{
		Use:   "unregistered",
		Short: "List device tokens the gateway reported as no longer valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *deliverylog.Store) error {
				outcomes, err := store.Unregistered(cmd.Context(), configuration)
				if err != nil {
					return err
				}
				seen := make(map[string]struct{}, len(outcomes))
				out := cmd.OutOrStdout()
				for _, o := range outcomes {
					if _, dup := seen[o.Recipient]; dup {
						continue
					}
					seen[o.Recipient] = struct{}{}
					fmt.Fprintln(out, o.Recipient)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&configuration, "configuration", "C", "", "Only this configuration")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete deliveries older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.DeliveryLog.RetentionDays
			}
			return ctx.withHistory(func(store *deliverylog.Store) error {
				removed, err := store.PruneRetention(cmd.Context(), days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d deliveries\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Retention window in days (defaults to delivery_log.retention_days)")
	return cmd
}
