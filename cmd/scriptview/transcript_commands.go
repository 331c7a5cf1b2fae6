package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scriptview/internal/api"
	"scriptview/internal/config"
	"scriptview/internal/ipc"
)

func newTranscriptCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newShowCommand(ctx),
		newClearCommand(ctx),
		newReloadCommand(ctx),
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var count int
	var all bool
	var jsonOutput bool
	var follow bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the last entries of the collapsed transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := showLimit(cmd, count, all)
			if follow {
				if jsonOutput {
					return errors.New("--follow and --json cannot be combined")
				}
				return followTranscript(cmd.Context(), cmd.OutOrStdout(), ctx.configValue(), limit)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Transcript(limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					status, err := client.Status()
					if err != nil {
						return err
					}
					fmt.Fprintln(out, emptyTranscriptMessage(status.Transcript))
					return nil
				}
				fmt.Fprint(out, api.FormatEntryLines(resp.Entries))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, fmt.Sprintf("Number of entries to show (%d-%d, default display.count)", config.MinDisplayCount, config.MaxDisplayCount))
	cmd.Flags().BoolVar(&all, "all", false, "Show the whole transcript")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing entries as they settle (uses the HTTP API)")
	return cmd
}

// showLimit maps flags to the Transcript limit: nil lets the daemon apply
// display.count and 0 requests every entry.
func showLimit(cmd *cobra.Command, count int, all bool) *int {
	if all {
		zero := 0
		return &zero
	}
	if !cmd.Flags().Changed("count") {
		return nil
	}
	n := api.ClampDisplayCount(count, config.MinDisplayCount, config.MaxDisplayCount)
	return &n
}

func emptyTranscriptMessage(status api.TranscriptStatus) string {
	if status.Message != "" {
		return status.Message
	}
	if !status.FeedPresent {
		return api.MessageNoFeed
	}
	return api.MessageWaiting
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the transcript until the feed changes again",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Clear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Transcript cleared (version %d)\n", resp.Version)
				return nil
			})
		},
	}
}

func newReloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Re-read the subtitle feed now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Reload()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reload outcome: %s\n", resp.Outcome)
				return nil
			})
		},
	}
}
