package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scriptview/internal/api"
	"scriptview/internal/config"
	"scriptview/internal/feed"
	"scriptview/internal/transcript"
)

func newCollapseCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "collapse [feed-file]",
		Short:       "Parse a feed file and print its collapsed transcript",
		Long:        "Parse a subtitle feed file offline and print the collapsed transcript.\nWithout an argument the configured paths.feed_path is used.",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			maxBytes := config.Default().Feed.MaxBytes
			var path string
			if len(args) == 1 {
				expanded, err := config.ExpandPath(args[0])
				if err != nil {
					return fmt.Errorf("resolve feed path: %w", err)
				}
				path = expanded
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				path = cfg.Paths.FeedPath
				maxBytes = cfg.Feed.MaxBytes
			}

			entries, err := feed.Load(path, maxBytes)
			if err != nil {
				return err
			}
			collapsed := api.FromEntries(transcript.Collapse(entries))
			if jsonOutput {
				return writeJSON(cmd, api.TranscriptResponse{Total: len(collapsed), Entries: collapsed})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, api.FormatEntryLines(collapsed))
			fmt.Fprintf(cmd.ErrOrStderr(), "%d feed entries collapsed to %d\n", len(entries), len(collapsed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
