package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scriptview/internal/api"
	"scriptview/internal/archive"
	"scriptview/internal/config"
	"scriptview/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var search string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived transcript entries",
		Long: "List entries archived by the daemon across feed rewrites and restarts.\n" +
			"The archive is read directly when the daemon is not running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg != nil && !cfg.Archive.Enabled {
				return errors.New("history archive is disabled (set archive.enabled = true)")
			}
			resp, err := fetchHistory(cmd.Context(), ctx, cfg, search, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			if len(resp.Records) == 0 {
				fmt.Fprintln(out, "No archived entries")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(resp.Records))
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only entries containing this text (case-insensitive)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum number of entries")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func fetchHistory(cmdCtx context.Context, ctx *commandContext, cfg *config.Config, query string, limit int) (*api.HistoryResponse, error) {
	client, dialErr := ipc.Dial(ctx.socketPath())
	if dialErr == nil {
		defer client.Close()
		return client.History(query, limit)
	}
	if cfg == nil {
		return nil, wrapDialError(dialErr, ctx.socketPath())
	}

	store, err := archive.OpenPath(cfg.ArchivePath())
	if err != nil {
		return nil, fmt.Errorf("open history archive: %w", err)
	}
	defer store.Close()

	queryCtx, cancel := context.WithTimeout(cmdCtx, 5*time.Second)
	defer cancel()
	var records []archive.Record
	if q := strings.TrimSpace(query); q != "" {
		records, err = store.Search(queryCtx, q, limit)
	} else {
		records, err = store.Recent(queryCtx, limit)
	}
	if err != nil {
		return nil, err
	}
	return &api.HistoryResponse{Records: api.FromArchiveRecords(records)}, nil
}

func renderHistoryTable(records []api.HistoryRecord) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			fmt.Sprintf("%d", rec.ID),
			fmt.Sprintf("%.1fs", rec.StartTime),
			strings.TrimSpace(rec.Text),
			shortSession(rec.SessionID),
			rec.ArchivedAt,
		})
	}
	return renderTable(
		[]string{"ID", "Start", "Text", "Session", "Archived"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
	)
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
