package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"

	"nhooyr.io/websocket"

	"scriptview/internal/api"
	"scriptview/internal/config"
)

const followReadLimit = 16 << 20

type streamFrame struct {
	Event string                 `json:"event"`
	Data  api.TranscriptResponse `json:"data"`
}

// followTranscript prints entries from the daemon's websocket stream as they
// settle. The entry still being extended is printed when ctx ends.
func followTranscript(ctx context.Context, out io.Writer, cfg *config.Config, limit *int) error {
	endpoint, err := streamURL(cfg, limit)
	if err != nil {
		return err
	}
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connect to transcript stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(followReadLimit)

	printer := newSettledPrinter(out)
	defer printer.flush()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return errors.New("daemon closed the transcript stream")
			}
			return fmt.Errorf("read transcript stream: %w", err)
		}
		var frame streamFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return fmt.Errorf("decode stream frame: %w", err)
		}
		if frame.Event != api.StreamEventTranscript {
			continue
		}
		printer.update(frame.Data.Entries)
	}
}

func streamURL(cfg *config.Config, limit *int) (string, error) {
	if cfg == nil || cfg.Paths.APIBind == "" {
		return "", errors.New("following requires the HTTP API (set paths.api_bind)")
	}
	host, port, err := net.SplitHostPort(cfg.Paths.APIBind)
	if err != nil {
		return "", fmt.Errorf("paths.api_bind: %w", err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, port), Path: "/api/transcript/stream"}
	query := url.Values{}
	if limit != nil {
		query.Set("limit", strconv.Itoa(*limit))
	}
	if cfg.Paths.APIToken != "" {
		query.Set("token", cfg.Paths.APIToken)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

type entryKey struct {
	text      string
	startTime float64
	timestamp int64
}

type settledPrinter struct {
	out     io.Writer
	printed map[entryKey]struct{}
	pending *api.TranscriptEntry
}

func newSettledPrinter(out io.Writer) *settledPrinter {
	return &settledPrinter{out: out, printed: make(map[entryKey]struct{})}
}

func (p *settledPrinter) update(entries []api.TranscriptEntry) {
	if len(entries) == 0 {
		p.pending = nil
		return
	}
	for _, entry := range entries[:len(entries)-1] {
		p.print(entry)
	}
	last := entries[len(entries)-1]
	p.pending = &last
}

func (p *settledPrinter) flush() {
	if p.pending != nil {
		p.print(*p.pending)
		p.pending = nil
	}
}

func (p *settledPrinter) print(entry api.TranscriptEntry) {
	key := entryKey{text: entry.Text, startTime: entry.StartTime, timestamp: entry.Timestamp}
	if _, ok := p.printed[key]; ok {
		return
	}
	p.printed[key] = struct{}{}
	fmt.Fprintln(p.out, api.FormatEntryLine(entry))
}
