package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"simloop/internal/capture"
	"simloop/internal/fileutil"
	"simloop/internal/sessions"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect the capture history",
	}
	cmd.AddCommand(newSessionsListCommand(ctx))
	cmd.AddCommand(newSessionsShowCommand(ctx))
	cmd.AddCommand(newSessionsPruneCommand(ctx))
	cmd.AddCommand(newSessionsExportCommand(ctx))
	return cmd
}

type sessionView struct {
	ID             string  `json:"id"`
	Simulation     string  `json:"simulation"`
	Format         string  `json:"format"`
	Status         string  `json:"status"`
	OutputPath     string  `json:"output_path,omitempty"`
	Resolution     string  `json:"resolution"`
	FPS            int     `json:"fps"`
	Frames         int     `json:"frames"`
	Dropped        uint64  `json:"dropped"`
	Bytes          int64   `json:"bytes"`
	Error          string  `json:"error,omitempty"`
	TranscodedPath string  `json:"transcoded_path,omitempty"`
	StartedAt      string  `json:"started_at"`
	DurationSec    float64 `json:"duration_seconds"`
	Payload        string  `json:"payload,omitempty"`
}

func toSessionView(r sessions.Record) sessionView {
	return sessionView{
		ID:             r.ID,
		Simulation:     r.Simulation,
		Format:         r.Format,
		Status:         string(r.Status),
		OutputPath:     r.OutputPath,
		Resolution:     fmt.Sprintf("%dx%d", r.Width, r.Height),
		FPS:            r.FPS,
		Frames:         r.Frames,
		Dropped:        r.Dropped,
		Bytes:          r.Bytes,
		Error:          r.ErrorMessage,
		TranscodedPath: r.TranscodedPath,
		StartedAt:      r.StartedAt.Local().Format(time.DateTime),
		DurationSec:    r.Duration().Seconds(),
	}
}

func newSessionsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent capture sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *sessions.Store) error {
				records, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				views := make([]sessionView, 0, len(records))
				for _, r := range records {
					views = append(views, toSessionView(r))
				}
				if asJSON {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No capture sessions recorded")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{
						shortID(v.ID), v.StartedAt, v.Simulation, v.Format, v.Status,
						strconv.Itoa(v.Frames), strconv.FormatUint(v.Dropped, 10), v.OutputPath,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Started", "Simulation", "Format", "Status", "Frames", "Dropped", "Output"},
					rows, 5, 6,
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum sessions to list (0 lists all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSessionsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one capture session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *sessions.Store) error {
				rec, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				view := toSessionView(rec)
				view.Payload = snapshotPayload(rec)
				return writeJSON(cmd, view)
			})
		},
	}
}

func newSessionsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished sessions from the history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *sessions.Store) error {
				removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Only remove sessions started before this age")
	return cmd
}

func newSessionsExportCommand(ctx *commandContext) *cobra.Command {
	var useArchive bool
	cmd := &cobra.Command{
		Use:   "export <id> <dest>",
		Short: "Copy a session's output file to another location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store *sessions.Store) error {
				rec, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				src := rec.OutputPath
				if useArchive {
					src = rec.TranscodedPath
				}
				if src == "" {
					return fmt.Errorf("session %s has no output file", rec.ID)
				}
				dest := args[1]
				if info, err := os.Stat(dest); err == nil && info.IsDir() {
					dest = filepath.Join(dest, filepath.Base(src))
				}
				if err := fileutil.CopyFileVerified(src, dest); err != nil {
					return fmt.Errorf("export session %s: %w", rec.ID, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", shortID(rec.ID), dest)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&useArchive, "archive", false, "Export the transcoded archive instead of the raw capture")
	return cmd
}

// snapshotPayload returns the state text embedded in a PNG snapshot, or ""
// when the session has none or its file is gone.
func snapshotPayload(rec sessions.Record) string {
	if rec.OutputPath == "" || rec.Status != sessions.StatusCompleted {
		return ""
	}
	if format, err := capture.ParseFormat(rec.Format); err != nil || format != capture.FormatPNG {
		return ""
	}
	data, err := os.ReadFile(rec.OutputPath)
	if err != nil {
		return ""
	}
	payload, _ := capture.ExtractPayload(data)
	return payload
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
