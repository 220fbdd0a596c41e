package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-go/vai-wingman/pkg/persist"
	"github.com/vango-go/vai-wingman/pkg/store"
)

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect archived sessions",
	}
	cmd.AddCommand(newSessionsListCmd(a), newSessionsExportCmd(a))
	return cmd
}

func newSessionsListCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.deps.openStore(ctx, a.cfg.Store.SQLitePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()
			infos, err := db.Sessions(ctx, limit)
			if err != nil {
				return err
			}
			return printSessions(cmd.OutOrStdout(), infos, time.Now())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum sessions to show (0 for all)")
	return cmd
}

func printSessions(out io.Writer, infos []store.SessionInfo, now time.Time) error {
	if len(infos) == 0 {
		_, err := fmt.Fprintln(out, headerStyle.Render("No sessions found"))
		return err
	}
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Found %d session(s)", len(infos))))
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tPERSONA\tUTTERANCES\tSUGGESTIONS\tSUMMARY")
	for _, s := range infos {
		persona := s.PersonaID
		if persona == "" {
			persona = "-"
		}
		summary := "no"
		if s.HasSummary {
			summary = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			s.ID, startedLabel(s.Start, now), secondsLabel(s.Duration),
			persona, s.Utterances, s.Suggestions, summary)
	}
	return w.Flush()
}

// startedLabel shortens recent dates the way a chat list does.
func startedLabel(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	t = t.In(now.Location())
	switch {
	case sameDay(t, now):
		return t.Format("Today 15:04")
	case now.Sub(t) < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case t.Year() == now.Year():
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func secondsLabel(sec float64) string {
	return time.Duration(sec * float64(time.Second)).Round(time.Second).String()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func newSessionsExportCmd(a *app) *cobra.Command {
	var (
		format string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Render an archived session as markdown, text, json or yaml",
		Long: `Render an archived session. Without --out the transcript is written to
stdout; with --out it is written to a timestamped file in that directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := persist.ParseFormat(format)
			if err != nil {
				return err
			}
			return a.exportSession(cmd.Context(), cmd.OutOrStdout(), args[0], f, outDir)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format: markdown, text, json or yaml")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write to a file in this directory instead of stdout")
	return cmd
}

func (a *app) exportSession(ctx context.Context, out io.Writer, id string, f persist.Format, outDir string) error {
	db, err := a.deps.openStore(ctx, a.cfg.Store.SQLitePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	rec, err := db.LoadSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return err
	}
	if outDir != "" {
		path, err := persist.WriteFile(outDir, f, rec)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, "wrote "+path)
		return err
	}
	body, err := persist.Render(rec, f)
	if err != nil {
		return err
	}
	_, err = out.Write(body)
	return err
}
