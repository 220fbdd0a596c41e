package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-go/vai-wingman/pkg/settings"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and edit session settings and personas",
		Long: `Read and edit the settings a session reads when it starts and stops.

Keys:
  persona.active                 active persona id
  persona.<id>.instructions      persona instructions
  persona.<id>.documents         comma-separated document scope
  speaker_filter.enabled         ignore the operator's own questions
  summary.enabled                summarize when the session ends
  summary.key_moments            include key moments in the summary
  persistence.enabled            save the transcript when the session ends
  persistence.destination        sqlite:<path>, postgres://..., file:<dir>?format=md`,
	}
	cmd.AddCommand(newSettingsGetCmd(a), newSettingsSetCmd(a))
	return cmd
}

func newSettingsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key...]",
		Short: "Print settings; all of them without arguments",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, release, err := a.openSettings(ctx, nil, false)
			if err != nil {
				return err
			}
			defer release()

			var kvs []settings.KV
			if len(args) == 0 {
				if kvs, err = s.All(ctx); err != nil {
					return err
				}
			} else {
				keys := make([]string, len(args))
				for i, k := range args {
					keys[i] = strings.ToLower(strings.TrimSpace(k))
				}
				vals, err := s.Read(ctx, keys...)
				if err != nil {
					return err
				}
				for _, k := range keys {
					if v, ok := vals[k]; ok {
						kvs = append(kvs, settings.KV{Key: k, Value: v})
					}
				}
			}
			return printSettings(cmd.OutOrStdout(), kvs)
		},
	}
}

func newSettingsSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, release, err := a.openSettings(ctx, nil, false)
			if err != nil {
				return err
			}
			defer release()
			key := strings.ToLower(strings.TrimSpace(args[0]))
			if key == "" {
				return errors.New("key must not be empty")
			}
			if err := s.Set(ctx, key, args[1]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, args[1])
			return err
		},
	}
}

func printSettings(out io.Writer, kvs []settings.KV) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, kv := range kvs {
		fmt.Fprintf(w, "%s\t%s\n", kv.Key, kv.Value)
	}
	return w.Flush()
}
