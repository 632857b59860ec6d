package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"djrag/api"
)

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	sessions := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage chat sessions",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer env.close()

			found, err := env.client.ListSessions(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "No sessions.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tFILE\tCREATED")
			for _, s := range found {
				created := ""
				if !s.CreatedAt.IsZero() {
					created = s.CreatedAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Title, s.File(), created)
			}
			return tw.Flush()
		},
	}

	create := &cobra.Command{
		Use:   "new [title]",
		Short: "Create a session and print its ID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer env.close()

			title := api.DefaultSessionTitle
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				title = args[0]
			}

			sess, err := env.client.CreateSession(cmd.Context(), title)
			if err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.client.DeleteSession(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	var yes bool
	clearAll := &cobra.Command{
		Use:   "clear",
		Short: "Delete every session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete all sessions without --yes")
			}

			env, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer env.close()

			if err := env.client.DeleteAllSessions(cmd.Context()); err != nil {
				return fmt.Errorf("failed to delete sessions: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All sessions deleted.")
			return nil
		},
	}
	clearAll.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")

	sessions.AddCommand(list, create, remove, clearAll)
	return sessions
}
