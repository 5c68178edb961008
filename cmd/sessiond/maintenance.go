package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wallpaperhub/sessions/core/config"
	"github.com/wallpaperhub/sessions/integration/database/pg"
	"github.com/wallpaperhub/sessions/integration/sessionstore/pgstore"
)

func gcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Remove expired sessions once",
		Long: `Remove every session whose expiry has passed. Each removed session is
reported to the audit bridge before its row is deleted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), false, func(d *deps) error {
				n, err := d.admin.CleanupExpired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", n)
				return nil
			})
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print session counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), false, func(d *deps) error {
				st, err := d.admin.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total:     %d\n", st.Total)
				fmt.Fprintf(out, "Active:    %d\n", st.Active)
				fmt.Fprintf(out, "Expired:   %d\n", st.Expired)
				fmt.Fprintf(out, "Logged in: %d\n", st.LoggedIn)
				return nil
			})
		},
	}
}

func clearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every session, active or not",
		Long: `Delete every stored session. All users are logged out and no audit
events are emitted. Requires --yes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}
			return withDeps(cmd.Context(), false, func(d *deps) error {
				n, err := d.admin.ClearAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %d sessions\n", n)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting all sessions")

	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the sessions schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var app appConfig
			if err := config.Load(&app); err != nil {
				return err
			}
			log := newLogger(app)

			var pgCfg pg.Config
			if err := config.Load(&pgCfg); err != nil {
				return err
			}
			pool, err := pg.Connect(ctx, pgCfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pgstore.Migrate(ctx, pool, pgCfg.MigrationsTable, log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
