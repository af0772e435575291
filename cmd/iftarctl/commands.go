package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fatflowers/iftar/internal/app"
	"github.com/fatflowers/iftar/internal/app/repository"
	"github.com/fatflowers/iftar/internal/app/service/auth"
	"github.com/fatflowers/iftar/internal/app/service/export"
	"github.com/fatflowers/iftar/internal/platform/db"
	"github.com/fatflowers/iftar/internal/platform/sheets"
	"github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/logger"
)

// withApp starts the config, logger and database modules plus extra, runs fn and stops everything.
// Starting the database module applies the schema migrations.
func withApp(ctx context.Context, fn func() error, extra ...fx.Option) error {
	opts := append([]fx.Option{
		fx.NopLogger,
		config.Module,
		logger.Module,
		db.Module,
		repository.Module,
	}, extra...)
	a := fx.New(opts...)
	if err := a.Err(); err != nil {
		return err
	}
	startCtx, cancel := context.WithTimeout(ctx, app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return err
	}
	runErr := fn()
	stopCtx, cancel2 := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancel2()
	return errors.Join(runErr, a.Stop(stopCtx))
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := withApp(cmd.Context(), func() error { return nil }); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash to put in admin.password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var (
		out      string
		toSheets bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export participants to a CSV file or the configured Google Sheet",
		Example: `  iftarctl export --out participants.csv
  iftarctl export --sheets`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" && !toSheets {
				return errors.New("one of --out or --sheets is required")
			}
			var svc *export.Service
			return withApp(cmd.Context(), func() error {
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return err
					}
					n, err := svc.WriteCSV(cmd.Context(), f)
					if cerr := f.Close(); err == nil {
						err = cerr
					}
					if err != nil {
						return fmt.Errorf("write %s: %w", out, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d participants written to %s\n", n, out)
				}
				if toSheets {
					n, err := svc.PushSheets(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d participants pushed to Google Sheets\n", n)
				}
				return nil
			}, sheets.Module, export.Module, fx.Populate(&svc))
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "CSV file to write")
	cmd.Flags().BoolVar(&toSheets, "sheets", false, "replace the configured sheet")
	return cmd
}

func wipeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every participant, guest, payment, manual payment and check-in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to wipe without --yes")
			}
			var repo repository.Repository
			return withApp(cmd.Context(), func() error {
				if err := repo.Wipe(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all participants deleted")
				return nil
			}, fx.Populate(&repo))
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}
