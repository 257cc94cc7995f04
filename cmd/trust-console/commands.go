package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"trust-console/internal/audit"
	"trust-console/internal/client"
	"trust-console/internal/config"
	"trust-console/internal/export"
	httpapi "trust-console/internal/http"
	"trust-console/internal/resource"
	"trust-console/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootCommand 命令树：serve / export / exports / resources / login / logout
func rootCommand(cfg *config.Config) *cobra.Command {
	var a *app

	rootCmd := &cobra.Command{
		Use:           "trust-console",
		Short:         "Temple trust and dairy records console",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfg.API.BaseURL, "api", cfg.API.BaseURL, "backend API base URL")
	rootCmd.PersistentFlags().StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level (debug|info|warn|error)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "resources" {
			return nil
		}
		var err error
		a, err = newApp(cfg)
		return err
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a != nil {
			a.Close()
		}
	}

	rootCmd.AddCommand(
		serveCommand(cfg, func() *app { return a }),
		exportCommand(cfg, func() *app { return a }),
		exportsCommand(func() *app { return a }),
		resourcesCommand(),
		loginCommand(func() *app { return a }),
		logoutCommand(func() *app { return a }),
	)
	return rootCmd
}

func serveCommand(cfg *config.Config, get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the console HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			router := httpapi.NewRouter(a.logger)
			router.RegisterHealthRoutes()
			router.RegisterRecordRoutes(httpapi.NewRecordsHandler(a.registry, a.logger))
			router.RegisterSessionRoutes(httpapi.NewSessionHandler(a.sessions, a.logger))

			srv := service.NewServer(cfg.HTTP.Addr, router, a.logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			var runErr error
			select {
			case <-sigCh:
			case runErr = <-errCh:
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				a.logger.Warn("Shutdown failed", zap.Error(err))
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&cfg.HTTP.Addr, "addr", cfg.HTTP.Addr, "listen address")
	return cmd
}

func exportCommand(cfg *config.Config, get func() *app) *cobra.Command {
	var (
		format string
		search string
		actor  string
	)
	cmd := &cobra.Command{
		Use:   "export <resource>",
		Short: "Export a resource's records to xlsx or pdf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			m, err := a.registry.Open(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := m.Load(ctx); err != nil {
				return fmt.Errorf("%s", client.UserMessage(err))
			}
			m.List().SetSearchTerm(search)

			var art *export.Artifact
			switch format {
			case export.FormatXLSX:
				art, err = m.ExportSpreadsheet(ctx, actor)
			case export.FormatPDF:
				art, err = m.ExportDocument(ctx, actor)
			default:
				return fmt.Errorf("format must be xlsx or pdf")
			}
			if errors.Is(err, export.ErrNothingToExport) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to export")
				return nil
			}
			if err != nil {
				return err
			}

			if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
				return fmt.Errorf("failed to create export dir: %w", err)
			}
			path := filepath.Join(cfg.ExportDir, art.Filename)
			if err := os.WriteFile(path, art.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d rows, %d pages)\n", path, art.Rows, art.Pages)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", export.FormatXLSX, "xlsx or pdf")
	cmd.Flags().StringVar(&search, "search", "", "only export records matching this term")
	cmd.Flags().StringVar(&actor, "actor", os.Getenv("USER"), "name recorded in the export audit")
	cmd.Flags().StringVar(&cfg.ExportDir, "out", cfg.ExportDir, "output directory")
	return cmd
}

func exportsCommand(get func() *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "exports <resource>",
		Short: "Show recent exports of a resource (needs DB_ENABLED=true)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := get().registry.Open(args[0])
			if err != nil {
				return err
			}
			entries, err := m.RecentExports(cmd.Context(), limit)
			if errors.Is(err, audit.ErrNoHistory) {
				return fmt.Errorf("export history requires DB_ENABLED=true")
			}
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tFORMAT\tROWS\tACTOR\tFILE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					e.CreatedAt.Format(time.RFC3339), e.Format, e.Rows, e.Actor, e.Filename)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", audit.DefaultRecentLimit, "number of entries to show")
	return cmd
}

func resourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List the resources the console manages",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTITLE\tENDPOINT")
			for _, d := range resource.DefaultCatalog().All() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.Title, d.Endpoint)
			}
			return tw.Flush()
		},
	}
}

func loginCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <token>",
		Short: "Store the bearer token used for backend requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().sessions.Login(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
			return nil
		},
	}
}

func logoutCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := get().sessions.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
