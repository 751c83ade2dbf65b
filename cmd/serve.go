package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/anchorplay/internal/config"
	"github.com/conneroisu/anchorplay/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve templates over HTTP",
	Long: `Start the template server.

Endpoints:
  GET /health                               Liveness and build info
  GET /templates                            Template ids
  GET /templates/{id}                       Full template (ETag aware)
  GET /templates/{id}/explanations?lines=   Explanations for selected lines
  GET /ws                                   Catalog change feed

Examples:
  anchorplay serve                       # Serve ./templates on localhost:3000
  anchorplay serve -p 8080 -s ./store    # Custom port and store`,
	RunE: runServe,
}

var serveFlags *StandardFlags

func init() {
	rootCmd.AddCommand(serveCmd)

	serveFlags = AddStandardFlags(serveCmd, []string{"server"})
	serveCmd.Flags().Bool("no-watch", false, "Do not watch the store for changes")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		a.config.Cache.Watch = false
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if result := config.ValidateConfigWithDetails(a.config); result.HasWarnings() {
		for _, warning := range result.Warnings {
			a.logger.Warn(ctx, nil, warning.Message, "field", warning.Field, "value", warning.Value)
		}
	}

	srv, err := server.New(a.config, a.loader, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			a.logger.Error(shutdownCtx, shutdownErr, "Error during server shutdown")
		}
		cancel()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://%s\n", a.config.Store.Root, a.config.Server.Address())

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
