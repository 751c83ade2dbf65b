package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/anchorplay/internal/config"
	"github.com/conneroisu/anchorplay/internal/loader"
	"github.com/conneroisu/anchorplay/internal/logging"
	"github.com/conneroisu/anchorplay/internal/schema"
	"github.com/conneroisu/anchorplay/internal/store"
)

// app holds the services shared by the commands.
type app struct {
	config *config.Config
	logger *logging.ZapLogger
	loader *loader.Loader
}

// newApp loads the configuration and wires the loader over the configured
// store. Logs go to the command's error stream.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})

	validator, err := schema.NewValidator(cfg.Store.AllowComments)
	if err != nil {
		return nil, fmt.Errorf("failed to compile document schemas: %w", err)
	}

	l, err := loader.New(store.NewFSStore(cfg.Store.Root), loader.Options{
		ExplanationsFile:       cfg.Store.ExplanationsFile,
		LegacyExplanationsFile: cfg.Store.LegacyExplanationsFile,
		Validator:              validator,
		Logger:                 logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create template loader: %w", err)
	}

	return &app{config: cfg, logger: logger, loader: l}, nil
}

func (a *app) close() {
	a.logger.Sync()
}
