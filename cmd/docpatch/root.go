package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/docpatch/cmd/docpatch/commands"
	"github.com/walteh/docpatch/cmd/docpatch/opts"
	"github.com/walteh/docpatch/pkg/config"
	"github.com/walteh/docpatch/pkg/log"
	"gitlab.com/tozd/go/errors"
)

const defaultConfigFile = ".docpatch.yaml"

var (
	// Flags
	configFile   string
	debugLogging bool
)

// newRootCmd builds the command tree. Config loading waits for flag parsing.
func newRootCmd() *cobra.Command {
	rootOpts := &opts.RootOpts{}

	cmd := &cobra.Command{
		Use:   "docpatch",
		Short: "Apply reviewed fixes to documentation",
		Long: `docpatch applies the fixes selected from an analysis session to the
document they were proposed for, records a changelog entry and invalidates
cached copies of the document.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := setupLogging(cmd.Context())
			cmd.SetContext(ctx)

			cfg, err := loadRootConfig(ctx, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			rootOpts.Config = cfg
			return nil
		},
	}

	addRootFlags(cmd)

	cmd.AddCommand(
		commands.NewApplyCmd(rootOpts),
		commands.NewLocateCmd(rootOpts),
		commands.NewServeCmd(rootOpts),
		newVersionCmd(),
	)

	return cmd
}

// loadRootConfig loads the config file. A missing default file falls back to
// a filesystem store rooted at the working directory.
func loadRootConfig(ctx context.Context, explicit bool) (*config.Config, error) {
	if !explicit {
		if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) {
			zerolog.Ctx(ctx).Debug().Str("path", configFile).Msg("no config file, using working directory")
			cfg := &config.Config{Store: config.Store{Type: "fs", Path: "."}}
			if err := config.Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
	}

	cfg, err := config.LoadConfig(ctx, configFile)
	if err != nil {
		return nil, errors.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfigFile, "config file path")
	cmd.PersistentFlags().BoolVarP(&debugLogging, "debug", "d", false, "enable debug logging")
}

// setupLogging configures zerolog based on flags and stores both loggers in ctx
func setupLogging(ctx context.Context) context.Context {
	level := zerolog.InfoLevel
	if debugLogging {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger

	ctx = logger.WithContext(ctx)
	return log.NewContext(ctx, log.New(os.Stderr, level))
}
