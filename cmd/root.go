// Package cmd implements the notisync command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campusdesk/notisync/internal/config"
	"github.com/campusdesk/notisync/internal/gateway"
	"github.com/campusdesk/notisync/internal/logging"
	"github.com/campusdesk/notisync/internal/token"
	"github.com/campusdesk/notisync/internal/version"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "notisync",
	Short:         "Keeps your portal notifications in sync, live or polling.",
	Long:          "notisync keeps a local view of your portal notifications consistent with the server, over a push channel with automatic polling fallback.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var configPath string

// Execute adds all child commands to the root command and runs it.
// This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = version.String()
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/notisync/config.toml)")
}

// runtime bundles the dependencies shared by all commands.
type runtime struct {
	cfg    config.Config
	log    logging.Logger
	tokens *token.FileSource
	gw     *gateway.Gateway
}

// buildRuntime loads configuration and constructs the shared dependencies.
func buildRuntime() (*runtime, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logging.NewStderr(logging.Config{
		Enabled: cfg.LogEnabled,
		Level:   cfg.LogLevel,
	})

	tokens := token.NewFileSource(cfg.TokenFile)
	gw := gateway.New(cfg.ServerURL, tokens, log,
		gateway.WithCacheTTL(cfg.CacheTTL),
		gateway.WithTimeout(cfg.RequestTimeout),
	)
	return &runtime{
		cfg:    cfg,
		log:    log,
		tokens: tokens,
		gw:     gw,
	}, nil
}
