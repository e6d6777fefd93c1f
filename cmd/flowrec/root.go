package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivikasavnish/go-flowrec/pkg/client"
	"github.com/ivikasavnish/go-flowrec/pkg/config"
	"github.com/ivikasavnish/go-flowrec/pkg/observability"
)

// Version is set at build time.
var Version = "dev"

// app carries state shared by the subcommands after the root pre-run.
type app struct {
	cfgFile   string
	serverURL string
	cfg       *config.Config
}

func (a *app) logger(name string) *zap.Logger {
	return observability.GetLogger().Named(name)
}

// client returns an API client for --server, or server.url from config.
func (a *app) client() *client.Client {
	if a.serverURL != "" {
		return client.New(a.serverURL)
	}
	return client.New(a.cfg.Server.URL)
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "flowrec",
		Short:         "Record browser interactions, debug them step by step and compile them to scripts",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "flowrec"})
				return fmt.Errorf("failed to load config: %w", err)
			}
			a.cfg = cfg
			observability.InitializeLogger(cfg.Logger)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./flowrec.yaml)")
	root.PersistentFlags().StringVar(&a.serverURL, "server", "", "flowrec server URL (default from server.url)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newServeCmd(a),
		newRecordCmd(a),
		newOpenCmd(a),
		newGenerateCmd(a),
		newReplayCmd(a),
		newFlowsCmd(a),
	)
	return root
}
