package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jllopis/campusdesk/pkg/config"
	"github.com/jllopis/campusdesk/pkg/telemetry"
)

type rootOptions struct {
	configPath string
	envFile    string
	overrides  []string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "campusdesk",
		Short:         "Role-aware assistant for the school LMS",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	flags.StringArrayVar(&opts.overrides, "set", nil, "config override key=value (repeatable)")

	cmd.AddCommand(
		newServeCmd(opts),
		newChatCmd(opts),
		newToolsCmd(opts),
		newMCPCmd(opts),
		newSeedCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	if o.envFile != "" {
		err := godotenv.Load(o.envFile)
		if err != nil && !(errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file")) {
			return configError(err, "check the --env-file path")
		}
	}
	cfg, err := config.Load(o.configPath, o.overrides...)
	if err != nil {
		return configError(err, "run with a valid --config file or fix CAMPUSDESK_* variables")
	}
	o.cfg = cfg
	// stdout carries command output and the MCP stream.
	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return nil
}
