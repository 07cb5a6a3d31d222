package cli

import (
	"os"

	"github.com/spf13/cobra"

	"jordanella.com/screen-mapper/internal/config"
	"jordanella.com/screen-mapper/internal/logging"
)

// NewRootCmd builds the screenmapper command tree
func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "screenmapper",
		Short: "Map regions of the screen to values and capture them on a timer",
		Long: `Screen Mapper records the screen, or a region of it, at a fixed period and
evaluates a library of rules against every frame.

A library is a generated Go source file naming boxes on the frame and what
to extract from each: text, a number, or the positions of a template image.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present
			return config.LoadDotEnv()
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default $SCREENMAPPER_CONFIG or Settings.ini)")

	opts := &rootOptions{configPath: &configPath}
	cmd.AddCommand(newNewCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newRenameCmd())
	cmd.AddCommand(newInspectCmd(opts))
	cmd.AddCommand(newRecordCmd(opts))
	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newEvalCmd(opts))
	cmd.AddCommand(newDBCmd(opts))

	return cmd
}

// rootOptions carries persistent flags to the subcommands that read settings
type rootOptions struct {
	configPath *string
}

// settingsPath resolves --config, then SCREENMAPPER_CONFIG, then Settings.ini
func (o *rootOptions) settingsPath() string {
	if *o.configPath != "" {
		return *o.configPath
	}
	if path := os.Getenv("SCREENMAPPER_CONFIG"); path != "" {
		return path
	}
	return config.DefaultPath
}

// environment is what a command needs to talk to the outside world
type environment struct {
	cfg    *config.Config
	logger *logging.Logger
	close  func()
}

// load reads the settings and builds a logger writing to the command's
// error stream and, when configured, the log file.
func (o *rootOptions) load(cmd *cobra.Command) (*environment, error) {
	logger := logging.NewLogger("screenmapper").SetOutputs(cmd.ErrOrStderr())

	cfg, err := config.Load(o.settingsPath(), logger)
	if err != nil {
		return nil, err
	}
	logger.SetMinLevel(logging.ParseLevel(cfg.LogLevel))

	env := &environment{cfg: cfg, logger: logger, close: func() {}}
	if cfg.LogFile != "" {
		f, err := logging.OpenLogFile(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		logger.AddOutput(f)
		env.close = func() { f.Close() }
	}
	return env, nil
}
