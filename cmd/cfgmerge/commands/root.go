// Package commands implements the CLI commands for cfgmerge.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/cfgmerge/cmd"
	"github.com/thoreinstein/cfgmerge/cmd/cfgmerge/commands/backup"
	"github.com/thoreinstein/cfgmerge/internal/config"
	"github.com/thoreinstein/cfgmerge/internal/errors"
	"github.com/thoreinstein/cfgmerge/internal/logging"
	"github.com/thoreinstein/cfgmerge/internal/paths"
	"github.com/thoreinstein/cfgmerge/internal/reconcile"
	"github.com/thoreinstein/cfgmerge/internal/report"
)

// usageLine is printed when the positional arguments are wrong.
const usageLine = "Usage: cfgmerge <template_file> <user_file>"

// debugEnv raises verbosity when no -v flag is given.
const debugEnv = "CFGMERGE_DEBUG"

// ErrUsage indicates the command was invoked with the wrong arguments.
var ErrUsage = errors.New(usageLine)

// verbosity holds the count of -v flags.
var verbosity int

// quiet holds the value of the -q/--quiet flag.
var quiet bool

// logFormat holds the value of the --log-format flag.
var logFormat string

// logFile holds the path to the log file.
var logFile string

// configFile holds the value of the --config flag.
var configFile string

// Merge flags.
var (
	dryRun      bool
	keepBackups int
	outputFlag  string
)

// cfg is the loaded configuration; configLoadErr is reported on first use.
var (
	cfg           *config.Config
	configLoadErr error
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase verbosity level (e.g., -v, -vv)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format: text, json (default from config, else text)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"write logs to file in JSON format")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: ./config.yaml or $XDG_CONFIG_HOME/cfgmerge/config.yaml)")

	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false,
		"report what would change without writing anything")
	rootCmd.Flags().IntVar(&keepBackups, "keep-backups", 0,
		"after writing, keep only the newest N backups of the user file (0 keeps all)")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "",
		"report format: text, json, yaml, toml")

	rootCmd.Version = cmd.Version
	rootCmd.SetVersionTemplate("cfgmerge version {{.Version}}\n")

	// Silence errors and usage so we can control error output
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.NewUserError(err, "Run 'cfgmerge --help' for usage")
	})

	rootCmd.AddCommand(backup.Cmd)
}

func initConfig() {
	config.Init()
	cfg, configLoadErr = config.Load(configFile)
}

var rootCmd = &cobra.Command{
	Use:   "cfgmerge [flags] <template_file> <user_file>",
	Short: "Additively merge a template settings.json or .mcp.json into a user file",
	Long: `cfgmerge reconciles a template configuration with a user's existing one.

Anything the template has that the user file lacks is added: enabled plugins,
permission rules, hook events and MCP servers. Nothing the user already has
is removed or overwritten. Before the user file is rewritten it is copied to
a sibling backup named <file>.bak.<YYYYMMDDHHMMSS>.

A template containing "mcpServers" is merged as an MCP server registry;
anything else is merged as a settings file.

If the user file does not exist it is created from the template. If it is
not valid JSON it is backed up and replaced with the template.`,
	Example: `  # Merge shipped defaults into your settings
  cfgmerge defaults/settings.json ~/.claude/settings.json

  # See what would change
  cfgmerge --dry-run defaults/.mcp.json .mcp.json

  # Machine-readable report, keeping the 5 newest backups
  cfgmerge -o json --keep-backups 5 defaults/settings.json ~/.claude/settings.json

  See Also: cfgmerge backups list, cfgmerge backups restore`,
	Args: func(_ *cobra.Command, args []string) error {
		if len(args) != 2 {
			return errors.NewUserError(ErrUsage, "")
		}
		return nil
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Initialize logging first
		if err := setupLogging(cmd); err != nil {
			return err
		}
		if configLoadErr != nil && cmd.Name() != "version" && cmd.Name() != "help" {
			return errors.NewConfigError(configLoadErr)
		}
		if used := config.Used(); used != "" {
			logging.FromContext(cmd.Context()).Debug("using config file", "file", used)
		}
		return nil
	},
	RunE: runMerge,
}

func runMerge(cmd *cobra.Command, args []string) error {
	templatePath, err := paths.ExpandHome(args[0])
	if err != nil {
		return errors.NewSystemError(err, "")
	}
	userPath, err := paths.ExpandHome(args[1])
	if err != nil {
		return errors.NewSystemError(err, "")
	}

	format, err := report.ParseFormat(resolveString(cmd, "output", outputFlag, cfg.Output))
	if err != nil {
		return errors.NewUserError(err, "")
	}

	keep := keepBackups
	if !cmd.Flags().Changed("keep-backups") {
		keep = cfg.Backup.Retention
	}
	if keep < 0 {
		return errors.NewUserError(errors.New("--keep-backups must be non-negative"), "")
	}

	out := cmd.OutOrStdout()
	if quiet && format == report.FormatText {
		out = io.Discard
	}
	rep := report.NewReporter(out, cmd.ErrOrStderr(), format)

	r := reconcile.New(
		reconcile.WithDryRun(dryRun),
		reconcile.WithKeepBackups(keep),
		reconcile.WithReplaceHook(rep.ReplaceNotice),
	)

	res, err := r.Run(cmd.Context(), templatePath, userPath)
	if err != nil {
		return mergeError(err, templatePath)
	}
	return rep.Report(res)
}

// setupLogging configures the default logger based on verbosity flags.
func setupLogging(cmd *cobra.Command) error {
	if quiet && verbosity > 0 {
		return errors.NewUserError(errors.New("cannot use --quiet and --verbose together"), "")
	}

	var level slog.Level
	if quiet {
		level = slog.LevelError
	} else {
		v := verbosity

		// CLI flags take precedence, but if not set, check env var
		if v == 0 {
			if val, ok := os.LookupEnv(debugEnv); ok {
				switch val {
				case "1", "true":
					v = 2 // Debug
				case "2":
					v = 3 // Trace
				}
			}
		}
		level = logging.LevelFromVerbosity(v)
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	format := logFormat
	if format == "" && cfg != nil {
		format = cfg.LogFormat
	}

	var primaryHandler slog.Handler
	switch logging.Format(format) {
	case logging.FormatJSON:
		primaryHandler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	default:
		primaryHandler = logging.NewHandler(cmd.ErrOrStderr(), opts)
	}

	handlers := []slog.Handler{primaryHandler}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return errors.NewUserError(err, "failed to open log file")
		}
		// File output uses JSON format
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{
			Level: level,
		}))
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = logging.NewMultiHandler(handlers...)
	} else {
		handler = handlers[0]
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.NewContext(ctx, logger))

	return nil
}

// resolveString returns the flag value when it was set, else the config value.
func resolveString(cmd *cobra.Command, flag, flagValue, configValue string) string {
	if cmd.Flags().Changed(flag) || configValue == "" {
		return flagValue
	}
	return configValue
}

// Execute runs the root command.
func Execute() error {
	return errors.Wrap(rootCmd.Execute(), "executing root command")
}
