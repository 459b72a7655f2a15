package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lucasnoah/coordcard/internal/config"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

const envConfig = "COORDCARD_CONFIG"

var (
	version    = "dev"
	verbose    bool
	configPath string
	logger     = zap.NewNop()
	cfg        = config.Default()
)

func SetVersion(v string) {
	version = v
}

// ExitError carries a process exit code. A nil Err means the command already
// reported the problem on its own output.
type ExitError struct {
	Code int
	Err  error
	cmd  *cobra.Command
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(cmd *cobra.Command, err error) error {
	return &ExitError{Code: exitUsage, Err: err, cmd: cmd}
}

// ExitCode maps an error returned by the root command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return exitFailure
}

var rootCmd = &cobra.Command{
	Use:   "coordcard",
	Short: "coordcard — conversational repair engine for coordination cards",
	Long: `coordcard validates coordination cards and drives their repair loop.

Each observation of a conversation is scored on three RHO components
(repetition, heat, optionality loss). Given a card, the previous state and a
score, "coordcard next" decides whether to continue, repair or vent, and
returns the state to pass in on the next call.

Decisions can be recorded in a local decision log (~/.coordcard/coordcard.db,
or any postgres:// DSN) and the engine can be served over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded

		level, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		if verbose {
			level = zapcore.DebugLevel
		}
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(level)
		l, err := zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command, reports any error and returns the exit code.
func Execute() int {
	cmd, err := rootCmd.ExecuteC()
	if err == nil {
		return 0
	}
	var ee *ExitError
	isExit := errors.As(err, &ee)
	if !isExit || ee.Err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	if isExit && ee.Code == exitUsage {
		usageCmd := cmd
		if ee.cmd != nil {
			usageCmd = ee.cmd
		}
		fmt.Fprint(usageCmd.ErrOrStderr(), usageCmd.UsageString())
	}
	return ExitCode(err)
}

// loadConfig reads --config, then COORDCARD_CONFIG, then the default
// locations. Only the default search may come up empty.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv(envConfig)
	}

	var (
		loaded *config.Config
		err    error
	)
	if path != "" {
		loaded, err = config.Load(path)
	} else {
		loaded, err = config.LoadDefault()
		if errors.Is(err, config.ErrNotFound) {
			return config.Default(), nil
		}
	}
	if err != nil {
		return nil, err
	}

	if errs := config.Validate(loaded); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return loaded, nil
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(cmd, err)
		}
		return nil
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (env COORDCARD_CONFIG, default ./coordcard.yaml or ~/.coordcard/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "decision log path or postgres:// DSN (env COORDCARD_DB, default ~/.coordcard/coordcard.db)")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(cmd, err)
	})

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initStateCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(serveCmd)
}
