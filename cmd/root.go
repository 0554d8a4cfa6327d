// Package cmd implements the sportbot CLI: sync, cluster, publish, edit,
// scheduler, and monitor subcommands over a shared store and config.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sportbot/chat"
	"sportbot/config"
	"sportbot/publish"
)

// Exit codes per the CLI contract: 0 success, 1 config error, 2 remote
// dispatch error after retries, 3 invariant violation.
const (
	exitOK             = 0
	exitConfigError    = 1
	exitDispatchError  = 2
	exitInvariantError = 3
)

var (
	verboseFlag bool
	dryRunFlag  bool
	configPath  string
	currentApp  *app
)

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		return classifyExit(err)
	}
	return exitOK
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "sportbot",
		Short: "Sports-news aggregation, clustering, and publishing pipeline",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verboseFlag {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return configError(err)
			}
			a, err := newApp(cfg, verboseFlag, dryRunFlag)
			if err != nil {
				return configError(err)
			}
			currentApp = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if currentApp != nil {
				return currentApp.close()
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "raise logging to debug")
	root.PersistentFlags().BoolVar(&dryRunFlag, "dry-run", false, "do not persist or dispatch, only report (read by sync and edit; cluster, publish and scheduler ignore it)")
	root.PersistentFlags().StringVar(&configPath, "config", config.GetConfigPath(), "path to config.yaml")

	root.AddCommand(
		newSyncCommand(),
		newClusterCommand(),
		newPublishCommand(),
		newEditCommand(),
		newSchedulerCommand(),
		newMonitorCommand(),
	)
	return root
}

// configErr wraps a configuration-stage failure so classifyExit can map it
// to exit code 1 without string-matching.
type configErr struct{ err error }

func (e *configErr) Error() string { return e.err.Error() }
func (e *configErr) Unwrap() error { return e.err }

func configError(err error) error { return &configErr{err: err} }

func classifyExit(err error) int {
	var ce *configErr
	if errors.As(err, &ce) {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}

	if errors.Is(err, chat.ErrExhausted) {
		fmt.Fprintf(os.Stderr, "dispatch error: %v\n", err)
		return exitDispatchError
	}

	if errors.Is(err, publish.ErrNoPriorPublish) {
		fmt.Fprintf(os.Stderr, "invariant violation: %v\n", err)
		return exitInvariantError
	}

	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return exitConfigError
}
