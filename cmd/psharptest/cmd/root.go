// Package cmd implements the psharptest CLI surface: a NewRootCommand
// entry point, a ldflags-populated Version/Commit/Date trio, and one
// subcommand per cobra.Command file.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/psharp-go/psharp"
)

var (
	Version string = "dev"
	Commit  string = "none"
	Date    string = "unknown"
	OsExit         = os.Exit
)

func init() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version != "dev" {
		return
	}
	if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		Version = bi.Main.Version
	}
	for _, setting := range bi.Settings {
		if setting.Key == "vcs.revision" {
			Commit = setting.Value
		}
		if setting.Key == "vcs.time" {
			Date = setting.Value
		}
	}
}

// Exit codes: 0 success, 1 bug found, 2 configuration error, 3 internal
// failure.
const (
	ExitSuccess  = 0
	ExitBug      = 1
	ExitConfig   = 2
	ExitInternal = 3
)

// ExitCodeFor maps an error returned from command execution to the exit
// code a shell script driving psharptest would branch on.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch {
	case isBugError(err):
		return ExitBug
	case isConfigError(err):
		return ExitConfig
	default:
		return ExitInternal
	}
}

func isBugError(err error) bool {
	for _, sentinel := range []error{
		psharp.ErrAssertionFailed,
		psharp.ErrUnhandledEvent,
		psharp.ErrLivenessViolation,
		psharp.ErrDeadlock,
		psharp.ErrUnhandledException,
		psharp.ErrAwaitDeadlock,
		psharp.ErrReplayDivergence,
		psharp.ErrAssertAtMostNViolated,
		psharp.ErrSecondRaiseInStep,
		psharp.ErrSecondControlInStep,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func isConfigError(err error) bool {
	for _, sentinel := range []error{
		psharp.ErrMachineTypeRegistered,
		psharp.ErrMachineTypeNotFound,
		psharp.ErrStartStateMissing,
		psharp.ErrStartStateAmbiguous,
		psharp.ErrDuplicateState,
		psharp.ErrUnknownParentState,
		psharp.ErrUnknownGotoTarget,
		psharp.ErrUnknownPushTarget,
		psharp.ErrDuplicateEventHandler,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// NewRootCommand builds the psharptest command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "psharptest",
		Short: "psharptest runs a registered P# machine assembly under the bug-finding scheduler",
		Long: `psharptest drives a deterministic, single-threaded scheduler over a population
of communicating state machines, searching for assertion failures, liveness
violations, deadlocks, and unhandled events under a chosen exploration strategy.`,
		Run: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Printf("psharptest %s (commit %s, built %s)\n", Version, Commit, Date)
				return
			}
			_ = cmd.Help()
		},
	}
	root.Flags().Bool("version", false, "print version information and exit")
	root.AddCommand(newTestCommand())
	root.AddCommand(newReplayCommand())
	return root
}
