package cmd

import (
	"github.com/spf13/cobra"

	"github.com/psharp-go/psharp/config"
)

// newReplayCommand is a thin convenience wrapper around `test --replay`:
// it always runs exactly one iteration against a recorded schedule trace
// and never honors --iterations, matching spec §8 invariant 2's replay
// contract ("replaying the same schedule reproduces the same trace").
func newReplayCommand() *cobra.Command {
	var (
		assemblyPath string
		configPath   string
		schedulePath string
		verbosity    int
		traceHTTP    string
	)

	c := &cobra.Command{
		Use:   "replay <schedule-file>",
		Short: "Replay a previously recorded schedule trace against an assembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedulePath = args[0]
			loader := config.NewLoader()
			cfg, err := loader.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("verbose") {
				cfg.Verbose = verbosity
			}
			if cmd.Flags().Changed("trace-http") {
				cfg.TraceHTTP = traceHTTP
			}
			return runOneTest(assemblyPath, cfg, schedulePath)
		},
	}

	c.Flags().StringVar(&assemblyPath, "assembly", "", "path to a Go plugin exporting PsharpRegister")
	c.Flags().StringVar(&configPath, "config", "", "optional TOML/YAML config file")
	c.Flags().IntVar(&verbosity, "verbose", -1, "log verbosity 0..3")
	c.Flags().StringVar(&traceHTTP, "trace-http", "", "serve the replayed trace over HTTP at this address if the replay finds a bug")
	_ = c.MarkFlagRequired("assembly")

	return c
}
