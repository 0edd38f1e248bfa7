package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/psharp-go/psharp"
	"github.com/psharp-go/psharp/config"
	"github.com/psharp-go/psharp/internal/traceserver"
	"github.com/psharp-go/psharp/strategy"
	"github.com/psharp-go/psharp/trace"
)

func newTestCommand() *cobra.Command {
	var (
		assemblyPath string
		configPath   string
		strategyName string
		seed         uint64
		iterations   int
		maxSteps     int
		timeoutSec   int
		replayPath   string
		verbosity    int
		watch        bool
		traceHTTP    string
	)

	c := &cobra.Command{
		Use:   "test",
		Short: "Run a registered machine assembly under the bug-finding scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader()
			cfg, err := loader.Load(configPath)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, &cfg, strategyName, seed, iterations, maxSteps, timeoutSec, verbosity, watch, traceHTTP)

			run := func() error {
				return runOneTest(assemblyPath, cfg, replayPath)
			}

			if !watch {
				return run()
			}
			return watchAndRun(assemblyPath, configPath, run)
		},
	}

	c.Flags().StringVar(&assemblyPath, "assembly", "", "path to a Go plugin (built with -buildmode=plugin) exporting PsharpRegister")
	c.Flags().StringVar(&configPath, "config", "", "optional TOML/YAML config file, overridden by flags")
	c.Flags().StringVar(&strategyName, "strategy", "", "exploration strategy: random|dfs|pct|replay")
	c.Flags().Uint64Var(&seed, "seed", 0, "strategy seed (overrides the config/default value when given)")
	c.Flags().IntVar(&iterations, "iterations", 0, "number of iterations to run (overrides the config/default value when given)")
	c.Flags().IntVar(&maxSteps, "max-steps", 0, "per-iteration step bound (overrides the config/default value when given)")
	c.Flags().IntVar(&timeoutSec, "timeout", 0, "wall-clock timeout in seconds (overrides the config/default value when given)")
	c.Flags().StringVar(&replayPath, "replay", "", "schedule-trace file to replay instead of exploring")
	c.Flags().IntVar(&verbosity, "verbose", -1, "log verbosity 0..3 (overrides the config/default value when given)")
	c.Flags().BoolVar(&watch, "watch", false, "re-run whenever the assembly or config file changes")
	c.Flags().StringVar(&traceHTTP, "trace-http", "", "serve the latest trace over HTTP at this address once a bug is found")
	_ = c.MarkFlagRequired("assembly")

	return c
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.RuntimeConfig, strategyName string, seed uint64, iterations, maxSteps, timeoutSec, verbosity int, watch bool, traceHTTP string) {
	if cmd.Flags().Changed("strategy") {
		cfg.Strategy = strategyName
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("iterations") {
		cfg.Iterations = iterations
	}
	if cmd.Flags().Changed("max-steps") {
		cfg.MaxSteps = maxSteps
	}
	if cmd.Flags().Changed("timeout") {
		cfg.TimeoutSec = timeoutSec
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = verbosity
	}
	if cmd.Flags().Changed("watch") {
		cfg.Watch = watch
	}
	if cmd.Flags().Changed("trace-http") {
		cfg.TraceHTTP = traceHTTP
	}
}

func buildStrategy(cfg config.RuntimeConfig, replayPath string) (strategy.Strategy, error) {
	if replayPath != "" {
		f, err := os.Open(replayPath)
		if err != nil {
			return nil, fmt.Errorf("%w: opening replay file: %v", psharp.ErrInternal, err)
		}
		defer f.Close()
		st, err := trace.ReadScheduleTrace(f)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing replay file: %v", psharp.ErrInternal, err)
		}
		return strategy.NewReplay(st.Seed, st.ToReplayEntries()), nil
	}
	switch cfg.Strategy {
	case "", "random":
		return strategy.NewRandom(cfg.Seed, cfg.MaxSteps), nil
	case "dfs":
		return strategy.NewDFS(cfg.MaxSteps), nil
	case "pct":
		return strategy.NewPriority(cfg.Seed, cfg.MaxChanges, cfg.MaxSteps), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", psharp.ErrInternal, cfg.Strategy)
	}
}

func runOneTest(assemblyPath string, cfg config.RuntimeConfig, replayPath string) error {
	ctx, cancel := context.Background(), func() {}
	if cfg.TimeoutSec > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.TimeoutSec)*time.Second)
	}
	defer cancel()

	register, err := loadAssembly(assemblyPath)
	if err != nil {
		return err
	}
	strat, err := buildStrategy(cfg, replayPath)
	if err != nil {
		return err
	}

	logger := psharp.NewWriterLogger(os.Stderr, cfg.Verbose)
	rt := psharp.NewRuntime(
		psharp.WithLogger(logger),
		psharp.WithStrategy(strat),
	)

	iterations := cfg.Iterations
	if replayPath != "" {
		iterations = 1
	}

	sched := psharp.NewScheduler(rt, psharp.WithMaxSteps(cfg.MaxSteps))
	result, err := sched.RunTest(func(rt *psharp.Runtime) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return register(rt)
	}, iterations)
	if err != nil {
		return err
	}

	if result.FailingIteration == nil {
		fmt.Printf("psharptest: %d iteration(s) passed, no bug found\n", len(result.Iterations))
		return nil
	}

	ir := result.FailingIteration
	fmt.Printf("psharptest: bug found in iteration %d after %d steps:\n", ir.Iteration, ir.Steps)
	for _, f := range ir.Failures {
		fmt.Printf("  - %v\n", f)
	}

	if cfg.TraceHTTP != "" {
		srv := traceserver.New()
		srv.SetLatest(ir.BugTrace, ir.ScheduleTrace)
		fmt.Printf("psharptest: serving the failing trace at http://%s/trace/bug\n", cfg.TraceHTTP)
		if err := http.ListenAndServe(cfg.TraceHTTP, srv); err != nil {
			logger.Error("trace http server stopped", "error", err)
		}
	}

	return ir.Failures[0]
}

func watchAndRun(assemblyPath, configPath string, run func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: creating file watcher: %v", psharp.ErrInternal, err)
	}
	defer watcher.Close()

	for _, p := range []string{assemblyPath, configPath} {
		if p == "" {
			continue
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("%w: watching %s: %v", psharp.ErrInternal, p, err)
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "psharptest: %v\n", err)
	}
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fmt.Printf("psharptest: %s changed, re-running\n", ev.Name)
			if err := run(); err != nil {
				fmt.Fprintf(os.Stderr, "psharptest: %v\n", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "psharptest: watcher error: %v\n", err)
		}
	}
}
