package cmd

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/metro-sim/metro-sim/sim"
)

var (
	// CLI flags for the simulation run
	scenarioPath string  // Path to the scenario YAML (empty = built-in demo line)
	runMode      string  // Action source mode override (self-rolling, delegated)
	runPolicy    string  // Default policy override for self-rolling trains
	ticks        int64   // Number of ticks to execute (0 = scenario value)
	dt           float64 // Tick duration override (0 = scenario value)
	seed         int64   // Master seed override (negative = scenario value)
	logLevel     string  // Log verbosity level
	traceLevel   string  // Decision trace level (none, decisions)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "metrosim",
	Short: "Tick-driven simulator for metro network train movement",
}

// loadScenario resolves the scenario source and applies flag overrides.
func loadScenario() (*sim.ScenarioSpec, error) {
	var (
		spec *sim.ScenarioSpec
		err  error
	)
	if scenarioPath == "" {
		spec = sim.DefaultScenario()
	} else if spec, err = sim.LoadScenario(scenarioPath); err != nil {
		return nil, err
	}
	if runMode != "" {
		spec.Mode = runMode
	}
	if runPolicy != "" {
		spec.Policy = runPolicy
	}
	if ticks > 0 {
		spec.Ticks = ticks
	}
	if dt > 0 {
		spec.DT = dt
	}
	if seed >= 0 {
		spec.Seed = seed
	}
	return spec, spec.Validate()
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a metro simulation scenario",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		spec, err := loadScenario()
		if err != nil {
			logrus.Fatalf("Scenario rejected: %v", err)
		}

		env, err := spec.BuildEnvironment(traceLevel)
		if err != nil {
			// Topology build and policy configuration failures are fatal.
			logrus.Fatalf("Startup failed: %v", err)
		}

		logrus.Infof("Starting scenario %q: mode=%s, ticks=%d, dt=%v, seed=%d",
			spec.Name, spec.Mode, spec.Ticks, env.DT(), spec.Seed)

		startTime := time.Now()
		if _, err := env.Run(context.Background(), spec.Ticks); err != nil {
			logrus.Fatalf("Run aborted: %v", err)
		}

		env.Metrics().Print()
		logrus.Infof("Simulation complete in %v.", time.Since(startTime))
	},
}

// validateCmd checks a scenario file without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a scenario file and its topology",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		spec, err := loadScenario()
		if err != nil {
			logrus.Fatalf("Scenario rejected: %v", err)
		}
		if _, err := spec.BuildEnvironment(traceLevel); err != nil {
			logrus.Fatalf("Scenario rejected: %v", err)
		}
		logrus.Infof("Scenario %q OK: %d nodes, %d edges, %d trains",
			spec.Name, len(spec.Topology.Nodes), len(spec.Topology.Edges), len(spec.Trains))
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVar(&scenarioPath, "scenario", "", "Path to scenario YAML (empty = built-in demo line)")
		c.Flags().StringVar(&runMode, "mode", "", "Override run mode (self-rolling, delegated)")
		c.Flags().StringVar(&runPolicy, "policy", "", "Override default policy for self-rolling trains")
		c.Flags().Int64Var(&ticks, "ticks", 0, "Override number of ticks to simulate")
		c.Flags().Float64Var(&dt, "dt", 0, "Override tick duration")
		c.Flags().Int64Var(&seed, "seed", -1, "Override master seed for stochastic policies")
		c.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
		c.Flags().StringVar(&traceLevel, "trace", "none", "Decision trace level (none, decisions)")
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
