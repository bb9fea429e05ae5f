// Orchd plans and executes multi-step tasks with pluggable executors.
//
// Usage:
//
//	# Execute a task end to end
//	orchd run "fix the flaky auth test" --category codegen
//
//	# Derive the plan without executing it
//	orchd plan "document the release process" --category research
//
//	# Start the status API
//	orchd serve
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/runner"
	"github.com/fyrsmithlabs/orchd/internal/task"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

var (
	configPath   string
	taskCategory string
	taskDetails  []string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "orchd",
	Short:   "Task orchestrator with plan caching and executor synthesis",
	Version: fmt.Sprintf("%s (%s)", version, gitCommit),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	for _, cmd := range []*cobra.Command{runCmd, planCmd} {
		cmd.Flags().StringVar(&taskCategory, "category", "general", "task category, used for plan caching")
		cmd.Flags().StringArrayVar(&taskDetails, "detail", nil, "task detail as key=value, repeatable")
	}
}

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Plan and execute a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

var planCmd = &cobra.Command{
	Use:   "plan <goal>",
	Short: "Derive the plan for a task without executing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List known executors",
	RunE:  runAgents,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the status API server",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "orchd %s (%s)\n", version, gitCommit)
	},
}

func buildTask(goal string) (*task.Task, error) {
	opts := []task.Option{task.WithSource("cli")}
	if len(taskDetails) > 0 {
		details := make(map[string]any, len(taskDetails))
		for _, d := range taskDetails {
			key, value, found := strings.Cut(d, "=")
			if !found || key == "" {
				return nil, fmt.Errorf("invalid detail %q, expected key=value", d)
			}
			details[key] = value
		}
		opts = append(opts, task.WithDetails(details))
	}
	return task.New(taskCategory, goal, opts...)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	t, err := buildTask(args[0])
	if err != nil {
		return err
	}

	plan, err := a.planner.Resolve(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to derive plan: %w", err)
	}

	result, err := a.runner.Execute(ctx, t, plan)
	if err != nil {
		return fmt.Errorf("failed to execute plan: %w", err)
	}

	if err := printJSON(cmd, result); err != nil {
		return err
	}
	if result.Status != runner.StatusSuccess {
		return fmt.Errorf("run %s failed", result.RunID)
	}
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	t, err := buildTask(args[0])
	if err != nil {
		return err
	}

	plan, err := a.planner.Resolve(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to derive plan: %w", err)
	}
	return printJSON(cmd, plan)
}

func runAgents(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	names, err := a.registry.Names(ctx)
	if err != nil {
		return fmt.Errorf("failed to list executors: %w", err)
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if a.server == nil {
		return fmt.Errorf("status API is disabled, set http.enabled to serve")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		a.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout.Duration())
	defer shutdownCancel()
	return a.server.Shutdown(shutdownCtx)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
