// Package main provides the entry point for the kin CLI application.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version        = "0.1.0-dev"
	globalRegister string
	globalMetrics  bool

	// metricsOut receives the --metrics dump.
	metricsOut io.Writer = os.Stderr
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := newRootCmd()
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kin",
		Short:         "A family relationship register that keeps its graph consistent",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globalRegister, "register", "r", "", "Register to operate on (default: \"default\")")
	rootCmd.PersistentFlags().BoolVar(&globalMetrics, "metrics", false, "Write engine metrics in Prometheus text format to stderr on exit")

	rootCmd.AddCommand(
		newInitCmd(),
		newRegistersCmd(),
		newPeopleCmd(),
		newRelateCmd(),
		newRelationsCmd(),
		newImportCmd(),
		newCheckCmd(),
		newHistoryCmd(),
	)

	return rootCmd
}
