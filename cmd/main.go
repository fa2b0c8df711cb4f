// Package main is the jobrec command: it serves and exercises the job
// recommendation funnel.
package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Aruomeng/JobRec-KG/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "jobrec",
	Short: "Knowledge-graph assisted job recommendation",
	Long: "jobrec recalls jobs by embedding similarity, ranks them with a trained pair scorer " +
		"and fuses the result with skill and education evidence from the knowledge graph.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to a YAML config file (defaults to $JOBREC_CONFIG)")
}

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
