package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/citadel-ai/langcheckchat/internal/metric"
	"github.com/citadel-ai/langcheckchat/internal/service"

	"github.com/spf13/cobra"
)

var metricsReference bool

var metricsCmd = &cobra.Command{
	Use:   "metrics <log-id>",
	Short: "Compute the metrics of one chat log entry in the foreground",
	Long: `Runs one metric pass for a logged exchange and prints the result.
With --reference the reference-based metrics are computed; the entry must already have a reference answer.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid log id %q", args[0])
		}

		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		suite := metric.SuiteStandard
		if metricsReference {
			suite = metric.SuiteReference
		}
		if err := a.runner.Run(ctx, logID, suite); err != nil {
			return err
		}

		result, err := service.NewResultService(a.chatLogs, a.metrics).GetFullResult(ctx, logID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsReference, "reference", false, "Compute the reference-based metrics")
}
