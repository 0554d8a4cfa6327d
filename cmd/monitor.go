package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"sportbot/metrics"
)

func newMonitorCommand() *cobra.Command {
	var once bool
	var loop bool
	var intervalSec int
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Evaluate alert thresholds and optionally serve /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := currentApp
			ctx := cmd.Context()
			eval := metrics.NewAlertEvaluator(a.db, a.chat, *a.cfg)

			if metricsAddr != "" {
				go serveMetrics(metricsAddr)
			}

			switch {
			case loop:
				return runMonitorLoop(ctx, eval, intervalSec)
			case once:
				return runMonitorOnce(ctx, eval)
			default:
				return fmt.Errorf("monitor: one of --once or --loop is required")
			}
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "evaluate alert thresholds once and exit")
	cmd.Flags().BoolVar(&loop, "loop", false, "evaluate alert thresholds on a ticker")
	cmd.Flags().IntVar(&intervalSec, "interval", 60, "ticker interval in seconds with --loop")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus /metrics on this address")

	return cmd
}

func runMonitorOnce(ctx context.Context, eval *metrics.AlertEvaluator) error {
	breaches, err := eval.EvaluateOnce(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	if len(breaches) == 0 {
		fmt.Println("no breaches")
		return nil
	}
	for _, b := range breaches {
		fmt.Printf("breach=%s message=%q\n", b.Name, b.Message)
	}
	return nil
}

func runMonitorLoop(ctx context.Context, eval *metrics.AlertEvaluator, intervalSec int) error {
	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := runMonitorOnce(ctx, eval); err != nil {
				fmt.Printf("monitor tick error: %v\n", err)
			}
		}
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Printf("metrics server stopped: %v\n", err)
	}
}
