package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMetricsAddr = ":4242"
	metricsEndpoint    = "/metrics"
)

func benchCmd() *cobra.Command {
	var calls int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Issue concurrent blockNumber calls through the batching dispatcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if calls <= 0 {
				return errors.New("--calls must be positive")
			}
			s, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			start := time.Now()
			heights := make([]uint64, calls)
			g, gctx := errgroup.WithContext(cmd.Context())
			for i := range calls {
				g.Go(func() error {
					h, err := s.client.BlockNumber(gctx)
					heights[i] = h
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			elapsed := time.Since(start)

			var lowest, highest uint64 = heights[0], heights[0]
			for _, h := range heights[1:] {
				lowest = min(lowest, h)
				highest = max(highest, h)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d calls (%s) in %s, %.0f calls/s, heights %d..%d\n",
				calls, s.client.Dispatcher().Policy(), elapsed.Round(time.Microsecond),
				float64(calls)/elapsed.Seconds(), lowest, highest)
			return nil
		},
	}
	cmd.Flags().IntVar(&calls, "calls", 100, "number of concurrent calls")
	return cmd
}

func serveMetricsCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Poll the node and expose dispatcher metrics for Prometheus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return errors.New("--interval must be positive")
			}
			s, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			addr := s.cfg.MetricsAddr
			if addr == "" {
				addr = defaultMetricsAddr
			}
			metricsMux := http.NewServeMux()
			metricsMux.Handle(metricsEndpoint, promhttp.Handler())
			metricsServer := &http.Server{
				Addr:              addr,
				Handler:           metricsMux,
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx := cmd.Context()
			serveErr := make(chan error, 1)
			go func() {
				s.lg.Info("Prometheus metrics available", "listenAddr", addr, "endpoint", metricsEndpoint)
				if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					s.lg.Info("shutting down")
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return metricsServer.Shutdown(shutdownCtx)
				case err := <-serveErr:
					return fmt.Errorf("metrics server failure: %w", err)
				case <-ticker.C:
					height, err := s.client.BlockNumber(ctx)
					if err != nil {
						s.lg.Warn("failed to poll block number", "error", err)
						continue
					}
					s.lg.Debug("polled block number", "height", height)
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 3*time.Second, "block number polling interval")
	return cmd
}
