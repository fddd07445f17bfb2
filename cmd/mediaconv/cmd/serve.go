package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/psantana5/mediaconv/pkg/api"
	"github.com/psantana5/mediaconv/pkg/metrics"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an HTTP endpoint for conversions and metrics",
	Long: `Exposes the engine over HTTP: POST /api/convert runs a conversion,
GET /api/pipelines and /api/presets/{format} answer introspection queries,
and /metrics serves Prometheus metrics for scraping.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8575", "listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	conv, err := newConverter(logger, m)
	if err != nil {
		return err
	}

	handler := api.NewHandler(conv, logger, reg)
	server := &http.Server{
		Addr:         serveListen,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // conversions are long-running
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", serveListen)
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
