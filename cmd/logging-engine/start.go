package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Nwagbara-Group-LLC/LoggingEngine/logger"
	"github.com/Nwagbara-Group-LLC/LoggingEngine/metrics"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the engine and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(0)
		},
	}
}

func newRunForCmd() *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "run-for",
		Short: "Start the engine, run for a fixed duration, then shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(duration)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", time.Minute, "how long to run before shutting down")
	return cmd
}

// runStart brings the pipeline up, serves health/metrics, and blocks until a
// signal arrives or the duration elapses. A zero duration runs forever.
func runStart(duration time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := logger.New(cfg)
	if err != nil {
		return err
	}
	if err := l.Start(); err != nil {
		return err
	}
	logger.SetGlobal(l)

	srv := &http.Server{Addr: httpAddr, Handler: newHandler(l)}
	go func() { _ = srv.ListenAndServe() }()

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
	if duration > 0 {
		select {
		case <-sigC:
		case <-time.After(duration):
		}
	} else {
		<-sigC
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return l.Shutdown(shutdownCtx)
}

// newHandler serves /healthz, process self-metrics on /metrics, and the
// telemetry collector's exposition on /metrics/pipeline.
func newHandler(l *logger.UltraLogger) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "logging_records_submitted_total",
			Help: "Records admitted by the submission API.",
		}, func() float64 { return float64(l.Stats().RecordsSubmitted) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "logging_records_logged_total",
			Help: "Records delivered to at least one transport.",
		}, func() float64 { return float64(l.Stats().RecordsLogged) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "logging_records_dropped_total",
			Help: "Records shed by the pipeline.",
		}, func() float64 { return float64(l.Stats().RecordsDropped) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "logging_transport_errors_total",
			Help: "Failed transport send attempts.",
		}, func() float64 { return float64(l.Stats().TransportErrors) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "logging_ingest_queue_depth",
			Help: "Records waiting in the ingest ring.",
		}, func() float64 { return float64(l.QueueDepth()) }),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/metrics/pipeline", func(w http.ResponseWriter, r *http.Request) {
		c := l.Metrics()
		if c == nil {
			http.Error(w, "metrics disabled", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_ = metrics.WritePrometheus(w, c.Snapshot())
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h := l.HealthCheck()
		w.Header().Set("Content-Type", "application/json")
		if h.State != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(h)
	})
	return mux
}
