// Package metrics exports teleoperation counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-g1/pkg/command"
	"github.com/teslashibe/go-g1/pkg/loco"
	"github.com/teslashibe/go-g1/pkg/voice"
)

const namespace = "g1"

// Recorder owns the go-g1 metric vectors.
type Recorder struct {
	commands      *prometheus.CounterVec
	commandErrors *prometheus.CounterVec
	transcripts   *prometheus.CounterVec
	rpcDuration   *prometheus.HistogramVec
	rpcErrors     *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the metrics with reg. A nil reg uses the default registry.
func New(reg *prometheus.Registry) *Recorder {
	var (
		r        prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		r, gatherer = reg, reg
	}
	f := promauto.With(r)

	return &Recorder{
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Robot commands sent, by input source and action.",
		}, []string{"source", "action"}),
		commandErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      "Robot commands that failed, by input source.",
		}, []string{"source"}),
		transcripts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_total",
			Help:      "Speech-to-text events, by kind (partial, final, error).",
		}, []string{"kind"}),
		rpcDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "Loco service round-trip time, by API ID.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 10},
		}, []string{"api"}),
		rpcErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_errors_total",
			Help:      "Loco service calls that failed, by API ID.",
		}, []string{"api"}),
		gatherer: gatherer,
	}
}

// ObserveCommand counts one command. It matches command.Observer.
func (r *Recorder) ObserveCommand(source string, a command.Action, err error) {
	name := a.Name
	if name == "" {
		name = "unknown"
	}
	r.commands.WithLabelValues(source, name).Inc()
	if err != nil {
		r.commandErrors.WithLabelValues(source).Inc()
	}
}

// ObserveTranscript counts one transcriber event. It matches
// voice.TranscriptObserver.
func (r *Recorder) ObserveTranscript(kind string) {
	r.transcripts.WithLabelValues(kind).Inc()
}

// ObserveRPC records one loco RPC. It matches loco.Observer.
func (r *Recorder) ObserveRPC(apiID int32, elapsed time.Duration, err error) {
	api := strconv.Itoa(int(apiID))
	r.rpcDuration.WithLabelValues(api).Observe(elapsed.Seconds())
	if err != nil {
		r.rpcErrors.WithLabelValues(api).Inc()
	}
}

var (
	_ command.Observer         = (*Recorder)(nil).ObserveCommand
	_ voice.TranscriptObserver = (*Recorder)(nil).ObserveTranscript
	_ loco.Observer            = (*Recorder)(nil).ObserveRPC
)

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr, "path", "/metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
