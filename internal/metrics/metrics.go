// Package metrics exposes the engine's live prometheus metrics:
// per-stage throughput, queue depth/backpressure level, step apply
// duration, sink output volume, and run-level gauges. Grounded on the
// teacher's internal/metrics/metrics.go (the same promauto-registered
// vectors plus a promhttp.Handler-backed MetricsServer), retargeted
// from log-shipping sources/sinks/DLQ/position-tracking to pipeline
// stages, blocks, and output buckets. The JSON run report
// (internal/report) is a separate, one-shot concern; this package is
// only the live `/metrics` endpoint a long-running invocation exposes.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// BlocksProcessedTotal counts combined blocks a stage has finished
	// applying, labeled by step name.
	BlocksProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastqflow_blocks_processed_total",
			Help: "Total number of combined blocks processed by each step",
		},
		[]string{"step"},
	)

	// ReadsProcessedTotal counts individual reads a stage has touched,
	// labeled by step name.
	ReadsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastqflow_reads_processed_total",
			Help: "Total number of reads processed by each step",
		},
		[]string{"step"},
	)

	// StepApplyDuration is the per-block wall-clock time a step's
	// Apply call took, mirroring spec.md §4.4's timing requirement.
	StepApplyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fastqflow_step_apply_duration_seconds",
			Help:    "Time spent in each step's Apply call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	// StageQueueDepth is the current number of queued tasks in a
	// stage's worker pool inbox.
	StageQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fastqflow_stage_queue_depth",
			Help: "Current number of queued tasks in a stage's worker pool",
		},
		[]string{"step"},
	)

	// StageQueueUtilization is StageQueueDepth / queue capacity.
	StageQueueUtilization = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fastqflow_stage_queue_utilization",
			Help: "Current utilization of a stage's worker pool queue (0.0 to 1.0)",
		},
		[]string{"step"},
	)

	// BackpressureLevel mirrors pkg/backpressure's classified level
	// (0=none .. 4=critical) per stage, for dashboarding.
	BackpressureLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fastqflow_stage_backpressure_level",
			Help: "Current backpressure level per stage (0=none, 4=critical)",
		},
		[]string{"step"},
	)

	// SinkRecordsWrittenTotal counts reads written to an output file,
	// labeled by segment and demultiplex bucket (bucket="" if none).
	SinkRecordsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastqflow_sink_records_written_total",
			Help: "Total number of records written by the output sink",
		},
		[]string{"segment", "bucket"},
	)

	// SinkChunkRotationsTotal counts output file rotations triggered by
	// output.chunk_size, labeled by segment and bucket.
	SinkChunkRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastqflow_sink_chunk_rotations_total",
			Help: "Total number of output file rotations",
		},
		[]string{"segment", "bucket"},
	)

	// RunErrorsTotal counts run-ending errors by kind (spec.md §7).
	RunErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fastqflow_run_errors_total",
			Help: "Total number of run-ending errors, by error kind",
		},
		[]string{"kind"},
	)

	// RunDuration records the wall-clock duration of completed runs.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fastqflow_run_duration_seconds",
			Help:    "Wall-clock duration of a complete pipeline run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
	)

	// PlanStepCount is the number of steps in the most recently built
	// plan, set once per run after expansion.
	PlanStepCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fastqflow_plan_step_count",
			Help: "Number of steps in the executable plan after expansion",
		},
	)
)

var metricsRegisteredOnce sync.Once

// safeRegister registers a collector, tolerating a second process-wide
// registration attempt (e.g. in tests constructing multiple engines in
// one binary) instead of panicking.
func safeRegister(collector prometheus.Collector) {
	if err := prometheus.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			panic(err)
		}
	}
}

// Server serves the prometheus /metrics endpoint plus a liveness
// /health endpoint, grounded on the teacher's MetricsServer.
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer registers every metric exactly once (safe across repeated
// calls) and returns a Server bound to addr.
func NewServer(addr string, logger *logrus.Logger) *Server {
	metricsRegisteredOnce.Do(func() {
		safeRegister(BlocksProcessedTotal)
		safeRegister(ReadsProcessedTotal)
		safeRegister(StepApplyDuration)
		safeRegister(StageQueueDepth)
		safeRegister(StageQueueUtilization)
		safeRegister(BackpressureLevel)
		safeRegister(SinkRecordsWrittenTotal)
		safeRegister(SinkChunkRotationsTotal)
		safeRegister(RunErrorsTotal)
		safeRegister(RunDuration)
		safeRegister(PlanStepCount)
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Start launches the HTTP server in the background. A bind error is
// logged, not returned, matching the teacher's fire-and-forget
// metrics server lifecycle (metrics are observability, never
// run-critical).
func (s *Server) Start() error {
	if s.logger != nil {
		s.logger.WithField("addr", s.server.Addr).Info("starting metrics server")
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.WithError(err).Error("metrics server error")
			}
		}
	}()
	return nil
}

// Stop shuts the metrics server down gracefully.
func (s *Server) Stop() error {
	if s.logger != nil {
		s.logger.Info("stopping metrics server")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// RecordStepApply records one step's Apply outcome: block/read counts
// and wall-clock duration.
func RecordStepApply(step string, reads int, d time.Duration) {
	BlocksProcessedTotal.WithLabelValues(step).Inc()
	ReadsProcessedTotal.WithLabelValues(step).Add(float64(reads))
	StepApplyDuration.WithLabelValues(step).Observe(d.Seconds())
}

// SetStageQueue records a stage's current queue depth/capacity.
func SetStageQueue(step string, depth, capacity int) {
	StageQueueDepth.WithLabelValues(step).Set(float64(depth))
	if capacity > 0 {
		StageQueueUtilization.WithLabelValues(step).Set(float64(depth) / float64(capacity))
	}
}

// SetBackpressureLevel records a stage's current classified
// backpressure level (pkg/backpressure.Level).
func SetBackpressureLevel(step string, level int) {
	BackpressureLevel.WithLabelValues(step).Set(float64(level))
}

// RecordSinkWrite records one read written to an output file.
func RecordSinkWrite(segment, bucket string) {
	SinkRecordsWrittenTotal.WithLabelValues(segment, bucket).Inc()
}

// RecordSinkRotation records one output file rotation.
func RecordSinkRotation(segment, bucket string) {
	SinkChunkRotationsTotal.WithLabelValues(segment, bucket).Inc()
}

// RecordRunError records one run-ending error by kind.
func RecordRunError(kind string) {
	RunErrorsTotal.WithLabelValues(kind).Inc()
}
