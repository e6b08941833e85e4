package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	captureSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxprep_capture_sessions_total",
		Help: "Total number of capture sessions started",
	})

	captureActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxprep_capture_active",
		Help: "Whether a capture session is currently active",
	})

	chunksEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxprep_chunks_emitted_total",
		Help: "Audio chunks emitted by capture sessions",
	})

	chunksDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxprep_chunks_dropped_total",
		Help: "Audio chunks dropped before transcription",
	}, []string{"reason"}) // reason: "rate", "size"

	transcriptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxprep_transcriptions_total",
		Help: "Transcription calls by outcome",
	}, []string{"status"}) // status: "ok", "empty", "error"

	transcriptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxprep_transcription_latency_seconds",
		Help:    "Latency of transcription calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxprep_dispatches_total",
		Help: "Assistant dispatches by outcome",
	}, []string{"status"})

	dispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxprep_dispatch_latency_seconds",
		Help:    "Latency of answer-generation calls",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	recognitionRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxprep_recognition_restarts_total",
		Help: "Debounced restarts of the recognition engine",
	})

	audioBytesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxprep_audio_bytes_total",
		Help: "Raw audio bytes captured",
	})
)

func CaptureStarted()     { captureSessions.Inc(); captureActive.Set(1) }
func CaptureStopped()     { captureActive.Set(0) }
func ChunkEmitted(n int)  { chunksEmitted.Inc(); audioBytesCaptured.Add(float64(n)) }
func ChunkDropped(reason string) {
	chunksDropped.WithLabelValues(reason).Inc()
}

func TranscriptionDone(status string, elapsed time.Duration) {
	transcriptions.WithLabelValues(status).Inc()
	transcriptionLatency.Observe(elapsed.Seconds())
}

func DispatchDone(status string, elapsed time.Duration) {
	dispatches.WithLabelValues(status).Inc()
	dispatchLatency.Observe(elapsed.Seconds())
}

func RecognitionRestarted() { recognitionRestarts.Inc() }

// Serve exposes /metrics on the given address until ctx is cancelled.
func Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics listener started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
