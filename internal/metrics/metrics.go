// Package metrics exposes recorder telemetry as Prometheus collectors on a
// registry owned by the daemon.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements the controller's observer interface.
type Recorder struct {
	registry        *prometheus.Registry
	sessions        *prometheus.CounterVec
	frames          prometheus.Counter
	captureFailures prometheus.Counter
	logFailures     prometheus.Counter
	lidarDetected   prometheus.Gauge
	captureSeconds  prometheus.Histogram
}

// New registers the recorder collectors on a fresh registry. Process and Go
// runtime collectors are included when withRuntime is set.
func New(withRuntime bool) *Recorder {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tecscanner_sessions_total",
			Help: "Finished recording sessions by result",
		}, []string{"result"}),
		frames: factory.NewCounter(prometheus.CounterOpts{
			Name: "tecscanner_frames_captured_total",
			Help: "Frames saved by the capture loop",
		}),
		captureFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tecscanner_capture_failures_total",
			Help: "Failed capture attempts",
		}),
		logFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tecscanner_log_write_failures_total",
			Help: "Recordings log reads or writes that failed",
		}),
		lidarDetected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tecscanner_lidar_detected",
			Help: "1 when the last presence probe found the sensor",
		}),
		captureSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tecscanner_frame_capture_seconds",
			Help:    "Duration of successful frame captures in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
	}
}

// FrameCaptured records a saved frame and its capture time.
func (r *Recorder) FrameCaptured(elapsed time.Duration) {
	r.frames.Inc()
	r.captureSeconds.Observe(elapsed.Seconds())
}

// CaptureFailed counts a failed attempt.
func (r *Recorder) CaptureFailed() {
	r.captureFailures.Inc()
}

// SessionFinished counts a finished session under result.
func (r *Recorder) SessionFinished(result string) {
	r.sessions.WithLabelValues(result).Inc()
}

// LogWriteFailed counts a recordings log failure.
func (r *Recorder) LogWriteFailed() {
	r.logFailures.Inc()
}

// LidarPresence sets the presence gauge.
func (r *Recorder) LidarPresence(detected bool) {
	if detected {
		r.lidarDetected.Set(1)
		return
	}
	r.lidarDetected.Set(0)
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
