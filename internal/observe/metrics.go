// Package observe holds the OpenTelemetry metrics of the recognition
// pipeline, the Prometheus bridge that exposes them, and logging setup.
//
// Tests should build a Metrics with NewMetrics and an sdkmetric.ManualReader
// instead of using the global provider.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of every signspeak instrument.
const meterName = "github.com/ayushi512rai/Lack-of-Accessibility"

// Metrics holds the pipeline instruments. All fields are safe for
// concurrent use.
type Metrics struct {
	// FramesRead counts frames pulled from the camera. Attribute
	// "status": ok, error.
	FramesRead metric.Int64Counter

	// FramesSkipped counts frames not submitted to the detector. Attribute
	// "reason": busy, still.
	FramesSkipped metric.Int64Counter

	// Detections counts finished detector calls. Attribute "status": ok,
	// error, stale.
	Detections metric.Int64Counter

	// DetectorStalls counts in-flight detections abandoned after the stall
	// threshold.
	DetectorStalls metric.Int64Counter

	// DetectDuration tracks detector latency in seconds.
	DetectDuration metric.Float64Histogram

	// LabelsEmitted counts debounced letter changes. Attribute "label".
	LabelsEmitted metric.Int64Counter

	// ActiveSessions is 1 while a recognition session runs.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks API latency. Attributes "method", "path".
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesRead, err = m.Int64Counter("signspeak.frames.read",
		metric.WithDescription("Camera frames read by status."),
	); err != nil {
		return nil, err
	}
	if met.FramesSkipped, err = m.Int64Counter("signspeak.frames.skipped",
		metric.WithDescription("Frames not submitted for detection by reason."),
	); err != nil {
		return nil, err
	}
	if met.Detections, err = m.Int64Counter("signspeak.detections",
		metric.WithDescription("Completed landmark detections by status."),
	); err != nil {
		return nil, err
	}
	if met.DetectorStalls, err = m.Int64Counter("signspeak.detector.stalls",
		metric.WithDescription("Detections abandoned after exceeding the stall threshold."),
	); err != nil {
		return nil, err
	}
	if met.DetectDuration, err = m.Float64Histogram("signspeak.detect.duration",
		metric.WithDescription("Latency of landmark detection."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LabelsEmitted, err = m.Int64Counter("signspeak.labels.emitted",
		metric.WithDescription("Debounced letter changes by label."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("signspeak.active_sessions",
		metric.WithDescription("Number of running recognition sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("signspeak.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordFrame counts a camera read.
func (m *Metrics) RecordFrame(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.FramesRead.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordSkip counts a frame that was not sent to the detector.
func (m *Metrics) RecordSkip(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.FramesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordDetection counts a finished detection and its latency.
func (m *Metrics) RecordDetection(ctx context.Context, status string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Detections.Add(ctx, 1, attrs)
	m.DetectDuration.Record(ctx, seconds, attrs)
}

// RecordStall counts an abandoned detection.
func (m *Metrics) RecordStall(ctx context.Context) {
	if m == nil {
		return
	}
	m.DetectorStalls.Add(ctx, 1)
}

// RecordLabel counts a debounced letter change.
func (m *Metrics) RecordLabel(ctx context.Context, label string) {
	if m == nil {
		return
	}
	m.LabelsEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
}

// SessionStarted and SessionEnded track the active session gauge.
func (m *Metrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1)
}

func (m *Metrics) SessionEnded(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1)
}
