package search

import (
	"log/slog"

	"github.com/Aman-CERP/topicsearch/internal/telemetry"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClassifier enables classification-gated filtering.
func WithClassifier(c QueryClassifier) Option {
	return func(o *Orchestrator) {
		o.classifier = c
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder. Defaults to telemetry.NopRecorder.
func WithRecorder(r telemetry.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}
