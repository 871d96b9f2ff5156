// Package source defines the interface between transcript providers and the
// reconciling service.
package source

import (
	"context"

	"live-transcript-reconciler/internal/models"
)

// Callback receives transcript updates from a source.
type Callback interface {
	// OnUpdate is called for every transcript update the source produces.
	OnUpdate(u models.Update)

	// OnLanguageDetected is called when the provider reports the language
	// it settled on for a speaker.
	OnLanguageDetected(speakerId, language string, probability float64)

	// OnError is called when the source hits an error it can recover from.
	OnError(err error)
}

// Source is a transcript provider (WhisperLive, Google STT, Kafka, mock).
type Source interface {
	// Run connects and pumps updates into cb until ctx is cancelled or the
	// source is exhausted.
	Run(ctx context.Context, cb Callback) error

	// Name identifies the source in logs and metrics.
	Name() string

	// Ready reports whether the source is connected and producing.
	Ready() bool
}
