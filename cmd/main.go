package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"live-transcript-reconciler/internal/config"
	"live-transcript-reconciler/internal/display"
	"live-transcript-reconciler/internal/events"
	"live-transcript-reconciler/internal/observability"
	"live-transcript-reconciler/internal/observability/logging"
	"live-transcript-reconciler/internal/reconcile"
	"live-transcript-reconciler/internal/service/ingest"
	"live-transcript-reconciler/internal/source"
	"live-transcript-reconciler/internal/source/googlestt"
	kafkasource "live-transcript-reconciler/internal/source/kafka"
	"live-transcript-reconciler/internal/source/mock"
	"live-transcript-reconciler/internal/source/whisperlive"
)

const shutdownTimeout = 10 * time.Second

// audioIngress is implemented by sources that take raw audio from a capture
// client over a websocket.
type audioIngress interface {
	AudioHandler() http.HandlerFunc
}

func main() {
	cfg := config.Load()

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Observability.LogLevel
	logCfg.Format = cfg.Observability.LogFormat
	logging.Init(logCfg)

	log.Info().
		Str("principal", cfg.Service.Principal).
		Str("provider", cfg.Source.Provider).
		Msg("Starting transcript reconciler")

	// Kafka publisher for downstream consumers of reconciled records.
	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicUpdated: cfg.Kafka.TopicUpdated,
		TopicFinal:   cfg.Kafka.TopicFinal,
		Principal:    cfg.Kafka.Principal,
	})
	defer publisher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := display.NewHub()
	go hub.Run(ctx)

	svc := ingest.New(reconcile.New(), publisher, hub)

	displayServer := display.NewServer(cfg.Display.Addr, svc, hub)

	sources := buildSources(cfg)
	for _, src := range sources {
		// Live-capture sources transcribe audio that arrives over the
		// display server's websocket ingress.
		if ai, ok := src.(audioIngress); ok {
			displayServer.MountAudio(ai.AudioHandler())
		}
	}

	obsServer := observability.NewServer(cfg.Observability.MetricsAddr, func() bool {
		for _, src := range sources {
			if !src.Ready() {
				return false
			}
		}
		return true
	})

	displayServer.Start()
	obsServer.Start()

	for _, src := range sources {
		go func(src source.Source) {
			log.Info().Str("source", src.Name()).Msg("Starting transcript source")
			if err := src.Run(ctx, svc.CallbackFor(src.Name())); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("source", src.Name()).Msg("Transcript source stopped")
			}
		}(src)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := displayServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Display server shutdown failed")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown failed")
	}
}

// buildSources assembles the transcript sources for this run: the selected
// provider, plus the Kafka consumer when enabled alongside a live source.
func buildSources(cfg *config.Config) []source.Source {
	var sources []source.Source

	switch cfg.Source.Provider {
	case "mock":
		sources = append(sources, mock.New(nil, time.Second))
	case "whisperlive":
		sources = append(sources, whisperlive.New(whisperlive.Options{
			URL:                 cfg.WhisperLive.URL,
			SpeakerID:           cfg.Source.SpeakerID,
			SpeakerName:         cfg.Source.SpeakerName,
			Language:            cfg.WhisperLive.Language,
			Task:                cfg.WhisperLive.Task,
			Model:               cfg.WhisperLive.Model,
			UseVAD:              cfg.WhisperLive.UseVAD,
			SendLastNSegments:   cfg.WhisperLive.SendLastN,
			NoSpeechThresh:      cfg.WhisperLive.NoSpeechThresh,
			ClipAudio:           cfg.WhisperLive.ClipAudio,
			SameOutputThreshold: cfg.WhisperLive.SameOutputThreshold,
			ReconnectMaxElapsed: cfg.WhisperLive.ReconnectMaxElapsed,
		}))
	case "googlestt":
		sources = append(sources, googlestt.New(googlestt.Config{
			SpeakerID:      cfg.Source.SpeakerID,
			SpeakerName:    cfg.Source.SpeakerName,
			LanguageCode:   cfg.GoogleSTT.LanguageCode,
			SampleRateHz:   cfg.GoogleSTT.SampleRateHz,
			InterimResults: cfg.GoogleSTT.InterimResults,
		}))
	case "kafka":
		sources = append(sources, newKafkaSource(cfg))
	default:
		log.Fatal().Str("provider", cfg.Source.Provider).Msg("Unknown source provider")
	}

	if cfg.KafkaSource.Enabled && cfg.Source.Provider != "kafka" {
		sources = append(sources, newKafkaSource(cfg))
	}
	return sources
}

func newKafkaSource(cfg *config.Config) source.Source {
	return kafkasource.New(kafkasource.Config{
		Brokers: cfg.KafkaSource.Brokers,
		Topic:   cfg.KafkaSource.Topic,
		GroupID: cfg.KafkaSource.GroupID,
	})
}
