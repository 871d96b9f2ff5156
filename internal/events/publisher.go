// Package events provides record event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"live-transcript-reconciler/internal/models"
	"live-transcript-reconciler/internal/observability/metrics"
)

// Publisher publishes reconciled record events to separate Kafka topics:
// one for every accepted update, one for records that reached a fully
// finalized state.
type Publisher struct {
	writerUpdated *kafka.Writer
	writerFinal   *kafka.Writer
	principal     string
	topicUpdated  string
	topicFinal    string
	enabled       bool
	metrics       *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicUpdated string
	TopicFinal   string
	Principal    string
	Enabled      bool
}

// New creates a new Kafka record event publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	// Handle nil config case
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:    cfg.Principal,
			topicUpdated: cfg.TopicUpdated,
			topicFinal:   cfg.TopicFinal,
			enabled:      false,
			metrics:      m,
		}
	}

	// Custom dialer with longer timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerUpdated := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicUpdated,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerFinal := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicFinal,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicUpdated", cfg.TopicUpdated).
		Str("topicFinal", cfg.TopicFinal).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerUpdated: writerUpdated,
		writerFinal:   writerFinal,
		principal:     cfg.Principal,
		topicUpdated:  cfg.TopicUpdated,
		topicFinal:    cfg.TopicFinal,
		enabled:       true,
		metrics:       m,
	}
}

// PublishUpdated publishes a record state after an accepted update.
func (p *Publisher) PublishUpdated(ctx context.Context, rec models.TranscriptRecord) error {
	return p.publish(ctx, p.writerUpdated, p.topicUpdated, models.EventRecordUpdated, rec)
}

// PublishFinal publishes a record that reached a fully finalized state.
func (p *Publisher) PublishFinal(ctx context.Context, rec models.TranscriptRecord) error {
	return p.publish(ctx, p.writerFinal, p.topicFinal, models.EventRecordFinal, rec)
}

// publish wraps the record in an event envelope and writes it, keyed by
// speaker so one speaker's events stay ordered within a partition.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType string, rec models.TranscriptRecord) error {
	start := time.Now()

	event := models.RecordEvent{
		EventType: eventType,
		Record:    rec,
		EmittedAt: time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("speakerId", rec.SpeakerID).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(rec.SpeakerID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("speakerId", rec.SpeakerID).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerUpdated != nil {
		if e := p.writerUpdated.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing updated writer")
			err = e
		}
	}
	if p.writerFinal != nil {
		if e := p.writerFinal.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing final writer")
			err = e
		}
	}
	return err
}
