// Package kafka consumes transcript updates that upstream recognizers
// publish to a Kafka topic, typically keyed by speaker so per-speaker
// ordering survives transport.
package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"live-transcript-reconciler/internal/models"
	"live-transcript-reconciler/internal/observability/logging"
	"live-transcript-reconciler/internal/observability/metrics"
	"live-transcript-reconciler/internal/schema"
	"live-transcript-reconciler/internal/source"
)

// Config configures the update consumer.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Source reads updates from Kafka and hands them to the reconciler.
type Source struct {
	reader    *kafkago.Reader
	validator *schema.Validator
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	ready     atomic.Bool
}

// New creates a consumer-group source for the given topic.
func New(cfg Config) *Source {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
	return &Source{
		reader:    reader,
		validator: schema.New(),
		logger:    logging.WithSource("kafka"),
		metrics:   metrics.DefaultMetrics,
	}
}

// Name identifies the source in logs and metrics.
func (s *Source) Name() string { return "kafka" }

// Ready reports whether the consume loop is running.
func (s *Source) Ready() bool { return s.ready.Load() }

// Run consumes until ctx is cancelled. Read errors are reported and retried;
// undecodable messages are skipped so one bad producer cannot wedge the
// partition.
func (s *Source) Run(ctx context.Context, cb source.Callback) error {
	defer s.reader.Close()

	s.ready.Store(true)
	defer s.ready.Store(false)

	cfg := s.reader.Config()
	s.metrics.RecordSourceConnect(s.Name())
	s.logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("groupId", cfg.GroupID).
		Msg("Consuming transcript updates")

	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.metrics.RecordSourceError(s.Name(), "read")
			s.logger.Warn().Err(err).Msg("Kafka read error, retrying")
			cb.OnError(err)
			time.Sleep(time.Second)
			continue
		}

		s.metrics.RecordSourceMessage(s.Name(), "update")
		u, err := decodeUpdate(msg.Value)
		if err != nil {
			s.metrics.RecordSourceError(s.Name(), "decode")
			s.logger.Warn().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Skipping undecodable update")
			continue
		}
		if err := s.validator.Validate(&u); err != nil {
			s.metrics.RecordSourceError(s.Name(), "invalid")
			s.logger.Warn().
				Err(err).
				Str("speakerId", u.SpeakerID).
				Int64("offset", msg.Offset).
				Msg("Rejecting update that violates the wire contract")
			continue
		}
		if u.Timestamp == 0 {
			// Fall back to the broker append time as the capture time.
			u.Timestamp = msg.Time.UnixMilli()
		}
		cb.OnUpdate(u)
	}
}

// decodeUpdate parses one message payload into an update.
func decodeUpdate(value []byte) (models.Update, error) {
	var u models.Update
	if err := json.Unmarshal(value, &u); err != nil {
		return models.Update{}, err
	}
	return u, nil
}
