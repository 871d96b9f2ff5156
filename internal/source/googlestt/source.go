// Package googlestt streams microphone audio to Google Cloud Speech-to-Text
// and turns its interim and final hypotheses into transcript updates for a
// single speaker. Audio arrives over a websocket ingress as binary PCM
// frames; recognition sessions are rotated transparently when the API's
// stream duration cap is hit.
package googlestt

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/encoding/protojson"

	"live-transcript-reconciler/internal/models"
	"live-transcript-reconciler/internal/observability/logging"
	"live-transcript-reconciler/internal/observability/metrics"
	"live-transcript-reconciler/internal/source"
)

const (
	// keepSegments bounds how many completed utterances ride along on each
	// update. Older ones are already confirmed in the record, so resending
	// a window is enough for the reconciler to anchor on.
	keepSegments = 10

	// audioBuffer is the maximum backlog of queued audio frames. Beyond it
	// frames are dropped rather than stalling the ingress socket.
	audioBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Config configures the recognition session and the speaker it transcribes.
type Config struct {
	SpeakerID      string
	SpeakerName    string
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
}

// Source is a transcript source backed by Google streaming recognition.
type Source struct {
	cfg     Config
	stamper *source.Stamper
	logger  zerolog.Logger
	metrics *metrics.Metrics

	ready atomic.Bool
	audio chan []byte

	// Translation state below is owned by the receive loop. Utterance
	// boundaries from the API are relative to the current stream; base
	// carries the absolute offset across session rotations.
	base    float64
	cursor  float64
	history []models.Segment
}

// New creates a source for the given speaker and recognition settings.
func New(cfg Config) *Source {
	if cfg.SpeakerID == "" {
		cfg.SpeakerID = "local-mic"
	}
	if cfg.SpeakerName == "" {
		cfg.SpeakerName = cfg.SpeakerID
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.SampleRateHz <= 0 {
		cfg.SampleRateHz = 16000
	}
	return &Source{
		cfg:     cfg,
		stamper: source.NewStamper(),
		logger:  logging.WithSpeaker(cfg.SpeakerID, cfg.SpeakerName).With().Str("component", "googlestt").Logger(),
		metrics: metrics.DefaultMetrics,
		audio:   make(chan []byte, audioBuffer),
	}
}

// Name identifies the source in logs and metrics.
func (s *Source) Name() string { return "googlestt" }

// Ready reports whether a recognition session is currently open.
func (s *Source) Ready() bool { return s.ready.Load() }

// Run opens the Speech client and keeps a recognition session alive until
// ctx is cancelled. Routine stream rotations reconnect immediately; real
// failures back off exponentially.
func (s *Source) Run(ctx context.Context, cb source.Callback) error {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating speech client: %w", err)
	}
	defer client.Close()

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0

	for {
		err := s.session(ctx, client, cb)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isRotation(err) {
			s.logger.Info().Msg("Stream limit reached, rotating recognition session")
			bo.Reset()
			continue
		}

		s.metrics.RecordSourceError(s.Name(), "session")
		s.logger.Warn().Err(err).Msg("Recognition session ended, reconnecting")
		cb.OnError(err)

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// session runs one recognition stream: config, audio pump, receive loop.
func (s *Source) session(ctx context.Context, client *speech.Client, cb source.Callback) error {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := openStream(sctx, client, s.cfg)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}

	s.metrics.RecordSourceConnect(s.Name())
	s.ready.Store(true)
	defer s.ready.Store(false)
	s.logger.Info().
		Str("language", s.cfg.LanguageCode).
		Int("sampleRateHz", s.cfg.SampleRateHz).
		Msg("Recognition session open")

	// Utterance times in this stream start over at zero.
	s.base = s.cursor

	go s.feed(sctx, stream)

	for {
		resp, err := stream.Recv()
		if err != nil {
			if sctx.Err() != nil {
				return sctx.Err()
			}
			return err
		}
		s.handleResponse(resp, cb)
	}
}

// feed pumps queued audio frames into the stream until the session ends.
func (s *Source) feed(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient) {
	for {
		select {
		case <-ctx.Done():
			stream.CloseSend()
			return
		case frame := <-s.audio:
			if err := sendAudio(stream, frame); err != nil {
				// Recv surfaces the stream error; just stop pumping.
				return
			}
		}
	}
}

// handleResponse folds one API response into the utterance history and
// emits an update carrying the recent completed utterances plus the live
// interim hypothesis, if any.
func (s *Source) handleResponse(resp *speechpb.StreamingRecognizeResponse, cb source.Callback) {
	if e := s.logger.Trace(); e.Enabled() {
		e.Str("response", protojson.Format(resp)).Msg("Streaming response")
	}

	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			continue
		}

		end := s.base + r.ResultEndTime.AsDuration().Seconds()
		if end < s.cursor {
			end = s.cursor
		}

		if r.GetIsFinal() {
			s.metrics.RecordSourceMessage(s.Name(), "final")
			s.history = append(s.history, models.Segment{
				Start:     s.cursor,
				End:       end,
				Text:      text,
				Completed: true,
			})
			if len(s.history) > keepSegments {
				s.history = s.history[len(s.history)-keepSegments:]
			}
			s.cursor = end
			s.logger.Debug().
				Str("text", text).
				Float64("confidence", float64(alt.Confidence)).
				Msg("Final hypothesis")
			s.emit(slices.Clone(s.history), cb)
		} else {
			s.metrics.RecordSourceMessage(s.Name(), "interim")
			interim := models.Segment{
				Start:     s.cursor,
				End:       end,
				Text:      text,
				Completed: false,
			}
			s.emit(append(slices.Clone(s.history), interim), cb)
		}
	}
}

func (s *Source) emit(segments []models.Segment, cb source.Callback) {
	u := models.Update{
		SpeakerID:   s.cfg.SpeakerID,
		SpeakerName: s.cfg.SpeakerName,
		Language:    s.cfg.LanguageCode,
		Segments:    segments,
		Timestamp:   time.Now().UnixMilli(),
	}
	s.stamper.Stamp(&u)
	cb.OnUpdate(u)
}

// AudioHandler accepts a websocket carrying binary PCM frames and queues
// them for recognition. Frames arriving faster than the recognizer drains
// them are dropped so a slow upstream cannot wedge the ingress.
func (s *Source) AudioHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Audio websocket upgrade failed")
			return
		}
		defer conn.Close()

		s.logger.Info().Str("remote", r.RemoteAddr).Msg("Audio stream connected")
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				s.logger.Info().Str("remote", r.RemoteAddr).Msg("Audio stream closed")
				return
			}
			if mt != websocket.BinaryMessage || len(data) == 0 {
				continue
			}
			select {
			case s.audio <- data:
			default:
				s.metrics.RecordSourceError(s.Name(), "audio_backpressure")
			}
		}
	}
}
