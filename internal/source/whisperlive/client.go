// Package whisperlive streams live recognition output from a WhisperLive
// server over websocket and forwards each segment batch as a transcript
// update for a single speaker session.
package whisperlive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"live-transcript-reconciler/internal/models"
	"live-transcript-reconciler/internal/observability/logging"
	"live-transcript-reconciler/internal/observability/metrics"
	"live-transcript-reconciler/internal/source"
)

const (
	// Time allowed to write a message to the server.
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the server. The read
	// deadline is pushed forward on every pong.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var (
	errServerDisconnect = errors.New("server requested disconnect")
	errNotReady         = errors.New("session not ready for audio")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Options configures one WhisperLive speaker session.
type Options struct {
	URL         string
	SpeakerID   string
	SpeakerName string

	// Language is the expected spoken language. Empty means the server
	// auto-detects and reports its choice.
	Language string

	Task                string
	Model               string
	UseVAD              bool
	SendLastNSegments   int
	NoSpeechThresh      float64
	ClipAudio           bool
	SameOutputThreshold int

	// ReconnectMaxElapsed bounds how long reconnect attempts keep backing
	// off before the source gives up. Zero retries indefinitely.
	ReconnectMaxElapsed time.Duration
}

// Client is a transcript source backed by one WhisperLive websocket session.
type Client struct {
	opts    Options
	stamper *source.Stamper
	logger  zerolog.Logger
	metrics *metrics.Metrics

	ready atomic.Bool

	// connMu guards conn and serializes audio writes. Control pings bypass
	// it; gorilla allows WriteControl concurrently with other writes.
	connMu sync.Mutex
	conn   *websocket.Conn

	// Session state below is touched only by the read loop.
	uid      string
	language string
}

// New creates a client for the given server and speaker identity.
func New(opts Options) *Client {
	if opts.SpeakerID == "" {
		opts.SpeakerID = "local-mic"
	}
	if opts.SpeakerName == "" {
		opts.SpeakerName = opts.SpeakerID
	}
	if opts.Task == "" {
		opts.Task = "transcribe"
	}
	if opts.Model == "" {
		opts.Model = "small"
	}
	if opts.SendLastNSegments <= 0 {
		opts.SendLastNSegments = 10
	}
	if opts.NoSpeechThresh <= 0 {
		opts.NoSpeechThresh = 0.45
	}
	if opts.SameOutputThreshold <= 0 {
		opts.SameOutputThreshold = 10
	}
	return &Client{
		opts:    opts,
		stamper: source.NewStamper(),
		logger:  logging.WithSpeaker(opts.SpeakerID, opts.SpeakerName).With().Str("component", "whisperlive").Logger(),
		metrics: metrics.DefaultMetrics,
	}
}

// Name identifies the source in logs and metrics.
func (c *Client) Name() string { return "whisperlive" }

// Ready reports whether the server has acknowledged the current session.
func (c *Client) Ready() bool { return c.ready.Load() }

// Run connects to the server and pumps messages until ctx is cancelled.
// Lost sessions are re-dialed with exponential backoff; the backoff window
// resets every time a session reaches SERVER_READY.
func (c *Client) Run(ctx context.Context, cb source.Callback) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.opts.ReconnectMaxElapsed

	op := func() error {
		err := c.session(ctx, cb, bo.Reset)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		c.metrics.RecordSourceError(c.Name(), "session")
		c.logger.Warn().Err(err).Msg("Session ended, reconnecting")
		cb.OnError(err)
		return err
	}
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

// session runs a single websocket session: dial, handshake, then read until
// the connection fails or the server tells us to go away.
func (c *Client) session(ctx context.Context, cb source.Callback, onReady func()) error {
	c.ready.Store(false)
	c.uid = uuid.NewString()
	c.language = c.opts.Language

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	defer conn.Close()
	defer c.ready.Store(false)

	c.metrics.RecordSourceConnect(c.Name())
	c.logger.Info().Str("url", c.opts.URL).Str("uid", c.uid).Msg("Connected to WhisperLive server")

	if err := c.sendHandshake(conn); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	c.setConn(conn)
	defer c.setConn(nil)

	// Close the connection when ctx is cancelled so the read loop unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	go c.pingLoop(conn, stop)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := c.handleMessage(data, cb, onReady); err != nil {
			return err
		}
	}
}

func (c *Client) sendHandshake(conn *websocket.Conn) error {
	hs := handshake{
		UID:                 c.uid,
		Task:                c.opts.Task,
		Model:               c.opts.Model,
		UseVAD:              c.opts.UseVAD,
		SendLastNSegments:   c.opts.SendLastNSegments,
		NoSpeechThresh:      c.opts.NoSpeechThresh,
		ClipAudio:           c.opts.ClipAudio,
		SameOutputThreshold: c.opts.SameOutputThreshold,
		EnableTranslation:   false,
		TargetLanguage:      "en",
	}
	if c.opts.Language != "" {
		hs.Language = &c.opts.Language
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(hs)
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

// SendAudio forwards one raw audio frame to the server. Frames sent before
// the server acknowledges the session are refused with an error; the server
// would not transcribe them anyway.
func (c *Client) SendAudio(frame []byte) error {
	if !c.ready.Load() {
		return errNotReady
	}
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return errNotReady
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// AudioHandler returns a websocket ingress that accepts binary audio frames
// from a capture client and forwards them to the recognition server.
func (c *Client) AudioHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Audio websocket upgrade failed")
			return
		}
		defer conn.Close()

		c.logger.Info().Str("remote", r.RemoteAddr).Msg("Audio capture client connected")
		for {
			mt, frame, err := conn.ReadMessage()
			if err != nil {
				c.logger.Info().Str("remote", r.RemoteAddr).Msg("Audio capture client disconnected")
				return
			}
			if mt != websocket.BinaryMessage || len(frame) == 0 {
				continue
			}
			if err := c.SendAudio(frame); err != nil {
				if errors.Is(err, errNotReady) {
					c.metrics.RecordSourceError(c.Name(), "audio_dropped")
					continue
				}
				c.logger.Warn().Err(err).Msg("Audio forward failed")
			}
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one server frame. A non-nil return ends the
// session; malformed frames are logged and skipped.
func (c *Client) handleMessage(data []byte, cb source.Callback, onReady func()) error {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.metrics.RecordSourceError(c.Name(), "decode")
		c.logger.Warn().Err(err).Msg("Dropping undecodable server message")
		return nil
	}
	if msg.UID != c.uid {
		return nil
	}

	switch {
	case msg.Status != "":
		return c.handleStatus(&msg)
	case msg.Language != "":
		c.metrics.RecordSourceMessage(c.Name(), "language")
		c.language = msg.Language
		c.logger.Info().Str("language", msg.Language).Float64("probability", msg.LanguageProb).Msg("Server detected language")
		cb.OnLanguageDetected(c.opts.SpeakerID, msg.Language, msg.LanguageProb)
		return nil
	case len(msg.Segments) > 0:
		c.metrics.RecordSourceMessage(c.Name(), "segments")
		c.emitSegments(msg.Segments, cb)
		return nil
	case msg.messageText() == msgServerReady:
		c.metrics.RecordSourceMessage(c.Name(), "server_ready")
		c.ready.Store(true)
		if onReady != nil {
			onReady()
		}
		c.logger.Info().Str("backend", msg.Backend).Msg("Server ready")
		return nil
	case msg.messageText() == msgDisconnect:
		c.metrics.RecordSourceMessage(c.Name(), "disconnect")
		return errServerDisconnect
	default:
		return nil
	}
}

func (c *Client) handleStatus(msg *serverMessage) error {
	c.metrics.RecordSourceMessage(c.Name(), "status")
	switch msg.Status {
	case statusWait:
		c.logger.Info().Float64("estimated_wait_minutes", msg.waitMinutes()).Msg("Server busy, holding connection")
		return nil
	case statusError:
		return fmt.Errorf("server error: %s", msg.messageText())
	case statusWarning:
		c.logger.Warn().Str("message", msg.messageText()).Msg("Server warning")
		return nil
	default:
		c.logger.Warn().Str("status", msg.Status).Msg("Unknown server status")
		return nil
	}
}

// emitSegments turns a segment batch into an update for the reconciler.
func (c *Client) emitSegments(batch []wireSegment, cb source.Callback) {
	segments := toSegments(batch)
	if len(segments) == 0 {
		return
	}
	u := models.Update{
		SpeakerID:   c.opts.SpeakerID,
		SpeakerName: c.opts.SpeakerName,
		Language:    c.language,
		Segments:    segments,
		Timestamp:   time.Now().UnixMilli(),
	}
	c.stamper.Stamp(&u)
	cb.OnUpdate(u)
}
