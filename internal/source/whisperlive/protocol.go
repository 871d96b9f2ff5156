package whisperlive

import (
	"encoding/json"
	"strconv"
	"strings"

	"live-transcript-reconciler/internal/models"
)

// handshake is the session configuration sent as the first websocket
// message. Field names and defaults follow the WhisperLive server contract.
type handshake struct {
	UID                 string  `json:"uid"`
	Language            *string `json:"language"`
	Task                string  `json:"task"`
	Model               string  `json:"model"`
	UseVAD              bool    `json:"use_vad"`
	SendLastNSegments   int     `json:"send_last_n_segments"`
	NoSpeechThresh      float64 `json:"no_speech_thresh"`
	ClipAudio           bool    `json:"clip_audio"`
	SameOutputThreshold int     `json:"same_output_threshold"`
	EnableTranslation   bool    `json:"enable_translation"`
	TargetLanguage      string  `json:"target_language"`
}

// Server control vocabulary.
const (
	statusWait    = "WAIT"
	statusError   = "ERROR"
	statusWarning = "WARNING"

	msgServerReady = "SERVER_READY"
	msgDisconnect  = "DISCONNECT"
)

// serverMessage is the union of everything the server sends: status frames,
// control messages, language detection, and segment batches. Message is raw
// because the server puts a string in it for control frames and a number
// (estimated wait minutes) for WAIT status.
type serverMessage struct {
	UID          string          `json:"uid"`
	Status       string          `json:"status"`
	Message      json.RawMessage `json:"message"`
	Backend      string          `json:"backend"`
	Language     string          `json:"language"`
	LanguageProb float64         `json:"language_prob"`
	Segments     []wireSegment   `json:"segments"`
}

// messageText returns Message as a plain string when it holds one.
func (m *serverMessage) messageText() string {
	var s string
	if err := json.Unmarshal(m.Message, &s); err != nil {
		return strings.Trim(string(m.Message), `"`)
	}
	return s
}

// waitMinutes returns Message interpreted as the WAIT status payload.
func (m *serverMessage) waitMinutes() float64 {
	var v float64
	if err := json.Unmarshal(m.Message, &v); err != nil {
		return 0
	}
	return v
}

// flexFloat accepts both JSON numbers and numeric strings. WhisperLive
// formats segment boundaries as strings ("1.280"), but numbers appear too.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// wireSegment is one recognized span as the server frames it.
type wireSegment struct {
	Start     flexFloat `json:"start"`
	End       flexFloat `json:"end"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
}

// toSegments converts a wire batch into model segments, dropping entries
// whose text is empty after trimming.
func toSegments(batch []wireSegment) []models.Segment {
	out := make([]models.Segment, 0, len(batch))
	for _, ws := range batch {
		if strings.TrimSpace(ws.Text) == "" {
			continue
		}
		out = append(out, models.Segment{
			Start:     float64(ws.Start),
			End:       float64(ws.End),
			Text:      ws.Text,
			Completed: ws.Completed,
		})
	}
	return out
}
