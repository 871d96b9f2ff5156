package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable of the service, loaded from the environment.
type Config struct {
	Service       ServiceConfig
	Source        SourceConfig
	WhisperLive   WhisperLiveConfig
	GoogleSTT     GoogleSTTConfig
	Kafka         KafkaConfig
	KafkaSource   KafkaSourceConfig
	Display       DisplayConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies this service instance.
type ServiceConfig struct {
	Principal string
}

// SourceConfig selects which transcript source feeds the reconciler. The
// speaker identity is used by live-capture providers, which carry a single
// speaker per session.
type SourceConfig struct {
	Provider    string // mock, whisperlive, googlestt, kafka
	SpeakerID   string
	SpeakerName string
}

// WhisperLiveConfig holds the WhisperLive websocket session options.
type WhisperLiveConfig struct {
	URL                 string
	Language            string // empty = let the server detect
	Task                string
	Model               string
	UseVAD              bool
	SendLastN           int
	NoSpeechThresh      float64
	ClipAudio           bool
	SameOutputThreshold int
	ReconnectMaxElapsed time.Duration
}

// GoogleSTTConfig holds Google Cloud Speech streaming options.
type GoogleSTTConfig struct {
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
}

// KafkaConfig configures outbound record event publishing.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicUpdated string
	TopicFinal   string
	Principal    string
}

// KafkaSourceConfig configures the inbound update consumer.
type KafkaSourceConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

// DisplayConfig configures the live transcript display server.
type DisplayConfig struct {
	Addr string
}

// ObservabilityConfig configures logging and the metrics endpoint.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present, for local development.
func Load() *Config {
	_ = godotenv.Load()

	servicePrincipal := envOrDefault("SERVICE_PRINCIPAL", "svc-transcript-reconciler")

	return &Config{
		Service: ServiceConfig{
			Principal: servicePrincipal,
		},
		Source: SourceConfig{
			Provider:    envOrDefault("SOURCE_PROVIDER", "mock"),
			SpeakerID:   envOrDefault("SOURCE_SPEAKER_ID", "local-mic"),
			SpeakerName: envOrDefault("SOURCE_SPEAKER_NAME", "Microphone"),
		},
		WhisperLive: WhisperLiveConfig{
			URL:                 envOrDefault("WHISPERLIVE_URL", "ws://localhost:9090"),
			Language:            envOrDefault("WHISPERLIVE_LANGUAGE", ""),
			Task:                envOrDefault("WHISPERLIVE_TASK", "transcribe"),
			Model:               envOrDefault("WHISPERLIVE_MODEL", "small"),
			UseVAD:              envOrDefaultBool("WHISPERLIVE_USE_VAD", true),
			SendLastN:           envOrDefaultInt("WHISPERLIVE_SEND_LAST_N", 10),
			NoSpeechThresh:      envOrDefaultFloat("WHISPERLIVE_NO_SPEECH_THRESH", 0.45),
			ClipAudio:           envOrDefaultBool("WHISPERLIVE_CLIP_AUDIO", false),
			SameOutputThreshold: envOrDefaultInt("WHISPERLIVE_SAME_OUTPUT_THRESHOLD", 10),
			ReconnectMaxElapsed: envOrDefaultDuration("WHISPERLIVE_RECONNECT_MAX_ELAPSED", 2*time.Minute),
		},
		GoogleSTT: GoogleSTTConfig{
			LanguageCode:   envOrDefault("GOOGLE_STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envOrDefaultInt("GOOGLE_STT_SAMPLE_RATE_HZ", 16000),
			InterimResults: envOrDefaultBool("GOOGLE_STT_INTERIM_RESULTS", true),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      envOrDefaultList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicUpdated: envOrDefault("KAFKA_TOPIC_UPDATED", "transcript.record.updated"),
			TopicFinal:   envOrDefault("KAFKA_TOPIC_FINAL", "transcript.record.final"),
			Principal:    envOrDefault("KAFKA_PRINCIPAL", servicePrincipal),
		},
		KafkaSource: KafkaSourceConfig{
			Enabled: envOrDefaultBool("KAFKA_SOURCE_ENABLED", false),
			Brokers: envOrDefaultList("KAFKA_SOURCE_BROKERS", []string{"localhost:9092"}),
			Topic:   envOrDefault("KAFKA_SOURCE_TOPIC", "transcript.updates"),
			GroupID: envOrDefault("KAFKA_SOURCE_GROUP_ID", "transcript-reconciler"),
		},
		Display: DisplayConfig{
			Addr: envOrDefault("DISPLAY_ADDR", ":8080"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9091"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
