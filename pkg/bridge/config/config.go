package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// Realtime model leg.
	OpenAIAPIKey        string
	RealtimeURL         string
	RealtimeModel       string
	RealtimeVoice       string
	RealtimeTemperature float64

	// Call origination and webhook surface.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioAPIBaseURL string
	PublicHostname   string

	// Retrieval backend.
	PineconeAPIKey    string
	PineconeIndexHost string
	PineconeNamespace string
	RetrievalTopK     int

	// Optional persistence; empty means log-only records.
	DatabaseURL string

	WSWriteTimeout     time.Duration
	WSHandshakeTimeout time.Duration

	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("CALLBRIDGE_ADDR", ":5050"),
		OpenAIAPIKey:        envOr("OPENAI_API_KEY", ""),
		RealtimeURL:         envOr("CALLBRIDGE_REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeModel:       envOr("CALLBRIDGE_REALTIME_MODEL", "gpt-4o-realtime-preview-2024-10-01"),
		RealtimeVoice:       envOr("CALLBRIDGE_REALTIME_VOICE", "alloy"),
		RealtimeTemperature: envFloat64Or("CALLBRIDGE_REALTIME_TEMPERATURE", 0.8),
		TwilioAccountSID:    envOr("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     envOr("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:    envOr("TWILIO_PHONE_NUMBER", ""),
		TwilioAPIBaseURL:    envOr("CALLBRIDGE_TWILIO_API_BASE_URL", "https://api.twilio.com"),
		PublicHostname:      envOr("CALLBRIDGE_PUBLIC_HOSTNAME", ""),
		PineconeAPIKey:      envOr("PINECONE_API_KEY", ""),
		PineconeIndexHost:   envOr("PINECONE_INDEX_HOST", ""),
		PineconeNamespace:   envOr("PINECONE_NAMESPACE", "product_info"),
		RetrievalTopK:       envIntOr("CALLBRIDGE_RETRIEVAL_TOP_K", 5),
		DatabaseURL:         envOr("DATABASE_URL", ""),
		WSWriteTimeout:      envDurationOr("CALLBRIDGE_WS_WRITE_TIMEOUT", 5*time.Second),
		WSHandshakeTimeout:  envDurationOr("CALLBRIDGE_WS_HANDSHAKE_TIMEOUT", 10*time.Second),
		ReadHeaderTimeout:   envDurationOr("CALLBRIDGE_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("CALLBRIDGE_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY must be set")
	}
	if !strings.HasPrefix(cfg.RealtimeURL, "ws://") && !strings.HasPrefix(cfg.RealtimeURL, "wss://") {
		return Config{}, fmt.Errorf("CALLBRIDGE_REALTIME_URL must be a ws:// or wss:// url")
	}
	if cfg.RealtimeVoice == "" {
		return Config{}, fmt.Errorf("CALLBRIDGE_REALTIME_VOICE must not be empty")
	}
	if cfg.RealtimeTemperature <= 0 {
		return Config{}, fmt.Errorf("CALLBRIDGE_REALTIME_TEMPERATURE must be > 0")
	}
	if cfg.RetrievalTopK <= 0 {
		return Config{}, fmt.Errorf("CALLBRIDGE_RETRIEVAL_TOP_K must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("CALLBRIDGE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSHandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("CALLBRIDGE_WS_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("CALLBRIDGE_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("CALLBRIDGE_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	// Twilio credentials travel together: all set or all empty. With none
	// set, call origination is disabled but inbound streams still work.
	twilioSet := 0
	for _, v := range []string{cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber} {
		if v != "" {
			twilioSet++
		}
	}
	if twilioSet != 0 && twilioSet != 3 {
		return Config{}, fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER must be set together")
	}
	if twilioSet == 3 && cfg.PublicHostname == "" {
		return Config{}, fmt.Errorf("CALLBRIDGE_PUBLIC_HOSTNAME must be set when call origination is enabled")
	}

	// Same for the retrieval pair; without it the relay skips injection.
	if (cfg.PineconeAPIKey == "") != (cfg.PineconeIndexHost == "") {
		return Config{}, fmt.Errorf("PINECONE_API_KEY and PINECONE_INDEX_HOST must be set together")
	}

	return cfg, nil
}

// TwilioEnabled reports whether call origination is configured.
func (c Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// RetrievalEnabled reports whether the knowledge-base lookup is configured.
func (c Config) RetrievalEnabled() bool {
	return c.PineconeAPIKey != "" && c.PineconeIndexHost != ""
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
