// package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// dateLayout is the accepted format for OFFSET_DATE and offset_date.
const dateLayout = "2006-01-02"

// Flood policies.
const (
	FloodPolicyResume = "resume"
	FloodPolicyStop   = "stop"
)

// Config holds all application configuration.
type Config struct {
	// telegram
	TGApiID      int
	TGApiHash    string
	TGSessionStr string

	// storage
	SessionDBPath string
	DatabaseURL   string

	// nats
	NatsURL string

	// amqp
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string
	AMQPQueue      string

	// harvest
	Channels     []string
	ChannelsFile string
	Harvest      HarvestConfig
	OutputCSV    string

	// server
	HTTPPort int

	// logging
	LogLevel string
	LogFile  string
	LogJSON  bool
}

// HarvestConfig holds pagination and pacing settings for a run.
type HarvestConfig struct {
	Limit        int
	Reverse      bool
	MinID        int
	MaxID        int
	OffsetDate   time.Time
	Verbose      bool
	RequestPace  time.Duration
	ChannelPause time.Duration
	FloodPolicy  string
}

// ChannelsFile is the YAML layout of CHANNELS_FILE.
type ChannelsFile struct {
	Channels   []string `yaml:"channels"`
	Limit      *int     `yaml:"limit,omitempty"`
	Reverse    *bool    `yaml:"reverse,omitempty"`
	MinID      *int     `yaml:"min_id,omitempty"`
	MaxID      *int     `yaml:"max_id,omitempty"`
	OffsetDate string   `yaml:"offset_date,omitempty"`
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TGApiID:        getEnvInt("TG_API_ID", 0),
		TGApiHash:      getEnv("TG_API_HASH", ""),
		TGSessionStr:   getEnv("TG_SESSION_STRING", ""),
		SessionDBPath:  getEnv("SESSION_DB_PATH", "./data/session.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		NatsURL:        getEnv("NATS_URL", ""),
		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "channel_history"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "messages"),
		AMQPQueue:      getEnv("AMQP_QUEUE", "channel_messages"),
		Channels:       splitList(getEnv("CHANNELS", "")),
		ChannelsFile:   getEnv("CHANNELS_FILE", ""),
		OutputCSV:      getEnv("OUTPUT_CSV", ""),
		HTTPPort:       getEnvInt("HTTP_PORT", 3100),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
		LogJSON:        getEnvBool("LOG_JSON", false),
		Harvest: HarvestConfig{
			Limit:        getEnvInt("LIMIT", 0),
			Reverse:      getEnvBool("REVERSE", false),
			MinID:        getEnvInt("MIN_ID", 0),
			MaxID:        getEnvInt("MAX_ID", 0),
			Verbose:      getEnvBool("VERBOSE", true),
			RequestPace:  time.Duration(getEnvInt("REQUEST_PACE_MS", 3000)) * time.Millisecond,
			ChannelPause: time.Duration(getEnvInt("CHANNEL_PAUSE_MS", 2000)) * time.Millisecond,
			FloodPolicy:  strings.ToLower(getEnv("FLOOD_POLICY", FloodPolicyResume)),
		},
	}

	if raw := getEnv("OFFSET_DATE", ""); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid OFFSET_DATE %q: %w", raw, err)
		}
		cfg.Harvest.OffsetDate = d
	}

	if cfg.ChannelsFile != "" {
		file, err := LoadChannelsFile(cfg.ChannelsFile)
		if err != nil {
			return nil, err
		}
		if err := cfg.apply(file); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	if c.Harvest.FloodPolicy != FloodPolicyResume && c.Harvest.FloodPolicy != FloodPolicyStop {
		return fmt.Errorf("invalid FLOOD_POLICY %q: want %q or %q", c.Harvest.FloodPolicy, FloodPolicyResume, FloodPolicyStop)
	}
	if c.Harvest.MinID < 0 || c.Harvest.MaxID < 0 {
		return errors.New("MIN_ID and MAX_ID must be non-negative")
	}
	if c.Harvest.RequestPace < 0 || c.Harvest.ChannelPause < 0 {
		return errors.New("REQUEST_PACE_MS and CHANNEL_PAUSE_MS must be non-negative")
	}
	return nil
}

// HasTelegramCredentials reports whether the API id and hash are set.
func (c *Config) HasTelegramCredentials() bool {
	return c.TGApiID != 0 && c.TGApiHash != ""
}

// LoadChannelsFile parses a YAML channel list.
func LoadChannelsFile(path string) (*ChannelsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channels file: %w", err)
	}

	var file ChannelsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse channels file %s: %w", path, err)
	}
	if len(file.Channels) == 0 {
		return nil, fmt.Errorf("channels file %s: no channels listed", path)
	}
	if file.OffsetDate != "" {
		if _, err := time.Parse(dateLayout, file.OffsetDate); err != nil {
			return nil, fmt.Errorf("channels file %s: invalid offset_date %q", path, file.OffsetDate)
		}
	}
	return &file, nil
}

// apply merges file settings over env settings. Channels from the
// environment come first, file channels are appended.
func (c *Config) apply(file *ChannelsFile) error {
	c.Channels = dedupe(append(c.Channels, file.Channels...))
	if file.Limit != nil {
		c.Harvest.Limit = *file.Limit
	}
	if file.Reverse != nil {
		c.Harvest.Reverse = *file.Reverse
	}
	if file.MinID != nil {
		c.Harvest.MinID = *file.MinID
	}
	if file.MaxID != nil {
		c.Harvest.MaxID = *file.MaxID
	}
	if file.OffsetDate != "" {
		d, err := time.Parse(dateLayout, file.OffsetDate)
		if err != nil {
			return fmt.Errorf("invalid offset_date %q: %w", file.OffsetDate, err)
		}
		c.Harvest.OffsetDate = d
	}
	return nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
	}
	return defaultVal
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		key := strings.ToLower(strings.TrimPrefix(s, "@"))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
