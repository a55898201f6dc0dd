package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/logging"
)

const defaultOrigin = "http://localhost:3001"

// Config holds runtime settings for the SideQuest CLI.
//
// LocationMaxAge is the oldest cached fix the tracker accepts; zero means
// always fresh.
type Config struct {
	APIURL   string `env:"SIDEQUEST_API_URL"`
	DBPath   string `env:"SIDEQUEST_DB_PATH"`
	LogLevel string `env:"SIDEQUEST_LOG_LEVEL"`

	RequestTimeout  time.Duration `env:"SIDEQUEST_REQUEST_TIMEOUT"`
	LocationTimeout time.Duration `env:"SIDEQUEST_LOCATION_TIMEOUT"`
	LocationMaxAge  time.Duration `env:"SIDEQUEST_LOCATION_MAX_AGE"`
	FeedbackDelay   time.Duration `env:"SIDEQUEST_FEEDBACK_DELAY"`
	RedirectDelay   time.Duration `env:"SIDEQUEST_REDIRECT_DELAY"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIURL = defaultOrigin
	c.DBPath = "sidequest.db"
	c.LogLevel = "info"
	c.RequestTimeout = 15 * time.Second
	c.LocationTimeout = 12 * time.Second
	c.LocationMaxAge = 0
	c.FeedbackDelay = 900 * time.Millisecond
	c.RedirectDelay = 1500 * time.Millisecond
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment, JSON (if present) and command-line flags (if present).
// Later sources take precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// APIBase is the normalized API root the client talks to.
func (c *Config) APIBase() string {
	return NormalizeAPIURL(c.APIURL)
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() slog.Level {
	l, _ := logging.ParseLevel(c.LogLevel)
	return l
}

// NormalizeAPIURL turns a configured origin into the API root: a trailing
// slash and a trailing /api are dropped, then /api is appended. Empty means
// the local development backend.
func NormalizeAPIURL(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, "/")
	s = strings.TrimSuffix(s, "/api")
	s = strings.TrimRight(s, "/")
	if s == "" {
		s = defaultOrigin
	}
	return s + "/api"
}

func (c *Config) String() string {
	return fmt.Sprintf("api=%s db=%s log=%s", c.APIBase(), c.DBPath, c.LogLevel)
}
