package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/flagx"
	"github.com/dmitrijs2005/sidequest/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent keys
// leave the runtime Config untouched, hence the pointers.
type JsonConfig struct {
	APIURL          string          `json:"api_url"`
	DBPath          string          `json:"db_path"`
	LogLevel        string          `json:"log_level"`
	RequestTimeout  *timex.Duration `json:"request_timeout"`
	LocationTimeout *timex.Duration `json:"location_timeout"`
	LocationMaxAge  *timex.Duration `json:"location_max_age"`
	FeedbackDelay   *timex.Duration `json:"feedback_delay"`
	RedirectDelay   *timex.Duration `json:"redirect_delay"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Without either flag it does nothing.
func parseJson(cfg *Config) error {
	path := flagx.ConfigFilePath(os.Args[1:])
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.APIURL, jc.APIURL)
	setString(&cfg.DBPath, jc.DBPath)
	setString(&cfg.LogLevel, jc.LogLevel)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.LocationTimeout, jc.LocationTimeout)
	setDuration(&cfg.LocationMaxAge, jc.LocationMaxAge)
	setDuration(&cfg.FeedbackDelay, jc.FeedbackDelay)
	setDuration(&cfg.RedirectDelay, jc.RedirectDelay)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
