// Package config loads runtime configuration for the SideQuest CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables (see parseEnv), e.g. SIDEQUEST_API_URL.
//  3. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   backend origin, e.g. https://sidequest.example
//	-d string   path of the local storage database
//	-l string   log level: debug, info, warn, error
//
// # JSON schema
//
// Durations use timex.Duration, so values can be either strings like "12s"
// or integer nanoseconds:
//
//	{
//	  "api_url": "https://sidequest.example",
//	  "db_path": "sidequest.db",
//	  "log_level": "info",
//	  "request_timeout": "15s",
//	  "location_timeout": "12s",
//	  "location_max_age": "0s",
//	  "feedback_delay": "900ms",
//	  "redirect_delay": "1.5s"
//	}
package config
