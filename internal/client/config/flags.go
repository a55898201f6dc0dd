package config

import (
	"flag"
	"io"
	"os"

	"github.com/dmitrijs2005/sidequest/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   backend origin
//	-d string   local storage database path
//	-l string   log level
//
// os.Args is filtered with flagx.FilterArgs first so flags owned by other
// components (-c) do not trip the parser.
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIURL, "a", cfg.APIURL, "backend origin, e.g. https://sidequest.example")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "local storage database path")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")

	return fs.Parse(args)
}
