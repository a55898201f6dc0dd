package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs keeps only the arguments that belong to the allowed flags.
//
// A flag may carry its value inline ("--config=conf.json") or as the next
// argument ("-c conf.json"); in the latter case the value is kept unless it
// looks like another flag. Everything else is dropped.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]bool, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		if name, _, inline := strings.Cut(arg, "="); inline {
			if allowed[name] {
				out = append(out, arg)
			}
			continue
		}
		if !allowed[arg] {
			continue
		}
		out = append(out, arg)
		if next := i + 1; next < len(args) && !strings.HasPrefix(args[next], "-") {
			out = append(out, args[next])
			i = next
		}
	}
	return out
}

// ConfigFilePath extracts the JSON config file path passed via -c or -config.
//
// Only these flags are parsed; other arguments are ignored, so the caller can
// run its own flag set over the same argument list. Returns "" when neither
// flag is present; the last occurrence wins.
func ConfigFilePath(args []string) string {
	var path string

	filtered := FilterArgs(args, []string{"-c", "-config", "--config"})

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(filtered)

	return path
}
