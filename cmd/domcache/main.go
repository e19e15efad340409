package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"domcache/pkg/config"
	"domcache/pkg/engine"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "query":
		runQuery(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "version":
		fmt.Printf("domcache %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `domcache - cached element lookups over an HTML document

Usage:
  domcache <command> [options]

Commands:
  query       Run a lookup against an HTML file and print the results
  watch       Re-run a lookup whenever the HTML file changes on disk
  version     Show version info

Run 'domcache <command> -h' for command-specific help.`)
}

// setupLogger configures logrus based on level string and enabled flag.
func setupLogger(level string, enabled bool) *logrus.Logger {
	log := logrus.New()
	if !enabled {
		log.SetOutput(io.Discard)
		return log
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q, using info\n", level)
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

// loadEngineConfig loads the optional config file, falling back to defaults.
func loadEngineConfig(path string, verbose bool) (config.Config, error) {
	if path == "" {
		cfg := config.Default()
		cfg.EnableLogging = verbose
		return cfg, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if verbose {
		cfg.EnableLogging = true
	}
	return *cfg, nil
}

func printStats(e *engine.Engine) {
	s := e.Stats()
	fmt.Printf("stats: hits=%d misses=%d hit_rate=%.2f cache_size=%d evictions=%d invalidations=%d reaped=%d uptime=%v\n",
		s.Hits, s.Misses, s.HitRate, s.CacheSize, s.Evictions, s.Invalidations, s.Reaped, s.Uptime.Round(1e6))
}

func exitErr(fs *flag.FlagSet, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	if fs != nil {
		fs.Usage()
	}
	os.Exit(1)
}
