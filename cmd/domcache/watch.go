package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"domcache/pkg/dom"
	"domcache/pkg/engine"
)

// runWatch keeps an engine alive over an HTML file, re-runs the lookup on
// every file change and prints what the cache did about it. File writes are
// spliced into the live document through the mutation API, so the engine's
// own invalidation path runs rather than a full rebuild.
func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	file := fs.String("file", "", "Path to HTML file (required)")
	configFile := fs.String("config", "", "Path to engine config file (optional)")
	selector := fs.String("selector", "body *", "CSS selector to re-run on change")
	debounce := fs.Duration("file-debounce", 250*time.Millisecond, "Collapse rapid file writes within this window")
	verbose := fs.Bool("v", false, "Enable engine diagnostics")
	logLevel := fs.String("loglevel", "info", "Log level when -v is set")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: domcache watch [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *file == "" {
		exitErr(fs, "watch: -file is required")
	}

	cfg, err := loadEngineConfig(*configFile, *verbose)
	if err != nil {
		exitErr(nil, "watch: %v", err)
	}
	log := setupLogger(*logLevel, cfg.EnableLogging)

	doc, err := dom.ParseFile(*file)
	if err != nil {
		exitErr(nil, "watch: %v", err)
	}

	e := engine.New(doc, cfg, log)
	defer e.Destroy()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		exitErr(nil, "watch: %v", err)
	}
	defer watcher.Close()
	// Watch the directory, not the file: editors often replace the file,
	// which drops a direct file watch.
	if err := watcher.Add(filepath.Dir(*file)); err != nil {
		exitErr(nil, "watch: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("Watching %s (selector %q), Ctrl-C to stop\n", *file, *selector)
	report(e, *selector)

	var timer *time.Timer
	var timerC <-chan time.Time
	target := filepath.Clean(*file)

	for {
		select {
		case <-sigCh:
			fmt.Println("\nStopping")
			printStats(e)
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if timerC == nil {
				timer = time.NewTimer(*debounce)
				timerC = timer.C
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("watch error: %v", err)
		case <-timerC:
			timer = nil
			timerC = nil
			if err := reload(e, doc, *file); err != nil {
				log.Warnf("reload failed: %v", err)
				continue
			}
			e.FlushInvalidation()
			report(e, *selector)
		}
	}
}

// reload parses the file again and swaps the fresh body into the live
// document, emitting a single childList mutation for the whole splice.
func reload(e *engine.Engine, doc *dom.Document, path string) error {
	fresh, err := dom.ParseFile(path)
	if err != nil {
		return err
	}
	freshBody := fresh.Body()
	body := doc.Body()
	if body == nil || freshBody == nil {
		return fmt.Errorf("document has no body")
	}
	var children []*dom.Node
	for c := freshBody.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	doc.ReplaceChildren(body, children...)
	return nil
}

func report(e *engine.Engine, selector string) {
	c := e.LookupSelectorAll(selector)
	fmt.Printf("%s  %q -> %d element(s)  ", time.Now().Format("15:04:05"), selector, c.Length())
	printStats(e)
}
