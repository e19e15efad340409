package main

import (
	"flag"
	"fmt"
	"os"

	"domcache/pkg/dom"
	"domcache/pkg/engine"
)

// runQuery loads an HTML file, dispatches one lookup per provided flag and
// prints the outcome. Repeating the lookup (-repeat) exercises the cache so
// the hit/miss stats mean something.
func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	file := fs.String("file", "", "Path to HTML file (required)")
	configFile := fs.String("config", "", "Path to engine config file (optional)")
	id := fs.String("id", "", "Look up element by id")
	class := fs.String("class", "", "Look up elements by class")
	tag := fs.String("tag", "", "Look up elements by tag name")
	name := fs.String("name", "", "Look up elements by name attribute")
	selector := fs.String("selector", "", "Look up by CSS selector")
	all := fs.Bool("all", false, "With -selector, return all matches")
	repeat := fs.Int("repeat", 2, "How many times to run each lookup")
	verbose := fs.Bool("v", false, "Enable engine diagnostics")
	logLevel := fs.String("loglevel", "debug", "Log level when -v is set")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: domcache query [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *file == "" {
		exitErr(fs, "query: -file is required")
	}

	cfg, err := loadEngineConfig(*configFile, *verbose)
	if err != nil {
		exitErr(nil, "query: %v", err)
	}
	log := setupLogger(*logLevel, cfg.EnableLogging)

	doc, err := dom.ParseFile(*file)
	if err != nil {
		exitErr(nil, "query: %v", err)
	}

	e := engine.New(doc, cfg, log)
	defer e.Destroy()

	ran := false
	for i := 0; i < *repeat; i++ {
		if *id != "" {
			printElement(fmt.Sprintf("id=%s", *id), e.LookupByID(*id))
			ran = true
		}
		if *class != "" {
			printCollection(fmt.Sprintf("class=%s", *class), e.LookupCollection(engine.CollectionClass, *class))
			ran = true
		}
		if *tag != "" {
			printCollection(fmt.Sprintf("tag=%s", *tag), e.LookupCollection(engine.CollectionTag, *tag))
			ran = true
		}
		if *name != "" {
			printCollection(fmt.Sprintf("name=%s", *name), e.LookupCollection(engine.CollectionName, *name))
			ran = true
		}
		if *selector != "" {
			if *all {
				printCollection(fmt.Sprintf("selector=%s", *selector), e.LookupSelectorAll(*selector))
			} else {
				printElement(fmt.Sprintf("selector=%s", *selector), e.LookupSelector(*selector))
			}
			ran = true
		}
	}
	if !ran {
		exitErr(fs, "query: provide at least one of -id, -class, -tag, -name, -selector")
	}

	printStats(e)
}

func printElement(label string, n *dom.Node) {
	if n == nil {
		fmt.Printf("%s: not found\n", label)
		return
	}
	htmlStr, err := dom.OuterHTML(n)
	if err != nil || len(htmlStr) > 120 {
		fmt.Printf("%s: <%s id=%q class=%q>\n", label, dom.TagName(n), dom.ID(n), dom.ClassList(n))
		return
	}
	fmt.Printf("%s: %s\n", label, htmlStr)
}

func printCollection(label string, c *dom.Collection) {
	fmt.Printf("%s: %d element(s)\n", label, c.Length())
	c.Each(func(i int, n *dom.Node) {
		fmt.Printf("  [%d] <%s id=%q class=%q>\n", i, dom.TagName(n), dom.ID(n), dom.ClassList(n))
	})
}
