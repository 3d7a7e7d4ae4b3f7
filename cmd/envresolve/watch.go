package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/deploykit/envresolve/config"
	"github.com/deploykit/envresolve/resolve"
)

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	settings := fs.String("settings", "environments.yaml", "Settings file to watch")
	verbose := fs.Bool("v", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: envresolve watch [options]

Watch a settings file and re-validate every environment whenever its
content changes. Runs until interrupted.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := newLogger(*verbose)
	source := config.NewFileSource(*settings)

	revalidate := func(doc *config.Document) {
		run := resolve.New(doc, resolve.WithLogger(logger)).ResolveAll(context.Background())
		if err := run.Err(); err != nil {
			fmt.Printf("invalid: %v\n", err)
			return
		}
		fmt.Printf("valid: %d environment(s)\n", run.Registry.Len())
	}

	doc, err := source.Load(context.Background())
	if err != nil {
		return err
	}
	revalidate(doc)

	watcher := config.NewWatcher(source, func(ev config.ChangeEvent) {
		fmt.Printf("settings changed (%s)\n", ev.Source)
		revalidate(ev.Document)
	}, config.WithWatchLogger(logger))

	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}
