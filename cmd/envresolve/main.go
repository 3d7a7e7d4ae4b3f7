// Command envresolve resolves named deployment environments from a
// settings document and emits immutable deployment descriptors.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

var commands = map[string]func([]string) error{
	"validate": runValidate,
	"list":     runList,
	"resolve":  runResolve,
	"emit":     runEmit,
	"watch":    runWatch,
}

func usage() {
	fmt.Fprintf(os.Stderr, `envresolve - environment configuration resolver (version %s)

Usage:
  envresolve <command> [options]

Commands:
  validate   Validate every environment in a settings file
  list       List the environments a settings file declares
  resolve    Resolve one environment and print a summary
  emit       Resolve one environment and print its descriptor (yaml|json)
  watch      Watch a settings file and re-validate on change

Run 'envresolve <command> -h' for command-specific help.
`, version)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	run, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err := run(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
