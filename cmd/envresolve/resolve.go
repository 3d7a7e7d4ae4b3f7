package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/deploykit/envresolve/config"
	"github.com/deploykit/envresolve/resolve"
)

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	settings := fs.String("settings", "environments.yaml", "Settings file to validate")
	verbose := fs.Bool("v", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: envresolve validate [options]

Resolve every environment the settings file declares and report the
first failure per environment.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, err := config.LoadFromFile(*settings)
	if err != nil {
		return err
	}

	r := resolve.New(doc, resolve.WithLogger(newLogger(*verbose)))
	run := r.ResolveAll(context.Background())

	for _, d := range run.Registry.All() {
		fmt.Printf("ok    %s\n", d.Name())
	}
	for name, envErr := range run.Errors {
		fmt.Printf("fail  %s: %v\n", name, envErr)
	}
	if err := run.Err(); err != nil {
		return fmt.Errorf("%d of %d environment(s) failed validation", len(run.Errors), len(doc.Environments))
	}
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	settings := fs.String("settings", "environments.yaml", "Settings file to read")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: envresolve list [options]

List the environments a settings file declares, in declaration order.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, err := config.LoadFromFile(*settings)
	if err != nil {
		return err
	}
	for _, name := range doc.Names() {
		fmt.Println(name)
	}
	return nil
}

func runResolve(args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	settings := fs.String("settings", "environments.yaml", "Settings file to read")
	env := fs.String("env", "", "Environment name to resolve (required)")
	verbose := fs.Bool("v", false, "Enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: envresolve resolve -env <name> [options]

Resolve one environment (defaults merge, schema validation, reference
resolution) and print a summary of the resulting descriptor.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *env == "" {
		fs.Usage()
		return fmt.Errorf("-env is required")
	}

	doc, err := config.LoadFromFile(*settings)
	if err != nil {
		return err
	}

	r := resolve.New(doc, resolve.WithLogger(newLogger(*verbose)))
	d, err := r.Resolve(*env)
	if err != nil {
		return err
	}

	desc := d.Descriptor()
	fmt.Printf("environment: %s\n", desc.Name)
	fmt.Printf("project:     %s\n", desc.Project)
	fmt.Printf("region:      %s\n", desc.Region)
	fmt.Printf("runtime:     %s\n", desc.RuntimeVersion)
	fmt.Printf("artifacts:   %s\n", desc.StorageBucketRef)
	fmt.Printf("secrets:     %s (%s bucket=%s key=%s)\n",
		desc.SecretsLocationRef, desc.Secrets.Scheme, desc.Secrets.Bucket, desc.Secrets.Key)
	if desc.Domain != "" {
		fmt.Printf("domain:      %s (certificate %s)\n", desc.Domain, desc.CertificateRef)
	}
	fmt.Printf("limits:      %d MB, %d s timeout\n",
		desc.ResourceLimits.MemorySizeMB, desc.ResourceLimits.TimeoutSeconds)
	return nil
}

func runEmit(args []string) error {
	fs := flag.NewFlagSet("emit", flag.ContinueOnError)
	settings := fs.String("settings", "environments.yaml", "Settings file to read")
	env := fs.String("env", "", "Environment name to emit (required)")
	format := fs.String("format", "yaml", "Output format: yaml or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: envresolve emit -env <name> [options]

Resolve one environment and print its fully-resolved descriptor in the
canonical serialized form handed to the deployment engine.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *env == "" {
		fs.Usage()
		return fmt.Errorf("-env is required")
	}

	doc, err := config.LoadFromFile(*settings)
	if err != nil {
		return err
	}

	r := resolve.New(doc, resolve.WithLogger(newLogger(false)))
	d, err := r.Resolve(*env)
	if err != nil {
		return err
	}

	var out []byte
	switch *format {
	case "yaml":
		out, err = d.EncodeYAML()
	case "json":
		out, err = d.EncodeJSON()
	default:
		return fmt.Errorf("unknown format %q (yaml or json)", *format)
	}
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	if *format == "json" {
		fmt.Println()
	}
	return nil
}
