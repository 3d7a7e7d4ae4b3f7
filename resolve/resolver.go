// Package resolve runs the environment resolution pipeline: schema
// validation, defaults merge, reference resolution, and emission of the
// immutable descriptor, for one environment or for every environment a
// settings document declares.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/deploykit/envresolve/config"
	"github.com/deploykit/envresolve/descriptor"
	"github.com/deploykit/envresolve/registry"
	"github.com/deploykit/envresolve/schema"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for stage-level logging.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithWorkers bounds the number of environments resolved concurrently by
// ResolveAll. Values below 1 are treated as 1.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n < 1 {
			n = 1
		}
		r.workers = n
	}
}

// Resolver turns raw environment blocks from a settings document into
// emitted descriptors. Resolution of a single environment is pure and
// synchronous; a Resolver is safe for concurrent use.
type Resolver struct {
	doc     *config.Document
	logger  *slog.Logger
	workers int
}

// New creates a Resolver over a parsed settings document.
func New(doc *config.Document, opts ...Option) *Resolver {
	r := &Resolver{
		doc:     doc,
		logger:  slog.Default(),
		workers: 4,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs the full pipeline for the named environment and returns its
// immutable descriptor. Returns a *registry.NotFoundError if the document
// does not declare the environment.
func (r *Resolver) Resolve(name string) (*descriptor.Emitted, error) {
	raw, ok := r.doc.Environment(name)
	if !ok {
		return nil, &registry.NotFoundError{Name: name}
	}
	return r.resolveRaw(config.NamedEnvironment{Name: name, Raw: raw})
}

func (r *Resolver) resolveRaw(env config.NamedEnvironment) (*descriptor.Emitted, error) {
	log := r.logger.With("environment", env.Name)

	// Structural checks on the block itself. Required-field presence is
	// deferred until defaults have been applied.
	if err := schema.Validate(env.Raw, env.Name, schema.WithoutRequired()); err != nil {
		return nil, err
	}
	log.Debug("environment block validated")

	merged, err := config.MergeEnvironment(r.doc.Defaults, env)
	if err != nil {
		return nil, err
	}
	log.Debug("defaults applied")

	// The defaults block is unvalidated input too, so the merged result
	// gets the full check including required fields.
	if err := schema.Validate(merged, env.Name); err != nil {
		return nil, err
	}

	d, err := descriptor.FromRaw(env.Name, merged)
	if err != nil {
		return nil, fmt.Errorf("build descriptor: %w", err)
	}

	resolved, err := descriptor.ResolveReferences(d)
	if err != nil {
		return nil, err
	}
	log.Debug("references resolved", "secrets_scheme", resolved.Secrets.Scheme, "secrets_bucket", resolved.Secrets.Bucket)

	log.Info("environment resolved",
		"region", resolved.Region,
		"project", resolved.Project,
		"runtime", resolved.RuntimeVersion)
	return descriptor.Emit(resolved), nil
}

// Run is the outcome of resolving every environment a document declares.
type Run struct {
	// Registry holds each successfully resolved environment, registered
	// in declaration order.
	Registry *registry.Registry

	// Errors maps failed environment names to their first error. One
	// environment's failure never blocks resolving the others.
	Errors map[string]error
}

// Err returns nil when every environment resolved, otherwise an error
// joining each per-environment failure.
func (run *Run) Err() error {
	if len(run.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(run.Errors))
	for _, e := range run.Errors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// ResolveAll resolves every declared environment with up to the configured
// number of concurrent workers. Each environment resolves independently
// with no shared mutable state; results are registered sequentially in
// declaration order so duplicate names fail deterministically (the first
// declaration wins).
func (r *Resolver) ResolveAll(ctx context.Context) *Run {
	run := &Run{Registry: registry.New(), Errors: make(map[string]error)}

	n := len(r.doc.Environments)
	results := make([]*descriptor.Emitted, n)
	errs := make([]error, n)

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for i, env := range r.doc.Environments {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		wg.Add(1)
		go func(i int, env config.NamedEnvironment) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			d, err := r.resolveRaw(env)
			if err != nil {
				r.logger.Error("environment resolution failed", "environment", env.Name, "err", err)
				errs[i] = err
				return
			}
			results[i] = d
		}(i, env)
	}
	wg.Wait()

	for i, env := range r.doc.Environments {
		if errs[i] != nil {
			run.Errors[env.Name] = errs[i]
			continue
		}
		if err := run.Registry.Register(results[i]); err != nil {
			r.logger.Error("environment registration failed", "environment", env.Name, "err", err)
			run.Errors[env.Name] = err
		}
	}
	return run
}
