// Package deploy defines the collaborator seams that consume resolved
// descriptors: the deployment engine that provisions and updates the
// remote compute resource, and the secrets fetcher that dereferences a
// resolved secrets location at deploy time. The resolver core never calls
// either; callers wire them up with emitted descriptors.
package deploy

import (
	"context"
	"log/slog"

	"github.com/deploykit/envresolve/descriptor"
)

// Engine deploys one resolved environment. Implementations package and
// upload application code, create or update the compute resource, attach
// networking and the certificate, and inject the descriptor's environment
// variables and build metadata at runtime.
type Engine interface {
	Deploy(ctx context.Context, d *descriptor.Emitted) error
}

// DryRunEngine logs the deployment plan instead of performing it.
type DryRunEngine struct {
	logger *slog.Logger
}

// NewDryRunEngine creates a DryRunEngine. A nil logger means slog.Default.
func NewDryRunEngine(logger *slog.Logger) *DryRunEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunEngine{logger: logger}
}

// Deploy logs what a real engine would do with the descriptor.
func (e *DryRunEngine) Deploy(_ context.Context, d *descriptor.Emitted) error {
	env := d.Descriptor()
	log := e.logger.With("environment", env.Name)

	log.Info("dry run: would deploy",
		"project", env.Project,
		"region", env.Region,
		"runtime", env.RuntimeVersion,
		"artifact_bucket", env.StorageBucketRef,
		"memory_mb", env.ResourceLimits.MemorySizeMB,
		"timeout_s", env.ResourceLimits.TimeoutSeconds,
		"keep_warm", env.KeepWarm)

	if env.Domain != "" {
		log.Info("dry run: would attach domain", "domain", env.Domain, "certificate", env.CertificateRef)
	}
	if env.Network != nil {
		log.Info("dry run: would attach network",
			"subnets", env.Network.SubnetIDs,
			"security_groups", env.Network.SecurityGroupIDs)
	}
	log.Info("dry run: would fetch secrets",
		"scheme", env.Secrets.Scheme,
		"bucket", env.Secrets.Bucket,
		"key", env.Secrets.Key)
	log.Info("dry run: would inject runtime values",
		"environment_variables", len(env.EnvironmentVariables),
		"build_metadata", len(env.BuildMetadata),
		"extensions", len(env.Extensions))
	return nil
}
