package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/deploykit/envresolve/refs"
)

// Emitted is the deeply immutable snapshot of a resolved environment.
// Every accessor returns a copy, so no holder can mutate the underlying
// descriptor. This is the form handed to the external deployment engine.
type Emitted struct {
	env *Environment
}

// Emit snapshots a resolved environment. The snapshot is independent of
// the input: later mutation of env does not affect it.
func Emit(env *Environment) *Emitted {
	return &Emitted{env: env.clone()}
}

// Name returns the environment name.
func (e *Emitted) Name() string { return e.env.Name }

// Descriptor returns a deep copy of the resolved environment.
func (e *Emitted) Descriptor() *Environment { return e.env.clone() }

// SecretsLocation returns the parsed secrets bundle handle for the secrets
// fetcher collaborator.
func (e *Emitted) SecretsLocation() refs.SecretsLocation { return e.env.Secrets }

// Equal reports whether two snapshots agree on every validated field.
func (e *Emitted) Equal(other *Emitted) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.env.Equal(other.env)
}

// wireEnvironment is the canonical serialized form of an environment
// block. Field order follows declaration for YAML; unrecognized extension
// keys are inlined so the emitted block round-trips through Parse.
type wireEnvironment struct {
	Region               string                `yaml:"region" json:"region"`
	Project              string                `yaml:"project" json:"project"`
	RuntimeVersion       string                `yaml:"runtimeVersion" json:"runtimeVersion"`
	StorageBucketRef     string                `yaml:"storageBucketRef" json:"storageBucketRef"`
	SecretsLocationRef   string                `yaml:"secretsLocationRef" json:"secretsLocationRef"`
	SecretsLocation      *refs.SecretsLocation `yaml:"secretsLocation,omitempty" json:"secretsLocation,omitempty"`
	Domain               string                `yaml:"domain,omitempty" json:"domain,omitempty"`
	CertificateRef       string                `yaml:"certificateRef,omitempty" json:"certificateRef,omitempty"`
	EnvironmentVariables map[string]string     `yaml:"environmentVariables,omitempty" json:"environmentVariables,omitempty"`
	Network              *Network              `yaml:"network,omitempty" json:"network,omitempty"`
	ResourceLimits       ResourceLimits        `yaml:"resourceLimits" json:"resourceLimits"`
	Observability        *Observability        `yaml:"observability,omitempty" json:"observability,omitempty"`
	KeepWarm             bool                  `yaml:"keepWarm,omitempty" json:"keepWarm,omitempty"`
	ExcludedPackages     []string              `yaml:"excludedPackages,omitempty" json:"excludedPackages,omitempty"`
	BuildMetadata        map[string]string     `yaml:"buildMetadata,omitempty" json:"buildMetadata,omitempty"`
	Extensions           map[string]any        `yaml:",inline" json:"extensions,omitempty"`
}

func (e *Emitted) wire() *wireEnvironment {
	env := e.env
	w := &wireEnvironment{
		Region:               env.Region,
		Project:              env.Project,
		RuntimeVersion:       env.RuntimeVersion,
		StorageBucketRef:     env.StorageBucketRef,
		SecretsLocationRef:   env.SecretsLocationRef,
		Domain:               env.Domain,
		CertificateRef:       env.CertificateRef,
		EnvironmentVariables: copyStringMap(env.EnvironmentVariables),
		ResourceLimits:       env.ResourceLimits,
		KeepWarm:             env.KeepWarm,
		ExcludedPackages:     copyStrings(env.ExcludedPackages),
		BuildMetadata:        copyStringMap(env.BuildMetadata),
		Extensions:           copyAnyMap(env.Extensions),
	}
	if !env.Secrets.IsZero() {
		loc := env.Secrets
		w.SecretsLocation = &loc
	}
	if env.Network != nil {
		w.Network = &Network{
			SubnetIDs:        copyStrings(env.Network.SubnetIDs),
			SecurityGroupIDs: copyStrings(env.Network.SecurityGroupIDs),
		}
	}
	if env.Observability != nil {
		o := *env.Observability
		w.Observability = &o
	}
	return w
}

// EncodeYAML serializes the snapshot as a single-environment settings
// document ("<name>: <block>"). Map keys are emitted in sorted order, so
// encoding is stable: equal snapshots produce byte-equal output.
func (e *Emitted) EncodeYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]*wireEnvironment{e.env.Name: e.wire()}); err != nil {
		return nil, fmt.Errorf("emit %s: %w", e.env.Name, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("emit %s: %w", e.env.Name, err)
	}
	return buf.Bytes(), nil
}

// EncodeJSON serializes the snapshot's environment block as indented JSON
// for machine consumers. Extensions appear under an "extensions" key.
func (e *Emitted) EncodeJSON() ([]byte, error) {
	data, err := json.MarshalIndent(e.wire(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("emit %s: %w", e.env.Name, err)
	}
	return data, nil
}

// ParseEmitted parses a single-environment YAML document produced by
// EncodeYAML back into an (unresolved) Environment. Running reference
// resolution on the result yields a descriptor field-equal to the one
// that was emitted.
func ParseEmitted(data []byte) (*Environment, error) {
	var doc map[string]map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse emitted descriptor: %w", err)
	}
	if len(doc) != 1 {
		return nil, fmt.Errorf("parse emitted descriptor: expected exactly one environment, got %d", len(doc))
	}
	for name, raw := range doc {
		return FromRaw(name, raw)
	}
	return nil, nil // unreachable
}
