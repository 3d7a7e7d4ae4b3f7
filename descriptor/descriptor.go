// Package descriptor defines the resolved deployment descriptor for one
// named environment, and the emitter that snapshots it into the immutable
// form handed to the external deployment engine.
package descriptor

import (
	"fmt"
	"reflect"

	"github.com/deploykit/envresolve/refs"
)

// Log levels accepted by Observability.LogLevel.
const (
	LogDebug = "DEBUG"
	LogInfo  = "INFO"
	LogWarn  = "WARN"
	LogError = "ERROR"
)

// Network holds the VPC attachment for the deployed unit. Both lists are
// ordered and, when present, non-empty; an absent list stays absent in
// the serialized form so the emitted descriptor re-validates cleanly.
type Network struct {
	SubnetIDs        []string `json:"subnetIds,omitempty" yaml:"subnetIds,omitempty"`
	SecurityGroupIDs []string `json:"securityGroupIds,omitempty" yaml:"securityGroupIds,omitempty"`
}

// ResourceLimits bounds the deployed unit's runtime resources.
type ResourceLimits struct {
	MemorySizeMB   int `json:"memorySizeMB" yaml:"memorySizeMB"`
	TimeoutSeconds int `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

// Observability configures logging and tracing for the deployed unit.
// An unset log level is omitted when serialized rather than emitted as an
// empty (and invalid) enum value.
type Observability struct {
	LogLevel       string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	TracingEnabled bool   `json:"tracingEnabled" yaml:"tracingEnabled"`
}

// Environment is one named deployment profile with defaults applied.
// It is constructed once per resolution pass and treated as read-only from
// the moment the merge stage completes; Emit produces the deeply immutable
// snapshot downstream consumers receive.
type Environment struct {
	Name               string
	Region             string
	Project            string
	RuntimeVersion     string
	StorageBucketRef   string
	SecretsLocationRef string

	// Secrets holds the parsed (scheme, bucket, key) components of
	// SecretsLocationRef, populated by ResolveReferences.
	Secrets refs.SecretsLocation

	Domain         string
	CertificateRef string

	EnvironmentVariables map[string]string
	Network              *Network
	ResourceLimits       ResourceLimits
	Observability        *Observability
	KeepWarm             bool
	ExcludedPackages     []string
	BuildMetadata        map[string]string

	// Extensions carries unrecognized keys from the environment block
	// verbatim (e.g. notification channels or callback URLs used by a
	// single environment). They are passed through to the deploy engine
	// without validation, whatever their shape.
	Extensions map[string]any
}

// knownFields are the environment block keys mapped onto typed descriptor
// fields; everything else is passthrough.
var knownFields = map[string]bool{
	"region":               true,
	"project":              true,
	"runtimeVersion":       true,
	"storageBucketRef":     true,
	"secretsLocationRef":   true,
	"secretsLocation":      true, // resolved components from a prior emit
	"domain":               true,
	"certificateRef":       true,
	"environmentVariables": true,
	"network":              true,
	"resourceLimits":       true,
	"observability":        true,
	"keepWarm":             true,
	"excludedPackages":     true,
	"buildMetadata":        true,
}

// FromRaw builds an Environment from a schema-validated, defaults-merged
// raw block. Field types are still checked defensively; a type mismatch
// here means the block bypassed validation.
func FromRaw(name string, raw map[string]any) (*Environment, error) {
	env := &Environment{Name: name}

	var err error
	if env.Region, err = stringField(name, raw, "region"); err != nil {
		return nil, err
	}
	if env.Project, err = stringField(name, raw, "project"); err != nil {
		return nil, err
	}
	if env.RuntimeVersion, err = stringField(name, raw, "runtimeVersion"); err != nil {
		return nil, err
	}
	if env.StorageBucketRef, err = stringField(name, raw, "storageBucketRef"); err != nil {
		return nil, err
	}
	if env.SecretsLocationRef, err = stringField(name, raw, "secretsLocationRef"); err != nil {
		return nil, err
	}
	if env.Domain, err = optionalString(name, raw, "domain"); err != nil {
		return nil, err
	}
	if env.CertificateRef, err = optionalString(name, raw, "certificateRef"); err != nil {
		return nil, err
	}

	if env.EnvironmentVariables, err = stringMapField(name, raw, "environmentVariables"); err != nil {
		return nil, err
	}
	if env.BuildMetadata, err = stringMapField(name, raw, "buildMetadata"); err != nil {
		return nil, err
	}

	if v, ok := raw["network"]; ok {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fieldTypeError(name, "network", "mapping", v)
		}
		n := &Network{}
		if n.SubnetIDs, err = stringSliceField(name, m, "network.subnetIds", "subnetIds"); err != nil {
			return nil, err
		}
		if n.SecurityGroupIDs, err = stringSliceField(name, m, "network.securityGroupIds", "securityGroupIds"); err != nil {
			return nil, err
		}
		env.Network = n
	}

	limits, ok := raw["resourceLimits"].(map[string]any)
	if !ok {
		return nil, fieldTypeError(name, "resourceLimits", "mapping", raw["resourceLimits"])
	}
	if env.ResourceLimits.MemorySizeMB, err = intField(name, limits, "resourceLimits.memorySizeMB", "memorySizeMB"); err != nil {
		return nil, err
	}
	if env.ResourceLimits.TimeoutSeconds, err = intField(name, limits, "resourceLimits.timeoutSeconds", "timeoutSeconds"); err != nil {
		return nil, err
	}

	if v, ok := raw["observability"]; ok {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fieldTypeError(name, "observability", "mapping", v)
		}
		o := &Observability{}
		if o.LogLevel, err = optionalString(name, m, "logLevel"); err != nil {
			return nil, err
		}
		if t, ok := m["tracingEnabled"]; ok {
			b, ok := t.(bool)
			if !ok {
				return nil, fieldTypeError(name, "observability.tracingEnabled", "boolean", t)
			}
			o.TracingEnabled = b
		}
		env.Observability = o
	}

	if v, ok := raw["keepWarm"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fieldTypeError(name, "keepWarm", "boolean", v)
		}
		env.KeepWarm = b
	}

	if env.ExcludedPackages, err = stringSliceField(name, raw, "excludedPackages", "excludedPackages"); err != nil {
		return nil, err
	}

	// Unknown keys pass through untouched.
	for k, v := range raw {
		if knownFields[k] {
			continue
		}
		if env.Extensions == nil {
			env.Extensions = make(map[string]any)
		}
		env.Extensions[k] = copyAny(v)
	}

	return env, nil
}

// ResolveReferences validates the shape of the descriptor's location-style
// fields and returns a copy carrying the parsed secrets location. No
// network I/O occurs; content is fetched by collaborators at deploy time.
func ResolveReferences(env *Environment) (*Environment, error) {
	out := env.clone()

	loc, err := refs.ParseSecretsLocation("secretsLocationRef", env.SecretsLocationRef)
	if err != nil {
		return nil, tagEnv(err, env.Name)
	}
	out.Secrets = loc

	if err := refs.ValidateBucketRef("storageBucketRef", env.StorageBucketRef); err != nil {
		return nil, tagEnv(err, env.Name)
	}
	if env.CertificateRef != "" {
		if err := refs.ValidateCertificateRef("certificateRef", env.CertificateRef); err != nil {
			return nil, tagEnv(err, env.Name)
		}
	}
	return out, nil
}

func tagEnv(err error, env string) error {
	if re, ok := err.(*refs.ReferenceError); ok {
		re.Env = env
	}
	return err
}

// clone returns a deep copy of the environment.
func (e *Environment) clone() *Environment {
	out := *e
	out.EnvironmentVariables = copyStringMap(e.EnvironmentVariables)
	out.BuildMetadata = copyStringMap(e.BuildMetadata)
	out.Extensions = copyAnyMap(e.Extensions)
	out.ExcludedPackages = copyStrings(e.ExcludedPackages)
	if e.Network != nil {
		out.Network = &Network{
			SubnetIDs:        copyStrings(e.Network.SubnetIDs),
			SecurityGroupIDs: copyStrings(e.Network.SecurityGroupIDs),
		}
	}
	if e.Observability != nil {
		o := *e.Observability
		out.Observability = &o
	}
	return &out
}

// Equal reports field equality across every validated field.
func (e *Environment) Equal(other *Environment) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.Name != other.Name || e.Region != other.Region || e.Project != other.Project ||
		e.RuntimeVersion != other.RuntimeVersion || e.StorageBucketRef != other.StorageBucketRef ||
		e.SecretsLocationRef != other.SecretsLocationRef || e.Domain != other.Domain ||
		e.CertificateRef != other.CertificateRef || e.KeepWarm != other.KeepWarm ||
		e.ResourceLimits != other.ResourceLimits || e.Secrets != other.Secrets {
		return false
	}
	if (e.Observability == nil) != (other.Observability == nil) {
		return false
	}
	if e.Observability != nil && *e.Observability != *other.Observability {
		return false
	}
	if (e.Network == nil) != (other.Network == nil) {
		return false
	}
	if e.Network != nil {
		if !equalStrings(e.Network.SubnetIDs, other.Network.SubnetIDs) ||
			!equalStrings(e.Network.SecurityGroupIDs, other.Network.SecurityGroupIDs) {
			return false
		}
	}
	return equalStrings(e.ExcludedPackages, other.ExcludedPackages) &&
		equalStringMaps(e.EnvironmentVariables, other.EnvironmentVariables) &&
		equalStringMaps(e.BuildMetadata, other.BuildMetadata) &&
		reflect.DeepEqual(e.Extensions, other.Extensions)
}

func stringField(env string, m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("environment %q: missing field %q", env, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fieldTypeError(env, key, "string", v)
	}
	return s, nil
}

func optionalString(env string, m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fieldTypeError(env, key, "string", v)
	}
	return s, nil
}

func intField(env string, m map[string]any, path, key string) (int, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("environment %q: missing field %q", env, path)
	}
	n, ok := v.(int)
	if !ok {
		return 0, fieldTypeError(env, path, "integer", v)
	}
	return n, nil
}

func stringMapField(env string, m map[string]any, key string) (map[string]string, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fieldTypeError(env, key, "mapping", v)
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		s, ok := val.(string)
		if !ok {
			return nil, fieldTypeError(env, key+"."+k, "string", val)
		}
		out[k] = s
	}
	return out, nil
}

func stringSliceField(env string, m map[string]any, path, key string) ([]string, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fieldTypeError(env, path, "sequence", v)
	}
	out := make([]string, 0, len(raw))
	for i, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fieldTypeError(env, fmt.Sprintf("%s[%d]", path, i), "string", item)
		}
		out = append(out, s)
	}
	return out, nil
}

func fieldTypeError(env, path, want string, got any) error {
	return fmt.Errorf("environment %q: field %q: expected %s, got %T", env, path, want, got)
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyAny(v)
	}
	return out
}

func copyAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyAnyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyAny(item)
		}
		return out
	default:
		return v
	}
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStringMaps(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
