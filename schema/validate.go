// Package schema checks the structural and value correctness of a raw
// environment block before it is turned into a deployment descriptor.
// Validation is fail-fast: the first violated rule is returned, tagged
// with the environment name and the dot-separated path of the offending
// field.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/deploykit/envresolve/config"
)

// MaxTimeoutSeconds is the platform ceiling on execution timeout.
const MaxTimeoutSeconds = 900

// logLevels are the values accepted by observability.logLevel.
var logLevels = map[string]bool{
	"DEBUG": true,
	"INFO":  true,
	"WARN":  true,
	"ERROR": true,
}

// ValidationError reports a single validation failure: the environment, the
// path to the offending field, and the violated rule.
type ValidationError struct {
	Env     string
	Path    string // dot-separated path (e.g. "resourceLimits.timeoutSeconds")
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("environment %q: %s: %s", e.Env, e.Path, e.Message)
	}
	return fmt.Sprintf("environment %q: %s", e.Env, e.Message)
}

// Option configures validation behaviour.
type Option func(*opts)

type opts struct {
	skipRequired bool
}

// WithoutRequired disables the required-field presence check. Used when
// validating an environment block before defaults are applied, since a
// field absent here may still be supplied by the defaults block.
func WithoutRequired() Option {
	return func(o *opts) { o.skipRequired = true }
}

var (
	// regionPattern matches cloud region codes such as us-east-1,
	// eu-central-1, ap-southeast-2.
	regionPattern = regexp.MustCompile(`^[a-z]{2}(?:-[a-z]+)+-\d$`)

	// hostnamePattern matches RFC 1123 hostnames with at least two labels.
	hostnamePattern = regexp.MustCompile(`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

	// identifierPattern matches network resource identifiers
	// (e.g. subnet-0af3c1, sg-12ab34).
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]*$`)
)

// Validate checks one environment's raw block. Checks run in a fixed
// order — required fields, types, value ranges, cross-field dependencies,
// key constraints — and the first failure is returned. Pure function over
// its input.
func Validate(raw config.RawEnvironment, env string, options ...Option) error {
	var o opts
	for _, opt := range options {
		opt(&o)
	}

	if !o.skipRequired {
		for _, path := range config.RequiredPaths {
			if _, ok := config.LookupPath(raw, path); !ok {
				return &ValidationError{Env: env, Path: path, Message: "required field is missing"}
			}
		}
	}

	if err := checkStringFields(raw, env); err != nil {
		return err
	}
	if err := checkResourceLimits(raw, env); err != nil {
		return err
	}
	if err := checkNetwork(raw, env); err != nil {
		return err
	}
	if err := checkObservability(raw, env); err != nil {
		return err
	}
	if err := checkBool(raw, env, "keepWarm"); err != nil {
		return err
	}
	if err := checkStringSequence(raw, env, "excludedPackages", false); err != nil {
		return err
	}
	if err := checkRegion(raw, env); err != nil {
		return err
	}
	if err := checkDomain(raw, env); err != nil {
		return err
	}
	if err := checkStringMap(raw, env, "environmentVariables"); err != nil {
		return err
	}
	return checkStringMap(raw, env, "buildMetadata")
}

func checkStringFields(raw config.RawEnvironment, env string) error {
	for _, key := range []string{"region", "project", "runtimeVersion", "storageBucketRef", "secretsLocationRef", "domain", "certificateRef"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return typeError(env, key, "string", v)
		}
		if s == "" {
			return &ValidationError{Env: env, Path: key, Message: "must not be empty"}
		}
	}
	return nil
}

func checkResourceLimits(raw config.RawEnvironment, env string) error {
	v, ok := raw["resourceLimits"]
	if !ok {
		return nil
	}
	limits, ok := v.(map[string]any)
	if !ok {
		return typeError(env, "resourceLimits", "mapping", v)
	}

	if mv, ok := limits["memorySizeMB"]; ok {
		mem, ok := mv.(int)
		if !ok {
			return typeError(env, "resourceLimits.memorySizeMB", "integer", mv)
		}
		if mem <= 0 {
			return &ValidationError{Env: env, Path: "resourceLimits.memorySizeMB", Message: fmt.Sprintf("must be positive, got %d", mem)}
		}
	}

	if tv, ok := limits["timeoutSeconds"]; ok {
		timeout, ok := tv.(int)
		if !ok {
			return typeError(env, "resourceLimits.timeoutSeconds", "integer", tv)
		}
		if timeout <= 0 {
			return &ValidationError{Env: env, Path: "resourceLimits.timeoutSeconds", Message: fmt.Sprintf("must be positive, got %d", timeout)}
		}
		if timeout > MaxTimeoutSeconds {
			return &ValidationError{Env: env, Path: "resourceLimits.timeoutSeconds", Message: fmt.Sprintf("must not exceed the platform maximum of %d, got %d", MaxTimeoutSeconds, timeout)}
		}
	}
	return nil
}

func checkNetwork(raw config.RawEnvironment, env string) error {
	v, ok := raw["network"]
	if !ok {
		return nil
	}
	network, ok := v.(map[string]any)
	if !ok {
		return typeError(env, "network", "mapping", v)
	}
	if err := checkStringSequence(network, env, "network.subnetIds", true); err != nil {
		return err
	}
	return checkStringSequence(network, env, "network.securityGroupIds", true)
}

func checkObservability(raw config.RawEnvironment, env string) error {
	v, ok := raw["observability"]
	if !ok {
		return nil
	}
	obs, ok := v.(map[string]any)
	if !ok {
		return typeError(env, "observability", "mapping", v)
	}
	if lv, ok := obs["logLevel"]; ok {
		level, ok := lv.(string)
		if !ok {
			return typeError(env, "observability.logLevel", "string", lv)
		}
		if !logLevels[level] {
			return &ValidationError{Env: env, Path: "observability.logLevel", Message: fmt.Sprintf("must be one of DEBUG, INFO, WARN, ERROR; got %q", level)}
		}
	}
	if tv, ok := obs["tracingEnabled"]; ok {
		if _, ok := tv.(bool); !ok {
			return typeError(env, "observability.tracingEnabled", "boolean", tv)
		}
	}
	return nil
}

func checkBool(raw config.RawEnvironment, env, key string) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	if _, ok := v.(bool); !ok {
		return typeError(env, key, "boolean", v)
	}
	return nil
}

// checkStringSequence validates a sequence of strings. When identifiers is
// true the sequence must be non-empty and every element a well-formed
// resource identifier (network attachment lists are all-or-nothing).
func checkStringSequence(raw map[string]any, env, path string, identifiers bool) error {
	key := path
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		key = path[i+1:]
	}
	v, ok := raw[key]
	if !ok {
		return nil
	}
	seq, ok := v.([]any)
	if !ok {
		return typeError(env, path, "sequence", v)
	}
	if identifiers && len(seq) == 0 {
		return &ValidationError{Env: env, Path: path, Message: "must not be empty when present"}
	}
	for i, item := range seq {
		s, ok := item.(string)
		if !ok {
			return typeError(env, fmt.Sprintf("%s[%d]", path, i), "string", item)
		}
		if s == "" {
			return &ValidationError{Env: env, Path: fmt.Sprintf("%s[%d]", path, i), Message: "must not be empty"}
		}
		if identifiers && !identifierPattern.MatchString(s) {
			return &ValidationError{Env: env, Path: fmt.Sprintf("%s[%d]", path, i), Message: fmt.Sprintf("not a well-formed identifier: %q", s)}
		}
	}
	return nil
}

func checkRegion(raw config.RawEnvironment, env string) error {
	v, ok := raw["region"]
	if !ok {
		return nil
	}
	region, ok := v.(string)
	if !ok {
		return typeError(env, "region", "string", v)
	}
	if !regionPattern.MatchString(region) {
		return &ValidationError{Env: env, Path: "region", Message: fmt.Sprintf("not a known region code: %q", region)}
	}
	return nil
}

// checkDomain enforces hostname syntax and the domain/certificateRef
// cross-field dependency: a custom domain needs a certificate to attach.
func checkDomain(raw config.RawEnvironment, env string) error {
	v, ok := raw["domain"]
	if !ok {
		return nil
	}
	domain, ok := v.(string)
	if !ok {
		return typeError(env, "domain", "string", v)
	}
	if len(domain) > 253 || !hostnamePattern.MatchString(domain) {
		return &ValidationError{Env: env, Path: "domain", Message: fmt.Sprintf("not a valid hostname: %q", domain)}
	}
	if _, ok := raw["certificateRef"]; !ok {
		return &ValidationError{Env: env, Path: "certificateRef", Message: "required when domain is set"}
	}
	return nil
}

// checkStringMap validates a string-to-string mapping with non-empty keys.
// Key uniqueness within a single block is guaranteed by the document
// parser, which rejects duplicate mapping keys; this check covers blocks
// assembled programmatically.
func checkStringMap(raw config.RawEnvironment, env, key string) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return typeError(env, key, "mapping", v)
	}
	for k, val := range m {
		if k == "" {
			return &ValidationError{Env: env, Path: key, Message: "keys must not be empty"}
		}
		if _, ok := val.(string); !ok {
			return typeError(env, key+"."+k, "string", val)
		}
	}
	return nil
}

func typeError(env, path, want string, got any) *ValidationError {
	return &ValidationError{Env: env, Path: path, Message: fmt.Sprintf("expected %s, got %T", want, got)}
}
