package config

import (
	"fmt"
	"strings"
)

// RequiredPaths lists the dot-separated field paths every environment must
// carry once defaults have been applied.
var RequiredPaths = []string{
	"region",
	"project",
	"runtimeVersion",
	"storageBucketRef",
	"secretsLocationRef",
	"resourceLimits.memorySizeMB",
	"resourceLimits.timeoutSeconds",
}

// MissingFieldError reports a required field absent from both the defaults
// block and the environment's own block.
type MissingFieldError struct {
	Env   string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("environment %q: required field %q is set in neither defaults nor the environment block", e.Env, e.Field)
}

// Merge overlays an environment's block onto the shared defaults with
// override-wins semantics. Mappings merge recursively key-wise; sequences
// and scalars present in the override replace the default wholesale.
// Neither input is mutated. There is exactly one level of inheritance:
// defaults, then the named environment.
func Merge(defaults, overrides RawEnvironment) RawEnvironment {
	return RawEnvironment(deepMergeMap(defaults, overrides))
}

// MergeEnvironment merges the named environment onto defaults and verifies
// that every required field survived the merge. Returns a
// *MissingFieldError naming the first absent field.
func MergeEnvironment(defaults RawEnvironment, env NamedEnvironment) (RawEnvironment, error) {
	merged := Merge(defaults, env.Raw)
	for _, path := range RequiredPaths {
		if _, ok := LookupPath(merged, path); !ok {
			return nil, &MissingFieldError{Env: env.Name, Field: path}
		}
	}
	return merged, nil
}

// LookupPath walks a dot-separated path through nested mappings.
func LookupPath(raw RawEnvironment, path string) (any, bool) {
	cur := map[string]any(raw)
	keys := strings.Split(path, ".")
	for i, key := range keys {
		v, ok := cur[key]
		if !ok {
			return nil, false
		}
		if i == len(keys)-1 {
			return v, true
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

func deepMergeMap(base, override map[string]any) map[string]any {
	if base == nil && override == nil {
		return nil
	}
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if baseVal, exists := result[k]; exists {
			baseMap, baseIsMap := baseVal.(map[string]any)
			overMap, overIsMap := v.(map[string]any)
			if baseIsMap && overIsMap {
				result[k] = deepMergeMap(baseMap, overMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}
