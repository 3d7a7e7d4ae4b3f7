package schema

import (
	"errors"
	"testing"

	"github.com/deploykit/envresolve/config"
)

func validBlock() config.RawEnvironment {
	return config.RawEnvironment{
		"region":             "us-east-1",
		"project":            "storefront",
		"runtimeVersion":     "python3.11",
		"storageBucketRef":   "storefront-artifacts",
		"secretsLocationRef": "s3://storefront-secrets/bundle.json",
		"resourceLimits": map[string]any{
			"memorySizeMB":   512,
			"timeoutSeconds": 30,
		},
	}
}

func assertViolation(t *testing.T, err error, path string) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Path != path {
		t.Fatalf("violated path = %q, want %q (message: %s)", verr.Path, path, verr.Message)
	}
	if verr.Env != "dev" {
		t.Fatalf("env = %q, want dev", verr.Env)
	}
}

func TestValidate_ValidBlock(t *testing.T) {
	if err := Validate(validBlock(), "dev"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_RequiredFieldMissing(t *testing.T) {
	raw := validBlock()
	delete(raw, "region")

	assertViolation(t, Validate(raw, "dev"), "region")

	// The same block passes when required checks are deferred to the
	// post-merge pass.
	if err := Validate(raw, "dev", WithoutRequired()); err != nil {
		t.Errorf("WithoutRequired: %v", err)
	}
}

func TestValidate_TypeMismatches(t *testing.T) {
	raw := validBlock()
	raw["project"] = 42
	assertViolation(t, Validate(raw, "dev"), "project")

	raw = validBlock()
	raw["keepWarm"] = "yes"
	assertViolation(t, Validate(raw, "dev"), "keepWarm")

	raw = validBlock()
	raw["resourceLimits"].(map[string]any)["memorySizeMB"] = "big"
	assertViolation(t, Validate(raw, "dev"), "resourceLimits.memorySizeMB")
}

func TestValidate_TimeoutRange(t *testing.T) {
	raw := validBlock()
	raw["resourceLimits"].(map[string]any)["timeoutSeconds"] = 901
	assertViolation(t, Validate(raw, "dev"), "resourceLimits.timeoutSeconds")

	raw["resourceLimits"].(map[string]any)["timeoutSeconds"] = 0
	assertViolation(t, Validate(raw, "dev"), "resourceLimits.timeoutSeconds")

	raw["resourceLimits"].(map[string]any)["timeoutSeconds"] = 900
	if err := Validate(raw, "dev"); err != nil {
		t.Errorf("timeout at the platform maximum should pass: %v", err)
	}
}

func TestValidate_MemoryMustBePositive(t *testing.T) {
	raw := validBlock()
	raw["resourceLimits"].(map[string]any)["memorySizeMB"] = 0
	assertViolation(t, Validate(raw, "dev"), "resourceLimits.memorySizeMB")
}

func TestValidate_DomainRequiresCertificate(t *testing.T) {
	raw := validBlock()
	raw["domain"] = "dev.example.com"
	assertViolation(t, Validate(raw, "dev"), "certificateRef")

	raw["certificateRef"] = "arn:aws:acm:us-east-1:123456789012:certificate/abc"
	if err := Validate(raw, "dev"); err != nil {
		t.Errorf("domain with certificate should pass: %v", err)
	}
}

func TestValidate_DomainSyntax(t *testing.T) {
	raw := validBlock()
	raw["certificateRef"] = "arn:aws:acm:us-east-1:123456789012:certificate/abc"

	for _, bad := range []string{"-bad.example.com", "no spaces.com", "exa_mple.com", "singlelabel"} {
		raw["domain"] = bad
		assertViolation(t, Validate(raw, "dev"), "domain")
	}

	raw["domain"] = "shop.example.co.uk"
	if err := Validate(raw, "dev"); err != nil {
		t.Errorf("valid hostname rejected: %v", err)
	}
}

func TestValidate_RegionPattern(t *testing.T) {
	raw := validBlock()
	for _, bad := range []string{"us", "useast1", "US-EAST-1", "us-east-"} {
		raw["region"] = bad
		assertViolation(t, Validate(raw, "dev"), "region")
	}
	for _, good := range []string{"us-east-1", "eu-central-1", "ap-southeast-2"} {
		raw["region"] = good
		if err := Validate(raw, "dev"); err != nil {
			t.Errorf("region %q rejected: %v", good, err)
		}
	}
}

func TestValidate_LogLevelEnum(t *testing.T) {
	raw := validBlock()
	raw["observability"] = map[string]any{"logLevel": "VERBOSE"}
	assertViolation(t, Validate(raw, "dev"), "observability.logLevel")

	raw["observability"] = map[string]any{"logLevel": "WARN", "tracingEnabled": true}
	if err := Validate(raw, "dev"); err != nil {
		t.Errorf("valid observability rejected: %v", err)
	}

	raw["observability"] = map[string]any{"tracingEnabled": "on"}
	assertViolation(t, Validate(raw, "dev"), "observability.tracingEnabled")
}

func TestValidate_NetworkLists(t *testing.T) {
	raw := validBlock()
	raw["network"] = map[string]any{"subnetIds": []any{}}
	assertViolation(t, Validate(raw, "dev"), "network.subnetIds")

	raw["network"] = map[string]any{"subnetIds": []any{"subnet-0af3", ""}}
	assertViolation(t, Validate(raw, "dev"), "network.subnetIds[1]")

	raw["network"] = map[string]any{"securityGroupIds": []any{"sg ok?"}}
	assertViolation(t, Validate(raw, "dev"), "network.securityGroupIds[0]")

	raw["network"] = map[string]any{
		"subnetIds":        []any{"subnet-0af3c1", "subnet-1bd4e2"},
		"securityGroupIds": []any{"sg-12ab34"},
	}
	if err := Validate(raw, "dev"); err != nil {
		t.Errorf("valid network rejected: %v", err)
	}
}

func TestValidate_EnvironmentVariableKeys(t *testing.T) {
	raw := validBlock()
	raw["environmentVariables"] = map[string]any{"": "x"}
	assertViolation(t, Validate(raw, "dev"), "environmentVariables")

	raw["environmentVariables"] = map[string]any{"API_URL": 7}
	assertViolation(t, Validate(raw, "dev"), "environmentVariables.API_URL")

	raw["environmentVariables"] = map[string]any{"API_URL": "https://api.example.com"}
	if err := Validate(raw, "dev"); err != nil {
		t.Errorf("valid environmentVariables rejected: %v", err)
	}
}

func TestValidate_UnknownKeysPassThrough(t *testing.T) {
	raw := validBlock()
	raw["slackChannel"] = "#deploys-dev"
	raw["someStructuredThing"] = map[string]any{"nested": 1}

	if err := Validate(raw, "dev"); err != nil {
		t.Errorf("unknown keys must not be validated: %v", err)
	}
}
