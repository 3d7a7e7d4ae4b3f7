package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleSettings = `
defaults:
  region: us-east-1
  project: storefront
  runtimeVersion: python3.11
  resourceLimits:
    memorySizeMB: 512
    timeoutSeconds: 30
dev:
  storageBucketRef: storefront-artifacts-dev
  secretsLocationRef: s3://storefront-secrets-dev/bundle.json
  slackChannel: "#deploys-dev"
production:
  region: eu-central-1
  storageBucketRef: storefront-artifacts-prod
  secretsLocationRef: s3://storefront-secrets-prod/bundle.json
`

func TestParse_DeclarationOrderAndDefaults(t *testing.T) {
	doc, err := Parse([]byte(sampleSettings))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if doc.Defaults == nil {
		t.Fatal("expected defaults block")
	}
	if got := doc.Defaults["region"]; got != "us-east-1" {
		t.Errorf("defaults region = %v, want us-east-1", got)
	}

	names := doc.Names()
	if len(names) != 2 || names[0] != "dev" || names[1] != "production" {
		t.Errorf("Names() = %v, want [dev production]", names)
	}

	dev, ok := doc.Environment("dev")
	if !ok {
		t.Fatal("expected dev environment")
	}
	if dev["slackChannel"] != "#deploys-dev" {
		t.Errorf("dev slackChannel = %v", dev["slackChannel"])
	}

	if _, ok := doc.Environment("staging"); ok {
		t.Error("expected staging lookup to miss")
	}
}

func TestParse_TopLevelMustBeMapping(t *testing.T) {
	if _, err := Parse([]byte("- a\n- b\n")); err == nil {
		t.Fatal("expected error for sequence top level")
	}
	if _, err := Parse([]byte("dev: just-a-string\n")); err == nil {
		t.Fatal("expected error for scalar environment block")
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	doc, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Environments) != 0 || doc.Defaults != nil {
		t.Errorf("expected empty document, got %+v", doc)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "environments.yaml")
	if err := os.WriteFile(path, []byte(sampleSettings), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if len(doc.Environments) != 2 {
		t.Errorf("expected 2 environments, got %d", len(doc.Environments))
	}

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParse_NestedBlocksArePlainMaps(t *testing.T) {
	doc, err := Parse([]byte(`
defaults:
  environmentVariables:
    A: "1"
dev:
  region: us-east-1
  network:
    subnetIds: [subnet-0af3c1]
  resourceLimits:
    memorySizeMB: 512
    timeoutSeconds: 30
  observability:
    logLevel: INFO
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	dev, ok := doc.Environment("dev")
	if !ok {
		t.Fatal("expected dev environment")
	}
	for _, key := range []string{"network", "resourceLimits", "observability"} {
		if _, ok := dev[key].(map[string]any); !ok {
			t.Errorf("dev[%q] = %T, want map[string]any", key, dev[key])
		}
	}
	if _, ok := doc.Defaults["environmentVariables"].(map[string]any); !ok {
		t.Errorf("defaults environmentVariables = %T, want map[string]any", doc.Defaults["environmentVariables"])
	}

	// Nested path lookup and the key-wise union merge both depend on the
	// plain nested type.
	if _, ok := LookupPath(dev, "resourceLimits.memorySizeMB"); !ok {
		t.Error("LookupPath should find resourceLimits.memorySizeMB in a parsed document")
	}
	merged := Merge(doc.Defaults, RawEnvironment{"environmentVariables": map[string]any{"B": "2"}})
	vars, ok := merged["environmentVariables"].(map[string]any)
	if !ok || vars["A"] != "1" || vars["B"] != "2" {
		t.Errorf("merged environmentVariables = %v, want key-wise union", merged["environmentVariables"])
	}
}

func TestParse_JSONDocument(t *testing.T) {
	data := []byte(`{"dev": {"region": "us-east-1", "resourceLimits": {"memorySizeMB": 128, "timeoutSeconds": 10}}}`)
	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse JSON: %v", err)
	}
	dev, ok := doc.Environment("dev")
	if !ok {
		t.Fatal("expected dev environment")
	}
	limits, ok := dev["resourceLimits"].(map[string]any)
	if !ok {
		t.Fatalf("resourceLimits = %T, want mapping", dev["resourceLimits"])
	}
	if limits["memorySizeMB"] != 128 {
		t.Errorf("memorySizeMB = %v, want 128", limits["memorySizeMB"])
	}
}
