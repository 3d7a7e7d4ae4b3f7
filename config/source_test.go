package config

import (
	"context"
	"testing"
)

func TestStaticSource(t *testing.T) {
	doc := &Document{Environments: []NamedEnvironment{{Name: "dev", Raw: RawEnvironment{"region": "us-east-1"}}}}
	src := NewStaticSource("test", doc)

	got, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != doc {
		t.Error("expected the same document back")
	}

	if _, err := NewStaticSource("empty", nil).Load(context.Background()); err == nil {
		t.Error("expected error for nil document")
	}
}

func TestCompositeSource_OverlayMergesByName(t *testing.T) {
	base := &Document{
		Defaults: RawEnvironment{"region": "us-east-1", "runtimeVersion": "python3.11"},
		Environments: []NamedEnvironment{
			{Name: "dev", Raw: RawEnvironment{"storageBucketRef": "artifacts-dev"}},
			{Name: "production", Raw: RawEnvironment{"storageBucketRef": "artifacts-prod"}},
		},
	}
	overlay := &Document{
		Defaults: RawEnvironment{"region": "eu-central-1"},
		Environments: []NamedEnvironment{
			{Name: "dev", Raw: RawEnvironment{"keepWarm": true}},
			{Name: "staging", Raw: RawEnvironment{"storageBucketRef": "artifacts-staging"}},
		},
	}

	src := NewCompositeSource(NewStaticSource("base", base), NewStaticSource("overlay", overlay))
	doc, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if doc.Defaults["region"] != "eu-central-1" {
		t.Errorf("overlay defaults should win, region = %v", doc.Defaults["region"])
	}
	if doc.Defaults["runtimeVersion"] != "python3.11" {
		t.Errorf("base defaults should survive, runtimeVersion = %v", doc.Defaults["runtimeVersion"])
	}

	names := doc.Names()
	want := []string{"dev", "production", "staging"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}

	dev, _ := doc.Environment("dev")
	if dev["storageBucketRef"] != "artifacts-dev" || dev["keepWarm"] != true {
		t.Errorf("dev block merge = %v", dev)
	}
}

func TestCompositeSource_NoSources(t *testing.T) {
	if _, err := NewCompositeSource().Load(context.Background()); err == nil {
		t.Error("expected error for empty composite")
	}
}

func TestSourceHash_StableAndChangeSensitive(t *testing.T) {
	docA := &Document{Environments: []NamedEnvironment{{Name: "dev", Raw: RawEnvironment{"region": "us-east-1"}}}}
	docB := &Document{Environments: []NamedEnvironment{{Name: "dev", Raw: RawEnvironment{"region": "eu-central-1"}}}}

	srcA := NewStaticSource("a", docA)
	h1, err := srcA.Hash(context.Background())
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := srcA.Hash(context.Background())
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 != h2 {
		t.Error("hash of unchanged document should be stable")
	}

	h3, err := NewStaticSource("b", docB).Hash(context.Background())
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 == h3 {
		t.Error("different documents should hash differently")
	}
}
