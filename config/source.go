package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Source provides a settings document from an arbitrary backend.
// Implementations must be safe for concurrent use.
type Source interface {
	// Load retrieves the current settings document.
	Load(ctx context.Context) (*Document, error)

	// Hash returns a content-addressable hash of the current document.
	// Used for change detection without full deserialization.
	Hash(ctx context.Context) (string, error)

	// Name returns a human-readable identifier for this source.
	Name() string
}

// ChangeEvent is emitted when a watched Source detects a change.
type ChangeEvent struct {
	Source   string
	OldHash  string
	NewHash  string
	Document *Document
	Time     time.Time
}

// FileSource loads a settings document from a file on disk.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource that reads from the given path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and parses the settings file.
func (s *FileSource) Load(_ context.Context) (*Document, error) {
	return LoadFromFile(s.path)
}

// Hash returns the SHA256 hex digest of the raw file bytes.
func (s *FileSource) Hash(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("file source: read %s: %w", s.path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Name returns a human-readable identifier for this source.
func (s *FileSource) Name() string {
	return "file:" + s.path
}

// Path returns the filesystem path this source reads from.
func (s *FileSource) Path() string { return s.path }

// StaticSource serves a fixed in-memory document. Useful for tests and for
// callers that already hold parsed settings.
type StaticSource struct {
	name string
	doc  *Document
}

// NewStaticSource creates a StaticSource serving doc under the given name.
func NewStaticSource(name string, doc *Document) *StaticSource {
	return &StaticSource{name: name, doc: doc}
}

func (s *StaticSource) Load(_ context.Context) (*Document, error) {
	if s.doc == nil {
		return nil, fmt.Errorf("static source %s: no document", s.name)
	}
	return s.doc, nil
}

func (s *StaticSource) Hash(ctx context.Context) (string, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	return hashDocument(doc)
}

func (s *StaticSource) Name() string { return "static:" + s.name }

// CompositeSource layers multiple sources. Later sources override earlier
// ones: their defaults merge over the base defaults, and their environment
// blocks merge over same-named base blocks (new names append in order).
type CompositeSource struct {
	sources []Source
}

// NewCompositeSource creates a CompositeSource from the given sources.
// sources[0] is the base; each subsequent source overlays on the result.
func NewCompositeSource(sources ...Source) *CompositeSource {
	return &CompositeSource{sources: sources}
}

// Load loads all sources and merges them into a single document.
func (s *CompositeSource) Load(ctx context.Context) (*Document, error) {
	if len(s.sources) == 0 {
		return nil, fmt.Errorf("composite source: no sources configured")
	}
	base, err := s.sources[0].Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, src := range s.sources[1:] {
		overlay, err := src.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("composite source %s: %w", src.Name(), err)
		}
		base = overlayDocument(base, overlay)
	}
	return base, nil
}

// Hash loads the merged document and returns its hash.
func (s *CompositeSource) Hash(ctx context.Context) (string, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	return hashDocument(doc)
}

func (s *CompositeSource) Name() string { return "composite" }

// overlayDocument applies overlay on top of base, returning a new document.
// Environment blocks merge by name; declaration order follows base, with
// overlay-only environments appended in overlay order.
func overlayDocument(base, overlay *Document) *Document {
	if overlay == nil {
		return base
	}
	result := &Document{Defaults: Merge(base.Defaults, overlay.Defaults)}

	idx := make(map[string]int, len(base.Environments))
	for i, e := range base.Environments {
		result.Environments = append(result.Environments, e)
		idx[e.Name] = i
	}
	for _, e := range overlay.Environments {
		if i, ok := idx[e.Name]; ok {
			result.Environments[i] = NamedEnvironment{
				Name: e.Name,
				Raw:  Merge(result.Environments[i].Raw, e.Raw),
			}
		} else {
			result.Environments = append(result.Environments, e)
		}
	}
	return result
}

func hashDocument(doc *Document) (string, error) {
	type flat struct {
		Defaults     RawEnvironment   `yaml:"defaults,omitempty"`
		Environments []map[string]any `yaml:"environments"`
	}
	f := flat{Defaults: doc.Defaults}
	for _, e := range doc.Environments {
		f.Environments = append(f.Environments, map[string]any{e.Name: map[string]any(e.Raw)})
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
