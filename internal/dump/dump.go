// Package dump produces named, typed serializations of data walked out of a
// build's scripts and writes them to disk.
package dump

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/slice/havoc/internal/discord"
)

// Artifact is something that can be dumped from: a bare manifest, or a full
// build when Build is non-nil.
type Artifact struct {
	Manifest discord.Manifest
	Build    *discord.Build
}

// ManifestArtifact wraps a manifest.
func ManifestArtifact(m discord.Manifest) Artifact {
	return Artifact{Manifest: m}
}

// BuildArtifact wraps a build.
func BuildArtifact(b discord.Build) Artifact {
	return Artifact{Manifest: b.Manifest, Build: &b}
}

// Assets returns the artifact's surface assets.
func (a Artifact) Assets() []discord.Asset {
	return a.Manifest.Assets
}

// Prefix returns the filename prefix for dumps produced from this artifact.
func (a Artifact) Prefix() string {
	if a.Build != nil {
		return fmt.Sprintf("fe_%s_%d", a.Manifest.Branch, a.Build.Number)
	}
	return fmt.Sprintf("fe_%s", a.Manifest.Branch)
}

// Result is a named piece of dumped data. Exactly one of JSON or Text is
// set; JSON results serialize at write time.
type Result struct {
	Name string
	JSON any
	Text string
	Ext  string
}

// FromSerializable wraps a value for JSON serialization.
func FromSerializable(value any, name string) Result {
	return Result{Name: name, JSON: value}
}

// Filename returns the result's filename, extension included.
func (r Result) Filename() string {
	if r.JSON != nil {
		return r.Name + ".json"
	}
	return r.Name + "." + r.Ext
}

// Content returns the serialized bytes of the result.
func (r Result) Content() ([]byte, error) {
	if r.JSON != nil {
		out, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("serialize dump %q: %w", r.Name, err)
		}
		return out, nil
	}
	return []byte(r.Text), nil
}

// Write serializes the result and writes it to path in one operation.
func (r Result) Write(path string) error {
	content, err := r.Content()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write dump %q: %w", r.Name, err)
	}
	return nil
}
