// Package bom loads a Bill-of-Materials manifest listing root artifact
// coordinates (spec §1: "typically resolved from a Bill-of-Materials
// manifest listing library coordinates"). Fetching the BOM from a
// remote registry is explicitly out of scope; this package only reads
// a local manifest file already on disk, in the same layered,
// extension-dispatched style as internal/config.
package bom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jvm-linkage/checker/internal/coord"
	"github.com/jvm-linkage/checker/internal/resolve"
	"github.com/jvm-linkage/checker/internal/safeio"
)

// Manifest is the parsed form of a BOM file: a root artifact set plus
// the exclusion rules the manifest author wants applied to every
// descendant (spec §4.B), and an optional offline dependency graph for
// callers (the bundled CLI's offline mode) that have no live resolver
// to back resolve.Declarer with.
type Manifest struct {
	Roots      []coord.Artifact
	Exclusions []ExclusionSpec
	Edges      []EdgeSpec
}

// EdgeSpec is one declared dependency edge in an offline graph
// manifest: From depends on To at the given scope.
type EdgeSpec struct {
	From     coord.Artifact
	To       coord.Artifact
	Scope    coord.Scope
	Optional bool
}

// ExclusionSpec is the manifest's textual form of a resolve.ExclusionRule;
// ExclusionRules converts it into resolve's pattern types.
type ExclusionSpec struct {
	FromGroup, FromName, FromVersion string
	ToGroup, ToName, ToVersion       string
}

type rawArtifact struct {
	Group      string `yaml:"group" json:"group" toml:"group"`
	Name       string `yaml:"name" json:"name" toml:"name"`
	Version    string `yaml:"version" json:"version" toml:"version"`
	Classifier string `yaml:"classifier" json:"classifier" toml:"classifier"`
	Extension  string `yaml:"extension" json:"extension" toml:"extension"`
}

func (r rawArtifact) toArtifact() (coord.Artifact, error) {
	if r.Group == "" || r.Name == "" || r.Version == "" {
		return coord.Artifact{}, fmt.Errorf("artifact entry missing group/name/version: %+v", r)
	}
	a := coord.New(r.Group, r.Name, r.Version)
	a.Classifier = r.Classifier
	if r.Extension != "" {
		a.Extension = r.Extension
	}
	return a, nil
}

type rawExclusionSide struct {
	Group   string `yaml:"group" json:"group" toml:"group"`
	Name    string `yaml:"name" json:"name" toml:"name"`
	Version string `yaml:"version" json:"version" toml:"version"`
}

type rawExclusion struct {
	From rawExclusionSide `yaml:"from" json:"from" toml:"from"`
	To   rawExclusionSide `yaml:"to" json:"to" toml:"to"`
}

type rawEdge struct {
	From     rawArtifact `yaml:"from" json:"from" toml:"from"`
	To       rawArtifact `yaml:"to" json:"to" toml:"to"`
	Scope    string      `yaml:"scope" json:"scope" toml:"scope"`
	Optional bool        `yaml:"optional" json:"optional" toml:"optional"`
}

type rawManifest struct {
	Artifacts  []rawArtifact  `yaml:"artifacts" json:"artifacts" toml:"artifacts"`
	Exclusions []rawExclusion `yaml:"exclusions" json:"exclusions" toml:"exclusions"`
	Edges      []rawEdge      `yaml:"edges" json:"edges" toml:"edges"`
}

// Load reads and parses a BOM manifest at path (YAML, JSON, or TOML,
// dispatched by extension), scoped to path-traversal-safe reads under
// rootDir.
func Load(rootDir, path string) (Manifest, error) {
	var data []byte
	var err error
	if filepath.IsAbs(path) {
		data, err = safeio.ReadFile(path)
	} else {
		data, err = safeio.ReadFileUnder(rootDir, filepath.Join(rootDir, path))
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read BOM manifest %s: %w", path, err)
	}

	var raw rawManifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&raw); err != nil {
			return Manifest{}, fmt.Errorf("parse JSON BOM %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return Manifest{}, fmt.Errorf("parse TOML BOM %s: %w", path, err)
		}
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return Manifest{}, fmt.Errorf("parse YAML BOM %s: %w", path, err)
		}
	}

	if len(raw.Artifacts) == 0 {
		return Manifest{}, fmt.Errorf("BOM manifest %s declares no artifacts", path)
	}

	manifest := Manifest{}
	for _, ra := range raw.Artifacts {
		artifact, err := ra.toArtifact()
		if err != nil {
			return Manifest{}, fmt.Errorf("BOM manifest %s: %w", path, err)
		}
		manifest.Roots = append(manifest.Roots, artifact)
	}
	for _, re := range raw.Exclusions {
		manifest.Exclusions = append(manifest.Exclusions, ExclusionSpec{
			FromGroup: re.From.Group, FromName: re.From.Name, FromVersion: re.From.Version,
			ToGroup: re.To.Group, ToName: re.To.Name, ToVersion: re.To.Version,
		})
	}
	for _, e := range raw.Edges {
		from, err := e.From.toArtifact()
		if err != nil {
			return Manifest{}, fmt.Errorf("BOM manifest %s: edge from: %w", path, err)
		}
		to, err := e.To.toArtifact()
		if err != nil {
			return Manifest{}, fmt.Errorf("BOM manifest %s: edge to: %w", path, err)
		}
		scope := coord.Scope(e.Scope)
		if scope == "" {
			scope = coord.ScopeCompile
		}
		manifest.Edges = append(manifest.Edges, EdgeSpec{From: from, To: to, Scope: scope, Optional: e.Optional})
	}
	return manifest, nil
}

// Declarer builds a resolve.StaticDeclarer from the manifest's offline
// edge list, keyed by module so any version of a declared "from"
// artifact resolves the same outbound edges. Artifacts with no
// declared edges resolve to an empty dependency list rather than an
// error, matching a leaf node in the graph.
func (m Manifest) Declarer() *resolve.StaticDeclarer {
	edges := make(map[coord.ModuleKey][]resolve.Declaration)
	for _, root := range m.Roots {
		key := root.ModuleKey()
		if _, ok := edges[key]; !ok {
			edges[key] = nil
		}
	}
	for _, e := range m.Edges {
		key := e.From.ModuleKey()
		edges[key] = append(edges[key], resolve.Declaration{Artifact: e.To, Scope: e.Scope, Optional: e.Optional})
		if _, ok := edges[e.To.ModuleKey()]; !ok {
			edges[e.To.ModuleKey()] = nil
		}
	}
	return resolve.NewStaticDeclarer(edges)
}

// ExclusionRules converts the manifest's textual exclusion specs into
// resolve.ExclusionRule values.
func (m Manifest) ExclusionRules() []resolve.ExclusionRule {
	rules := make([]resolve.ExclusionRule, 0, len(m.Exclusions))
	for _, spec := range m.Exclusions {
		rules = append(rules, resolve.ExclusionRule{
			From: resolve.Pattern{Group: spec.FromGroup, Name: spec.FromName, Version: spec.FromVersion},
			To:   resolve.Pattern{Group: spec.ToGroup, Name: spec.ToName, Version: spec.ToVersion},
		})
	}
	return rules
}
