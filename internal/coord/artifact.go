// Package coord implements the artifact coordinate model: identity,
// module-key equivalence, and dependency-path blame records (spec §4.A).
package coord

import (
	"fmt"
	"strings"
)

// Scope is the declared dependency scope of an edge in the dependency
// graph, mirroring the Maven-style scopes the external resolver reports.
type Scope string

const (
	ScopeCompile  Scope = "compile"
	ScopeRuntime  Scope = "runtime"
	ScopeProvided Scope = "provided"
	ScopeTest     Scope = "test"
)

const defaultExtension = "jar"

// Artifact identifies a versioned archive by Maven-style coordinates.
// Two artifacts are module-equal if Group, Name, Classifier and
// Extension all match, regardless of Version; module-equality drives
// classpath deduplication.
type Artifact struct {
	Group      string
	Name       string
	Version    string
	Classifier string
	Extension  string
}

// New builds an Artifact, defaulting Extension to "jar" when empty.
func New(group, name, version string) Artifact {
	return Artifact{Group: group, Name: name, Version: version, Extension: defaultExtension}
}

func (a Artifact) ext() string {
	if a.Extension == "" {
		return defaultExtension
	}
	return a.Extension
}

// ModuleKey is the equivalence class of an artifact ignoring version.
type ModuleKey string

// ModuleKey returns the module-key used for classpath deduplication.
func (a Artifact) ModuleKey() ModuleKey {
	if a.Classifier == "" {
		return ModuleKey(fmt.Sprintf("%s:%s:%s", a.Group, a.Name, a.ext()))
	}
	return ModuleKey(fmt.Sprintf("%s:%s:%s:%s", a.Group, a.Name, a.ext(), a.Classifier))
}

// ModuleEqual reports whether two artifacts share a module-key.
func (a Artifact) ModuleEqual(other Artifact) bool {
	return a.ModuleKey() == other.ModuleKey()
}

// Equal reports full coordinate equality, including version.
func (a Artifact) Equal(other Artifact) bool {
	return a.ModuleEqual(other) && a.Version == other.Version
}

// String formats the canonical coordinate string:
// group:name[:classifier]:version
func (a Artifact) String() string {
	var b strings.Builder
	b.WriteString(a.Group)
	b.WriteByte(':')
	b.WriteString(a.Name)
	if a.Classifier != "" {
		b.WriteByte(':')
		b.WriteString(a.Classifier)
	}
	b.WriteByte(':')
	b.WriteString(a.Version)
	return b.String()
}

// Parse parses a "group:name[:classifier]:version" coordinate string.
func Parse(s string) (Artifact, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	switch len(parts) {
	case 3:
		return New(parts[0], parts[1], parts[2]), nil
	case 4:
		return Artifact{Group: parts[0], Name: parts[1], Classifier: parts[2], Version: parts[3], Extension: defaultExtension}, nil
	default:
		return Artifact{}, fmt.Errorf("invalid artifact coordinate %q: expected group:name[:classifier]:version", s)
	}
}

// Less orders artifacts lexicographically by module-key, then by
// version string. Version ordering is not semantically aware: the core
// never re-orders versions chosen upstream by the external resolver
// (spec §4.A).
func Less(a, b Artifact) bool {
	if a.ModuleKey() != b.ModuleKey() {
		return a.ModuleKey() < b.ModuleKey()
	}
	return a.Version < b.Version
}

// PathStep is one hop in a DependencyPath.
type PathStep struct {
	Artifact Artifact
	Scope    Scope
	Optional bool
}

// DependencyPath is a non-empty, immutable sequence of path steps from a
// root artifact to a leaf. It is the blame record for why an archive is
// present on the classpath.
type DependencyPath struct {
	steps []PathStep
}

// NewDependencyPath builds an immutable path from the given steps. It
// panics if steps is empty, preserving the spec's "non-empty" invariant
// at construction time rather than deferring the check to callers.
func NewDependencyPath(steps ...PathStep) DependencyPath {
	if len(steps) == 0 {
		panic("coord: dependency path must not be empty")
	}
	copied := make([]PathStep, len(steps))
	copy(copied, steps)
	return DependencyPath{steps: copied}
}

// Steps returns a copy of the path's steps, root first.
func (p DependencyPath) Steps() []PathStep {
	copied := make([]PathStep, len(p.steps))
	copy(copied, p.steps)
	return copied
}

// Leaf returns the final artifact on the path.
func (p DependencyPath) Leaf() Artifact {
	return p.steps[len(p.steps)-1].Artifact
}

// Root returns the first artifact on the path.
func (p DependencyPath) Root() Artifact {
	return p.steps[0].Artifact
}

// Len returns the number of hops in the path.
func (p DependencyPath) Len() int {
	return len(p.steps)
}

// Extend returns a new path with an additional trailing step.
func (p DependencyPath) Extend(step PathStep) DependencyPath {
	return NewDependencyPath(append(p.Steps(), step)...)
}

// String renders the path as "a:1.0 -> b:2.0 -> c:3.0".
func (p DependencyPath) String() string {
	var b strings.Builder
	for i, step := range p.steps {
		if i > 0 {
			b.WriteString(" -> ")
		}
		b.WriteString(step.Artifact.String())
	}
	return b.String()
}
