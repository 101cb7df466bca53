// Package resolve implements the dependency-graph resolution component
// (spec §4.B): turning a root artifact set into a transitively-closed,
// ordered sequence of (artifact, dependency-path) pairs, with exclusion
// rule application.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/jvm-linkage/checker/internal/coord"
)

// ErrResolutionFailed is returned when a root artifact's declared
// dependencies cannot be discovered at all (spec §4.B "unreachable
// root").
var ErrResolutionFailed = errors.New("resolve: resolution failed")

// Declaration is one outbound dependency edge declared by an artifact.
type Declaration struct {
	Artifact coord.Artifact
	Scope    coord.Scope
	Optional bool
}

// Declarer is the external collaborator that knows how to look up the
// direct dependencies of a single artifact. Production callers back
// this with a BOM-aware registry client; tests and the bundled CLI back
// it with a static, pre-resolved graph.
type Declarer interface {
	DeclaredDependencies(ctx context.Context, artifact coord.Artifact) ([]Declaration, error)
}

// Pattern matches artifact coordinates using glob-style "*" wildcards
// per segment (group, name, version). An empty field matches anything.
type Pattern struct {
	Group   string
	Name    string
	Version string
}

// Matches reports whether the pattern matches the given artifact.
func (p Pattern) Matches(a coord.Artifact) bool {
	return matchSegment(p.Group, a.Group) && matchSegment(p.Name, a.Name) && matchSegment(p.Version, a.Version)
}

func matchSegment(pattern, value string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	return pattern == value
}

// ExclusionRule suppresses descendants matching To when reached through
// an edge declared by From.
type ExclusionRule struct {
	From Pattern
	To   Pattern
}

// Exclusion is a retained record of an exclusion rule having fired,
// kept so the cause attributor can later blame a missing class on it.
type Exclusion struct {
	Rule ExclusionRule
	Path coord.DependencyPath
}

// Node is one resolved (artifact, dependency-path) pair, in the order
// the traversal visited it.
type Node struct {
	Artifact coord.Artifact
	Path     coord.DependencyPath
}

// Result is the output of a graph resolution: the ordered node
// sequence plus any exclusions that fired along the way.
type Result struct {
	Nodes      []Node
	Exclusions []Exclusion
}

// Resolve performs a breadth-first traversal over the roots using decl
// to expand each artifact's direct dependencies, applying exclusion
// rules declared on each edge. The root set itself is never excluded.
//
// An artifact is visited once per distinct dependency path reaching it;
// module-key deduplication is not done here — that is the classpath
// builder's job (spec §4.C). A child that already appears on its
// parent's path is skipped, which bounds cycles in malformed graphs. A
// non-root artifact whose own dependencies cannot be discovered is
// left out of Nodes.
func Resolve(ctx context.Context, roots []coord.Artifact, decl Declarer, exclusions []ExclusionRule) (Result, error) {
	if len(roots) == 0 {
		return Result{}, fmt.Errorf("%w: empty root set", ErrResolutionFailed)
	}

	var result Result
	type queued struct {
		artifact coord.Artifact
		path     coord.DependencyPath
	}
	queue := make([]queued, 0, len(roots))
	visitedPaths := map[string]struct{}{}

	for _, root := range roots {
		if _, err := decl.DeclaredDependencies(ctx, root); err != nil {
			return Result{}, fmt.Errorf("%w: root %s: %v", ErrResolutionFailed, root, err)
		}
		rootPath := coord.NewDependencyPath(coord.PathStep{Artifact: root, Scope: coord.ScopeCompile})
		queue = append(queue, queued{artifact: root, path: rootPath})
		result.Nodes = append(result.Nodes, Node{Artifact: root, Path: rootPath})
		visitedPaths[pathKey(rootPath)] = struct{}{}
	}

	absent := map[int]bool{} // queue indexes; queue[i] was appended with result.Nodes[i]
	for i := 0; i < len(queue); i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
		}
		current := queue[i]
		children, err := decl.DeclaredDependencies(ctx, current.artifact)
		if err != nil {
			// A non-root artifact's dependencies being unreachable is not
			// fatal: it is simply absent from the graph (spec §4.B).
			absent[i] = true
			continue
		}
		for _, child := range children {
			onPath := false
			for _, step := range current.path.Steps() {
				onPath = onPath || step.Artifact.Equal(child.Artifact)
			}
			if onPath {
				continue
			}
			if rule, excluded := matchingExclusion(exclusions, current.artifact, child.Artifact); excluded {
				result.Exclusions = append(result.Exclusions, Exclusion{Rule: rule, Path: current.path.Extend(coord.PathStep{
					Artifact: child.Artifact, Scope: child.Scope, Optional: child.Optional,
				})})
				continue
			}
			childPath := current.path.Extend(coord.PathStep{Artifact: child.Artifact, Scope: child.Scope, Optional: child.Optional})
			key := pathKey(childPath)
			if _, seen := visitedPaths[key]; seen {
				continue
			}
			visitedPaths[key] = struct{}{}
			result.Nodes = append(result.Nodes, Node{Artifact: child.Artifact, Path: childPath})
			queue = append(queue, queued{artifact: child.Artifact, path: childPath})
		}
	}

	if len(absent) > 0 {
		kept := make([]Node, 0, len(result.Nodes)-len(absent))
		for i, node := range result.Nodes {
			if !absent[i] {
				kept = append(kept, node)
			}
		}
		result.Nodes = kept
	}
	return result, nil
}

func matchingExclusion(rules []ExclusionRule, from, to coord.Artifact) (ExclusionRule, bool) {
	for _, rule := range rules {
		if rule.From.Matches(from) && rule.To.Matches(to) {
			return rule, true
		}
	}
	return ExclusionRule{}, false
}

func pathKey(p coord.DependencyPath) string {
	key := ""
	for _, step := range p.Steps() {
		key += step.Artifact.String() + ">"
	}
	return key
}
