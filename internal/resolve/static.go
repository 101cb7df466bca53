package resolve

import (
	"context"
	"fmt"

	"github.com/jvm-linkage/checker/internal/coord"
)

// StaticDeclarer backs Declarer with an in-memory, pre-resolved
// adjacency map. It exists because BOM fetching and artifact resolution
// from remote registries is explicitly out of the core's scope (spec
// §1): production embedders supply their own Declarer talking to a
// real dependency resolver, while tests and the bundled CLI's
// "offline" mode use this one, keyed by module-key so any version of a
// declared artifact resolves the same way.
type StaticDeclarer struct {
	edges map[coord.ModuleKey][]Declaration
}

// NewStaticDeclarer builds a StaticDeclarer from a module-key-keyed
// adjacency map.
func NewStaticDeclarer(edges map[coord.ModuleKey][]Declaration) *StaticDeclarer {
	copied := make(map[coord.ModuleKey][]Declaration, len(edges))
	for k, v := range edges {
		copied[k] = append([]Declaration{}, v...)
	}
	return &StaticDeclarer{edges: copied}
}

// DeclaredDependencies implements Declarer.
func (s *StaticDeclarer) DeclaredDependencies(_ context.Context, artifact coord.Artifact) ([]Declaration, error) {
	deps, ok := s.edges[artifact.ModuleKey()]
	if !ok {
		return nil, fmt.Errorf("resolve: no declared dependencies known for %s", artifact)
	}
	return deps, nil
}
