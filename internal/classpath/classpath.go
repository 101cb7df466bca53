// Package classpath implements the classpath builder (spec §4.C):
// reducing a resolved dependency graph to an ordered, deduplicated
// sequence of archive entries, recording selected-vs-unselected
// version conflicts for later blame attribution.
package classpath

import (
	"github.com/jvm-linkage/checker/internal/coord"
	"github.com/jvm-linkage/checker/internal/resolve"
)

// Entry pairs a resolved artifact with the local archive file that
// backs it on disk.
type Entry struct {
	Artifact    coord.Artifact
	ArchivePath string
}

// Alternative records a candidate artifact that lost version selection
// to another module-equal artifact already on the classpath.
type Alternative struct {
	ModuleKey          coord.ModuleKey
	SelectedArtifact   coord.Artifact
	SelectedPath       coord.DependencyPath
	CandidateArtifact  coord.Artifact
	CandidatePath      coord.DependencyPath
}

// Result is the classpath builder's output: the ordered classpath, the
// dependency path that justified each selection, and every unselected
// alternative keyed by module-key.
type Result struct {
	Entries        []Entry
	SelectedPaths  map[coord.ModuleKey]coord.DependencyPath
	Unselected     map[coord.ModuleKey][]Alternative
	ExtraEntries   []Entry
}

// ArchiveLocator resolves an artifact's coordinates to a local archive
// file path. The core has no opinion on how archives land on disk
// (download cache layout, local Maven repository, vendored directory);
// it only requires this lookup.
type ArchiveLocator interface {
	Locate(artifact coord.Artifact) (string, error)
}

// Build walks the resolver's node sequence in emission order and,
// for each candidate artifact, either appends it to the classpath (the
// first time its module-key is seen) or records it as an unselected
// alternative. Extra classpath entries supplied outside the resolved
// graph are appended after the graph-derived entries and always win
// their own module-key slot, since they represent an explicit override
// by the caller (spec §6, "optional extra classpath entries").
func Build(nodes []resolve.Node, locator ArchiveLocator, extra []Entry) (Result, error) {
	result := Result{
		SelectedPaths: make(map[coord.ModuleKey]coord.DependencyPath),
		Unselected:    make(map[coord.ModuleKey][]Alternative),
	}

	extraKeys := make(map[coord.ModuleKey]struct{}, len(extra))
	for _, e := range extra {
		extraKeys[e.Artifact.ModuleKey()] = struct{}{}
	}

	for _, node := range nodes {
		key := node.Artifact.ModuleKey()
		if _, isExtra := extraKeys[key]; isExtra {
			continue
		}
		if selectedPath, exists := result.SelectedPaths[key]; exists {
			selectedArtifact := result.selectedArtifact(key)
			result.Unselected[key] = append(result.Unselected[key], Alternative{
				ModuleKey:         key,
				SelectedArtifact:  selectedArtifact,
				SelectedPath:      selectedPath,
				CandidateArtifact: node.Artifact,
				CandidatePath:     node.Path,
			})
			continue
		}
		archivePath, err := locator.Locate(node.Artifact)
		if err != nil {
			// The artifact is in the graph but no archive is available
			// locally: it simply does not occupy a classpath slot, and
			// references into it surface later as ClassNotFound.
			continue
		}
		result.Entries = append(result.Entries, Entry{Artifact: node.Artifact, ArchivePath: archivePath})
		result.SelectedPaths[key] = node.Path
	}

	for _, e := range extra {
		archivePath := e.ArchivePath
		if archivePath == "" {
			located, err := locator.Locate(e.Artifact)
			if err != nil {
				continue
			}
			archivePath = located
		}
		entry := Entry{Artifact: e.Artifact, ArchivePath: archivePath}
		result.Entries = append(result.Entries, entry)
		result.ExtraEntries = append(result.ExtraEntries, entry)
	}

	return result, nil
}

func (r Result) selectedArtifact(key coord.ModuleKey) coord.Artifact {
	for _, e := range r.Entries {
		if e.Artifact.ModuleKey() == key {
			return e.Artifact
		}
	}
	return coord.Artifact{}
}

// Selected reports whether an artifact's module-key won classpath
// selection and returns the winning entry.
func (r Result) Selected(moduleKey coord.ModuleKey) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Artifact.ModuleKey() == moduleKey {
			return e, true
		}
	}
	return Entry{}, false
}
