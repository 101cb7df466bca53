package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jvm-linkage/checker/internal/coord"
)

// DirLocator resolves artifacts to files laid out under a root
// directory following the local Maven repository convention:
// <root>/<group-with-slashes>/<name>/<version>/<name>-<version>[-<classifier>].<extension>.
type DirLocator struct {
	Root string
}

// Locate implements classpath.ArchiveLocator.
func (d DirLocator) Locate(artifact coord.Artifact) (string, error) {
	groupPath := filepath.Join(splitGroup(artifact.Group)...)
	fileName := artifact.Name + "-" + artifact.Version
	if artifact.Classifier != "" {
		fileName += "-" + artifact.Classifier
	}
	ext := artifact.Extension
	if ext == "" {
		ext = "jar"
	}
	fileName += "." + ext

	path := filepath.Join(d.Root, groupPath, artifact.Name, artifact.Version, fileName)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("locate %s: %w", artifact, err)
	}
	return path, nil
}

func splitGroup(group string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(group); i++ {
		if group[i] == '.' {
			parts = append(parts, group[start:i])
			start = i + 1
		}
	}
	parts = append(parts, group[start:])
	return parts
}

// MapLocator is a fixed lookup table from module key to archive path,
// used by tests and by callers that have already resolved a complete
// artifact-to-file mapping outside this package.
type MapLocator map[coord.ModuleKey]string

// Locate implements classpath.ArchiveLocator.
func (m MapLocator) Locate(artifact coord.Artifact) (string, error) {
	path, ok := m[artifact.ModuleKey()]
	if !ok {
		return "", fmt.Errorf("no archive known for %s", artifact)
	}
	return path, nil
}
