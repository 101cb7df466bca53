// Package archive opens JAR (and plain zip-layout) files and iterates
// their class entries. A JAR is just a zip archive, so the reader is
// grounded on the standard library's archive/zip: the format is a
// well-specified, self-contained binary layout with no JVM-specific
// semantics, so there is nothing a third-party parser buys over the
// stdlib implementation already shipped for exactly this format.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotAnArchive is returned when a path cannot be opened as a zip
// (and therefore JAR) archive.
var ErrNotAnArchive = errors.New("not a zip/jar archive")

// Entry names a class entry within an archive by its path inside the
// archive (e.g. "java/util/List.class") without the ".class" suffix.
type Entry struct {
	// InternalName is the class's JVM internal name, e.g. "java/util/List".
	InternalName string
	// ArchivePath is the raw entry name within the zip, e.g. "java/util/List.class".
	ArchivePath string
}

// Archive is an opened JAR file. Callers must Close it when done.
type Archive struct {
	path    string
	zr      *zip.ReadCloser
	entries map[string]*zip.File // InternalName -> zip entry
	order   []string             // InternalName, in zip directory order
}

// Open opens the archive at path. The returned Archive must be closed.
func Open(path string) (*Archive, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAnArchive, path, err)
	}
	entries := make(map[string]*zip.File)
	order := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		internalName := strings.TrimSuffix(f.Name, ".class")
		entries[internalName] = f
		order = append(order, internalName)
	}
	return &Archive{path: path, zr: zr, entries: entries, order: order}, nil
}

// Close releases the underlying file handle.
func (a *Archive) Close() error {
	return a.zr.Close()
}

// Path returns the filesystem path this archive was opened from.
func (a *Archive) Path() string {
	return a.path
}

// Has reports whether the archive contains a class with the given
// internal name, without opening it.
func (a *Archive) Has(internalName string) bool {
	_, ok := a.entries[internalName]
	return ok
}

// OpenClass returns a reader over the raw bytes of a class entry. The
// caller must close the returned reader.
func (a *Archive) OpenClass(internalName string) (io.ReadCloser, error) {
	f, ok := a.entries[internalName]
	if !ok {
		return nil, fmt.Errorf("class %s not found in %s", internalName, a.path)
	}
	return f.Open()
}

// Entries lists every class entry the archive contains, in zip
// directory order.
func (a *Archive) Entries() []Entry {
	out := make([]Entry, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, Entry{InternalName: name, ArchivePath: a.entries[name].Name})
	}
	return out
}
