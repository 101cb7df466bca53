// Package repository implements the class repository (spec §4.F):
// mapping an internal class name to its parsed class file and
// classpath entry, first-match-in-classpath-order, with lazy parsing,
// caching, and shadow tracking for later dependency-conflict
// attribution.
package repository

import (
	"container/list"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jvm-linkage/checker/internal/archive"
	"github.com/jvm-linkage/checker/internal/classfile"
	"github.com/jvm-linkage/checker/internal/classpath"
	"github.com/jvm-linkage/checker/internal/coord"
)

// systemPrefixes names the runtime-owned packages treated as always
// present and never shadowed (spec §4.F). The checker has no bootstrap
// classpath to consult, so member-level resolution against these
// classes is optimistic rather than verified; see Lookup.IsSystem.
var systemPrefixes = []string{"java/", "javax/", "jdk/", "sun/"}

// IsSystemClass reports whether name belongs to a runtime-owned package.
func IsSystemClass(internalName string) bool {
	for _, p := range systemPrefixes {
		if strings.HasPrefix(internalName, p) {
			return true
		}
	}
	return false
}

// Lookup is the result of a successful FindClass call.
type Lookup struct {
	ClassFile *classfile.ClassFile
	Entry     classpath.Entry
	// IsSystem marks a synthetic lookup for a runtime-owned class that
	// was never actually parsed from an archive (spec §4.F: "always
	// present, never shadowed"). ClassFile carries only ThisClass in
	// this case; member resolution against it must be optimistic.
	IsSystem bool
}

// ShadowEntry is a classpath entry other than the selected one that
// also provides a given class name, used by the cause attributor to
// recognize dependency-conflict-induced problems (spec §4.H).
type ShadowEntry struct {
	Artifact    coord.Artifact
	ArchivePath string
}

// Repository is the spec's class repository, backed by a resolved
// classpath. It is safe for concurrent use: FindClass callers racing
// on the same name observe at-most-one parse (via singleflight), and
// archive handles are shared through a bounded LRU.
type Repository struct {
	selected   []classpath.Entry
	unselected map[coord.ModuleKey][]classpath.Alternative
	locator    classpath.ArchiveLocator

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]Lookup // internalName -> result; a miss is cached as a Lookup with a nil ClassFile

	archives *archiveLRU
}

// New builds a Repository from a classpath builder result. locator
// resolves the coordinates of unselected alternatives to archive paths
// on demand for shadow checks; it need not agree with the paths
// already recorded in result.Entries.
func New(result classpath.Result, locator classpath.ArchiveLocator, maxOpenArchives int) *Repository {
	return &Repository{
		selected:   result.Entries,
		unselected: result.Unselected,
		locator:    locator,
		cache:      make(map[string]Lookup),
		archives:   newArchiveLRU(maxOpenArchives),
	}
}

// Close releases every archive handle the repository has opened.
func (r *Repository) Close() error {
	return r.archives.closeAll()
}

// FindClass resolves an internal class name to its parsed class file
// and the classpath entry that provided it, scanning the classpath in
// selection order and stopping at the first match (spec §4.F).
func (r *Repository) FindClass(ctx context.Context, internalName string) (Lookup, bool, error) {
	if IsSystemClass(internalName) {
		return Lookup{ClassFile: &classfile.ClassFile{ThisClass: internalName}, IsSystem: true}, true, nil
	}

	r.mu.Lock()
	if cached, ok := r.cache[internalName]; ok {
		r.mu.Unlock()
		return cached, cached.ClassFile != nil, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(internalName, func() (any, error) {
		// Re-check and fill the cache inside the flight, so a caller that
		// missed the cache just before an earlier flight finished does
		// not parse the same name again.
		r.mu.Lock()
		cached, ok := r.cache[internalName]
		r.mu.Unlock()
		if ok {
			return cached, nil
		}
		lookup, err := r.parseFromClasspath(ctx, internalName)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[internalName] = lookup
		r.mu.Unlock()
		return lookup, nil
	})
	if err != nil {
		return Lookup{}, false, err
	}
	lookup := v.(Lookup)

	return lookup, lookup.ClassFile != nil, nil
}

func (r *Repository) parseFromClasspath(ctx context.Context, internalName string) (Lookup, error) {
	for _, entry := range r.selected {
		if err := ctx.Err(); err != nil {
			return Lookup{}, err
		}
		a, err := r.archives.open(entry.ArchivePath)
		if err != nil {
			continue // archive vanished or is unreadable; treat as absent there
		}
		if !a.Has(internalName) {
			continue
		}
		rc, err := a.OpenClass(internalName)
		if err != nil {
			continue
		}
		cf, err := classfile.Parse(rc)
		closeErr := rc.Close()
		if err != nil {
			return Lookup{}, fmt.Errorf("parse %s from %s: %w", internalName, entry.ArchivePath, err)
		}
		if closeErr != nil {
			return Lookup{}, fmt.Errorf("close %s in %s: %w", internalName, entry.ArchivePath, closeErr)
		}
		cf.SourceArchive = entry.Artifact
		return Lookup{ClassFile: cf, Entry: entry}, nil
	}
	return Lookup{}, nil
}

// FindShadows reports every unselected classpath alternative that also
// provides internalName, ordered by module key and, within one module
// key, in the order its alternatives lost selection. Only presence of
// the class is checked; its members are not inspected. Results are
// consulted by the cause attributor (spec §4.H)
// to distinguish a true missing-class problem from one a version
// conflict merely hid.
func (r *Repository) FindShadows(ctx context.Context, internalName string) ([]ShadowEntry, error) {
	if IsSystemClass(internalName) {
		return nil, nil
	}

	keys := make([]coord.ModuleKey, 0, len(r.unselected))
	for key := range r.unselected {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var shadows []ShadowEntry
	for _, key := range keys {
		for _, alt := range r.unselected[key] {
			if err := ctx.Err(); err != nil {
				return shadows, err
			}
			path, err := r.locator.Locate(alt.CandidateArtifact)
			if err != nil {
				continue
			}
			a, err := r.archives.open(path)
			if err != nil {
				continue
			}
			if a.Has(internalName) {
				shadows = append(shadows, ShadowEntry{Artifact: alt.CandidateArtifact, ArchivePath: path})
			}
		}
	}
	return shadows, nil
}

// Preload parses every named class up front, fanned out across at
// most maxParsers concurrent goroutines (spec §5: class-file parsing
// is "embarrassingly parallel across classpath entries"). It warms the
// cache; callers still go through FindClass afterward. A zero or
// negative maxParsers disables the bound (errgroup's default).
func (r *Repository) Preload(ctx context.Context, internalNames []string, maxParsers int) error {
	g, ctx := errgroup.WithContext(ctx)
	if maxParsers > 0 {
		g.SetLimit(maxParsers)
	}
	for _, name := range internalNames {
		name := name
		g.Go(func() error {
			_, _, err := r.FindClass(ctx, name)
			return err
		})
	}
	return g.Wait()
}

// archiveLRU bounds the number of concurrently open archive.Archive
// handles, reopening on demand once evicted (spec §5, maxOpenArchives).
type archiveLRU struct {
	mu       sync.Mutex
	max      int
	order    *list.List // front = most recently used
	elements map[string]*list.Element
	opening  singleflight.Group
}

type archiveLRUEntry struct {
	path string
	a    *archive.Archive
}

func newArchiveLRU(max int) *archiveLRU {
	if max <= 0 {
		max = 64
	}
	return &archiveLRU{max: max, order: list.New(), elements: make(map[string]*list.Element)}
}

func (c *archiveLRU) open(path string) (*archive.Archive, error) {
	v, err, _ := c.opening.Do(path, func() (any, error) {
		c.mu.Lock()
		if el, ok := c.elements[path]; ok {
			c.order.MoveToFront(el)
			a := el.Value.(*archiveLRUEntry).a
			c.mu.Unlock()
			return a, nil
		}
		c.mu.Unlock()

		a, err := archive.Open(path)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		el := c.order.PushFront(&archiveLRUEntry{path: path, a: a})
		c.elements[path] = el
		c.evictLocked()
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*archive.Archive), nil
}

// evictLocked closes and drops the least-recently-used archive once
// the cache exceeds its bound. Caller must hold c.mu.
func (c *archiveLRU) evictLocked() {
	for c.order.Len() > c.max {
		oldest := c.order.Back()
		if oldest == nil {
			return
		}
		entry := oldest.Value.(*archiveLRUEntry)
		c.order.Remove(oldest)
		delete(c.elements, entry.path)
		entry.a.Close()
	}
}

func (c *archiveLRU) closeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for el := c.order.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*archiveLRUEntry)
		if err := entry.a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.order.Init()
	c.elements = make(map[string]*list.Element)
	return firstErr
}
