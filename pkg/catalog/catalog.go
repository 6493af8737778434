package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glsp-mcp/forge/pkg/apperr"
)

// Catalog maintains the live name -> Descriptor mapping over a watched
// root directory, per spec.md §4.B. Grounded on the teacher's
// orchestrator registries (a mutex-guarded map plus a change-notification
// channel) rather than any single file, since the teacher has no
// filesystem-discovery component of its own.
type Catalog struct {
	mu         sync.RWMutex
	watchPath  string
	components map[string]Descriptor

	watcher *watcher
	changes chan Change
}

// New creates a Catalog rooted at watchPath. Call Scan to populate it and
// StartWatch to start reacting to filesystem changes.
func New(watchPath string) *Catalog {
	return &Catalog{
		watchPath:  watchPath,
		components: make(map[string]Descriptor),
		changes:    make(chan Change, 64),
	}
}

// Changes returns the channel descriptor-change events are published on;
// the Execution Core subscribes to this for compilation-cache
// invalidation, per spec.md §4.B.
func (c *Catalog) Changes() <-chan Change {
	return c.changes
}

// Scan performs a full re-scan of the watched root, per spec.md §4.B
// "scan()". Descriptors for files no longer present are marked
// exists=false with removed_at_ts set rather than deleted, and
// descriptors for files seen again are re-asserted (exists=true,
// removed_at_ts cleared).
func (c *Catalog) Scan(ctx context.Context) (ScanResult, error) {
	found := make(map[string]Descriptor)

	err := filepath.WalkDir(c.watchPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, never fail the scan
		}
		if d.IsDir() || !looksLikeWasmBinary(path) {
			return nil
		}
		desc, derr := c.buildDescriptor(ctx, path)
		if derr != nil {
			slog.Warn("catalog: failed to build descriptor", "path", path, "error", derr)
			return nil
		}
		found[desc.Name] = desc
		return nil
	})
	if err != nil {
		return ScanResult{}, apperr.Wrap(apperr.KindLoadFailed, "walk watch path", err)
	}

	c.mu.Lock()
	now := time.Now()
	for name, desc := range found {
		prev, existed := c.components[name]
		if !existed {
			c.components[name] = desc
			c.publish(Change{Kind: ChangeAdded, Descriptor: desc, At: now})
			continue
		}
		if prev.ContentHash != desc.ContentHash || !prev.Exists {
			c.components[name] = desc
			c.publish(Change{Kind: ChangeModified, Descriptor: desc, At: now})
			continue
		}
		c.components[name] = desc
	}
	for name, prev := range c.components {
		if _, stillPresent := found[name]; stillPresent || !prev.Exists {
			continue
		}
		removedAt := now.UnixMicro()
		prev.Exists = false
		prev.RemovedAtTS = &removedAt
		c.components[name] = prev
		c.publish(Change{Kind: ChangeRemoved, Descriptor: prev, At: now})
	}

	components := make([]Descriptor, 0, len(c.components))
	available, missing := 0, 0
	for _, d := range c.components {
		components = append(components, d)
		if d.Exists {
			available++
		} else {
			missing++
		}
	}
	c.mu.Unlock()

	return ScanResult{
		Components: components,
		Summary:    Summary{Total: len(components), Available: available, Missing: missing},
	}, nil
}

func (c *Catalog) buildDescriptor(ctx context.Context, path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, err
	}
	sum := sha256.Sum256(data)
	name := componentNameFromPath(path)

	analysis, err := analyzeBinary(ctx, name, data)
	if err != nil {
		return Descriptor{}, err
	}

	return Descriptor{
		Name:         name,
		AbsolutePath: path,
		ContentHash:  hex.EncodeToString(sum[:]),
		Exists:       true,
		LastSeenTS:   time.Now().UnixMicro(),
		Imports:      analysis.Imports,
		Exports:      analysis.Exports,
		RawWIT:       analysis.RawWIT,
		Dependencies: analysis.Dependencies,
		WorldName:    analysis.WorldName,
	}, nil
}

func (c *Catalog) publish(ch Change) {
	select {
	case c.changes <- ch:
	default:
		slog.Warn("catalog: change channel full, dropping event", "kind", ch.Kind, "component", ch.Descriptor.Name)
	}
}

func componentNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func looksLikeWasmBinary(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wasm")
}

// Get returns the descriptor for an exact name match, per spec.md §4.B.
func (c *Catalog) Get(name string) (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.components[name]
	return d, ok
}

// FindFlexible performs a case-insensitive match treating '-' and '_' as
// equivalent, preferring an exact match on ambiguity, per spec.md §4.B.
func (c *Catalog) FindFlexible(name string) (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if d, ok := c.components[name]; ok {
		return d, true
	}

	normalized := normalizeComponentName(name)
	var match Descriptor
	found := false
	for candidateName, d := range c.components {
		if normalizeComponentName(candidateName) == normalized {
			match, found = d, true
		}
	}
	return match, found
}

func normalizeComponentName(name string) string {
	lower := strings.ToLower(name)
	return strings.NewReplacer("-", "_").Replace(lower)
}

// Analyze statically extracts interface information from the binary at
// path, per spec.md §4.B "analyze(path)". It never returns an error for
// a binary that merely isn't a component; see analyzeBinary.
func (c *Catalog) Analyze(ctx context.Context, path string) (Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Analysis{}, apperr.Wrap(apperr.KindLoadFailed, "read binary for analysis", err)
	}
	return analyzeBinary(ctx, componentNameFromPath(path), data)
}

// ChangeWatchPath atomically replaces the watched root, per spec.md §4.B
// "change_watch_path(path)". Prior watches are released: if a watcher is
// running, it is stopped and restarted against the new path.
func (c *Catalog) ChangeWatchPath(path string) error {
	c.mu.Lock()
	running := c.watcher != nil
	c.watchPath = path
	c.mu.Unlock()

	if running {
		c.StopWatch()
		return c.StartWatch()
	}
	return nil
}

// WatchPath returns the currently-watched root.
func (c *Catalog) WatchPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watchPath
}
