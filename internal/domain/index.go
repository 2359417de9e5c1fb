package domain

import (
	"os"
	"strings"
	"sync"
)

// ArchiveSuffixes are the artifact filename suffixes recognized when
// rebuilding the index from an output directory.
var ArchiveSuffixes = []string{".tar.gz", ".whl", ".zip"}

// PackageKeyFromFilename derives the dedup key for an artifact filename:
// strip the archive suffix, truncate at the first version delimiter ("-"),
// lower-case. Returns "" for filenames without a recognized suffix.
//
// The heuristic is lossy for package names that themselves contain "-"
// (e.g. "typing-extensions" keys as "typing"), which can only cause a
// package to be re-downloaded, never to be wrongly skipped by a different
// exact name: membership tests are whole-key equality, not prefix matches.
func PackageKeyFromFilename(filename string) string {
	name := filename
	matched := false
	for _, suffix := range ArchiveSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			matched = true
			break
		}
	}
	if !matched {
		return ""
	}
	if i := strings.Index(name, "-"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return ""
	}
	return strings.ToLower(name)
}

// DownloadedSetIndex is the set of package-name keys already fetched into
// the output directory. It is built once at startup, consulted by every
// worker before resolving, and grown on every successful download. All
// access is serialized internally; the zero value is not usable, use
// NewDownloadedSetIndex or BuildDownloadedSetIndex.
type DownloadedSetIndex struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewDownloadedSetIndex creates an empty index.
func NewDownloadedSetIndex() *DownloadedSetIndex {
	return &DownloadedSetIndex{keys: make(map[string]struct{})}
}

// BuildDownloadedSetIndex scans dir for known archive files and seeds the
// index with their derived package keys.
func BuildDownloadedSetIndex(dir string) (*DownloadedSetIndex, error) {
	index := NewDownloadedSetIndex()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if key := PackageKeyFromFilename(entry.Name()); key != "" {
			index.keys[key] = struct{}{}
		}
	}
	return index, nil
}

// Contains reports whether name (case-insensitive) is already downloaded.
// The test is exact key equality, never a prefix match.
func (x *DownloadedSetIndex) Contains(name string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.keys[strings.ToLower(name)]
	return ok
}

// Add records name as downloaded. The set only ever grows; a key is never
// removed within or across runs.
func (x *DownloadedSetIndex) Add(name string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.keys[strings.ToLower(name)] = struct{}{}
}

// Len returns the number of known packages.
func (x *DownloadedSetIndex) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.keys)
}
