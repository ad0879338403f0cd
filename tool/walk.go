package tool

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/moyoez/cloudsend/types"
)

// LocalFile is upload content backed by a file on disk. The file is opened on
// first read so walking a large tree does not hold one descriptor per entry.
// ReadAt is safe for concurrent use.
type LocalFile struct {
	Path string

	once sync.Once
	f    *os.File
	err  error
	mu   sync.Mutex
}

func (l *LocalFile) open() {
	l.once.Do(func() {
		l.f, l.err = os.Open(l.Path)
	})
}

func (l *LocalFile) ReadAt(p []byte, off int64) (int, error) {
	l.open()
	l.mu.Lock()
	f, err := l.f, l.err
	l.mu.Unlock()
	if f == nil {
		if err == nil {
			err = os.ErrClosed
		}
		return 0, err
	}
	return f.ReadAt(p, off)
}

// Close releases the descriptor if it was ever opened.
func (l *LocalFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.once.Do(func() { l.err = os.ErrClosed })
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	l.err = os.ErrClosed
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

// CollectEntries flattens files and folder trees into upload entries.
// A file contributes its base name; a folder contributes every regular file
// beneath it, prefixed with the folder's own name ("docs/2024/report.pdf").
// Symlinked files are followed, symlinked folders are not.
func CollectEntries(paths []string) ([]types.UploadEntry, error) {
	entries := make([]types.UploadEntry, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %v", p, err)
		}
		if !info.IsDir() {
			if !info.Mode().IsRegular() {
				return nil, fmt.Errorf("%s is not a regular file", p)
			}
			entries = append(entries, types.UploadEntry{
				Content:      &LocalFile{Path: p},
				RelativePath: filepath.Base(p),
				SizeBytes:    info.Size(),
			})
			continue
		}
		if isFilesystemRoot(p) {
			return nil, fmt.Errorf("%s is a filesystem root; choose a folder inside it", p)
		}
		walked, err := walkFolder(p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, walked...)
	}
	return entries, nil
}

// isFilesystemRoot reports whether p has no folder name of its own to prefix
// entries with, such as "/" or "C:\".
func isFilesystemRoot(p string) bool {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = filepath.Clean(p)
	}
	return abs == filepath.VolumeName(abs)+string(filepath.Separator)
}

func walkFolder(root string) ([]types.UploadEntry, error) {
	root = filepath.Clean(root)
	prefix := filepath.Base(root)
	var entries []types.UploadEntry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := os.Stat(p)
		if err != nil {
			DefaultLogger.Warnf("[Walk] Skipping %s: %v", p, err)
			return nil
		}
		if !info.Mode().IsRegular() {
			DefaultLogger.Debugf("[Walk] Skipping non-regular file %s", p)
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		entries = append(entries, types.UploadEntry{
			Content:      &LocalFile{Path: p},
			RelativePath: path.Join(prefix, filepath.ToSlash(rel)),
			SizeBytes:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk folder %s: %v", root, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RelativePath < entries[j].RelativePath
	})
	DefaultLogger.Debugf("[Walk] Collected %d files from %s", len(entries), root)
	return entries, nil
}

// CloseEntries closes every entry whose content holds a resource.
func CloseEntries(entries []types.UploadEntry) {
	for _, entry := range entries {
		if closer, ok := entry.Content.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				DefaultLogger.Warnf("[Walk] Failed to close %s: %v", entry.RelativePath, err)
			}
		}
	}
}

// TotalSize sums the sizes of entries.
func TotalSize(entries []types.UploadEntry) int64 {
	var total int64
	for _, entry := range entries {
		total += entry.SizeBytes
	}
	return total
}
