package remote

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bilgisen/redflag-cms/internal/utils"
)

// MemoryTree is an in-process Tree with the same marker semantics as the
// GitHub backend. Directories exist implicitly while they hold a file.
type MemoryTree struct {
	mu      sync.RWMutex
	files   map[string][]byte
	baseURL string
	commits []string
}

func NewMemoryTree(baseURL string) *MemoryTree {
	return &MemoryTree{
		files:   make(map[string][]byte),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func cleanPath(p string) string {
	return strings.Trim(path.Clean("/"+p), "/")
}

func (m *MemoryTree) Get(ctx context.Context, p string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p = cleanPath(p)

	m.mu.RLock()
	defer m.mu.RUnlock()

	content, ok := m.files[p]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", p, ErrNotFound)
	}
	return &File{
		Path:    p,
		Content: append([]byte(nil), content...),
		SHA:     utils.GitBlobSHA(content),
	}, nil
}

func (m *MemoryTree) Put(ctx context.Context, p string, content []byte, message, sha string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p = cleanPath(p)

	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.files[p]
	switch {
	case exists && sha == "":
		return "", fmt.Errorf("put %s: file exists and no sha was supplied: %w", p, ErrConflict)
	case exists && sha != utils.GitBlobSHA(current):
		return "", fmt.Errorf("put %s: %w", p, ErrConflict)
	case !exists && sha != "":
		return "", fmt.Errorf("put %s: file no longer exists: %w", p, ErrConflict)
	}

	m.files[p] = append([]byte(nil), content...)
	m.commits = append(m.commits, message)
	return utils.GitBlobSHA(content), nil
}

func (m *MemoryTree) Delete(ctx context.Context, p, sha, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p = cleanPath(p)

	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.files[p]
	if !exists {
		return fmt.Errorf("delete %s: %w", p, ErrNotFound)
	}
	if sha != utils.GitBlobSHA(current) {
		return fmt.Errorf("delete %s: %w", p, ErrConflict)
	}
	delete(m.files, p)
	m.commits = append(m.commits, message)
	return nil
}

func (m *MemoryTree) List(ctx context.Context, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir = cleanPath(dir)
	prefix := dir + "/"
	if dir == "" {
		prefix = ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seenDirs := make(map[string]bool)
	var entries []Entry
	for p, content := range m.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			name := rest[:i]
			if !seenDirs[name] {
				seenDirs[name] = true
				entries = append(entries, Entry{Name: name, Path: prefix + name, IsDir: true})
			}
			continue
		}
		entry := Entry{
			Name: rest,
			Path: p,
			SHA:  utils.GitBlobSHA(content),
			Size: int64(len(content)),
		}
		if m.baseURL != "" {
			entry.DownloadURL = m.baseURL + "/" + p
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 && dir != "" {
		return nil, fmt.Errorf("list %s: %w", dir, ErrNotFound)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Commits returns the commit messages recorded so far, oldest first.
func (m *MemoryTree) Commits() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.commits...)
}
