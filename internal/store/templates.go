package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"vibetex/internal/logging"

	"github.com/fsnotify/fsnotify"
)

//go:embed templates/*.tex
var defaultTemplates embed.FS

// ErrTemplateNotFound is returned by Get for unknown template names.
var ErrTemplateNotFound = errors.New("template not found")

var templateNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// TemplateLibrary serves the .tex templates in a directory. Reads are cached
// until Watch observes a change on disk.
type TemplateLibrary struct {
	dir string

	mu      sync.RWMutex
	names   []string
	content map[string]string

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// DefaultTemplateNames lists the templates shipped with vibetex.
func DefaultTemplateNames() []string {
	entries, _ := fs.ReadDir(defaultTemplates, "templates")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".tex"))
	}
	sort.Strings(names)
	return names
}

// NewTemplateLibrary opens dir, creating it and writing any missing default
// templates. Existing files are never overwritten.
func NewTemplateLibrary(dir string) (*TemplateLibrary, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create template dir: %w", err)
	}

	entries, err := fs.ReadDir(defaultTemplates, "templates")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		dst := filepath.Join(dir, e.Name())
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		data, err := defaultTemplates.ReadFile("templates/" + e.Name())
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to seed template %s: %w", e.Name(), err)
		}
		logging.StoreDebug("Seeded default template: %s", dst)
	}

	return &TemplateLibrary{dir: dir, content: make(map[string]string)}, nil
}

// Dir returns the directory backing the library.
func (l *TemplateLibrary) Dir() string { return l.dir }

// Names returns the available template names, sorted.
func (l *TemplateLibrary) Names() []string {
	l.mu.RLock()
	if l.names != nil {
		names := append([]string(nil), l.names...)
		l.mu.RUnlock()
		return names
	}
	l.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(l.dir, "*.tex"))
	if err != nil {
		logging.StoreWarn("Failed to list templates in %s: %v", l.dir, err)
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.ToLower(strings.TrimSuffix(filepath.Base(m), ".tex")))
	}
	sort.Strings(names)

	l.mu.Lock()
	l.names = names
	l.mu.Unlock()
	return append([]string(nil), names...)
}

// Get returns the content of the named template. Names are case-insensitive.
func (l *TemplateLibrary) Get(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !templateNameRe.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}

	l.mu.RLock()
	c, ok := l.content[name]
	l.mu.RUnlock()
	if ok {
		return c, nil
	}

	data, err := os.ReadFile(filepath.Join(l.dir, name+".tex"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", name, err)
	}

	l.mu.Lock()
	l.content[name] = string(data)
	l.mu.Unlock()
	return string(data), nil
}

// Invalidate drops all cached reads.
func (l *TemplateLibrary) Invalidate() {
	l.mu.Lock()
	l.names = nil
	l.content = make(map[string]string)
	l.mu.Unlock()
}

// Watch starts invalidating the cache whenever a .tex file in the directory
// changes. It returns immediately; Close stops the watcher.
func (l *TemplateLibrary) Watch(ctx context.Context) error {
	l.mu.Lock()
	if l.watcher != nil {
		l.mu.Unlock()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(l.dir); err != nil {
		w.Close()
		l.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}
	l.watcher = w
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.mu.Unlock()

	logging.Store("Watching templates in %s", l.dir)
	go l.run(ctx, w, l.stopCh, l.doneCh)
	return nil
}

func (l *TemplateLibrary) run(ctx context.Context, w *fsnotify.Watcher, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".tex") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logging.StoreDebug("Template change (%s): %s", event.Op, event.Name)
			l.Invalidate()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logging.StoreWarn("Template watcher error: %v", err)
		}
	}
}

// Close stops the watcher if one is running.
func (l *TemplateLibrary) Close() error {
	l.mu.Lock()
	w, stop, done := l.watcher, l.stopCh, l.doneCh
	l.watcher = nil
	l.mu.Unlock()
	if w == nil {
		return nil
	}
	close(stop)
	<-done
	return w.Close()
}
