package settings

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/mukti-ai/studycore/internal/domain"
)

// File reads settings from a YAML file and reloads them when it changes.
// Fields missing from the file keep their defaults.
type File struct {
	path     string
	defaults domain.Settings
	logger   *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewFile creates a file-backed settings loader.
func NewFile(path string, defaults domain.Settings, logger *slog.Logger) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("settings path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &File{path: path, defaults: defaults, logger: logger}, nil
}

// Load reads the file.
func (f *File) Load() (domain.Settings, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(f.path), yaml.Parser()); err != nil {
		return domain.Settings{}, fmt.Errorf("load settings from %s: %w", f.path, err)
	}

	s := f.defaults
	if err := k.Unmarshal("", &s); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings from %s: %w", f.path, err)
	}
	if err := Validate(s); err != nil {
		return domain.Settings{}, fmt.Errorf("settings in %s: %w", f.path, err)
	}
	return s, nil
}

// Watch calls onChange with the new settings whenever the file is written
// or replaced. Invalid files are logged and skipped. Watching stops when ctx
// is done.
func (f *File) Watch(ctx context.Context, onChange func(domain.Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Editors often save by renaming over the file, so watch the directory.
	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	f.mu.Lock()
	f.watcher = watcher
	f.mu.Unlock()

	f.logger.Info("watching settings file for changes", slog.String("path", f.path))

	go func() {
		defer watcher.Close()

		target := filepath.Clean(f.path)
		for {
			select {
			case <-ctx.Done():
				f.logger.Debug("settings watch stopped")
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				s, err := f.Load()
				if err != nil {
					f.logger.Error("failed to reload settings",
						slog.String("error", err.Error()),
						slog.String("path", f.path))
					continue
				}
				f.logger.Info("settings file changed, reloaded", slog.String("path", event.Name))
				onChange(s)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Error("settings watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}

// Close stops watching.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.watcher != nil {
		return f.watcher.Close()
	}
	return nil
}
