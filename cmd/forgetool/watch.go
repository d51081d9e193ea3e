package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-forge/internal/logger"
	"github.com/Faultbox/midgard-forge/internal/project"
)

func cmdWatch(args []string) error {
	cfg, manifest, err := parseBuildFlags("watch", args)
	if err != nil {
		return err
	}
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	manifest, err = filepath.Abs(manifest)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	inputs := newInputSet(manifest)
	rebuild := func() {
		m, err := s.run(ctx, manifest)
		if err != nil {
			logger.Error("build failed", zap.Error(err))
		}
		inputs.update(w, m)
	}
	rebuild()

	logger.Info("watching for changes", zap.String("manifest", manifest))

	debounce := cfg.Build.WatchDebounce
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !inputs.has(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			logger.Debug("input changed", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		case <-timer.C:
			rebuild()
		}
	}
}

// inputSet tracks the files a build read. Directories are watched rather
// than files so editors that replace files on save are still seen.
type inputSet struct {
	manifest string
	files    map[string]bool
	dirs     map[string]bool
}

func newInputSet(manifest string) *inputSet {
	return &inputSet{
		manifest: manifest,
		files:    map[string]bool{manifest: true},
		dirs:     make(map[string]bool),
	}
}

func (s *inputSet) has(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	return s.files[abs]
}

// update replaces the tracked files with those referenced by m. A nil m
// (unparsable manifest) keeps watching the manifest alone.
func (s *inputSet) update(w *fsnotify.Watcher, m *project.Manifest) {
	files := map[string]bool{s.manifest: true}
	if m != nil {
		for _, f := range m.Files() {
			if abs, err := filepath.Abs(f); err == nil {
				files[abs] = true
			}
		}
	}
	s.files = files

	for f := range files {
		dir := filepath.Dir(f)
		if s.dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			logger.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		s.dirs[dir] = true
	}
}
