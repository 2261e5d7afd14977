package nload

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Watch runs r and then runs it again whenever a Go file in one of the
// loaded package directories changes.  Changes closer together than the
// configured debounce cause a single run.  Watch returns when ctx is done.
// onResult receives the outcome of every run; it may be nil.
func Watch(ctx context.Context, r *Runner, onResult func(*Result, error)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create file watcher")
	}
	defer fsw.Close()
	logger := r.logger()
	watched := make(map[string]bool)

	run := func() {
		result, err := r.Run(ctx)
		if onResult != nil {
			onResult(result, err)
		}
		if err != nil {
			logger.Warn("run failed", zap.Error(err))
		}
		if result == nil {
			return
		}
		for _, dir := range packageDirs(result.Packages) {
			if watched[dir] {
				continue
			}
			if err := fsw.Add(dir); err != nil {
				logger.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
				continue
			}
			watched[dir] = true
			logger.Debug("watching", zap.String("dir", dir))
		}
	}
	run()
	if len(watched) == 0 {
		// nothing loaded yet: watch the project directory so that the
		// first package to appear triggers a run
		if err := fsw.Add(r.Config.Dir); err != nil {
			return errors.Wrapf(err, "watch %s", r.Config.Dir)
		}
		watched[r.Config.Dir] = true
	}

	debounce := r.Config.Watch.Debounce
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			logger.Debug("file changed", zap.String("file", event.Name), zap.Stringer("op", event.Op))
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			run()
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher", zap.Error(err))
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	return filepath.Ext(event.Name) == ".go"
}

func packageDirs(pkgs []*Package) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range pkgs {
		if p.Dir != "" && !seen[p.Dir] {
			seen[p.Dir] = true
			dirs = append(dirs, p.Dir)
		}
	}
	sort.Strings(dirs)
	return dirs
}
