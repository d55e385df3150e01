package forge

import (
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// TemplateWatcher invalidates dependency-cache entries when a template's
// package manifest changes on disk, so the next build re-syncs instead of
// reusing a stale tree.
type TemplateWatcher struct {
	w            *fsnotify.Watcher
	templatesDir string
	deps         *DepCache
	log          *slog.Logger
	done         chan struct{}
}

func WatchTemplates(templatesDir string, deps *DepCache, log *slog.Logger) (*TemplateWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	tw := &TemplateWatcher{
		w:            w,
		templatesDir: templatesDir,
		deps:         deps,
		log:          log,
		done:         make(chan struct{}),
	}
	for _, game := range Games() {
		tpl := Resolve(game)
		dir := path.Join(templatesDir, tpl.Dir)
		if err := w.Add(dir); err != nil {
			// Templates may be deployed lazily; a missing one is not fatal.
			log.Warn("template not watched", "dir", dir, "err", err)
		}
	}
	go tw.run()
	return tw, nil
}

func (tw *TemplateWatcher) run() {
	for {
		select {
		case e, ok := <-tw.w.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Base(e.Name) != "package.json" {
				continue
			}
			rel, err := filepath.Rel(tw.templatesDir, e.Name)
			if err != nil {
				continue
			}
			dir := strings.Split(filepath.ToSlash(rel), "/")[0]
			for _, game := range Games() {
				if tpl := Resolve(game); tpl.Dir == dir {
					tw.deps.Invalidate(tpl)
				}
			}
		case err, ok := <-tw.w.Errors:
			if !ok {
				return
			}
			tw.log.Warn("template watcher error", "err", err)
		case <-tw.done:
			return
		}
	}
}

func (tw *TemplateWatcher) Close() error {
	close(tw.done)
	return tw.w.Close()
}
