// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/tombee/tracebridge/internal/commands/shared"
	"github.com/tombee/tracebridge/internal/examples"
	"github.com/tombee/tracebridge/internal/log"
)

// debounce is how long a burst of writes must settle before a re-run.
const debounce = 150 * time.Millisecond

// rerunOps are the fsnotify operations that trigger a re-run. Chmod is
// ignored.
const rerunOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// watcher re-runs scripts when they change. It watches the directories
// holding them rather than the files, since editors often replace a file
// on save.
type watcher struct {
	fsw      *fsnotify.Watcher
	patterns []string
	logger   *slog.Logger
	debounce time.Duration
}

func newWatcher(args, scripts []string, logger *slog.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &watcher{
		fsw:      fsw,
		logger:   log.WithComponent(logger, "watch"),
		debounce: debounce,
	}

	dirs := make(map[string]bool)
	for _, arg := range args {
		if _, ok := examples.Resolve(arg); ok {
			continue
		}
		abs, err := filepath.Abs(arg)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		w.patterns = append(w.patterns, filepath.ToSlash(abs))
		if isGlob(arg) {
			base, _ := doublestar.SplitPattern(filepath.ToSlash(abs))
			dirs[filepath.FromSlash(base)] = true
		} else {
			dirs[filepath.Dir(abs)] = true
		}
	}
	for _, s := range scripts {
		if abs, err := filepath.Abs(s); err == nil {
			dirs[filepath.Dir(abs)] = true
		}
	}

	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Close stops watching.
func (w *watcher) Close() error {
	return w.fsw.Close()
}

// matches reports whether path is one of the scripts or glob arguments.
func (w *watcher) matches(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	abs = filepath.ToSlash(abs)
	for _, p := range w.patterns {
		if p == abs {
			return true
		}
		if ok, _ := doublestar.Match(p, abs); ok {
			return true
		}
	}
	return false
}

// wait blocks until a matching file changes and then stays quiet for the
// debounce interval. It returns the last changed path.
func (w *watcher) wait(ctx context.Context) (string, error) {
	var (
		changed string
		timer   <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return "", errors.New("file watcher closed")
			}
			if event.Op&rerunOps == 0 {
				continue
			}
			if !w.matches(event.Name) {
				w.logger.Debug("ignoring change", "path", event.Name, "op", event.Op.String())
				continue
			}
			changed = event.Name
			timer = time.After(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return "", errors.New("file watcher closed")
			}
			w.logger.Warn("file watcher error", "error", err)
		case <-timer:
			return changed, nil
		}
	}
}

// loop runs scripts, then re-runs them after every change until ctx is
// done. Failed runs are reported and watching continues.
func (w *watcher) loop(ctx context.Context, stderr io.Writer, args, scripts []string, run func([]string) error) error {
	for {
		if len(scripts) > 0 {
			if err := run(scripts); err != nil {
				shared.PrintError(stderr, err)
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		if !shared.GetQuiet() {
			fmt.Fprintln(stderr, shared.RenderLabel("Watching for changes (Ctrl-C to stop)"))
		}

		changed, err := w.wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		w.logger.Debug("change detected", "path", changed)

		scripts, err = expandScripts(args)
		if err != nil {
			shared.PrintError(stderr, err)
			scripts = nil
		}
	}
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
