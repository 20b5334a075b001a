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

//go:build !tracebridge_off && !tracebridge_native

package run

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWatcher(t *testing.T, args ...string) *watcher {
	t.Helper()
	scripts, err := expandScripts(args)
	if err != nil {
		t.Fatalf("expandScripts: %v", err)
	}
	w, err := newWatcher(args, scripts, discardLogger())
	if err != nil {
		t.Fatalf("newWatcher: %v", err)
	}
	w.debounce = 20 * time.Millisecond
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWatcher_Matches(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "main.js", "1")
	if err := os.MkdirAll(filepath.Join(dir, "lib"), 0755); err != nil {
		t.Fatal(err)
	}
	writeScript(t, filepath.Join(dir, "lib"), "util.js", "2")

	w := newTestWatcher(t, script, filepath.Join(dir, "lib", "*.js"))

	tests := []struct {
		path string
		want bool
	}{
		{script, true},
		{filepath.Join(dir, "lib", "util.js"), true},
		{filepath.Join(dir, "lib", "new.js"), true},
		{filepath.Join(dir, "lib", "notes.txt"), false},
		{filepath.Join(dir, "other.js"), false},
	}
	for _, tt := range tests {
		if got := w.matches(tt.path); got != tt.want {
			t.Errorf("matches(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWatcher_WaitDebounces(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "main.js", "1")
	w := newTestWatcher(t, script)

	go func() {
		for i := 0; i < 3; i++ {
			time.Sleep(5 * time.Millisecond)
			_ = os.WriteFile(script, []byte("2"), 0644)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	changed, err := w.wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if filepath.Base(changed) != "main.js" {
		t.Errorf("expected main.js, got %q", changed)
	}
}

func TestWatcher_WaitIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "main.js", "1")
	w := newTestWatcher(t, script)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := w.wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestWatcher_LoopReruns(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "main.js", "1")
	w := newTestWatcher(t, script)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runs := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.loop(ctx, io.Discard, []string{script}, []string{script}, func(s []string) error {
			runs <- s
			return nil
		})
	}()

	<-runs
	// Give the loop time to start waiting before the write.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(script, []byte("2"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-runs:
		if len(s) != 1 || s[0] != script {
			t.Errorf("unexpected re-run scripts %v", s)
		}
	case <-ctx.Done():
		t.Fatal("script was not re-run")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("loop should stop cleanly on cancel, got %v", err)
	}
}
