package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func goOnly(path string) bool { return strings.HasSuffix(path, ".go") }

func TestNewWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		debounce time.Duration
		want     time.Duration
	}{
		{"default debounce", 0, defaultDebounce},
		{"custom debounce", time.Second, time.Second},
		{"negative debounce defaults", -time.Second, defaultDebounce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWatcher(tmpDir, Options{Debounce: tt.debounce})
			if err != nil {
				t.Fatalf("NewWatcher() error = %v", err)
			}
			defer w.Stop()

			if w.debounce != tt.want {
				t.Errorf("debounce = %v, want %v", w.debounce, tt.want)
			}
			if w.pending == nil {
				t.Error("pending map should be initialized")
			}
			if !w.accept("anything") || w.skipDir("anything") {
				t.Error("nil filters should accept everything")
			}
		})
	}
}

func TestWatcher_addTree(t *testing.T) {
	tmpDir := t.TempDir()
	for _, dir := range []string{"pkg", "vendor", filepath.Join("pkg", "sub")} {
		if err := os.MkdirAll(filepath.Join(tmpDir, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}

	w, err := NewWatcher(tmpDir, Options{SkipDir: func(name string) bool { return name == "vendor" }})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if err := w.addTree(tmpDir); err != nil {
		t.Fatalf("addTree() error = %v", err)
	}

	watched := make(map[string]bool)
	for _, d := range w.WatchedDirs() {
		watched[d] = true
	}
	for _, want := range []string{tmpDir, filepath.Join(tmpDir, "pkg"), filepath.Join(tmpDir, "pkg", "sub")} {
		if !watched[want] {
			t.Errorf("%s should be watched", want)
		}
	}
	if watched[filepath.Join(tmpDir, "vendor")] {
		t.Error("vendor should be skipped")
	}
}

func TestWatcher_handleEvent(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := NewWatcher(tmpDir, Options{Debounce: time.Second, Accept: goOnly})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	tests := []struct {
		name        string
		op          fsnotify.Op
		file        string
		wantPending bool
	}{
		{"write event", fsnotify.Write, "test.go", true},
		{"create event", fsnotify.Create, "new.go", true},
		{"remove event", fsnotify.Remove, "removed.go", true},
		{"rename event", fsnotify.Rename, "moved.go", true},
		{"chmod event ignored", fsnotify.Chmod, "changed.go", false},
		{"rejected file ignored", fsnotify.Write, "readme.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w.mu.Lock()
			w.pending = make(map[string]time.Time)
			w.mu.Unlock()

			path := filepath.Join(tmpDir, tt.file)
			w.handleEvent(fsnotify.Event{Name: path, Op: tt.op})

			w.mu.Lock()
			_, found := w.pending[path]
			w.mu.Unlock()

			if found != tt.wantPending {
				t.Errorf("pending[%v] = %v, want %v", path, found, tt.wantPending)
			}
		})
	}
}

func TestWatcher_handleEvent_NewDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := NewWatcher(tmpDir, Options{Accept: goOnly})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	dir := filepath.Join(tmpDir, "added")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	w.handleEvent(fsnotify.Event{Name: dir, Op: fsnotify.Create})

	found := false
	for _, d := range w.WatchedDirs() {
		if d == dir {
			found = true
		}
	}
	if !found {
		t.Errorf("new directory %s should be watched", dir)
	}
	if len(w.pending) != 0 {
		t.Error("directories are not reported as changes")
	}
}

func TestWatcher_ready(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := NewWatcher(tmpDir, Options{Debounce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	now := time.Now()
	old := now.Add(-100 * time.Millisecond)
	w.mu.Lock()
	w.pending["b.go"] = old
	w.pending["a.go"] = old
	w.pending["fresh.go"] = now
	w.mu.Unlock()

	got := w.ready(now)
	if want := []string{"a.go", "b.go"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ready() = %v, want %v", got, want)
	}

	w.mu.Lock()
	_, stillPending := w.pending["fresh.go"]
	remaining := len(w.pending)
	w.mu.Unlock()
	if !stillPending || remaining != 1 {
		t.Error("only the unsettled file should remain pending")
	}
}

func TestWatcher_Start_ReportsBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("filesystem notifications")
	}
	tmpDir := t.TempDir()

	w, err := NewWatcher(tmpDir, Options{Debounce: 50 * time.Millisecond, Accept: goOnly})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	var (
		mu      sync.Mutex
		batches [][]string
	)
	done := make(chan struct{}, 1)
	w.SetCallback(func(paths []string) {
		mu.Lock()
		batches = append(batches, paths)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx) }()

	// give Start time to register the root
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(tmpDir, "main.go"), []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("no change reported")
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Start() = %v, want context.Canceled", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(batches) == 0 || batches[0][0] != filepath.Join(tmpDir, "main.go") {
		t.Errorf("batches = %v", batches)
	}
}

func TestWatcher_Stop(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
