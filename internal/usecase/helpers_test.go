package usecase

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/semmidev/pgkeep/internal/adapter/storage"
)

// recordingLogger keeps formatted lines in memory and doubles as the log tail.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Infof(format string, args ...interface{})  { l.add(format, args...) }
func (l *recordingLogger) Warnf(format string, args ...interface{})  { l.add(format, args...) }
func (l *recordingLogger) Errorf(format string, args ...interface{}) { l.add(format, args...) }

func (l *recordingLogger) Tail(n int) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) <= n {
		return append([]string(nil), l.lines...), nil
	}
	return append([]string(nil), l.lines[len(l.lines)-n:]...), nil
}

// index returns the position of the first line containing sub, or -1.
func (l *recordingLogger) index(sub string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, line := range l.lines {
		if strings.Contains(line, sub) {
			return i
		}
	}
	return -1
}

func (l *recordingLogger) count(sub string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			n++
		}
	}
	return n
}

func (l *recordingLogger) contains(sub string) bool {
	return l.index(sub) >= 0
}

// mockLocal adapts a MockStorage to LocalStorage.
type mockLocal struct {
	*storage.MockStorage
	base      string
	ensureErr error
}

func (m *mockLocal) GetPath(name string) string { return filepath.Join(m.base, name) }
func (m *mockLocal) EnsureDir() error           { return m.ensureErr }

// writeAged creates dir/name with an mtime the given number of days ago.
func writeAged(dir, name string, days int) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(name), 0644); err != nil {
		return err
	}
	mtime := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	return os.Chtimes(path, mtime, mtime)
}
