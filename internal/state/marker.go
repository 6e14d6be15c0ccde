package state

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Marker is the daemon's on-disk process identity record. Presence of a
// live, matching pid is the sole liveness signal; a stale marker reads as
// not-running, never as an error.
type Marker struct {
	path string
}

// NewMarker returns a marker backed by the given pid file path.
func NewMarker(path string) *Marker {
	return &Marker{path: path}
}

// Path returns the pid file location.
func (m *Marker) Path() string {
	return m.path
}

// Write records the given pid, or the current process when pid is zero.
func (m *Marker) Write(pid int) error {
	if pid == 0 {
		pid = os.Getpid()
	}
	value := strconv.Itoa(pid) + "\n"
	if err := os.WriteFile(m.path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write pid file %q: %w", m.path, err)
	}
	return nil
}

// Read returns the recorded pid, or zero when no marker exists or it is unreadable.
func (m *Marker) Read() int {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// Remove deletes the marker. Removing an absent marker is a no-op.
func (m *Marker) Remove() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file %q: %w", m.path, err)
	}
	return nil
}

// Alive reports whether the recorded process is still running. A marker whose
// process is gone is cleaned up and reported as not alive.
func (m *Marker) Alive() bool {
	pid := m.Read()
	if pid == 0 {
		return false
	}
	if processAlive(pid) {
		return true
	}
	// Stale marker from a dead process.
	_ = m.Remove()
	return false
}

func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to another user.
	return errors.Is(err, unix.EPERM)
}
