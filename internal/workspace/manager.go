package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/vibecast/internal/models"
)

// ErrInvalidJobID is returned for identifiers that are not UUIDs. Only UUIDs
// are ever used as directory names, so nothing outside the root is reachable.
var ErrInvalidJobID = errors.New("invalid job id")

// Workspace is one job's exclusive scratch directory.
type Workspace struct {
	JobID uuid.UUID
	Dir   string
}

// Path returns name joined onto the workspace directory.
func (w Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// ReclaimResult summarizes a reclamation sweep.
type ReclaimResult struct {
	Removed    int
	FreedBytes int64
}

// Manager owns the scratch root. Every direct child directory of the root is
// a workspace; dot-files (the gate lock) are never touched.
type Manager struct {
	root string
}

// NewManager creates the scratch root if needed.
func NewManager(root string) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scratch root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch root: %w", err)
	}
	log.Printf("[Workspace] scratch root ready: %s", abs)
	return &Manager{root: abs}, nil
}

func (m *Manager) Root() string {
	return m.root
}

// Allocate creates the workspace directory for jobID.
func (m *Manager) Allocate(jobID uuid.UUID) (Workspace, error) {
	dir := filepath.Join(m.root, jobID.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Workspace{}, fmt.Errorf("failed to allocate workspace: %w", err)
	}
	return Workspace{JobID: jobID, Dir: dir}, nil
}

// Lookup returns the path of name inside the workspace of rawJobID. It fails
// with ErrInvalidJobID or an fs.ErrNotExist-wrapping error.
func (m *Manager) Lookup(rawJobID, name string) (string, error) {
	id, err := uuid.Parse(rawJobID)
	if err != nil {
		return "", ErrInvalidJobID
	}
	path := filepath.Join(m.root, id.String(), filepath.Base(name))
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s: %w", path, fs.ErrNotExist)
	}
	return path, nil
}

// ReclaimAll deletes every workspace under the root.
func (m *Manager) ReclaimAll() (ReclaimResult, error) {
	return m.reclaim(func(os.FileInfo) bool { return true })
}

// ReclaimOlderThan deletes workspaces whose directory was last modified more
// than maxAge ago.
func (m *Manager) ReclaimOlderThan(maxAge time.Duration) (ReclaimResult, error) {
	cutoff := time.Now().Add(-maxAge)
	return m.reclaim(func(info os.FileInfo) bool { return info.ModTime().Before(cutoff) })
}

func (m *Manager) reclaim(match func(os.FileInfo) bool) (ReclaimResult, error) {
	var result ReclaimResult

	entries, err := m.workspaces()
	if err != nil {
		return result, err
	}

	var errs []error
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || !match(info) {
			continue
		}
		dir := filepath.Join(m.root, entry.Name())
		size := dirSize(dir)
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", entry.Name(), err))
			continue
		}
		result.Removed++
		result.FreedBytes += size
	}

	if result.Removed > 0 {
		log.Printf("[Workspace] reclaimed %d workspaces, %.2fMB freed",
			result.Removed, float64(result.FreedBytes)/(1024*1024))
	}
	return result, errors.Join(errs...)
}

// Info reports total bytes and the number of workspaces under the root.
func (m *Manager) Info() (models.WorkspaceInfo, error) {
	info := models.WorkspaceInfo{Root: m.root}

	entries, err := m.workspaces()
	if err != nil {
		return info, err
	}
	for _, entry := range entries {
		info.Workspaces++
		info.TotalBytes += dirSize(filepath.Join(m.root, entry.Name()))
	}
	return info, nil
}

func (m *Manager) workspaces() ([]os.DirEntry, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read scratch root: %w", err)
	}
	dirs := entries[:0]
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			dirs = append(dirs, entry)
		}
	}
	return dirs, nil
}

func dirSize(dir string) int64 {
	var total int64
	filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip entries we can't access
		}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
