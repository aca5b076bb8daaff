package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sokinpui/diffkit/internal/ui"
)

// Action is what writing a file will do to it.
type Action string

const (
	ActionCreate Action = "create"
	ActionModify Action = "modify"
)

// PathResolver finds absolute paths for files.
type PathResolver struct {
	lookupDirs []string
}

// NewPathResolver creates a new PathResolver. With no lookup directories the
// working directory is used.
func NewPathResolver(lookupDirs []string) *PathResolver {
	if len(lookupDirs) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			// This is unlikely to fail, but if it does, it's a critical error.
			panic(fmt.Sprintf("could not get current working directory: %v", err))
		}
		return &PathResolver{lookupDirs: []string{wd}}
	}

	absDirs := make([]string, 0, len(lookupDirs))
	for _, dir := range lookupDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			ui.Warning("Invalid lookup directory '%s', ignoring: %v", dir, err)
			continue
		}
		absDirs = append(absDirs, abs)
	}
	if len(absDirs) == 0 {
		return NewPathResolver(nil)
	}
	return &PathResolver{lookupDirs: absDirs}
}

// Root is the first lookup directory, where new files are created.
func (r *PathResolver) Root() string {
	return r.lookupDirs[0]
}

// Resolve finds an absolute path, assuming a new file in the first lookup
// directory if it doesn't exist.
func (r *PathResolver) Resolve(relativePath string) string {
	if existing := r.ResolveExisting(relativePath); existing != "" {
		return existing
	}
	return filepath.Join(r.lookupDirs[0], relativePath)
}

// ResolveExisting finds an absolute path only if the file exists.
func (r *PathResolver) ResolveExisting(relativePath string) string {
	if filepath.IsAbs(relativePath) {
		if _, err := os.Stat(relativePath); err == nil {
			return relativePath
		}
		return ""
	}
	for _, dir := range r.lookupDirs {
		absPath := filepath.Join(dir, relativePath)
		if _, err := os.Stat(absPath); err == nil {
			return absPath
		}
	}
	return ""
}

// ReadFile reads a file through the resolver.
func (r *PathResolver) ReadFile(relativePath string) ([]byte, error) {
	path := r.ResolveExisting(relativePath)
	if path == "" {
		return nil, fmt.Errorf("%s: %w", relativePath, os.ErrNotExist)
	}
	return os.ReadFile(path)
}

// GetFileActionsAndDirs determines which files are new vs. modified and
// which directories need to be created.
func GetFileActionsAndDirs(targetPaths []string) (map[string]Action, map[string]struct{}) {
	fileActions := make(map[string]Action)
	dirsToCreate := make(map[string]struct{})

	for _, path := range targetPaths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fileActions[path] = ActionCreate
			dir := filepath.Dir(path)
			if dir != "." && dir != "/" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					dirsToCreate[dir] = struct{}{}
				}
			}
		} else {
			fileActions[path] = ActionModify
		}
	}
	return fileActions, dirsToCreate
}

// CreateDirs creates every directory in dirs, parents first.
func CreateDirs(dirs map[string]struct{}) error {
	if len(dirs) == 0 {
		return nil
	}

	sortedDirs := make([]string, 0, len(dirs))
	for dir := range dirs {
		sortedDirs = append(sortedDirs, dir)
	}
	sort.Strings(sortedDirs)

	for _, dir := range sortedDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating directory '%s': %w", dir, err)
		}
		ui.Debug("  -> Created directory: %s", dir)
	}
	return nil
}

// WriteFile writes content to path under the path's lock, keeping the mode
// of an existing file.
func WriteFile(locks *Locker, path, content string) error {
	unlock := locks.Lock(path)
	defer unlock()

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
