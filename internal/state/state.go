// Package state keeps an undo/redo history of the files diffkit writes.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sokinpui/diffkit/internal/fs"
)

const (
	stateDirName  = ".diffkit"
	stateFileName = "state"
	objectsDir    = "objects"
	// noContent stands for the missing "before" of a created file.
	noContent = "-"
)

// ErrChanged is returned when a file no longer holds the content the history
// expects, so undoing or redoing it would lose edits.
var ErrChanged = errors.New("file changed since the operation")

// Operation represents a single file write (create or modify).
type Operation struct {
	Path   string
	Action fs.Action
	// Before and After are content hashes; Before is "-" for a created file.
	Before string
	After  string
}

// HistoryEntry represents one complete run of the tool.
type HistoryEntry struct {
	Timestamp  int64
	Operations []Operation
}

// State represents the entire state file.
type State struct {
	History      []HistoryEntry
	CurrentIndex int
}

// Manager handles the lifecycle of the state file and the content snapshots
// next to it.
type Manager struct {
	statePath string
	state     *State
	StateDir  string
}

// findGitRoot finds the root of the git repository containing dir.
func findGitRoot(dir string) (string, error) {
	cmd := exec.Command("git", "-C", dir, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// New creates and loads a state manager for the git repository containing
// dir, or for dir itself outside a repository.
func New(dir string) (*Manager, error) {
	rootDir, err := findGitRoot(dir)
	if err != nil {
		rootDir = dir
	}

	stateDir := filepath.Join(rootDir, stateDirName)
	if err := os.MkdirAll(filepath.Join(stateDir, objectsDir), 0o755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	m := &Manager{
		statePath: filepath.Join(stateDir, stateFileName),
		StateDir:  stateDir,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// load reads the state file: the current index, then one blank-line
// separated block per history entry holding a timestamp and four lines per
// operation (action, path, before, after).
func (m *Manager) load() error {
	m.state = &State{CurrentIndex: -1}

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")
	if len(blocks) == 0 || strings.TrimSpace(blocks[0]) == "" {
		return nil
	}

	index, err := strconv.Atoi(strings.TrimSpace(blocks[0]))
	if err != nil {
		return fmt.Errorf("invalid state file: could not parse current index: %w", err)
	}
	m.state.CurrentIndex = index

	for _, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		ts, err := strconv.ParseInt(lines[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid state file: could not parse timestamp from '%s': %w", lines[0], err)
		}

		entry := HistoryEntry{Timestamp: ts}
		opLines := lines[1:]
		if len(opLines)%4 != 0 {
			return fmt.Errorf("invalid state file: incomplete operation record")
		}
		for i := 0; i < len(opLines); i += 4 {
			entry.Operations = append(entry.Operations, Operation{
				Action: fs.Action(opLines[i]),
				Path:   opLines[i+1],
				Before: opLines[i+2],
				After:  opLines[i+3],
			})
		}
		m.state.History = append(m.state.History, entry)
	}

	if m.state.CurrentIndex >= len(m.state.History) {
		m.state.CurrentIndex = len(m.state.History) - 1
	}
	return nil
}

func (m *Manager) save() error {
	blocks := []string{strconv.Itoa(m.state.CurrentIndex)}
	for _, entry := range m.state.History {
		lines := []string{strconv.FormatInt(entry.Timestamp, 10)}
		for _, op := range entry.Operations {
			lines = append(lines, string(op.Action), op.Path, op.Before, op.After)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	if err := os.WriteFile(m.statePath, []byte(strings.Join(blocks, "\n\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("could not save state: %w", err)
	}
	return nil
}

// Snapshot stores content and returns its hash.
func (m *Manager) Snapshot(content []byte) (string, error) {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])
	path := m.objectPath(hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("could not store snapshot: %w", err)
	}
	return hash, nil
}

func (m *Manager) objectPath(hash string) string {
	return filepath.Join(m.StateDir, objectsDir, hash)
}

func (m *Manager) object(hash string) ([]byte, error) {
	return os.ReadFile(m.objectPath(hash))
}

// Record snapshots a file write. before is nil when the file is created.
func (m *Manager) Record(path string, before []byte, after string) (Operation, error) {
	op := Operation{Path: path, Action: fs.ActionCreate, Before: noContent}
	if before != nil {
		hash, err := m.Snapshot(before)
		if err != nil {
			return Operation{}, err
		}
		op.Action = fs.ActionModify
		op.Before = hash
	}
	hash, err := m.Snapshot([]byte(after))
	if err != nil {
		return Operation{}, err
	}
	op.After = hash
	return op, nil
}

// Write adds a new set of operations to the history, dropping anything that
// was undone.
func (m *Manager) Write(operations []Operation) error {
	if len(operations) == 0 {
		return nil
	}
	if m.state.CurrentIndex < len(m.state.History)-1 {
		m.state.History = m.state.History[:m.state.CurrentIndex+1]
	}

	m.state.History = append(m.state.History, HistoryEntry{
		Timestamp:  time.Now().UTC().Unix(),
		Operations: operations,
	})
	m.state.CurrentIndex++
	return m.save()
}

// GetOperationsToUndo gets the last operations and moves the history pointer.
func (m *Manager) GetOperationsToUndo() ([]Operation, error) {
	if m.state.CurrentIndex < 0 {
		return nil, nil
	}
	ops := m.state.History[m.state.CurrentIndex].Operations
	m.state.CurrentIndex--
	return ops, m.save()
}

// GetOperationsToRedo gets the next operations and moves the history pointer.
func (m *Manager) GetOperationsToRedo() ([]Operation, error) {
	nextIndex := m.state.CurrentIndex + 1
	if nextIndex >= len(m.state.History) {
		return nil, nil
	}
	m.state.CurrentIndex = nextIndex
	return m.state.History[m.state.CurrentIndex].Operations, m.save()
}

// currentHash hashes the file at path; "-" when it does not exist.
func currentHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return noContent, nil
	}
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// restore moves path from the content hashed from to the content hashed to,
// refusing when the file holds anything else.
func (m *Manager) restore(locks *fs.Locker, path, from, to string) error {
	unlock := locks.Lock(path)
	defer unlock()

	cur, err := currentHash(path)
	if err != nil {
		return err
	}
	if cur == to {
		return nil
	}
	if cur != from {
		return fmt.Errorf("%s: %w", path, ErrChanged)
	}

	if to == noContent {
		if err := os.Remove(path); err != nil {
			return err
		}
		// Attempt to remove parent directory if it's empty
		_ = os.Remove(filepath.Dir(path))
		return nil
	}

	content, err := m.object(to)
	if err != nil {
		return fmt.Errorf("missing snapshot for %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return os.WriteFile(path, content, mode)
}

// Undo reverts ops, reporting each path as undone or failed. progressCb,
// when set, is called after each operation with the number done.
func (m *Manager) Undo(locks *fs.Locker, ops []Operation, progressCb func(int)) (undone, failed []string) {
	return processSequentially(ops, func(op Operation) error {
		return m.restore(locks, op.Path, op.After, op.Before)
	}, progressCb)
}

// Redo reapplies ops undone earlier.
func (m *Manager) Redo(locks *fs.Locker, ops []Operation, progressCb func(int)) (redone, failed []string) {
	return processSequentially(ops, func(op Operation) error {
		return m.restore(locks, op.Path, op.Before, op.After)
	}, progressCb)
}

func processSequentially(ops []Operation, apply func(Operation) error, progressCb func(int)) (done, failed []string) {
	for i, op := range ops {
		if err := apply(op); err != nil {
			failed = append(failed, op.Path)
		} else {
			done = append(done, op.Path)
		}
		if progressCb != nil {
			progressCb(i + 1)
		}
	}
	return done, failed
}
