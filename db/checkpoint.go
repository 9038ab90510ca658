package db

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"athena/types"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DumpReason indicates why a snapshot is being written
type DumpReason int

const (
	DumpShutdown   DumpReason = iota // Server is shutting down
	DumpCheckpoint                   // Periodic checkpoint
	DumpPanic                        // Emergency dump (panic recovery)
)

func (r DumpReason) String() string {
	switch r {
	case DumpShutdown:
		return "shutdown"
	case DumpCheckpoint:
		return "checkpoint"
	case DumpPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// snapshotEntry is one variable slot in a snapshot file
type snapshotEntry struct {
	Scope string  `yaml:"scope"`
	Owner int     `yaml:"owner,omitempty"`
	Name  string  `yaml:"name"`
	Index int     `yaml:"index,omitempty"`
	Int   *int64  `yaml:"int,omitempty"`
	Str   *string `yaml:"str,omitempty"`
}

type snapshot struct {
	Saved     time.Time       `yaml:"saved"`
	Variables []snapshotEntry `yaml:"variables"`
}

// CheckpointManager periodically writes a memory backend to a YAML
// snapshot so persistent scopes survive restarts without SQLite
type CheckpointManager struct {
	mu         sync.Mutex
	path       string
	backend    *MemoryBackend
	generation int // 0 or 1
	lastSave   time.Time
	interval   time.Duration
	log        *zap.Logger
	stopChan   chan struct{}
	doneChan   chan struct{}
}

// NewCheckpointManager creates a checkpoint manager writing to path
func NewCheckpointManager(path string, backend *MemoryBackend, interval time.Duration, log *zap.Logger) *CheckpointManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckpointManager{
		path:     path,
		backend:  backend,
		interval: interval,
		log:      log,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins periodic checkpointing in a background goroutine
func (cm *CheckpointManager) Start() {
	if cm.interval <= 0 {
		return // Checkpointing disabled
	}
	go cm.checkpointLoop()
}

// Stop stops the checkpoint loop and waits for it to complete
func (cm *CheckpointManager) Stop() {
	if cm.interval <= 0 {
		return
	}
	close(cm.stopChan)
	<-cm.doneChan
}

func (cm *CheckpointManager) checkpointLoop() {
	defer close(cm.doneChan)
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-cm.stopChan:
			return
		case <-ticker.C:
			if err := cm.Checkpoint(DumpCheckpoint); err != nil {
				cm.log.Error("checkpoint failed", zap.Error(err))
			}
		}
	}
}

// Checkpoint writes a snapshot. The data goes to a generation file
// (path.#N#) first and is then renamed over path.
func (cm *CheckpointManager) Checkpoint(reason DumpReason) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	start := time.Now()

	var tempPath string
	if reason == DumpPanic {
		tempPath = cm.path + ".PANIC"
	} else {
		tempPath = fmt.Sprintf("%s.#%d#", cm.path, cm.generation)
	}

	data, err := encodeSnapshot(cm.backend.Entries(), start)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cm.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("write snapshot: %w", err)
	}

	if reason != DumpPanic {
		os.Remove(fmt.Sprintf("%s.#%d#", cm.path, 1-cm.generation))
	}

	if err := atomicRename(tempPath, cm.path); err != nil {
		return fmt.Errorf("rename temp to main: %w", err)
	}

	cm.lastSave = time.Now()
	if reason != DumpPanic {
		cm.generation = 1 - cm.generation
	}

	cm.log.Info("checkpoint completed",
		zap.Stringer("reason", reason),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// LastSave returns the time of the last successful save
func (cm *CheckpointManager) LastSave() time.Time {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.lastSave
}

// Load replaces the backend's contents with the snapshot at path.
// A missing file leaves the backend empty.
func (cm *CheckpointManager) Load() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := os.ReadFile(cm.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	vals, err := decodeSnapshot(data)
	if err != nil {
		return fmt.Errorf("%s: %w", cm.path, err)
	}
	cm.backend.Replace(vals)
	return nil
}

// atomicRename renames src over dst, removing dst first where the
// platform refuses to overwrite
func atomicRename(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if os.Remove(dst) == nil {
		return os.Rename(src, dst)
	}
	return err
}

func encodeSnapshot(vals map[Key]types.Value, saved time.Time) ([]byte, error) {
	snap := snapshot{Saved: saved.UTC()}
	for k, v := range vals {
		e := snapshotEntry{Scope: k.Scope.String(), Owner: k.Owner, Name: k.Name, Index: k.Index}
		if types.IsString(v) {
			s := v.String()
			e.Str = &s
		} else {
			n, _ := types.ToInt(v)
			e.Int = &n
		}
		snap.Variables = append(snap.Variables, e)
	}
	sort.Slice(snap.Variables, func(i, j int) bool {
		a, b := snap.Variables[i], snap.Variables[j]
		if a.Scope != b.Scope {
			return a.Scope < b.Scope
		}
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Index < b.Index
	})

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&snap); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte) (map[Key]types.Value, error) {
	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	vals := make(map[Key]types.Value, len(snap.Variables))
	for i, e := range snap.Variables {
		scope, ok := ParseScope(e.Scope)
		if !ok {
			return nil, fmt.Errorf("entry %d: unknown scope %q", i, e.Scope)
		}
		if !scope.Persistent() {
			return nil, fmt.Errorf("entry %d: scope %s is not persistent", i, e.Scope)
		}
		k := Key{Scope: scope, Owner: e.Owner, Name: e.Name, Index: e.Index}
		switch {
		case e.Str != nil:
			vals[k] = types.NewStr(*e.Str)
		case e.Int != nil:
			vals[k] = types.NewInt(*e.Int)
		default:
			return nil, fmt.Errorf("entry %d: %s has no value", i, e.Name)
		}
	}
	return vals, nil
}
