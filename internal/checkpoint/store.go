// Package checkpoint persists per-handle chunk offsets and the engine's
// configuration to a small on-disk directory, so an external scheduler can
// recreate the core after process death and resume a paused download.
//
// Every write is wrapped so an I/O error degrades to "not saved" rather
// than crashing the caller; every read of a corrupt file returns nothing
// rather than attempting partial recovery.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/duskfetch/dlengine/internal/model"
	"github.com/duskfetch/dlengine/internal/utils"
)

const pausedStatesDir = "paused_states"
const configFileName = "config.json"

// Store is the durable per-handle snapshot store described in §4.C.
type Store struct {
	dir string
}

// NewStore roots a checkpoint store at dir, creating the paused_states
// subdirectory if it doesn't already exist.
func NewStore(dir string) *Store {
	os.MkdirAll(filepath.Join(dir, pausedStatesDir), 0755)
	return &Store{dir: dir}
}

// SaveConfig writes the whole-of-engine configuration. Best-effort: any
// I/O error is swallowed.
func (s *Store) SaveConfig(cfg model.Config) {
	log := utils.GetLogger("checkpoint")
	if err := writeJSONAtomic(filepath.Join(s.dir, configFileName), cfg); err != nil {
		log.Debug().Err(err).Msg("failed to save config, ignoring")
	}
}

// LoadConfig returns the last saved configuration, or (zero, false) if
// absent or corrupt.
func (s *Store) LoadConfig() (model.Config, bool) {
	var cfg model.Config
	if !readJSON(filepath.Join(s.dir, configFileName), &cfg) {
		return model.Config{}, false
	}
	return cfg, true
}

// SavePausedSnapshot writes the paused state for one handle.
func (s *Store) SavePausedSnapshot(snap model.PausedSnapshot) {
	log := utils.GetLogger("checkpoint")
	path := s.pausedPath(snap.HandleID)
	if err := writeJSONAtomic(path, snap); err != nil {
		log.Debug().Err(err).Str("handle", snap.HandleID).Msg("failed to save paused snapshot, ignoring")
	}
}

// LoadPausedSnapshot returns the paused state for a handle, or
// (zero, false) if absent or corrupt.
func (s *Store) LoadPausedSnapshot(handleID string) (model.PausedSnapshot, bool) {
	var snap model.PausedSnapshot
	if !readJSON(s.pausedPath(handleID), &snap) {
		return model.PausedSnapshot{}, false
	}
	return snap, true
}

// LoadAllPausedSnapshots enumerates every paused handle currently on disk.
func (s *Store) LoadAllPausedSnapshots() []model.PausedSnapshot {
	entries, err := os.ReadDir(filepath.Join(s.dir, pausedStatesDir))
	if err != nil {
		return nil
	}
	var snapshots []model.PausedSnapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		if snap, ok := s.LoadPausedSnapshot(id); ok {
			snapshots = append(snapshots, snap)
		}
	}
	return snapshots
}

// RemovePausedSnapshot deletes a handle's paused state, if any.
func (s *Store) RemovePausedSnapshot(handleID string) {
	os.Remove(s.pausedPath(handleID))
}

func (s *Store) pausedPath(handleID string) string {
	return filepath.Join(s.dir, pausedStatesDir, handleID+".json")
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}
