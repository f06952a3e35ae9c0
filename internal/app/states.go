// Package app provides save state functionality for the NES emulator.
package app

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"

	"gones/internal/bus"
	"gones/internal/savestate"
)

// StateManager manages save state slots for a ROM: one binary container
// file per slot, named after the ROM so slots for different games don't
// collide in the same save directory.
type StateManager struct {
	saveDirectory string
	maxSlots      int
	initialized   bool
}

// NewStateManager creates a new state manager.
func NewStateManager(saveDirectory string) *StateManager {
	manager := &StateManager{
		saveDirectory: saveDirectory,
		maxSlots:      10,
	}
	if err := manager.initialize(); err != nil {
		glog.Warningf("state manager initialization failed: %v", err)
	}
	return manager
}

func (sm *StateManager) initialize() error {
	if err := os.MkdirAll(sm.saveDirectory, 0o755); err != nil {
		return fmt.Errorf("failed to create save directory: %v", err)
	}
	sm.initialized = true
	return nil
}

// SaveState serializes the bus into a slot file.
func (sm *StateManager) SaveState(b *bus.Bus, slot int, romPath string) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}
	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d (must be 0-%d)", slot, sm.maxSlots-1)
	}
	if b == nil {
		return fmt.Errorf("bus cannot be nil")
	}

	sections := b.SaveState()
	container := savestate.Encode(sections)
	filePath := sm.getSlotFilePath(slot, romPath)
	if err := savestate.WriteFile(filePath, container); err != nil {
		return err
	}
	glog.V(1).Infof("saved state to slot %d (%s, %d bytes)", slot, filePath, len(container))
	return nil
}

// LoadState restores the bus from a slot file.
func (sm *StateManager) LoadState(b *bus.Bus, slot int, romPath string) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}
	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d (must be 0-%d)", slot, sm.maxSlots-1)
	}
	if b == nil {
		return fmt.Errorf("bus cannot be nil")
	}

	filePath := sm.getSlotFilePath(slot, romPath)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("save state not found in slot %d", slot)
	}

	sections, err := savestate.ReadFile(filePath)
	if err != nil {
		return err
	}
	b.LoadState(sections)
	glog.V(1).Infof("loaded state from slot %d (%s)", slot, filePath)
	return nil
}

// getSlotFilePath generates the file path for a save slot.
func (sm *StateManager) getSlotFilePath(slot int, romPath string) string {
	romName := filepath.Base(romPath)
	romNameWithoutExt := romName[:len(romName)-len(filepath.Ext(romName))]
	fileName := fmt.Sprintf("%s_slot_%d.state", romNameWithoutExt, slot)
	return filepath.Join(sm.saveDirectory, fileName)
}

// StateSlotInfo describes one save state slot.
type StateSlotInfo struct {
	SlotNumber int
	Used       bool
	Timestamp  time.Time
	ROMPath    string
	FilePath   string
	FileSize   int64
}

// GetSlotInfo returns information about all save slots.
func (sm *StateManager) GetSlotInfo(romPath string) []StateSlotInfo {
	slots := make([]StateSlotInfo, sm.maxSlots)
	for i := 0; i < sm.maxSlots; i++ {
		slotInfo := StateSlotInfo{SlotNumber: i, ROMPath: romPath}
		filePath := sm.getSlotFilePath(i, romPath)
		if stat, err := os.Stat(filePath); err == nil {
			slotInfo.Used = true
			slotInfo.FilePath = filePath
			slotInfo.FileSize = stat.Size()
			slotInfo.Timestamp = stat.ModTime()
		}
		slots[i] = slotInfo
	}
	return slots
}

// DeleteState deletes a save state from a slot.
func (sm *StateManager) DeleteState(slot int, romPath string) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}
	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d", slot)
	}
	filePath := sm.getSlotFilePath(slot, romPath)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("save state not found in slot %d", slot)
	}
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete save state: %v", err)
	}
	return nil
}

// HasSaveState checks if a save state exists in a slot.
func (sm *StateManager) HasSaveState(slot int, romPath string) bool {
	if slot < 0 || slot >= sm.maxSlots {
		return false
	}
	_, err := os.Stat(sm.getSlotFilePath(slot, romPath))
	return err == nil
}

// GetMaxSlots returns the maximum number of save slots.
func (sm *StateManager) GetMaxSlots() int { return sm.maxSlots }

// SetMaxSlots sets the maximum number of save slots.
func (sm *StateManager) SetMaxSlots(slots int) {
	if slots > 0 {
		sm.maxSlots = slots
	}
}

// GetSaveDirectory returns the save directory path.
func (sm *StateManager) GetSaveDirectory() string { return sm.saveDirectory }

// SetSaveDirectory changes the save directory, creating it if needed.
func (sm *StateManager) SetSaveDirectory(directory string) error {
	sm.saveDirectory = directory
	return sm.initialize()
}

// ExportState exports the bus's current state to an arbitrary file path,
// bypassing the slot directory.
func (sm *StateManager) ExportState(b *bus.Bus, filePath string, romPath string) error {
	if b == nil {
		return fmt.Errorf("bus cannot be nil")
	}
	container := savestate.Encode(b.SaveState())
	return savestate.WriteFile(filePath, container)
}

// ImportState restores the bus from an arbitrary file path.
func (sm *StateManager) ImportState(b *bus.Bus, filePath string, romPath string) error {
	if b == nil {
		return fmt.Errorf("bus cannot be nil")
	}
	sections, err := savestate.ReadFile(filePath)
	if err != nil {
		return err
	}
	b.LoadState(sections)
	return nil
}

// Cleanup cleans up state manager resources.
func (sm *StateManager) Cleanup() error {
	sm.initialized = false
	return nil
}

// StateManagerStats contains state manager statistics.
type StateManagerStats struct {
	MaxSlots      int
	UsedSlots     int
	FreeSlots     int
	TotalSize     int64
	SaveDirectory string
	Initialized   bool
}

// GetStateManagerStats returns statistics about the state manager.
func (sm *StateManager) GetStateManagerStats(romPath string) StateManagerStats {
	slots := sm.GetSlotInfo(romPath)
	var usedSlots int
	var totalSize int64
	for _, slot := range slots {
		if slot.Used {
			usedSlots++
			totalSize += slot.FileSize
		}
	}
	return StateManagerStats{
		MaxSlots:      sm.maxSlots,
		UsedSlots:     usedSlots,
		FreeSlots:     sm.maxSlots - usedSlots,
		TotalSize:     totalSize,
		SaveDirectory: sm.saveDirectory,
		Initialized:   sm.initialized,
	}
}

// romChecksum returns the first 8 bytes of the SHA-256 of a ROM file's
// contents as hex, or "" if the file cannot be read. Battery and save-state
// file names do not use it.
func romChecksum(romPath string) string {
	data, err := os.ReadFile(romPath)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
