// Package emuerr defines the error kinds surfaced by the emulation core.
//
// The per-cycle hot path (CPU.Step, PPU.Tick, APU.Tick) never returns an
// error; these are reserved for boundary operations: ROM load, save-state
// load/save, and battery persistence.
package emuerr

import (
	"errors"
	"fmt"
)

var (
	// ErrRomInvalid is returned when a ROM image fails the iNES magic check
	// or is truncated relative to its declared PRG/CHR sizes.
	ErrRomInvalid = errors.New("rom invalid")

	// ErrRomUnsupported is returned when the mapper id in the header has no
	// implementation. The previously loaded emulator instance, if any, is
	// left intact.
	ErrRomUnsupported = errors.New("rom unsupported")

	// ErrStateVersion is returned when a save-state's magic matches but its
	// version field is not one this codec understands.
	ErrStateVersion = errors.New("save state version mismatch")

	// ErrStateCorrupt is returned when a save-state section's length
	// overflows the remaining buffer, a mandatory section tag is missing,
	// or (if present) a checksum fails.
	ErrStateCorrupt = errors.New("save state corrupt")
)

// BatteryIOError wraps a filesystem failure encountered while persisting or
// restoring battery-backed PRG RAM. Autosave failures of this kind are
// logged but never prevent program exit.
type BatteryIOError struct {
	Path string
	Err  error
}

func (e *BatteryIOError) Error() string {
	return fmt.Sprintf("battery io error: %s: %v", e.Path, e.Err)
}

func (e *BatteryIOError) Unwrap() error { return e.Err }

// StateIOError wraps a filesystem failure encountered while writing or
// reading a save-state file.
type StateIOError struct {
	Path string
	Err  error
}

func (e *StateIOError) Error() string {
	return fmt.Sprintf("state io error: %s: %v", e.Path, e.Err)
}

func (e *StateIOError) Unwrap() error { return e.Err }

// RomUnsupportedError carries the offending mapper id alongside the
// sentinel so callers can report it to the user.
type RomUnsupportedError struct {
	MapperID uint8
}

func (e *RomUnsupportedError) Error() string {
	return fmt.Sprintf("mapper %d not implemented: %v", e.MapperID, ErrRomUnsupported)
}

func (e *RomUnsupportedError) Unwrap() error { return ErrRomUnsupported }
