// Package savestate implements the binary save-state container (§4.6): a
// magic-tagged, versioned sequence of length-prefixed sections, written
// atomically via a temp-file-then-rename so a crash mid-write never
// corrupts the previous save.
package savestate

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"gones/internal/emuerr"
)

// magic identifies a gones save-state file; it appears as the first four
// bytes of every container this package writes.
var magic = [4]byte{'N', 'E', 'S', 'S'}

// Version is the current container format version. Loaders reject any
// version they don't recognize with emuerr.ErrStateVersion rather than
// guessing at a layout.
const Version uint32 = 1

// Required section tags, per §4.6. MAPPER is present only when the loaded
// cartridge's mapper implements SaveState/LoadState.
const (
	SectionCPU    = "CPU"
	SectionPPU    = "PPU"
	SectionAPU    = "APU"
	SectionBUS    = "BUS"
	SectionMAPPER = "MAPPER"
)

// Encode packs a set of named sections into a single container buffer.
// Section iteration order is sorted for deterministic output, which keeps
// byte-identical re-saves of unchanged state byte-identical.
func Encode(sections map[string][]byte) []byte {
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sortStrings(names)

	buf := make([]byte, 0, 64)
	buf = append(buf, magic[:]...)
	var versionBytes [4]byte
	binary.LittleEndian.PutUint32(versionBytes[:], Version)
	buf = append(buf, versionBytes[:]...)

	for _, name := range names {
		data := sections[name]
		tag := make([]byte, 4)
		copy(tag, name)
		buf = append(buf, tag...)
		var lenBytes [4]byte
		binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(data)))
		buf = append(buf, lenBytes[:]...)
		buf = append(buf, data...)
	}
	return buf
}

// Decode unpacks a container buffer into its named sections. Section tags
// this version of the package doesn't recognize are skipped rather than
// rejected, so a future format can add optional sections without breaking
// older readers.
func Decode(buf []byte) (map[string][]byte, error) {
	if len(buf) < 8 {
		return nil, emuerr.ErrStateCorrupt
	}
	if buf[0] != magic[0] || buf[1] != magic[1] || buf[2] != magic[2] || buf[3] != magic[3] {
		return nil, emuerr.ErrStateCorrupt
	}
	version := binary.LittleEndian.Uint32(buf[4:8])
	if version != Version {
		return nil, emuerr.ErrStateVersion
	}

	sections := make(map[string][]byte)
	i := 8
	for i < len(buf) {
		if i+8 > len(buf) {
			return nil, emuerr.ErrStateCorrupt
		}
		tag := string(trimZero(buf[i : i+4]))
		length := binary.LittleEndian.Uint32(buf[i+4 : i+8])
		i += 8
		if i+int(length) > len(buf) {
			return nil, emuerr.ErrStateCorrupt
		}
		data := make([]byte, length)
		copy(data, buf[i:i+int(length)])
		sections[tag] = data
		i += int(length)
	}
	return sections, nil
}

func trimZero(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// WriteFile atomically writes an encoded container to path: it writes to a
// temp file in the same directory, then renames over the destination, so a
// reader never observes a partially written file.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &emuerr.StateIOError{Path: path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".savestate-*.tmp")
	if err != nil {
		return &emuerr.StateIOError{Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &emuerr.StateIOError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &emuerr.StateIOError{Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &emuerr.StateIOError{Path: path, Err: err}
	}
	return nil
}

// ReadFile reads and decodes a container previously written by WriteFile.
func ReadFile(path string) (map[string][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &emuerr.StateIOError{Path: path, Err: err}
	}
	return Decode(data)
}
