package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FlashEntry pairs a flash offset with the image file flashed there.
type FlashEntry struct {
	// Offset is the hex flash offset, e.g. "0x8000".
	Offset string
	// File is the image path relative to the build directory.
	File string
}

// FlashFiles is the ordered offset-to-image mapping from the manifest.
// JSON objects lose their order in a plain Go map, but flashing tools expect
// the bootloader entry first, so the document order is kept explicitly and
// emitted as-is when the manifest is serialized.
type FlashFiles struct {
	entries []FlashEntry
}

// defaultEntryCapacity is the initial capacity for flash entry slices.
const defaultEntryCapacity = 8

var errFlashFilesNotObject = errors.New("flash_files must be a JSON object")

// UnmarshalJSON decodes the offset-to-image object preserving document order.
func (f *FlashFiles) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))

	token, err := decoder.Token()
	if err != nil {
		return err
	}

	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return errFlashFilesNotObject
	}

	entries := make([]FlashEntry, 0, defaultEntryCapacity)

	for decoder.More() {
		token, err = decoder.Token()
		if err != nil {
			return err
		}

		// Object keys are always strings.
		offset, _ := token.(string)

		var file string
		if err = decoder.Decode(&file); err != nil {
			return fmt.Errorf("flash file at %s: %w", offset, err)
		}

		entries = append(entries, FlashEntry{Offset: offset, File: file})
	}

	// Consume the closing brace.
	if _, err = decoder.Token(); err != nil {
		return err
	}

	f.entries = entries

	return nil
}

// MarshalJSON encodes the mapping as a JSON object in the collection's order.
func (f FlashFiles) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, entry := range f.entries {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(entry.Offset)
		if err != nil {
			return nil, err
		}

		value, err := json.Marshal(entry.File)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Len returns the number of flash entries.
func (f *FlashFiles) Len() int {
	return len(f.entries)
}

// Entries returns a copy of the flash entries in their current order.
func (f *FlashFiles) Entries() []FlashEntry {
	return append([]FlashEntry(nil), f.entries...)
}

// File returns the image mapped at the given offset.
func (f *FlashFiles) File(offset string) (string, bool) {
	for _, entry := range f.entries {
		if entry.Offset == offset {
			return entry.File, true
		}
	}

	return "", false
}

// Set maps an offset to an image, replacing the previous mapping if present.
func (f *FlashFiles) Set(offset, file string) {
	for i, entry := range f.entries {
		if entry.Offset == offset {
			f.entries[i].File = file
			return
		}
	}

	f.entries = append(f.entries, FlashEntry{Offset: offset, File: file})
}

// SortByOffset orders the entries ascending by numeric offset so the
// lowest region (the bootloader) flashes first.
func (f *FlashFiles) SortByOffset() error {
	offsets := make(map[string]uint64, len(f.entries))

	for _, entry := range f.entries {
		value, err := ParseOffset(entry.Offset)
		if err != nil {
			return fmt.Errorf("flash offset %q: %w", entry.Offset, err)
		}

		offsets[entry.Offset] = value
	}

	sort.SliceStable(f.entries, func(i, j int) bool {
		return offsets[f.entries[i].Offset] < offsets[f.entries[j].Offset]
	})

	return nil
}

// ParseOffset converts a manifest flash offset ("0x10000") to its numeric value.
func ParseOffset(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 0, 64)
}
