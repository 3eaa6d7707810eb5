// internal/model/eprom.go
package model

import "fmt"

// ModeEntry describes one EPROM type the emulator can stand in for
type ModeEntry struct {
	Index   int    `json:"index" yaml:"index"`
	MaxSize int    `json:"max_size" yaml:"max_size"`
	Name    string `json:"name" yaml:"name"`
}

// IsSentinel reports whether the entry is the index 0 placeholder
func (e ModeEntry) IsSentinel() bool {
	return e.Index == 0
}

func (e ModeEntry) String() string {
	if e.IsSentinel() {
		return fmt.Sprintf("%d (%s)", e.Index, e.Name)
	}
	return fmt.Sprintf("%d (%s, %d bytes)", e.Index, e.Name, e.MaxSize)
}

// ModeTable is an ordered EPROM capacity table. Position equals mode index.
type ModeTable struct {
	entries []ModeEntry
}

// NewModeTable builds a table from entries listed in index order.
// Entry 0 must be the zero-size sentinel and capacities may not shrink.
func NewModeTable(entries []ModeEntry) (ModeTable, error) {
	if len(entries) == 0 {
		return ModeTable{}, fmt.Errorf("mode table is empty")
	}
	if entries[0].MaxSize != 0 {
		return ModeTable{}, fmt.Errorf("mode 0 must have size 0, got %d", entries[0].MaxSize)
	}

	for i, e := range entries {
		if e.Index != i {
			return ModeTable{}, fmt.Errorf("mode %q listed at position %d has index %d", e.Name, i, e.Index)
		}
		if i > 1 && e.MaxSize < entries[i-1].MaxSize {
			return ModeTable{}, fmt.Errorf("mode %d (%s) is smaller than mode %d", i, e.Name, i-1)
		}
	}

	copied := make([]ModeEntry, len(entries))
	copy(copied, entries)
	return ModeTable{entries: copied}, nil
}

// MustModeTable is NewModeTable for tables known at compile time
func MustModeTable(entries []ModeEntry) ModeTable {
	t, err := NewModeTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// MaxIndex returns the highest defined mode index
func (t ModeTable) MaxIndex() int {
	return len(t.entries) - 1
}

// Entry returns the entry for mode, if defined
func (t ModeTable) Entry(mode int) (ModeEntry, bool) {
	if mode < 0 || mode >= len(t.entries) {
		return ModeEntry{}, false
	}
	return t.entries[mode], true
}

// MatchSize finds the entry whose capacity is exactly size.
// The sentinel never matches.
func (t ModeTable) MatchSize(size int) (ModeEntry, bool) {
	for _, e := range t.entries[1:] {
		if e.MaxSize == size {
			return e, true
		}
	}
	return ModeEntry{}, false
}

// Entries returns a copy of the table
func (t ModeTable) Entries() []ModeEntry {
	out := make([]ModeEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// StorageType is the status byte the emulator reports after receiving a header
type StorageType byte

const (
	StorageSDCard StorageType = 1
	StorageFlash  StorageType = 2
)

func (s StorageType) String() string {
	switch s {
	case StorageSDCard:
		return "SD card"
	case StorageFlash:
		return "flash"
	default:
		return "unknown storage"
	}
}

// Known reports whether the emulator sent a recognised storage code
func (s StorageType) Known() bool {
	return s == StorageSDCard || s == StorageFlash
}
