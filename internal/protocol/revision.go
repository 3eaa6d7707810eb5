// internal/protocol/revision.go
package protocol

import (
	"fmt"
	"strings"

	"eprom-sender/internal/model"
)

// ZeroMode is what a revision does with mode index 0
type ZeroMode int

const (
	// ZeroModeNoHeader sends the payload without any header bytes
	ZeroModeNoHeader ZeroMode = iota
	// ZeroModeInvalid rejects mode 0
	ZeroModeInvalid
	// ZeroModeAuto picks the mode whose capacity equals the payload length
	ZeroModeAuto
)

func (z ZeroMode) String() string {
	switch z {
	case ZeroModeNoHeader:
		return "no header"
	case ZeroModeInvalid:
		return "invalid"
	case ZeroModeAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// DefaultRevision is the newest emulator firmware protocol
const DefaultRevision = "v3"

// Revision bundles the upload rules of one emulator firmware generation
type Revision struct {
	Name        string
	Description string
	Modes       model.ModeTable
	ZeroMode    ZeroMode
	// DefaultMode is used when no EPROM type is configured
	DefaultMode int

	// LynxByte adds the Lynx flag as a second header byte
	LynxByte bool
	// ReadsStatus reads the storage status byte after the header
	ReadsStatus bool
	// PostSkipSizing validates the length left after skipping instead of the file length
	PostSkipSizing bool
}

// Header returns the bytes sent ahead of the payload for an already resolved mode.
// A nil header means nothing is sent.
func (r Revision) Header(mode int, lynx bool) []byte {
	if mode == 0 {
		return nil
	}
	if !r.LynxByte {
		return []byte{byte(mode)}
	}
	var flag byte
	if lynx {
		flag = 1
	}
	return []byte{byte(mode), flag}
}

// MinMode returns the lowest mode index a user may request
func (r Revision) MinMode() int {
	if r.ZeroMode == ZeroModeInvalid {
		return 1
	}
	return 0
}

const (
	kb = 1024
	mb = 1024 * kb
)

func eproms(sentinel string, withEightMegabit bool) []model.ModeEntry {
	entries := []model.ModeEntry{
		{Index: 0, MaxSize: 0, Name: sentinel},
		{Index: 1, MaxSize: 1 * kb, Name: "2708"},
		{Index: 2, MaxSize: 2 * kb, Name: "2716"},
		{Index: 3, MaxSize: 4 * kb, Name: "2732"},
		{Index: 4, MaxSize: 8 * kb, Name: "2764"},
		{Index: 5, MaxSize: 16 * kb, Name: "27128"},
		{Index: 6, MaxSize: 32 * kb, Name: "27256"},
		{Index: 7, MaxSize: 64 * kb, Name: "27512"},
		{Index: 8, MaxSize: 128 * kb, Name: "27010"},
		{Index: 9, MaxSize: 256 * kb, Name: "27020"},
		{Index: 10, MaxSize: 512 * kb, Name: "27040"},
	}
	if withEightMegabit {
		entries = append(entries, model.ModeEntry{Index: 11, MaxSize: 1 * mb, Name: "27080"})
	}
	return entries
}

// Revisions returns every known protocol revision, oldest first
func Revisions() []Revision {
	return []Revision{
		{
			Name:        "v1",
			Description: "single mode byte, mode 0 sends no header",
			Modes:       model.MustModeTable(eproms("none", true)),
			ZeroMode:    ZeroModeNoHeader,
			DefaultMode: 10,
		},
		{
			Name:        "v2",
			Description: "mode and Lynx bytes",
			Modes:       model.MustModeTable(eproms("invalid", true)),
			ZeroMode:    ZeroModeInvalid,
			DefaultMode: 10,
			LynxByte:    true,
		},
		{
			Name:           "v3",
			Description:    "mode and Lynx bytes, auto-detect, storage status reply",
			Modes:          model.MustModeTable(eproms("auto", false)),
			ZeroMode:       ZeroModeAuto,
			DefaultMode:    0,
			LynxByte:       true,
			ReadsStatus:    true,
			PostSkipSizing: true,
		},
	}
}

// LookupRevision finds a revision by name, case-insensitively
func LookupRevision(name string) (Revision, error) {
	if name == "" {
		name = DefaultRevision
	}

	names := make([]string, 0, 3)
	for _, r := range Revisions() {
		if strings.EqualFold(r.Name, name) {
			return r, nil
		}
		names = append(names, r.Name)
	}
	return Revision{}, fmt.Errorf("unknown protocol revision %q (known: %s)", name, strings.Join(names, ", "))
}
