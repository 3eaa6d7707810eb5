// internal/image/lnx.go
package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// LNXHeaderSize is the length of the header at the start of a .lnx file
const LNXHeaderSize = 64

// BankPageCount is the number of pages in a Lynx cartridge bank
const BankPageCount = 256

var lnxMagic = [4]byte{'L', 'Y', 'N', 'X'}

var (
	ErrShortHeader = errors.New("file is shorter than the 64 byte LNX header")
	ErrBadMagic    = errors.New("missing LYNX magic")
)

// UnsupportedPageSizeError is returned for bank 0 page sizes the emulator cannot map
type UnsupportedPageSizeError struct {
	PageSize uint16
}

func (e *UnsupportedPageSizeError) Error() string {
	return fmt.Sprintf("unsupported bank 0 page size %d (must be 512, 1024 or 2048)", e.PageSize)
}

// LNXHeader is the little-endian header of an Atari Lynx cartridge image
type LNXHeader struct {
	Magic         [4]byte
	Bank0PageSize uint16
	Bank1PageSize uint16
	Version       uint16
	CartName      [32]byte
	Manufacturer  [16]byte
	Rotation      uint8
	Reserved      [5]byte
}

// Name returns the cartridge name without NUL padding
func (h *LNXHeader) Name() string {
	return cString(h.CartName[:])
}

// ManufacturerName returns the manufacturer without NUL padding
func (h *LNXHeader) ManufacturerName() string {
	return cString(h.Manufacturer[:])
}

// BankSize returns the byte size of bank 0
func (h *LNXHeader) BankSize() int {
	return int(h.Bank0PageSize) * BankPageCount
}

// EPROMMode maps the bank 0 page size to the emulator mode that holds the bank
func (h *LNXHeader) EPROMMode() (int, error) {
	switch h.Bank0PageSize {
	case 512:
		return 8, nil
	case 1024:
		return 9, nil
	case 2048:
		return 10, nil
	default:
		return 0, &UnsupportedPageSizeError{PageSize: h.Bank0PageSize}
	}
}

// Cart is a parsed .lnx file
type Cart struct {
	Header LNXHeader
	// Image holds the ROM data padded with 0xFF to the bank 0 size
	Image []byte
	// Padding is the number of 0xFF bytes appended to Image
	Padding int
}

// ParseLNX parses a .lnx file. Images shorter than bank 0 are padded with 0xFF.
func ParseLNX(data []byte) (*Cart, error) {
	if len(data) < LNXHeaderSize {
		return nil, ErrShortHeader
	}

	var hdr LNXHeader
	if err := binary.Read(bytes.NewReader(data[:LNXHeaderSize]), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("decode LNX header: %w", err)
	}
	if hdr.Magic != lnxMagic {
		return nil, ErrBadMagic
	}

	rom := data[LNXHeaderSize:]
	cart := &Cart{Header: hdr}

	size := hdr.BankSize()
	if len(rom) >= size {
		cart.Image = append([]byte(nil), rom...)
		return cart, nil
	}

	cart.Padding = size - len(rom)
	cart.Image = make([]byte, size)
	copy(cart.Image, rom)
	for i := len(rom); i < size; i++ {
		cart.Image[i] = 0xFF
	}
	return cart, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
