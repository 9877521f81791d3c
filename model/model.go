// Package model defines the on-flash record layouts read by the
// copy-list executor: the fixed 32-byte Item and the Copylist header that
// precedes an array of 16 of them.
package model

import (
	"encoding/binary"

	"openenterprise/nrfboot/crc32"
)

const (
	// Magic identifies a valid, armed copy-list page.
	Magic = 0x6CDA65CC

	// MaxItems is the maximum number of valid entries a Copylist may
	// declare.
	MaxItems = 16

	// ItemSize is the packed, little-endian on-flash size of one Item.
	ItemSize = 32

	// HeaderSize is the packed size of the Copylist header preceding the
	// items array (magic, count, crc).
	HeaderSize = 12
)

// Flag bits for Item.Flags.
const (
	FlagCompressed = 1 << 0 // payload is DEFLATE-compressed
	FlagBootloader = 1 << 1 // delegate to MBR COPY_BL; must not be compressed
)

// Item is one fixed 32-byte copy-list entry: the two reserved words must
// be present on flash but are never interpreted.
type Item struct {
	Flags    uint32
	Src      uint32
	SrcSize  uint32 // compressed size when FlagCompressed, else == DstSize
	Dst      uint32
	DstSize  uint32 // decompressed/final byte count
	DstCRC   uint32 // IEEE CRC-32 of the DstSize bytes written at Dst
	Reserved1 uint32
	Reserved2 uint32
}

// Compressed reports whether the item's payload is DEFLATE-compressed.
func (it Item) Compressed() bool {
	return it.Flags&FlagCompressed != 0
}

// BootloaderReplace reports whether the item must be applied via the MBR
// COPY_BL syscall rather than a normal flash copy.
func (it Item) BootloaderReplace() bool {
	return it.Flags&FlagBootloader != 0
}

// MarshalBinary encodes the item into its packed 32-byte little-endian
// on-flash form.
func (it Item) MarshalBinary() []byte {
	buf := make([]byte, ItemSize)
	binary.LittleEndian.PutUint32(buf[0:4], it.Flags)
	binary.LittleEndian.PutUint32(buf[4:8], it.Src)
	binary.LittleEndian.PutUint32(buf[8:12], it.SrcSize)
	binary.LittleEndian.PutUint32(buf[12:16], it.Dst)
	binary.LittleEndian.PutUint32(buf[16:20], it.DstSize)
	binary.LittleEndian.PutUint32(buf[20:24], it.DstCRC)
	binary.LittleEndian.PutUint32(buf[24:28], it.Reserved1)
	binary.LittleEndian.PutUint32(buf[28:32], it.Reserved2)
	return buf
}

// UnmarshalItem decodes one packed 32-byte Item from buf.
func UnmarshalItem(buf []byte) Item {
	_ = buf[ItemSize-1] // bounds check hint
	return Item{
		Flags:     binary.LittleEndian.Uint32(buf[0:4]),
		Src:       binary.LittleEndian.Uint32(buf[4:8]),
		SrcSize:   binary.LittleEndian.Uint32(buf[8:12]),
		Dst:       binary.LittleEndian.Uint32(buf[12:16]),
		DstSize:   binary.LittleEndian.Uint32(buf[16:20]),
		DstCRC:    binary.LittleEndian.Uint32(buf[20:24]),
		Reserved1: binary.LittleEndian.Uint32(buf[24:28]),
		Reserved2: binary.LittleEndian.Uint32(buf[28:32]),
	}
}

// Copylist is the header plus fixed array read from the start of the
// BOOTLOADER_COPYLIST page. Entries beyond Count are ignored.
type Copylist struct {
	magic uint32
	count uint32
	crc   uint32
	items [MaxItems]Item
}

// Count returns the number of valid leading entries in Items.
func (c *Copylist) Count() uint32 {
	return c.count
}

// Items returns the count leading valid entries; entries beyond Count are
// never returned even though they are present in the backing page.
func (c *Copylist) Items() []Item {
	if c.count > MaxItems {
		return nil
	}
	return c.items[:c.count]
}

// CalcCRC computes the IEEE CRC-32 over the raw byte image of the first
// Count items.
func (c *Copylist) CalcCRC() uint32 {
	n := c.count
	if n > MaxItems {
		n = 0
	}
	buf := make([]byte, 0, int(n)*ItemSize)
	for i := uint32(0); i < n; i++ {
		buf = append(buf, c.items[i].MarshalBinary()...)
	}
	return crc32.Checksum(buf)
}

// IsValid reports whether the copy-list's magic, count, and CRC are all
// correct. A copy-list that fails any check must be silently ignored by
// callers — it is never treated as an error, since a corrupt or absent
// control block must not brick the device.
func (c *Copylist) IsValid() bool {
	if c.magic != Magic {
		return false
	}
	if c.count > MaxItems {
		return false
	}
	return c.CalcCRC() == c.crc
}

// UnmarshalCopylist decodes a Copylist from a packed page image. buf must
// be at least HeaderSize + MaxItems*ItemSize bytes.
func UnmarshalCopylist(buf []byte) *Copylist {
	c := &Copylist{
		magic: binary.LittleEndian.Uint32(buf[0:4]),
		count: binary.LittleEndian.Uint32(buf[4:8]),
		crc:   binary.LittleEndian.Uint32(buf[8:12]),
	}
	off := HeaderSize
	for i := 0; i < MaxItems; i++ {
		c.items[i] = UnmarshalItem(buf[off : off+ItemSize])
		off += ItemSize
	}
	return c
}

// NewCopylist builds a Copylist from items (must be len <= MaxItems),
// computing the header CRC. Used by host-side tooling that constructs
// copy-list page images (see cmd/mkcopylist).
func NewCopylist(items []Item) (*Copylist, error) {
	if len(items) > MaxItems {
		return nil, ErrTooManyItems
	}
	c := &Copylist{
		magic: Magic,
		count: uint32(len(items)),
	}
	copy(c.items[:], items)
	c.crc = c.CalcCRC()
	return c, nil
}

// MarshalBinary encodes the full page image (header + all MaxItems slots,
// including unused trailing slots which are zeroed).
func (c *Copylist) MarshalBinary() []byte {
	buf := make([]byte, HeaderSize+MaxItems*ItemSize)
	binary.LittleEndian.PutUint32(buf[0:4], c.magic)
	binary.LittleEndian.PutUint32(buf[4:8], c.count)
	binary.LittleEndian.PutUint32(buf[8:12], c.crc)
	off := HeaderSize
	for i := 0; i < MaxItems; i++ {
		copy(buf[off:off+ItemSize], c.items[i].MarshalBinary())
		off += ItemSize
	}
	return buf
}

// ErrTooManyItems is returned by NewCopylist when more than MaxItems items
// are supplied.
var ErrTooManyItems = errTooManyItems{}

type errTooManyItems struct{}

func (errTooManyItems) Error() string { return "model: too many items (max 16)" }
