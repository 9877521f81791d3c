// Package flash provides the page-aligned erase/write primitives the rest
// of the bootloader builds on. The actual NVMC access is hardware- and
// build-tag-specific (see flash_tinygo.go / flash_sim.go); this file holds
// the hardware-agnostic Device interface and the three core operations:
// erase, write, and the wear-reducing erase-and-write-if-different.
package flash

import "bytes"

// PageSize is the flash erase granularity. It has the same value as
// partition.PageSize; package flash does not import partition.
const PageSize = 4096

// Device is the minimal primitive every flash call goes through. All
// failures reported by a real Device are fatal: implementations trap or
// reset rather than return an error, since a flash driver error here
// indicates hardware failure or a logic bug, not a recoverable condition.
type Device interface {
	// Pet feeds the watchdog. Called by every operation in this package
	// before touching NVMC, matching the "every flash entry point pets
	// the watchdog" requirement.
	Pet()

	// Erase erases the single PageSize-aligned page starting at pageAddr.
	Erase(pageAddr uint32)

	// Write programs data (word-aligned length and address) into flash
	// that is already erased. Must not cross a page boundary.
	Write(addr uint32, data []byte)

	// Read returns the n bytes currently stored at addr.
	Read(addr uint32, n int) []byte
}

// Erase erases one page, petting the watchdog first.
func Erase(d Device, pageAddr uint32) {
	d.Pet()
	d.Erase(pageAddr)
}

// Write programs already-erased flash, petting the watchdog first.
func Write(d Device, addr uint32, data []byte) {
	d.Pet()
	d.Write(addr, data)
}

// EraseAndWrite unconditionally erases the page at pageAddr and writes
// data into it. This is the swap engine's write primitive: every swap
// step destination is always stale, so there is no point comparing first.
func EraseAndWrite(d Device, pageAddr uint32, data []byte) {
	d.Pet()
	d.Erase(pageAddr)
	d.Write(pageAddr, data)
}

// EraseAndWriteIfDifferent compares the current page contents byte-exact
// against data (len(data) <= PageSize); if equal, it does nothing,
// otherwise it erases and writes. This is the wear-reducing write used by
// the copy-list executor.
func EraseAndWriteIfDifferent(d Device, pageAddr uint32, data []byte) {
	d.Pet()
	current := d.Read(pageAddr, len(data))
	if bytes.Equal(current, data) {
		return
	}
	d.Erase(pageAddr)
	d.Write(pageAddr, data)
}
