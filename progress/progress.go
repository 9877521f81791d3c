// Package progress implements the swap engine's on-flash progress log: a
// single page holding an arming magic followed by a monotonically-filled
// index of "step completed" markers. It is the mechanism that makes the
// swap engine resumable across arbitrary power loss.
package progress

import (
	"encoding/binary"

	"openenterprise/nrfboot/flash"
)

// Magic values for word 0 of the progress page.
const (
	// SwapMagic marks an armed, in-progress (or not-yet-started) update.
	SwapMagic = 0x55E53C7D
	// SwapRevertedMagic marks a completed revert.
	SwapRevertedMagic = 0xC7D1034A

	erased = 0xFFFFFFFF
)

// MaxIndex is one past the highest representable step index: the page
// holds one magic word followed by (PageSize/4 - 1) counter words.
const MaxIndex = flash.PageSize/4 - 1

// Log is the progress log backed by a single flash page. The zero value
// is not usable; construct with New.
type Log struct {
	dev  flash.Device
	page uint32
}

// New returns a progress log view over the page at pageAddr.
func New(dev flash.Device, pageAddr uint32) *Log {
	return &Log{dev: dev, page: pageAddr}
}

// IsStarted reports whether the page's first word equals SwapMagic, i.e.
// an update is armed.
func (l *Log) IsStarted() bool {
	return l.readWord(0) == SwapMagic
}

// Get scans the counter words and returns the index of the first erased
// (not yet completed) word, or MaxIndex if every counter word has been
// written (all steps complete).
func (l *Log) Get() int {
	for i := 0; i < MaxIndex; i++ {
		if l.readWord(counterOffset(i)) == erased {
			return i
		}
	}
	return MaxIndex
}

// Set marks counter word i complete by clearing it to zero. Monotonic:
// flash can only transition a word from 0xFFFFFFFF to a written value
// without a full page erase, so this is safe to call exactly once per
// step and never needs to be undone short of Reset.
func (l *Log) Set(i int) {
	flash.Write(l.dev, l.page+counterOffset(i), []byte{0, 0, 0, 0})
}

// Reset clears the progress log back to erased state. It first sabotages
// the magic word by zeroing it, then erases the whole page. Flash erase
// is not atomic across an entire page: a power loss mid-erase could
// plausibly leave bits set while most of the page is cleared. Clearing
// the magic first guarantees that any non-completion of Reset leaves a
// page that will not be re-interpreted as armed.
func (l *Log) Reset() {
	flash.Write(l.dev, l.page, []byte{0, 0, 0, 0})
	flash.Erase(l.dev, l.page)
}

// SetAsReverted resets the page, then writes SwapRevertedMagic into word
// 0, surfacing to the application that an update was applied but not
// confirmed, and has been rolled back.
func (l *Log) SetAsReverted() {
	l.Reset()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], SwapRevertedMagic)
	flash.Write(l.dev, l.page, buf[:])
}

func (l *Log) readWord(offset uint32) uint32 {
	return binary.LittleEndian.Uint32(l.dev.Read(l.page+offset, 4))
}

func counterOffset(i int) uint32 {
	return uint32(4 + i*4)
}
