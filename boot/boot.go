// Package boot implements the final step of the entry sequence:
// installing the application as the IRQ forward target and handing the
// CPU to it. The register-switching branch itself is
// necessarily hardware-specific (see boot_tinygo.go); this file holds
// the part that is plain data manipulation and is exercised by tests
// without any CPU involved.
package boot

import (
	"encoding/binary"

	"openenterprise/nrfboot/mbrsvc"
)

// Reader is the minimal flash access Prepare needs: reading the
// application's vector table.
type Reader interface {
	Read(addr uint32, n int) []byte
}

// Prepare installs vectorBase as the MBR's IRQ forward address and reads
// the two leading words of the application's vector table: the initial
// main stack pointer and the reset vector. It performs no CPU state
// change; Jump (tinygo-only) does that.
func Prepare(dev Reader, mbr mbrsvc.Service, vectorBase uint32) (msp, resetVector uint32, err error) {
	if err := mbr.IRQForwardAddressSet(vectorBase); err != nil {
		return 0, 0, err
	}
	vt := dev.Read(vectorBase, 8)
	msp = binary.LittleEndian.Uint32(vt[0:4])
	resetVector = binary.LittleEndian.Uint32(vt[4:8])
	return msp, resetVector, nil
}
