//go:build tinygo

package flash

import (
	"device/arm"
	"device/nrf"
	"machine"
	"unsafe"
)

func unsafePointerFromAddr(addr uint32) unsafe.Pointer {
	return unsafe.Pointer(uintptr(addr))
}

// NVMC is the real Device backed by the nRF52's NVMC peripheral. There is
// exactly one instance of the underlying hardware; NVMC is a zero-size
// type, re-acquired at each call site rather than held by a long-lived
// handle, since every flash call is synchronous and the caller holds the
// only program thread.
type NVMC struct{}

func (NVMC) Pet() {
	machine.Watchdog.Update()
}

func (NVMC) Erase(pageAddr uint32) {
	nrf.NVMC.CONFIG.Set(nrf.NVMC_CONFIG_WEN_Een)
	waitReady()
	nrf.NVMC.ERASEPAGE.Set(pageAddr)
	waitReady()
	nrf.NVMC.CONFIG.Set(nrf.NVMC_CONFIG_WEN_Ren)
	waitReady()
}

func (NVMC) Write(addr uint32, data []byte) {
	if addr%4 != 0 || len(data)%4 != 0 {
		trap()
	}
	nrf.NVMC.CONFIG.Set(nrf.NVMC_CONFIG_WEN_Wen)
	waitReady()
	dst := (*[1 << 20]uint32)(unsafePointerFromAddr(addr))
	for i := 0; i < len(data); i += 4 {
		word := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		dst[i/4] = word
		waitReady()
	}
	nrf.NVMC.CONFIG.Set(nrf.NVMC_CONFIG_WEN_Ren)
	waitReady()
}

func (NVMC) Read(addr uint32, n int) []byte {
	src := (*[1 << 20]byte)(unsafePointerFromAddr(addr))
	out := make([]byte, n)
	copy(out, src[:n])
	return out
}

func waitReady() {
	for nrf.NVMC.READY.Get() == 0 {
	}
}

// trap puts the CPU into an undefined-instruction fault. All underlying
// driver failures are treated as fatal: there is no recovery path for a
// flash error at this layer, only a hardware fault or a logic bug.
func trap() {
	arm.Asm("udf #0")
	for {
	}
}
