//go:build tinygo

package mbrsvc

import (
	"device/arm"
	"unsafe"
)

// command mirrors sd_mbr_command_t's layout for the two variants this
// bootloader uses: a command word followed by the largest parameter
// union member (two words is enough for both COPY_BL and
// IRQ_FORWARD_ADDRESS_SET).
type command struct {
	command Command
	param0  uint32
	param1  uint32
}

// sdMBRCommand calls into the MBR resident at the base of flash via SVC,
// passing a pointer to cmd in r0 and receiving the MBR's uint32 status
// code in r0. This is the Go-side equivalent of the original firmware's
// `asm!("svc 0")` call into sd_mbr_command.
func sdMBRCommand(cmd *command) uint32 {
	var ret uint32
	arm.AsmFull(
		"svc #0",
		map[string]interface{}{
			"in":  uintptr(unsafe.Pointer(cmd)),
			"out": &ret,
		},
	)
	return ret
}

// NVMC is the real Service backed by the resident MBR. Zero-size, like
// flash.NVMC: there is exactly one MBR and every call is synchronous.
type NVMC struct{}

func (NVMC) CopyBootloader(src uint32, lenWords uint32) {
	cmd := command{command: CommandCopyBL, param0: src, param1: lenWords}
	sdMBRCommand(&cmd)
	// COPY_BL resets the device on success; reaching here means it
	// failed. The caller (package copylist) treats any return as fatal.
}

func (NVMC) IRQForwardAddressSet(addr uint32) error {
	cmd := command{command: CommandIRQForwardAddressSet, param0: addr}
	ret := sdMBRCommand(&cmd)
	if ret != 0 {
		return ErrCommandFailed{Command: CommandIRQForwardAddressSet, Code: ret}
	}
	return nil
}
