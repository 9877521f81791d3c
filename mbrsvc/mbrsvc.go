// Package mbrsvc wraps the two nRF52 Master Boot Record syscalls the
// bootloader depends on: COPY_BL (bootloader self-replacement) and
// IRQ_FORWARD_ADDRESS_SET (boot handoff). The MBR lives below
// address 0x1000 and is entered through SVC; everything here is a thin,
// build-tag-split wrapper around that call, never reimplementing MBR
// behavior.
package mbrsvc

// Command identifies an MBR SVC command code, mirrored from the
// SoftDevice's sd_mbr_command_t enumeration.
type Command uint32

const (
	// CommandCopyBL instructs the MBR to copy len_words words from src
	// into the bootloader region and reset. On success it does not
	// return to the caller.
	CommandCopyBL Command = 0

	// CommandIRQForwardAddressSet installs the address the MBR forwards
	// unhandled interrupts to — the application's own vector table.
	CommandIRQForwardAddressSet Command = 1
)

// Service is the MBR syscall surface the rest of the bootloader depends
// on, satisfied by NVMC (the real tinygo-build implementation) and by
// Sim (the host-testable fake).
type Service interface {
	// CopyBootloader invokes COPY_BL with the given source address and
	// length in 32-bit words. A correct implementation never returns on
	// success.
	CopyBootloader(src uint32, lenWords uint32)

	// IRQForwardAddressSet installs addr as the IRQ forward target.
	IRQForwardAddressSet(addr uint32) error
}

// ErrCommandFailed wraps a non-zero MBR command result code.
type ErrCommandFailed struct {
	Command Command
	Code    uint32
}

func (e ErrCommandFailed) Error() string {
	return "mbrsvc: command failed"
}
