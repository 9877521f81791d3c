// Package config holds the bootloader's compile-time tunables. Unlike
// the application-side config this one is modeled after, there is no
// environment override mechanism here: a bootloader's behavior must be
// reproducible from the flashed binary alone, so every value below is a
// named constant, not a runtime-loaded default.
package config

import "time"

// UICR/FICR addresses the one-shot APPROTECT fuse lives at on this
// silicon revision, and the sentinel that means "already disabled,
// correctly — leave it alone". Written once per device; see the entry
// sequence in cmd/bootloader.
const (
	UICRApprotectAddr   = 0x10001208
	FICRApprotectAddr   = 0x100010FC
	ApprotectDisableKey = 0xE35C38E7
)

// WatchdogTimeout is how long the hardware watchdog may run without
// being pet before it resets the device. Every flash operation pets the
// watchdog (package flash); this bound exists to catch a genuinely
// stuck loop, not to pace normal execution.
const WatchdogTimeout = 5 * time.Second

// WatchdogRunDuringSleep and WatchdogRunDuringDebugHalt mirror the
// hardware's watchdog behavior bits: it must keep running if the CPU
// sleeps, since nothing else would wake it, but must halt when a
// debugger has halted the CPU, so a breakpoint session isn't reset out
// from under it.
const (
	WatchdogRunDuringSleep     = true
	WatchdogRunDuringDebugHalt = false
)
