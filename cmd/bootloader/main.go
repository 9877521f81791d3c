//go:build tinygo

// Command bootloader is the second-stage bootloader firmware image: it
// runs once per power-on, resolves any armed partition swap, applies any
// pending copy-list, and hands off to the application. See package swap,
// package copylist, and package boot for the three stages; this file is
// only the entry sequence and hardware bring-up that wires them
// together, mirroring the structure of the application firmware's own
// main() (confirm/init/run).
package main

import (
	"device/arm"
	"device/nrf"
	"machine"
	"unsafe"

	"openenterprise/nrfboot/boot"
	"openenterprise/nrfboot/config"
	"openenterprise/nrfboot/copylist"
	"openenterprise/nrfboot/diag"
	"openenterprise/nrfboot/flash"
	"openenterprise/nrfboot/mbrsvc"
	"openenterprise/nrfboot/partition"
	"openenterprise/nrfboot/swap"
	"openenterprise/nrfboot/version"
)

func main() {
	ensureApprotectEnabled()

	diag.Info("boot: starting",
		"marker", version.BuildMarker,
		"version", version.Version,
		"sha", version.GitSHA,
	)

	startWatchdog()

	dev := flash.NVMC{}
	mbr := mbrsvc.NVMC{}

	swapEngine := swap.New(
		dev,
		partition.BootloaderCopylist.Start,
		partition.App.Start,
		partition.DFU.Start,
		int(partition.App.Pages()),
	)
	swapEngine.Execute()
	diag.Info("boot: swap stage complete")

	executor := copylist.New(dev, partition.BootloaderCopylist.Start, mbr, partition.Bootloader)
	if err := executor.Execute(); err != nil {
		diag.Error("boot: copy-list stage failed", "err", err.Error())
		trap()
	}
	diag.Info("boot: copy-list stage complete")

	boot.Boot(dev, mbr, partition.AppVectorBase)
	// boot.Boot never returns.
}

// ensureApprotectEnabled implements the one-shot UICR fuse check from
// the original entry sequence: unless the UICR APPROTECT word already
// reads 0 (protection enabled) or the FICR word holds
// ApprotectDisableKey (device deliberately unlocked), clear the
// APPROTECT word to enable readback protection and reset so the new
// UICR value takes effect. This runs before the watchdog starts, since
// it deliberately resets the CPU itself.
func ensureApprotectEnabled() {
	approtect := (*uint32)(unsafe.Pointer(uintptr(config.UICRApprotectAddr)))
	ficrKey := (*uint32)(unsafe.Pointer(uintptr(config.FICRApprotectAddr)))
	if *approtect == 0 || *ficrKey == config.ApprotectDisableKey {
		return
	}

	nrf.NVMC.CONFIG.Set(nrf.NVMC_CONFIG_WEN_Wen)
	for nrf.NVMC.READY.Get() == 0 {
	}
	*approtect = 0
	for nrf.NVMC.READY.Get() == 0 {
	}
	nrf.NVMC.CONFIG.Set(nrf.NVMC_CONFIG_WEN_Ren)
	for nrf.NVMC.READY.Get() == 0 {
	}
	arm.SystemReset()
}

// startWatchdog configures and starts the watchdog per config's tunables.
// machine.Watchdog.Configure only knows about the timeout, so the
// sleep/debug-halt behavior bits are poked directly into the WDT
// peripheral's CONFIG register first, the same way ensureApprotectEnabled
// pokes NVMC directly above. If the watchdog is already running with a
// configuration we cannot change, there is nothing to do but let it
// expire: this happens right after a fresh flash when the watchdog was
// left active by a previous image.
func startWatchdog() {
	var wdtConfig uint32
	if config.WatchdogRunDuringSleep {
		wdtConfig |= nrf.WDT_CONFIG_SLEEP_Run
	} else {
		wdtConfig |= nrf.WDT_CONFIG_SLEEP_Pause
	}
	if config.WatchdogRunDuringDebugHalt {
		wdtConfig |= nrf.WDT_CONFIG_HALT_Run
	} else {
		wdtConfig |= nrf.WDT_CONFIG_HALT_Pause
	}
	nrf.WDT.CONFIG.Set(wdtConfig)

	err := machine.Watchdog.Configure(machine.WatchdogConfig{
		TimeoutMillis: uint32(config.WatchdogTimeout.Milliseconds()),
	})
	if err != nil {
		diag.Warn("boot: watchdog already active with incompatible config, waiting for timeout")
		for {
		}
	}
	machine.Watchdog.Start()
}

func trap() {
	arm.Asm("udf #0")
	for {
	}
}
