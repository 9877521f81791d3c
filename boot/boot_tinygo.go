//go:build tinygo

package boot

import (
	"device/arm"

	"openenterprise/nrfboot/mbrsvc"
)

// Boot installs vectorBase as the IRQ forward target, then transfers
// control to the application: switches to the application's main stack
// pointer, sets LR to an unreturnable sentinel, and branches to its
// reset vector. It never returns.
func Boot(dev Reader, mbr mbrsvc.Service, vectorBase uint32) {
	msp, resetVector, err := Prepare(dev, mbr, vectorBase)
	if err != nil {
		trap()
	}
	Jump(msp, resetVector)
}

// Jump performs the actual CPU handoff: clear CONTROL.SPSEL so the
// exception return uses MSP, reprogram MSP to the application's stack
// top, poison LR so a stray return faults instead of re-entering the
// bootloader, and branch to the application's reset handler.
func Jump(msp, resetVector uint32) {
	arm.AsmFull(
		"mrs {tmp}, CONTROL\n"+
			"bic {tmp}, {tmp}, {spsel}\n"+
			"msr CONTROL, {tmp}\n"+
			"isb\n"+
			"msr MSP, {msp}\n"+
			"mov lr, {lr}\n"+
			"bx {rv}\n",
		map[string]interface{}{
			"tmp":   uint32(0),
			"spsel": uint32(2),
			"lr":    uint32(0xFFFFFFFF),
			"msp":   msp,
			"rv":    resetVector,
		},
	)
	for {
	}
}

func trap() {
	arm.Asm("udf #0")
	for {
	}
}
