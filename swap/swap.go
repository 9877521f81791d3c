// Package swap implements the power-fail-safe A/B rotation swap between
// the active APP partition and the DFU staging partition.
// DFU is exactly one page larger than APP; that extra page is the
// rotation scratch that lets every step be expressed as a single
// page-to-page copy, resumable via the progress log in package progress.
package swap

import (
	"openenterprise/nrfboot/flash"
	"openenterprise/nrfboot/progress"
)

// Engine runs the forward-swap / revert state machine over a single APP
// and DFU partition pair.
type Engine struct {
	dev       flash.Device
	progress  *progress.Log
	appStart  uint32
	dfuStart  uint32
	pageCount int // N = len(APP) / PageSize
}

// New builds a swap engine. dfuStart must address a partition exactly
// (pageCount+1)*PageSize bytes long; callers are expected to have
// validated the partition map already (see package partition's init).
func New(dev flash.Device, progressPage, appStart, dfuStart uint32, pageCount int) *Engine {
	return &Engine{
		dev:       dev,
		progress:  progress.New(dev, progressPage),
		appStart:  appStart,
		dfuStart:  dfuStart,
		pageCount: pageCount,
	}
}

func (e *Engine) app(n int) uint32 {
	return e.appStart + uint32(n)*flash.PageSize
}

func (e *Engine) dfu(n int) uint32 {
	return e.dfuStart + uint32(n)*flash.PageSize
}

// copyPageOnce copies one whole page from "from" to "to", guarded by the
// progress log: if stepIndex was already completed on a previous boot, it
// is skipped. Otherwise the copy runs and the step is marked complete.
// This single guard is what makes every step idempotent under arbitrary
// interruption.
func (e *Engine) copyPageOnce(stepIndex int, from, to uint32) {
	if e.progress.Get() > stepIndex {
		return
	}
	data := e.dev.Read(from, flash.PageSize)
	flash.EraseAndWrite(e.dev, to, data)
	e.progress.Set(stepIndex)
}

// doUpdate runs the forward swap: for p in 0..N, shift old APP page
// (N-1-p) up into DFU page (N-p), then pull new DFU page (N-1-p) down
// into APP page (N-1-p). Progress indices [0, 2N) are used.
func (e *Engine) doUpdate() {
	n := e.pageCount
	for p := 0; p < n; p++ {
		e.copyPageOnce(2*p, e.app(n-1-p), e.dfu(n-p))
		e.copyPageOnce(2*p+1, e.dfu(n-1-p), e.app(n-1-p))
	}
}

// doRevert runs the symmetric reverse rotation using the disjoint
// progress range [2N, 4N).
func (e *Engine) doRevert() {
	n := e.pageCount
	for p := 0; p < n; p++ {
		e.copyPageOnce(2*n+2*p, e.app(p), e.dfu(p))
		e.copyPageOnce(2*n+2*p+1, e.dfu(p+1), e.app(p))
	}
}

// TotalSteps returns the full progress-index space: 2N forward steps
// followed by 2N revert steps.
func (e *Engine) TotalSteps() int {
	return 4 * e.pageCount
}

// Step performs exactly one step of whichever phase the progress index
// currently falls in (forward swap below 2N, revert from 2N to 4N),
// returning false once there is nothing left to do. Each call runs one
// copyPageOnce step, the same guarded copy Execute's doUpdate/doRevert
// loops run; it is exported so tooling (cmd/swapviz) can single-step the
// state machine. Note that in real operation the
// transition from "forward complete" to "reverting" only happens across
// a reboot (see Execute); stepping straight through that boundary here
// is a visualization convenience, not production behavior.
func (e *Engine) Step() bool {
	if !e.progress.IsStarted() {
		return false
	}
	n := e.pageCount
	idx := e.progress.Get()
	switch {
	case idx < 2*n:
		p := idx / 2
		if idx%2 == 0 {
			e.copyPageOnce(idx, e.app(n-1-p), e.dfu(n-p))
		} else {
			e.copyPageOnce(idx, e.dfu(n-1-p), e.app(n-1-p))
		}
		return true
	case idx < 4*n:
		p := (idx - 2*n) / 2
		if (idx-2*n)%2 == 0 {
			e.copyPageOnce(idx, e.app(p), e.dfu(p))
		} else {
			e.copyPageOnce(idx, e.dfu(p+1), e.app(p))
		}
		return true
	default:
		return false
	}
}

// Execute runs the swap state machine:
//  1. If no update is armed, do nothing.
//  2. If the forward swap already completed on a previous boot (the
//     application never confirmed before this reboot), revert it and
//     mark the progress log as reverted.
//  3. Otherwise, run (or resume) the forward swap.
func (e *Engine) Execute() {
	if !e.progress.IsStarted() {
		return
	}
	if e.progress.Get() >= 2*e.pageCount {
		e.doRevert()
		e.progress.SetAsReverted()
		return
	}
	e.doUpdate()
}
