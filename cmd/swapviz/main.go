// Command swapviz is an interactive terminal visualizer for the swap
// engine and its progress log, built over the in-RAM flash simulator.
// It single-steps swap.Engine and renders the APP/DFU page tables and
// the progress-log bitmap after each step, letting a developer manually
// walk through every interruption point the test suite exercises
// exhaustively (see swap.TestInterruptedSwapReplayReachesSameFinalState).
// The structure (a bubbletea model with Init/Update/View) and the
// struct-dump-on-demand via go-spew both follow hejops-gone's CPU state
// debugger.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"openenterprise/nrfboot/flash"
	"openenterprise/nrfboot/progress"
	"openenterprise/nrfboot/swap"
)

const (
	simBase  = 0x20000
	appAddr  = 0x20000
	dfuAddr  = 0x30000
	progAddr = 0x40000
)

func main() {
	pageCount := flag.Int("pages", 3, "number of APP pages to simulate")
	flag.Parse()

	sim, engine := newDemoFixture(*pageCount)
	m := model{sim: sim, engine: engine, pageCount: *pageCount}

	if _, err := tea.NewProgram(m).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "swapviz:", err)
		os.Exit(1)
	}
}

// newDemoFixture seeds a simulated flash image with distinguishable
// "old" APP pages and "new" DFU pages, and arms the progress log, so the
// visualizer has something to step through immediately.
func newDemoFixture(pageCount int) (*flash.Sim, *swap.Engine) {
	size := (progAddr - simBase) + flash.PageSize
	sim := flash.NewSim(simBase, size)
	e := swap.New(sim, progAddr, appAddr, dfuAddr, pageCount)

	for p := 0; p < pageCount; p++ {
		flash.Erase(sim, appAddr+uint32(p)*flash.PageSize)
		flash.Write(sim, appAddr+uint32(p)*flash.PageSize, fill(0xA0+byte(p)))
		flash.Erase(sim, dfuAddr+uint32(p)*flash.PageSize)
		flash.Write(sim, dfuAddr+uint32(p)*flash.PageSize, fill(0xB0+byte(p)))
	}
	flash.Erase(sim, dfuAddr+uint32(pageCount)*flash.PageSize)

	flash.Write(sim, progAddr, []byte{0x7D, 0x3C, 0xE5, 0x55}) // SwapMagic, little-endian

	return sim, e
}

func fill(marker byte) []byte {
	buf := make([]byte, flash.PageSize)
	for i := range buf {
		buf[i] = marker
	}
	return buf
}

type model struct {
	sim       *flash.Sim
	engine    *swap.Engine
	pageCount int
	steps     int
	showDump  bool
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ", "n":
		if m.engine.Step() {
			m.steps++
		}
	case "d":
		m.showDump = !m.showDump
	}
	return m, nil
}

func (m model) View() string {
	sections := []string{
		m.pageTable("APP", appAddr, m.pageCount),
		m.pageTable("DFU", dfuAddr, m.pageCount+1),
		m.progressBitmap(),
	}
	if m.showDump {
		sections = append(sections, spew.Sdump(struct {
			Steps     int
			PageCount int
		}{m.steps, m.pageCount}))
	}
	sections = append(sections, "space/n: step   d: toggle dump   q: quit")
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) pageTable(name string, base uint32, pages int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", name)
	for p := 0; p < pages; p++ {
		addr := base + uint32(p)*flash.PageSize
		data := m.sim.Read(addr, 1)
		fmt.Fprintf(&b, "  [%d] %#06x = %#02x\n", p, addr, data[0])
	}
	return b.String()
}

func (m model) progressBitmap() string {
	log := progress.New(m.sim, progAddr)
	var b strings.Builder
	fmt.Fprintf(&b, "progress: started=%v index=%d/%d\n", log.IsStarted(), log.Get(), m.engine.TotalSteps())
	for i := 0; i < m.engine.TotalSteps(); i++ {
		if i < log.Get() {
			b.WriteByte('#')
		} else {
			b.WriteByte('.')
		}
	}
	b.WriteByte('\n')
	return b.String()
}
