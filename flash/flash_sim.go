//go:build !tinygo

package flash

// Sim is an in-RAM flash simulator used by the test suite and by the host
// tool cmd/swapviz. It models the two properties that make the swap
// engine's resumability argument work: pages read back as all-0xFF after
// Erase, and Write can only clear bits (each written byte is ANDed into
// the stored byte), so writing without an erase never turns a 0 bit back
// into a 1.
type Sim struct {
	mem     []byte
	base    uint32
	pets    int
	erases  []uint32 // page addresses erased, in order, for test assertions
	writes  int
	trapped error
}

// NewSim creates a simulator covering [base, base+len(mem)) initialized to
// erased (0xFF) flash.
func NewSim(base uint32, size int) *Sim {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &Sim{mem: mem, base: base}
}

// Pets returns how many times Pet has been called.
func (s *Sim) Pets() int { return s.pets }

// Erases returns the page addresses erased, in order.
func (s *Sim) Erases() []uint32 { return s.erases }

// Writes returns how many Write calls were made (Erase-and-skip paths
// that detect equality do not count).
func (s *Sim) Writes() int { return s.writes }

// Trapped returns the error that caused a simulated trap, if any.
func (s *Sim) Trapped() error { return s.trapped }

func (s *Sim) offset(addr uint32) int {
	if addr < s.base || int(addr-s.base) >= len(s.mem) {
		s.trap(errOutOfRange)
	}
	return int(addr - s.base)
}

func (s *Sim) trap(err error) {
	s.trapped = err
	panic(err)
}

func (s *Sim) Pet() { s.pets++ }

func (s *Sim) Erase(pageAddr uint32) {
	if pageAddr%PageSize != 0 {
		s.trap(errUnaligned)
	}
	off := s.offset(pageAddr)
	for i := 0; i < PageSize; i++ {
		s.mem[off+i] = 0xFF
	}
	s.erases = append(s.erases, pageAddr)
}

func (s *Sim) Write(addr uint32, data []byte) {
	if addr%4 != 0 || len(data)%4 != 0 {
		s.trap(errUnaligned)
	}
	start := s.offset(addr)
	if start+len(data) > start-(start%PageSize)+PageSize {
		s.trap(errCrossesPage)
	}
	for i, b := range data {
		// Flash can only clear bits without an erase; model that.
		s.mem[start+i] &= b
	}
	s.writes++
}

func (s *Sim) Read(addr uint32, n int) []byte {
	off := s.offset(addr)
	out := make([]byte, n)
	copy(out, s.mem[off:off+n])
	return out
}

// ReadPartition returns a copy of the bytes backing [addr, addr+n); it
// behaves exactly like Read.
func (s *Sim) ReadPartition(addr uint32, n int) []byte {
	return s.Read(addr, n)
}

// Seed overwrites [addr, addr+len(data)) directly, bypassing the
// erase/write protocol, for test and tooling setup (e.g. priming APP/DFU
// with a starting pattern before exercising the swap engine).
func (s *Sim) Seed(addr uint32, data []byte) {
	off := s.offset(addr)
	copy(s.mem[off:off+len(data)], data)
}

type simError string

func (e simError) Error() string { return string(e) }

const (
	errOutOfRange  = simError("flash/sim: address out of range")
	errUnaligned   = simError("flash/sim: unaligned access")
	errCrossesPage = simError("flash/sim: write crosses page boundary")
)
