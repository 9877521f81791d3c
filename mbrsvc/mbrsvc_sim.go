//go:build !tinygo

package mbrsvc

// Sim is a host-testable fake of the MBR syscall surface. Unlike the real
// MBR, CopyBootloader returns normally (after recording the call) instead
// of resetting the device, so tests can observe that the caller correctly
// treats that return as fatal.
type Sim struct {
	CopyCalled    bool
	CopySrc       uint32
	CopyLenWords  uint32
	ForwardCalled bool
	ForwardAddr   uint32
	ForwardErr    error
}

func (s *Sim) CopyBootloader(src uint32, lenWords uint32) {
	s.CopyCalled = true
	s.CopySrc = src
	s.CopyLenWords = lenWords
}

func (s *Sim) IRQForwardAddressSet(addr uint32) error {
	s.ForwardCalled = true
	s.ForwardAddr = addr
	return s.ForwardErr
}
