//go:build !tinygo

package mbrsvc

import "testing"

func TestSimRecordsCopyBootloaderCall(t *testing.T) {
	s := &Sim{}
	s.CopyBootloader(0x27000, 256)
	if !s.CopyCalled {
		t.Fatal("CopyCalled not set")
	}
	if s.CopySrc != 0x27000 || s.CopyLenWords != 256 {
		t.Fatalf("recorded src=%#x lenWords=%d, want 0x27000/256", s.CopySrc, s.CopyLenWords)
	}
}

func TestSimIRQForwardAddressSet(t *testing.T) {
	s := &Sim{}
	if err := s.IRQForwardAddressSet(0x1000); err != nil {
		t.Fatalf("IRQForwardAddressSet: %v", err)
	}
	if !s.ForwardCalled || s.ForwardAddr != 0x1000 {
		t.Fatalf("ForwardCalled=%v ForwardAddr=%#x, want true/0x1000", s.ForwardCalled, s.ForwardAddr)
	}
}

func TestSimIRQForwardAddressSetPropagatesError(t *testing.T) {
	s := &Sim{ForwardErr: ErrCommandFailed{Command: CommandIRQForwardAddressSet, Code: 3}}
	if err := s.IRQForwardAddressSet(0x1000); err == nil {
		t.Fatal("expected error to propagate")
	}
}
