package copylist

import (
	"bytes"
	"errors"
	"testing"

	"github.com/klauspost/compress/flate"

	"openenterprise/nrfboot/crc32"
	"openenterprise/nrfboot/flash"
	"openenterprise/nrfboot/model"
	"openenterprise/nrfboot/partition"
)

const (
	listPage  = 0x10000
	srcBase   = 0x20000
	dstBase   = 0x30000
	bootStart = 0x40000
	bootEnd   = 0x42000
	simBase   = 0x10000
	simSize   = bootEnd - simBase
)

func newSim() *flash.Sim {
	return flash.NewSim(simBase, simSize)
}

func bootRange() partition.Range {
	return partition.Range{Start: bootStart, End: bootEnd}
}

// fakeMBR records whether CopyBootloader was invoked and how; it never
// actually resets, letting tests observe the fatal "returned" path.
type fakeMBR struct {
	called   bool
	src      uint32
	lenWords uint32
}

func (f *fakeMBR) CopyBootloader(src uint32, lenWords uint32) {
	f.called = true
	f.src = src
	f.lenWords = lenWords
}

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		t.Fatalf("flate.NewWriter: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("flate write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("flate close: %v", err)
	}
	return buf.Bytes()
}

func writeList(sim *flash.Sim, items []model.Item) {
	list, err := model.NewCopylist(items)
	if err != nil {
		panic(err)
	}
	flash.Erase(sim, listPage)
	flash.Write(sim, listPage, list.MarshalBinary())
}

func TestExecuteIgnoresInvalidCopylist(t *testing.T) {
	sim := newSim()
	// listPage left erased (all 0xFF): magic check fails.
	e := New(sim, listPage, &fakeMBR{}, bootRange())
	if err := e.Execute(); err != nil {
		t.Fatalf("Execute on an erased page returned %v, want nil", err)
	}
}

func TestPlainCopyAppliesAndVerifiesCRC(t *testing.T) {
	sim := newSim()
	payload := bytes.Repeat([]byte{0x42}, flash.PageSize)
	sim.Seed(srcBase, payload)
	sim.Seed(dstBase, bytes.Repeat([]byte{0xFF}, flash.PageSize))

	item := model.Item{
		Src:     srcBase,
		SrcSize: uint32(len(payload)),
		Dst:     dstBase,
		DstSize: uint32(len(payload)),
		DstCRC:  crc32.Checksum(payload),
	}
	writeList(sim, []model.Item{item})

	e := New(sim, listPage, &fakeMBR{}, bootRange())
	if err := e.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := sim.Read(dstBase, len(payload))
	if !bytes.Equal(got, payload) {
		t.Fatal("plain copy did not reproduce source bytes at destination")
	}
}

func TestPlainCopyCRCMismatchIsFatal(t *testing.T) {
	sim := newSim()
	payload := bytes.Repeat([]byte{0x11}, 64)
	sim.Seed(srcBase, payload)

	item := model.Item{
		Src:     srcBase,
		SrcSize: uint32(len(payload)),
		Dst:     dstBase,
		DstSize: uint32(len(payload)),
		DstCRC:  0xDEADBEEF, // deliberately wrong
	}
	writeList(sim, []model.Item{item})

	e := New(sim, listPage, &fakeMBR{}, bootRange())
	err := e.Execute()
	if !errors.Is(err, ErrCRCMismatch) {
		t.Fatalf("Execute returned %v, want ErrCRCMismatch", err)
	}
}

func TestExecuteErasesCopylistOnSuccess(t *testing.T) {
	sim := newSim()
	payload := bytes.Repeat([]byte{0x07}, 16)
	sim.Seed(srcBase, payload)

	item := model.Item{
		Src:     srcBase,
		SrcSize: uint32(len(payload)),
		Dst:     dstBase,
		DstSize: uint32(len(payload)),
		DstCRC:  crc32.Checksum(payload),
	}
	writeList(sim, []model.Item{item})

	e := New(sim, listPage, &fakeMBR{}, bootRange())
	if err := e.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	raw := sim.Read(listPage, model.HeaderSize+model.MaxItems*model.ItemSize)
	for _, b := range raw {
		if b != 0xFF {
			t.Fatal("copy-list page not erased after successful execution")
		}
	}
}

func TestDecompressingCopyExactlyPageAligned(t *testing.T) {
	sim := newSim()
	plain := bytes.Repeat([]byte{0xAB}, 2*flash.PageSize)
	compressed := deflate(t, plain)
	sim.Seed(srcBase, compressed)

	item := model.Item{
		Flags:   model.FlagCompressed,
		Src:     srcBase,
		SrcSize: uint32(len(compressed)),
		Dst:     dstBase,
		DstSize: uint32(len(plain)),
		DstCRC:  crc32.Checksum(plain),
	}
	writeList(sim, []model.Item{item})

	e := New(sim, listPage, &fakeMBR{}, bootRange())
	if err := e.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := sim.Read(dstBase, len(plain))
	if !bytes.Equal(got, plain) {
		t.Fatal("decompressed output did not match source")
	}
}

func TestDecompressingCopyShortFinalChunkIsWordRounded(t *testing.T) {
	sim := newSim()
	// One full page plus a tail that is deliberately NOT a multiple of 4,
	// so the final write must round up.
	tail := bytes.Repeat([]byte{0xCD}, 101)
	plain := append(bytes.Repeat([]byte{0xAB}, flash.PageSize), tail...)
	compressed := deflate(t, plain)
	sim.Seed(srcBase, compressed)

	item := model.Item{
		Flags:   model.FlagCompressed,
		Src:     srcBase,
		SrcSize: uint32(len(compressed)),
		Dst:     dstBase,
		DstSize: uint32(len(plain)),
		DstCRC:  crc32.Checksum(plain),
	}
	writeList(sim, []model.Item{item})

	e := New(sim, listPage, &fakeMBR{}, bootRange())
	if err := e.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := sim.Read(dstBase, len(plain))
	if !bytes.Equal(got, plain) {
		t.Fatal("decompressed tail did not match source")
	}
}

func TestDecompressingCopyOverflowIsFatal(t *testing.T) {
	sim := newSim()
	plain := bytes.Repeat([]byte{0x99}, 4000)
	compressed := deflate(t, plain)
	sim.Seed(srcBase, compressed)

	item := model.Item{
		Flags:   model.FlagCompressed,
		Src:     srcBase,
		SrcSize: uint32(len(compressed)),
		Dst:     dstBase,
		DstSize: 100, // far smaller than the real decompressed size
		DstCRC:  0,
	}
	writeList(sim, []model.Item{item})

	e := New(sim, listPage, &fakeMBR{}, bootRange())
	err := e.Execute()
	if !errors.Is(err, ErrInflateOverflow) {
		t.Fatalf("Execute returned %v, want ErrInflateOverflow", err)
	}
}

func TestDecompressingCopyUnderflowIsFatal(t *testing.T) {
	sim := newSim()
	plain := bytes.Repeat([]byte{0x99}, 100)
	compressed := deflate(t, plain)
	sim.Seed(srcBase, compressed)

	item := model.Item{
		Flags:   model.FlagCompressed,
		Src:     srcBase,
		SrcSize: uint32(len(compressed)),
		Dst:     dstBase,
		DstSize: 500, // larger than what the stream actually produces
		DstCRC:  0,
	}
	writeList(sim, []model.Item{item})

	e := New(sim, listPage, &fakeMBR{}, bootRange())
	err := e.Execute()
	if !errors.Is(err, ErrInflateUnderflow) {
		t.Fatalf("Execute returned %v, want ErrInflateUnderflow", err)
	}
}

func TestDecompressingCopyCorruptStreamIsFatal(t *testing.T) {
	sim := newSim()
	garbage := bytes.Repeat([]byte{0x00, 0xFF, 0x13, 0x37}, 16)
	sim.Seed(srcBase, garbage)

	item := model.Item{
		Flags:   model.FlagCompressed,
		Src:     srcBase,
		SrcSize: uint32(len(garbage)),
		Dst:     dstBase,
		DstSize: flash.PageSize,
		DstCRC:  0,
	}
	writeList(sim, []model.Item{item})

	e := New(sim, listPage, &fakeMBR{}, bootRange())
	err := e.Execute()
	if !errors.Is(err, ErrInflateCorrupted) {
		t.Fatalf("Execute returned %v, want ErrInflateCorrupted", err)
	}
}

func TestBootloaderCopySkippedWhenAlreadyEqual(t *testing.T) {
	sim := newSim()
	payload := bytes.Repeat([]byte{0x5A}, 64)
	sim.Seed(srcBase, payload)
	sim.Seed(bootStart, payload) // destination already matches source

	item := model.Item{
		Flags:   model.FlagBootloader,
		Src:     srcBase,
		SrcSize: uint32(len(payload)),
		Dst:     bootStart,
		DstSize: uint32(len(payload)),
	}
	writeList(sim, []model.Item{item})

	mbr := &fakeMBR{}
	e := New(sim, listPage, mbr, bootRange())
	if err := e.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if mbr.called {
		t.Fatal("CopyBootloader invoked despite source already matching destination")
	}
}

func TestBootloaderCopyInvokesMBRAndTreatsReturnAsFatal(t *testing.T) {
	sim := newSim()
	payload := bytes.Repeat([]byte{0x5A}, 64)
	sim.Seed(srcBase, payload)
	sim.Seed(bootStart, bytes.Repeat([]byte{0xFF}, 64))

	item := model.Item{
		Flags:   model.FlagBootloader,
		Src:     srcBase,
		SrcSize: uint32(len(payload)),
		Dst:     bootStart,
		DstSize: uint32(len(payload)),
	}
	writeList(sim, []model.Item{item})

	mbr := &fakeMBR{}
	e := New(sim, listPage, mbr, bootRange())
	err := e.Execute()
	if !mbr.called {
		t.Fatal("CopyBootloader was not invoked")
	}
	if mbr.src != srcBase || mbr.lenWords != uint32(len(payload))/4 {
		t.Fatalf("CopyBootloader called with src=%#x lenWords=%d, want src=%#x lenWords=%d",
			mbr.src, mbr.lenWords, srcBase, len(payload)/4)
	}
	if !errors.Is(err, ErrBootloaderReturned) {
		t.Fatalf("Execute returned %v, want ErrBootloaderReturned", err)
	}
}

func TestBootloaderCopyOutsidePartitionPanics(t *testing.T) {
	sim := newSim()
	payload := bytes.Repeat([]byte{0x5A}, 64)
	sim.Seed(srcBase, payload)

	item := model.Item{
		Flags:   model.FlagBootloader,
		Src:     srcBase,
		SrcSize: uint32(len(payload)),
		Dst:     srcBase, // not within the BOOTLOADER range
		DstSize: uint32(len(payload)),
	}
	writeList(sim, []model.Item{item})

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a bootloader item targeting outside BOOTLOADER")
		}
	}()
	e := New(sim, listPage, &fakeMBR{}, bootRange())
	_ = e.Execute()
}

func TestMultipleItemsAppliedInOrder(t *testing.T) {
	sim := newSim()
	first := bytes.Repeat([]byte{0x01}, 32)
	second := bytes.Repeat([]byte{0x02}, 32)
	sim.Seed(srcBase, first)
	sim.Seed(srcBase+0x1000, second)

	items := []model.Item{
		{Src: srcBase, SrcSize: 32, Dst: dstBase, DstSize: 32, DstCRC: crc32.Checksum(first)},
		{Src: srcBase + 0x1000, SrcSize: 32, Dst: dstBase + 0x1000, DstSize: 32, DstCRC: crc32.Checksum(second)},
	}
	writeList(sim, items)

	e := New(sim, listPage, &fakeMBR{}, bootRange())
	if err := e.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := sim.Read(dstBase, 32); !bytes.Equal(got, first) {
		t.Fatal("first item not applied correctly")
	}
	if got := sim.Read(dstBase+0x1000, 32); !bytes.Equal(got, second) {
		t.Fatal("second item not applied correctly")
	}
}
