// Package copylist implements the copy-list executor: it
// validates and applies the descriptor-driven page copies armed by a
// higher-level updater, dispatching each item to a plain copy, a
// DEFLATE-decompressing copy, or a delegated MBR bootloader-replacement
// copy, verifying the destination CRC after every item that returns.
package copylist

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/flate"

	"openenterprise/nrfboot/crc32"
	"openenterprise/nrfboot/flash"
	"openenterprise/nrfboot/model"
	"openenterprise/nrfboot/partition"
)

// Fatal error kinds. Any non-nil error returned by Execute is
// fatal: the caller (the firmware entry sequence) traps rather than
// attempting recovery.
var (
	ErrInflateCorrupted   = errors.New("copylist: inflate corrupted")
	ErrInflateOverflow    = errors.New("copylist: inflate produced more bytes than dst_size")
	ErrInflateUnderflow   = errors.New("copylist: inflate produced fewer bytes than dst_size")
	ErrCRCMismatch        = errors.New("copylist: destination crc mismatch after applying item")
	ErrBootloaderReturned = errors.New("copylist: mbr copy_bl syscall returned instead of resetting")
)

// MBRCopier is the one privileged syscall the bootloader item path
// delegates self-replacement to. A correct implementation never returns
// on success: the MBR resets into the freshly written bootloader.
// Returning at all — success or failure — is fatal.
type MBRCopier interface {
	CopyBootloader(src uint32, lenWords uint32)
}

// Executor applies a validated copy-list located at the start of the
// BOOTLOADER_COPYLIST page.
type Executor struct {
	dev  flash.Device
	page uint32
	mbr  MBRCopier
	boot partition.Range
}

// New builds a copy-list executor. page is the BOOTLOADER_COPYLIST page
// address; boot identifies the BOOTLOADER partition, whose bounds gate
// the bootloader-replacement item path.
func New(dev flash.Device, page uint32, mbr MBRCopier, boot partition.Range) *Executor {
	return &Executor{dev: dev, page: page, mbr: mbr, boot: boot}
}

// Execute reads the copy-list page; if it is valid, applies every item in
// order and erases the page on success. An invalid (or absent/erased)
// copy-list is silently ignored — a corrupt control block must not brick
// the device. A nil return does not imply anything was applied; check the
// return value only to detect fatal conditions.
func (e *Executor) Execute() error {
	buf := e.dev.Read(e.page, model.HeaderSize+model.MaxItems*model.ItemSize)
	list := model.UnmarshalCopylist(buf)
	if !list.IsValid() {
		return nil
	}
	for _, it := range list.Items() {
		if err := e.applyItem(it); err != nil {
			return err
		}
	}
	flash.Erase(e.dev, e.page)
	return nil
}

func (e *Executor) applyItem(it model.Item) error {
	if it.BootloaderReplace() {
		if it.Compressed() {
			panic("copylist: item flags BOOTLOADER and COMPRESSED are mutually exclusive")
		}
		if it.SrcSize != it.DstSize {
			panic("copylist: bootloader item src_size must equal dst_size")
		}
		return e.bootloaderCopy(it)
	}

	if it.Compressed() {
		if err := e.decompressingCopy(it); err != nil {
			return err
		}
	} else {
		if it.SrcSize != it.DstSize {
			panic("copylist: plain item src_size must equal dst_size")
		}
		e.plainCopy(it)
	}

	return e.verifyDestinationCRC(it)
}

// plainCopy copies src_size bytes (rounded up to a word) from src to dst,
// page by page, using the wear-reducing erase-and-write-if-different.
func (e *Executor) plainCopy(it model.Item) {
	remaining := roundUpWord(it.DstSize)
	src, dst := it.Src, it.Dst
	for remaining > 0 {
		chunk := uint32(flash.PageSize)
		if remaining < chunk {
			chunk = remaining
		}
		data := e.dev.Read(src, int(chunk))
		flash.EraseAndWriteIfDifferent(e.dev, dst, data)
		src += chunk
		dst += chunk
		remaining -= chunk
	}
}

// decompressingCopy streams DEFLATE-compressed data from [src, src+src_size)
// through a page-sized buffer, writing one flash page at a time. Every
// non-final chunk must fill a whole page; a short non-final chunk is a
// protocol error (ErrInflateCorrupted). The decompressor's implicit
// 32 KiB window comes from the DEFLATE format itself, with no extra
// configuration needed.
func (e *Executor) decompressingCopy(it model.Item) error {
	compressed := e.dev.Read(it.Src, int(it.SrcSize))
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	buf := make([]byte, flash.PageSize)
	dst := it.Dst
	var written uint32

	for {
		n, err := io.ReadFull(r, buf)
		switch {
		case err == nil:
			if n != flash.PageSize {
				return ErrInflateCorrupted
			}
			if err := e.writeChunk(&dst, buf[:n], &written, it.DstSize); err != nil {
				return err
			}
		case errors.Is(err, io.ErrUnexpectedEOF):
			if err := e.writeChunk(&dst, buf[:n], &written, it.DstSize); err != nil {
				return err
			}
			if written != it.DstSize {
				return ErrInflateUnderflow
			}
			return nil
		case errors.Is(err, io.EOF):
			if written != it.DstSize {
				return ErrInflateUnderflow
			}
			return nil
		default:
			return ErrInflateCorrupted
		}
	}
}

// writeChunk writes one decompressed chunk (n bytes, word-rounded for the
// flash write) at *dst, advances *dst by the rounded size, and adds n to
// *written. Overflow is checked against the unrounded remaining budget.
func (e *Executor) writeChunk(dst *uint32, chunk []byte, written *uint32, dstSize uint32) error {
	if uint32(len(chunk)) > dstSize-*written {
		return ErrInflateOverflow
	}
	rounded := roundUpWord(uint32(len(chunk)))
	padded := chunk
	if rounded != uint32(len(chunk)) {
		padded = make([]byte, rounded)
		copy(padded, chunk)
	}
	flash.EraseAndWriteIfDifferent(e.dev, *dst, padded)
	*dst += rounded
	*written += uint32(len(chunk))
	return nil
}

// bootloaderCopy delegates self-replacement to the MBR. dst must lie
// within the BOOTLOADER partition. If source bytes already equal
// destination bytes, the copy is skipped. Otherwise the MBR COPY_BL
// syscall is invoked; it is expected never to return.
func (e *Executor) bootloaderCopy(it model.Item) error {
	if it.Dst != e.boot.Start || !e.boot.Contains(it.Dst, it.SrcSize) {
		panic("copylist: bootloader item destination outside BOOTLOADER partition")
	}

	src := e.dev.Read(it.Src, int(it.SrcSize))
	dst := e.dev.Read(it.Dst, int(it.SrcSize))
	if bytes.Equal(src, dst) {
		return nil
	}

	lenWords := (it.SrcSize + 3) / 4
	e.mbr.CopyBootloader(it.Src, lenWords)
	// COPY_BL is expected not to return. Reaching here is fatal.
	return ErrBootloaderReturned
}

// verifyDestinationCRC recomputes the CRC of the dst_size bytes now at
// dst and compares it against the item's recorded dst_crc.
func (e *Executor) verifyDestinationCRC(it model.Item) error {
	data := e.dev.Read(it.Dst, int(it.DstSize))
	if crc32.Checksum(data) != it.DstCRC {
		return ErrCRCMismatch
	}
	return nil
}

func roundUpWord(n uint32) uint32 {
	return (n + 3) / 4 * 4
}
