// Package partition defines the compile-time flash layout shared by the
// bootloader and the linker script. Nothing in this package touches
// hardware; it is plain data, kept in one inspectable place instead of
// scattered as magic numbers across the engines that consume it.
package partition

// PageSize is the internal flash erase unit (and minimum write alignment
// for whole-page operations). All partitions are page-aligned.
const PageSize = 4096

// Range is a half-open byte range [Start, End) on flash. Ranges must never
// overlap; init checks this for the layout below and panics if it fails.
type Range struct {
	Start uint32
	End   uint32
}

// Len returns the size of the range in bytes.
func (r Range) Len() uint32 {
	return r.End - r.Start
}

// Pages returns the number of whole pages the range spans. Callers rely on
// Len being an exact multiple of PageSize; this is checked once in init.
func (r Range) Pages() uint32 {
	return r.Len() / PageSize
}

// Contains reports whether [addr, addr+size) lies entirely within r.
func (r Range) Contains(addr, size uint32) bool {
	end := addr + size
	return addr >= r.Start && end >= addr && end <= r.End
}

// Flash layout (nRF52840-class, 1 MiB). Must be kept in sync with the
// linker script and must never change without also updating any DFU
// client that prepares the DFU partition.
//
// IMPORTANT: DFU must be EXACTLY ONE page bigger than APP — the extra
// page is the swap engine's rotation scratch (see package swap).
var (
	MBR             = Range{Start: 0x00000, End: 0x01000}
	SoftDevice      = Range{Start: 0x01000, End: 0x27000}
	App             = Range{Start: 0x27000, End: 0x85000}
	DFU             = Range{Start: 0x85000, End: 0xE4000}
	Bootloader      = Range{Start: 0xF8000, End: 0xFE000}
	MBRParamsPage   = Range{Start: 0xFE000, End: 0xFF000}
	BootloaderCopylist = Range{Start: 0xFF000, End: 0x100000}
)

// AppVectorBase is the fixed address the application's vector table must
// start at. On this platform it is equal to the SoftDevice start address.
const AppVectorBase = 0x1000

func init() {
	for name, r := range map[string]Range{
		"MBR":                MBR,
		"SOFTDEVICE":         SoftDevice,
		"APP":                App,
		"DFU":                DFU,
		"BOOTLOADER":         Bootloader,
		"MBR_PARAMS_PAGE":    MBRParamsPage,
		"BOOTLOADER_COPYLIST": BootloaderCopylist,
	} {
		if r.Start%PageSize != 0 || r.End%PageSize != 0 {
			panic("partition: " + name + " is not page-aligned")
		}
	}
	if DFU.Len() != App.Len()+PageSize {
		panic("partition: DFU must be exactly one page bigger than APP")
	}
	if !nonOverlapping(MBR, SoftDevice, App, DFU, Bootloader, MBRParamsPage, BootloaderCopylist) {
		panic("partition: ranges overlap")
	}
}

func nonOverlapping(ranges ...Range) bool {
	for i := range ranges {
		for j := range ranges {
			if i == j {
				continue
			}
			a, b := ranges[i], ranges[j]
			if a.Start < b.End && b.Start < a.End {
				return false
			}
		}
	}
	return true
}
