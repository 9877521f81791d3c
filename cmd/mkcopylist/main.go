// Command mkcopylist builds a valid BOOTLOADER_COPYLIST page image from a
// small JSON manifest: the higher-level updater that arms a device's
// copy list, made concrete as an offline tool rather than bootloader
// firmware. Flag parsing and the destructive-overwrite confirmation
// follow the pattern of the application firmware's own CLI client.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/klauspost/compress/flate"

	"openenterprise/nrfboot/crc32"
	"openenterprise/nrfboot/model"
)

// manifestItem describes one copy-list entry. Addresses are hex strings
// (e.g. "0x85000") naming flash locations a separate DFU client has
// already staged; this tool only assembles and validates the control
// block, it never touches a device.
type manifestItem struct {
	Flags       string `json:"flags"` // "", "plain", "compressed", or "bootloader"
	Src         string `json:"src"`
	SrcSize     uint32 `json:"src_size,omitempty"`
	Dst         string `json:"dst"`
	DstSize     uint32 `json:"dst_size,omitempty"`
	ContentFile string `json:"content_file,omitempty"`
}

type manifest struct {
	Items []manifestItem `json:"items"`
}

func main() {
	manifestPath := flag.String("manifest", "", "path to the JSON item manifest (required)")
	outPath := flag.String("out", "copylist.bin", "path to write the 4KiB page image")
	force := flag.Bool("force", false, "overwrite -out without confirmation")
	flag.Parse()

	if *manifestPath == "" {
		fmt.Fprintln(os.Stderr, "usage: mkcopylist -manifest items.json [-out copylist.bin] [-force]")
		os.Exit(1)
	}

	items, err := buildItems(*manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkcopylist: %v\n", err)
		os.Exit(1)
	}

	list, err := model.NewCopylist(items)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkcopylist: %v\n", err)
		os.Exit(1)
	}

	if !*force {
		if err := confirmOverwrite(*outPath); err != nil {
			fmt.Fprintf(os.Stderr, "mkcopylist: %v\n", err)
			os.Exit(1)
		}
	}

	page := list.MarshalBinary()
	if len(page) < model.HeaderSize+model.MaxItems*model.ItemSize {
		// Defensive only: MarshalBinary always returns a full page image.
		fmt.Fprintln(os.Stderr, "mkcopylist: internal error building page image")
		os.Exit(1)
	}
	if err := os.WriteFile(*outPath, pad(page, 4096), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "mkcopylist: writing %s: %v\n", *outPath, err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d items to %s\n", list.Count(), *outPath)
}

func buildItems(manifestPath string) ([]model.Item, error) {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	items := make([]model.Item, 0, len(m.Items))
	for i, mi := range m.Items {
		it, err := resolveItem(mi)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, it)
	}
	return items, nil
}

func resolveItem(mi manifestItem) (model.Item, error) {
	src, err := parseAddr(mi.Src)
	if err != nil {
		return model.Item{}, fmt.Errorf("src: %w", err)
	}
	dst, err := parseAddr(mi.Dst)
	if err != nil {
		return model.Item{}, fmt.Errorf("dst: %w", err)
	}

	it := model.Item{Src: src, Dst: dst, SrcSize: mi.SrcSize, DstSize: mi.DstSize}

	switch strings.ToLower(mi.Flags) {
	case "", "plain":
		// nothing
	case "compressed":
		it.Flags |= model.FlagCompressed
	case "bootloader":
		it.Flags |= model.FlagBootloader
	default:
		return model.Item{}, fmt.Errorf("unknown flags %q", mi.Flags)
	}

	if mi.ContentFile == "" {
		return it, nil
	}

	plain, err := os.ReadFile(mi.ContentFile)
	if err != nil {
		return model.Item{}, fmt.Errorf("reading content_file: %w", err)
	}
	it.DstSize = uint32(len(plain))
	it.DstCRC = crc32.Checksum(plain)

	if it.Compressed() {
		compressed, err := deflate(plain)
		if err != nil {
			return model.Item{}, fmt.Errorf("compressing content_file: %w", err)
		}
		it.SrcSize = uint32(len(compressed))
	} else {
		it.SrcSize = it.DstSize
	}

	return it, nil
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parseAddr(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not a hex address: %w", s, err)
	}
	return uint32(v), nil
}

func pad(data []byte, size int) []byte {
	if len(data) >= size {
		return data
	}
	out := make([]byte, size)
	copy(out, data)
	for i := len(data); i < size; i++ {
		out[i] = 0xFF
	}
	return out
}

// confirmOverwrite prompts before clobbering an existing output file,
// but only when a real terminal is attached — matching cmd/cli's
// getPassword, which skips its interactive prompt under the same
// condition so scripted/CI invocations never hang on stdin.
func confirmOverwrite(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}

	fmt.Printf("%s already exists, overwrite? [y/N] ", path)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	if line != "y" && line != "yes" {
		return fmt.Errorf("aborted: %s not overwritten", path)
	}
	return nil
}
