package crc32

import "testing"

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint32
	}{
		{"empty", []byte{}, 0x00000000},
		{"check string", []byte("123456789"), 0xCBF43926},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Checksum(tc.data); got != tc.want {
				t.Errorf("Checksum(%q) = %#08x, want %#08x", tc.data, got, tc.want)
			}
		})
	}
}

func TestChecksumSingleByteMutationChangesResult(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	base := Checksum(data)

	for i := range data {
		mutated := append([]byte(nil), data...)
		mutated[i] ^= 0x01
		if got := Checksum(mutated); got == base {
			t.Errorf("mutating byte %d did not change the checksum", i)
		}
	}
}
