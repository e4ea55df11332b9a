package vdif

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func putWords(t *testing.T, words ...uint32) []byte {
	t.Helper()
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

func TestDecodeHeaderLegacy(t *testing.T) {
	// seconds 1000000000 with the legacy bit, frame 42, 64-byte frame.
	buf := putWords(t,
		1000000000|1<<30,
		42,
		8,
		0,
	)
	h, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader returned error: %v", err)
	}
	if h.Seconds != 1000000000 {
		t.Fatalf("Seconds = %d, want %d", h.Seconds, 1000000000)
	}
	if !h.LegacyMode {
		t.Fatalf("LegacyMode = false, want true")
	}
	if h.Invalid {
		t.Fatalf("Invalid = true, want false")
	}
	if h.FrameNumber != 42 {
		t.Fatalf("FrameNumber = %d, want 42", h.FrameNumber)
	}
	if h.FrameLengthWords8 != 8 {
		t.Fatalf("FrameLengthWords8 = %d, want 8", h.FrameLengthWords8)
	}
	if h.Len() != LegacyHeaderLen {
		t.Fatalf("Len = %d, want %d", h.Len(), LegacyHeaderLen)
	}
	if h.FrameLen() != 64 {
		t.Fatalf("FrameLen = %d, want 64", h.FrameLen())
	}
	if h.Extension != nil {
		t.Fatalf("Extension = %v, want nil for legacy header", h.Extension)
	}
	out, err := h.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !bytes.Equal(out, buf) {
		t.Fatalf("re-encoded header = % x, want % x", out, buf)
	}
}

func TestHeaderByteOrder(t *testing.T) {
	// The seconds field spans all four bytes of word 0, so a header decoded
	// without the little-endian byte swap comes out scrambled.
	buf := putWords(t, 0x12345678|1<<30, 0, 4, 0)
	if buf[0] != 0x78 || buf[3] != 0x52 {
		t.Fatalf("fixture bytes = % x, little-endian word expected", buf[0:4])
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader returned error: %v", err)
	}
	if h.Seconds != 0x12345678 {
		t.Fatalf("Seconds = %#x, want %#x", h.Seconds, 0x12345678)
	}
}

func TestHeaderRoundTripValues(t *testing.T) {
	tests := []struct {
		name string
		hdr  Header
	}{
		{
			name: "legacy",
			hdr: Header{
				Seconds: 123456, LegacyMode: true, FrameNumber: 7, Epoch: 46,
				FrameLengthWords8: 8, ChannelCountLog2: 1, Version: 1,
				StationID: 0x4D68, ThreadID: 3, BitsPerSampleMinus1: 1,
			},
		},
		{
			name: "edv0",
			hdr: Header{
				Seconds: 1, FrameNumber: 2, Epoch: 3, FrameLengthWords8: 4,
				StationID: 99, ThreadID: 1023, BitsPerSampleMinus1: 31, Complex: true,
				Extension: EDV0{EDV: 0, Word4: 0xABCDEF, Word5: 0xDEADBEEF, Word6: 1, Word7: 2},
			},
		},
		{
			name: "edv0 unknown version",
			hdr: Header{
				Seconds: 5, FrameLengthWords8: 4, Invalid: true,
				Extension: EDV0{EDV: 9, Word4: 0x000001, Word5: 0, Word6: 0xFFFFFFFF, Word7: 0},
			},
		},
		{
			name: "edv2 alma",
			hdr: Header{
				Seconds: 77, FrameNumber: 11, Epoch: 48, FrameLengthWords8: 1004,
				StationID: 0x414C, ThreadID: 64,
				Extension: EDV2ALMA{Sync: EDV2ALMASync, Spare: 0xF, Status: 0x12345678, PSN: 0x1122334455667788},
			},
		},
		{
			name: "edv2 r2dbe",
			hdr: Header{
				Seconds: 77, FrameNumber: 12, Epoch: 48, FrameLengthWords8: 1004,
				StationID: 0x5332, ThreadID: 1,
				Extension: EDV2R2DBE{Word4: 0, PPSDiff: 42, PSN: 0x00000000FFFFFFFF},
			},
		},
		{
			name: "edv3",
			hdr: Header{
				Seconds: 3600, FrameNumber: 0, Epoch: 32, FrameLengthWords8: 629,
				ChannelCountLog2: 4, BitsPerSampleMinus1: 1,
				Extension: EDV3{
					SampleRate: 16, RateInMHz: true, SyncPattern: EDV3SyncPattern,
					Tuning: 0x01234567, Personality: 0x83, MinorRev: 2, MajorRev: 1,
					SidebandUpper: true, SubBand: 5, IFNumber: 3, DBEUnit: 1,
				},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := tc.hdr.Encode()
			if err != nil {
				t.Fatalf("Encode returned error: %v", err)
			}
			if len(buf) != tc.hdr.Len() {
				t.Fatalf("encoded length = %d, want %d", len(buf), tc.hdr.Len())
			}
			got, err := DecodeHeader(buf)
			if err != nil {
				t.Fatalf("DecodeHeader returned error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.hdr) {
				t.Fatalf("decoded header = %+v, want %+v", got, tc.hdr)
			}
		})
	}
}

func TestHeaderRoundTripBytes(t *testing.T) {
	tests := []struct {
		name  string
		words []uint32
	}{
		{
			name:  "legacy with unassigned bits",
			words: []uint32{100 | 1<<30, 5 | 3<<30, 2, 0xFFFF},
		},
		{
			name:  "edv0 all ones payload words",
			words: []uint32{0, 0, 4, 0, 0xFF<<24 | 0xFFFFFF, 0xFFFFFFFF, 0xFFFFFFFF, 0xFFFFFFFF},
		},
		{
			name:  "edv2 alma with spare bits",
			words: []uint32{9, 1, 4, 2, 2<<24 | 0xB<<20 | EDV2ALMASync, 0xCAFED00D, 0x01020304, 0x05060708},
		},
		{
			name:  "edv2 r2dbe nonzero word4",
			words: []uint32{9, 1, 4, 2, 2<<24 | 0x000FFF, 7, 0xAAAAAAAA, 0x55555555},
		},
		{
			name:  "edv3 with spare bits",
			words: []uint32{1, 2, 4, 3, 3<<24 | 1<<23 | 4096, EDV3SyncPattern, 0xFEEDF00D, 0xF<<28 | 0x1234567},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := putWords(t, tc.words...)
			h, err := DecodeHeader(buf)
			if err != nil {
				t.Fatalf("DecodeHeader returned error: %v", err)
			}
			out, err := h.Encode()
			if err != nil {
				t.Fatalf("Encode returned error: %v", err)
			}
			if !bytes.Equal(out, buf) {
				t.Fatalf("re-encoded bytes = % x, want % x", out, buf)
			}
		})
	}
}

func TestEDVResolution(t *testing.T) {
	tests := []struct {
		name  string
		word4 uint32
		want  ExtensionKind
	}{
		{name: "edv2 with alma sync", word4: 2<<24 | EDV2ALMASync, want: ExtEDV2ALMA},
		{name: "edv2 with zero sync", word4: 2 << 24, want: ExtEDV2R2DBE},
		{name: "edv2 with near-miss sync", word4: 2<<24 | 0xA5EA4, want: ExtEDV2R2DBE},
		{name: "edv3", word4: 3 << 24, want: ExtEDV3},
		{name: "edv0", word4: 0, want: ExtEDV0},
		{name: "unknown edv", word4: 9 << 24, want: ExtEDV0},
		{name: "alma sync under other edv", word4: 7<<24 | EDV2ALMASync, want: ExtEDV0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := putWords(t, 0, 0, 4, 0, tc.word4, 0, 0, 0)
			h, err := DecodeHeader(buf)
			if err != nil {
				t.Fatalf("DecodeHeader returned error: %v", err)
			}
			if got := h.Extension.Kind(); got != tc.want {
				t.Fatalf("Kind = %v, want %v", got, tc.want)
			}
			// Same bytes, same variant: the resolver holds no state.
			again, err := DecodeHeader(buf)
			if err != nil {
				t.Fatalf("DecodeHeader returned error: %v", err)
			}
			if again.Extension.Kind() != tc.want {
				t.Fatalf("second decode Kind = %v, want %v", again.Extension.Kind(), tc.want)
			}
		})
	}
}

func TestUnknownEDVKeepsBits(t *testing.T) {
	buf := putWords(t, 0, 0, 4, 0, 0x2A<<24|0x00BEEF, 0x11111111, 0x22222222, 0x33333333)
	h, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader returned error: %v", err)
	}
	ext, ok := h.Extension.(EDV0)
	if !ok {
		t.Fatalf("Extension type = %T, want EDV0", h.Extension)
	}
	if ext.EDV != 0x2A {
		t.Fatalf("EDV = %#x, want 0x2a", ext.EDV)
	}
	if ext.Word4 != 0xBEEF {
		t.Fatalf("Word4 = %#x, want 0xbeef", ext.Word4)
	}
	out, err := h.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !bytes.Equal(out, buf) {
		t.Fatalf("re-encoded bytes = % x, want % x", out, buf)
	}
}

func TestDecodeHeaderMalformed(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{name: "short buffer", buf: make([]byte, 15)},
		{name: "zero frame length", buf: putWords(t, 1<<30, 0, 0, 0)},
		{name: "legacy length cannot hold header", buf: putWords(t, 1<<30, 0, 1, 0)},
		{name: "non-legacy length cannot hold header", buf: putWords(t, 0, 0, 2, 0, 0, 0, 0, 0)},
		{name: "non-legacy header cut short", buf: putWords(t, 0, 0, 4, 0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeHeader(tc.buf)
			var malformed *MalformedHeaderError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedHeaderError, got %v", err)
			}
		})
	}
}

func TestEncodeHeaderRange(t *testing.T) {
	h := Header{Seconds: 1 << 30, LegacyMode: true, FrameLengthWords8: 2}
	_, err := h.Encode()
	var rangeErr *RangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected RangeError, got %v", err)
	}

	h = Header{FrameLengthWords8: 4, Extension: EDV2ALMA{Sync: 1 << 20}}
	if _, err := h.Encode(); !errors.As(err, &rangeErr) {
		t.Fatalf("expected RangeError for oversized sync, got %v", err)
	}
}

func TestEncodeHeaderMissingExtension(t *testing.T) {
	h := Header{FrameLengthWords8: 4}
	if _, err := h.Encode(); err == nil {
		t.Fatalf("expected error for non-legacy header without extension")
	}
}
