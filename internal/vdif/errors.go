package vdif

import "fmt"

// RangeError reports a bit-field operation whose span does not fit in a
// 32-bit word, or a pack whose value does not fit in the field width.
// It indicates a programming or configuration mistake, not bad input data.
type RangeError struct {
	Op    string // "extract" or "pack"
	Off   uint
	Width uint
	Value uint32
}

func (e *RangeError) Error() string {
	if e.Op == "pack" && e.Off+e.Width <= 32 {
		return fmt.Sprintf("bitfield pack: value %#x does not fit in %d bits", e.Value, e.Width)
	}
	return fmt.Sprintf("bitfield %s: span [%d:%d) outside 32-bit word", e.Op, e.Off, e.Off+e.Width)
}

// MalformedHeaderError reports a header that is structurally invalid, such
// as a declared frame length of zero. During stream scanning it is
// recoverable by skipping ahead; on a single-frame decode it is final.
type MalformedHeaderError struct {
	Reason string
}

func (e *MalformedHeaderError) Error() string {
	return "malformed header: " + e.Reason
}

// TruncatedFrameError reports a buffer shorter than the frame length its
// header declares.
type TruncatedFrameError struct {
	Declared int
	Actual   int
}

func (e *TruncatedFrameError) Error() string {
	return fmt.Sprintf("truncated frame: header declares %d bytes, buffer has %d", e.Declared, e.Actual)
}
