package vdif

import "encoding/binary"

// Header words are 32-bit quantities stored as little-endian bytes. The
// byte swap happens before any bit slicing: loadWord assembles the native
// word first, then fields are cut out of it LSB-first. Getting this order
// wrong flips every multi-byte field in the header.

func loadWord(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}

func storeWord(buf []byte, w uint32) {
	binary.LittleEndian.PutUint32(buf, w)
}

func widthMask(width uint) uint32 {
	if width >= 32 {
		return ^uint32(0)
	}
	return uint32(1)<<width - 1
}

// ExtractBits returns the width-bit field of word starting at bit off,
// LSB-first, without sign extension.
func ExtractBits(word uint32, off, width uint) (uint32, error) {
	if width == 0 || off+width > 32 {
		return 0, &RangeError{Op: "extract", Off: off, Width: width}
	}
	return (word >> off) & widthMask(width), nil
}

// PackBits writes value into the width-bit span of word starting at bit
// off, leaving all other bits untouched, and returns the resulting word.
func PackBits(word uint32, off, width uint, value uint32) (uint32, error) {
	if width == 0 || off+width > 32 {
		return 0, &RangeError{Op: "pack", Off: off, Width: width}
	}
	mask := widthMask(width)
	if value > mask {
		return 0, &RangeError{Op: "pack", Off: off, Width: width, Value: value}
	}
	word &^= mask << off
	word |= value << off
	return word, nil
}

// extract is the unchecked form used by the header decoder, whose offsets
// and widths are compile-time constants that cannot leave the word.
func extract(word uint32, off, width uint) uint32 {
	return (word >> off) & widthMask(width)
}
