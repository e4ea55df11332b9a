package vdif

import "fmt"

const (
	// LegacyHeaderLen is the header size when the legacy-mode bit is set.
	LegacyHeaderLen = 16
	// HeaderLen is the full header size, words 0-7.
	HeaderLen = 32
)

// Header is the decoded form of a frame header: four fixed base words and,
// for non-legacy frames, four extension words whose layout depends on the
// extended data version.
type Header struct {
	Seconds     uint32 // seconds from the start of the reference epoch, 30 bits
	LegacyMode  bool   // 16-byte header, no extension words
	Invalid     bool   // sender marked the frame's data invalid
	FrameNumber uint32 // frame index within the current second, 24 bits
	Epoch       uint8  // half-year reference epoch index, 6 bits
	Unassigned  uint8  // word 1 bits [30:32), preserved verbatim

	FrameLengthWords8 uint32 // total frame length in 8-byte units, header included
	ChannelCountLog2  uint8  // 5 bits
	Version           uint8  // 3 bits

	StationID           uint16
	ThreadID            uint16 // 10 bits
	BitsPerSampleMinus1 uint8  // 5 bits
	Complex             bool

	// Extension is nil when LegacyMode is set, otherwise one of EDV0,
	// EDV2ALMA, EDV2R2DBE or EDV3.
	Extension Extension
}

// Len returns the encoded header size in bytes.
func (h *Header) Len() int {
	if h.LegacyMode {
		return LegacyHeaderLen
	}
	return HeaderLen
}

// FrameLen returns the declared total frame length in bytes.
func (h *Header) FrameLen() int {
	return int(h.FrameLengthWords8) * 8
}

// NumChannels returns the channel count encoded in the header.
func (h *Header) NumChannels() int {
	return 1 << h.ChannelCountLog2
}

// BitsPerSample returns the sample depth in bits.
func (h *Header) BitsPerSample() int {
	return int(h.BitsPerSampleMinus1) + 1
}

// DecodeHeader decodes a header from the start of buf. buf must hold the
// complete header: 16 bytes for legacy frames, 32 otherwise.
func DecodeHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < LegacyHeaderLen {
		return h, &MalformedHeaderError{Reason: fmt.Sprintf("need at least %d header bytes, have %d", LegacyHeaderLen, len(buf))}
	}

	w0 := loadWord(buf[0:4])
	h.Seconds = extract(w0, 0, 30)
	h.LegacyMode = extract(w0, 30, 1) == 1
	h.Invalid = extract(w0, 31, 1) == 1

	w1 := loadWord(buf[4:8])
	h.FrameNumber = extract(w1, 0, 24)
	h.Epoch = uint8(extract(w1, 24, 6))
	h.Unassigned = uint8(extract(w1, 30, 2))

	w2 := loadWord(buf[8:12])
	h.FrameLengthWords8 = extract(w2, 0, 24)
	h.ChannelCountLog2 = uint8(extract(w2, 24, 5))
	h.Version = uint8(extract(w2, 29, 3))

	w3 := loadWord(buf[12:16])
	h.StationID = uint16(extract(w3, 0, 16))
	h.ThreadID = uint16(extract(w3, 16, 10))
	h.BitsPerSampleMinus1 = uint8(extract(w3, 26, 5))
	h.Complex = extract(w3, 31, 1) == 1

	if h.FrameLengthWords8 == 0 {
		return Header{}, &MalformedHeaderError{Reason: "frame length is zero"}
	}
	if h.FrameLen() < h.Len() {
		return Header{}, &MalformedHeaderError{Reason: fmt.Sprintf("declared length %d bytes cannot hold %d-byte header", h.FrameLen(), h.Len())}
	}
	if h.LegacyMode {
		return h, nil
	}

	if len(buf) < HeaderLen {
		return Header{}, &MalformedHeaderError{Reason: fmt.Sprintf("non-legacy header needs %d bytes, have %d", HeaderLen, len(buf))}
	}
	h.Extension = decodeExtension(
		loadWord(buf[16:20]),
		loadWord(buf[20:24]),
		loadWord(buf[24:28]),
		loadWord(buf[28:32]),
	)
	return h, nil
}

// Encode serializes the header to its wire form. It is the exact inverse
// of DecodeHeader: re-encoding a decoded header reproduces the input bytes.
func (h *Header) Encode() ([]byte, error) {
	if !h.LegacyMode && h.Extension == nil {
		return nil, fmt.Errorf("encode header: non-legacy header without extension words")
	}

	var w wordPacker
	w.put(0, 30, h.Seconds, "seconds")
	w.put(30, 1, boolBit(h.LegacyMode), "legacy_mode")
	w.put(31, 1, boolBit(h.Invalid), "invalid")
	w0 := w.take()

	w.put(0, 24, h.FrameNumber, "frame_number")
	w.put(24, 6, uint32(h.Epoch), "epoch")
	w.put(30, 2, uint32(h.Unassigned), "unassigned")
	w1 := w.take()

	w.put(0, 24, h.FrameLengthWords8, "frame_length_words8")
	w.put(24, 5, uint32(h.ChannelCountLog2), "channel_count_log2")
	w.put(29, 3, uint32(h.Version), "version")
	w2 := w.take()

	w.put(0, 16, uint32(h.StationID), "station_id")
	w.put(16, 10, uint32(h.ThreadID), "thread_id")
	w.put(26, 5, uint32(h.BitsPerSampleMinus1), "bits_per_sample_minus1")
	w.put(31, 1, boolBit(h.Complex), "complex")
	w3 := w.take()

	if w.err != nil {
		return nil, fmt.Errorf("encode header: %w", w.err)
	}

	buf := make([]byte, h.Len())
	storeWord(buf[0:4], w0)
	storeWord(buf[4:8], w1)
	storeWord(buf[8:12], w2)
	storeWord(buf[12:16], w3)
	if h.LegacyMode {
		return buf, nil
	}

	ext, err := h.Extension.encodeWords()
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	storeWord(buf[16:20], ext[0])
	storeWord(buf[20:24], ext[1])
	storeWord(buf[24:28], ext[2])
	storeWord(buf[28:32], ext[3])
	return buf, nil
}

// wordPacker assembles one 32-bit word field by field, keeping the first
// error it hits so call sites stay flat.
type wordPacker struct {
	word uint32
	err  error
}

func (p *wordPacker) put(off, width uint, value uint32, field string) {
	if p.err != nil {
		return
	}
	w, err := PackBits(p.word, off, width, value)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", field, err)
		return
	}
	p.word = w
}

func (p *wordPacker) take() uint32 {
	w := p.word
	p.word = 0
	return w
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
