package vdif

import "fmt"

// Frame is one complete unit of the format: a header plus the sample
// payload it describes. Frames are read-only after construction.
type Frame struct {
	Header  Header
	Payload []byte
}

// Len returns the declared total frame length in bytes.
func (f *Frame) Len() int {
	return f.Header.FrameLen()
}

// DecodeFrame decodes one frame from the start of buf. The payload slice
// aliases buf; callers that retain the frame past the lifetime of buf must
// copy it. Bytes beyond the declared frame length are left untouched for
// the caller to treat as the start of the next frame.
func DecodeFrame(buf []byte) (Frame, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Frame{}, err
	}
	total := h.FrameLen()
	if len(buf) < total {
		return Frame{}, &TruncatedFrameError{Declared: total, Actual: len(buf)}
	}
	return Frame{Header: h, Payload: buf[h.Len():total]}, nil
}

// Encode serializes the frame to its wire form, header followed by
// payload, after checking that the two add up to the declared length.
func (f *Frame) Encode() ([]byte, error) {
	hdr, err := f.Header.Encode()
	if err != nil {
		return nil, err
	}
	if len(hdr)+len(f.Payload) != f.Len() {
		return nil, fmt.Errorf("encode frame: header %d bytes + payload %d bytes != declared %d", len(hdr), len(f.Payload), f.Len())
	}
	out := make([]byte, 0, f.Len())
	out = append(out, hdr...)
	out = append(out, f.Payload...)
	return out, nil
}

// SampleCount returns the number of time samples the payload holds, all
// channels advancing together, or 0 when the header describes no samples.
func (f *Frame) SampleCount() int {
	perSample := f.Header.BitsPerSample() * f.Header.NumChannels()
	if f.Header.Complex {
		perSample *= 2
	}
	if perSample == 0 {
		return 0
	}
	return len(f.Payload) * 8 / perSample
}
