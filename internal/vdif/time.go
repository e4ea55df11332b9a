package vdif

import (
	"fmt"
	"time"
)

// EpochTime returns the UTC instant identified by a half-year reference
// epoch index and a seconds count within that epoch. Epoch 0 begins
// 2000-01-01T00:00:00Z; odd epochs begin on 1 July.
func EpochTime(epoch uint8, seconds uint32) time.Time {
	year := 2000 + int(epoch)/2
	month := time.January
	if epoch%2 == 1 {
		month = time.July
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(seconds) * time.Second)
}

// Time returns the UTC timestamp of the first sample in the frame.
func (h *Header) Time() time.Time {
	return EpochTime(h.Epoch, h.Seconds)
}

// StationCode renders the station identifier the way operators write it:
// as two ASCII characters when both bytes are printable, otherwise as a
// decimal number.
func (h *Header) StationCode() string {
	hi := byte(h.StationID >> 8)
	lo := byte(h.StationID)
	if hi >= 0x20 && hi <= 0x7e && lo >= 0x20 && lo <= 0x7e {
		return string([]byte{hi, lo})
	}
	return fmt.Sprintf("%d", h.StationID)
}

// FrameDuration returns the nominal wall-clock span of one frame given the
// per-channel sample rate. The rate is not carried in the base header; it
// comes from station configuration or, for EDV 3 senders, the extension.
func FrameDuration(f *Frame, sampleRateHz int64) (time.Duration, error) {
	if sampleRateHz <= 0 {
		return 0, fmt.Errorf("sample rate must be positive, got %d", sampleRateHz)
	}
	samples := int64(f.SampleCount())
	whole := samples / sampleRateHz
	rem := samples % sampleRateHz
	d := time.Duration(whole) * time.Second
	d += time.Duration(float64(rem) / float64(sampleRateHz) * float64(time.Second))
	return d, nil
}
