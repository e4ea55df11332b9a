package vdif

import (
	"errors"
	"io"
	"os"

	"example.com/vdifgate/internal/common"
)

const (
	// Frame lengths are multiples of 8 bytes, so within a raw recording a
	// frame can only begin on an 8-byte boundary. Resynchronization after
	// a bad header steps by this much.
	resyncStep = 8

	defaultCacheWindow = 4 << 20

	// maxSkipRegions bounds how many skip regions the scanner records for
	// reporting; skips beyond the cap are still counted, just not listed.
	maxSkipRegions = 64
)

// SkipRegion describes one contiguous span of a recording the scanner had
// to skip before it found a decodable frame again.
type SkipRegion struct {
	Offset int64  `json:"offset"`
	Bytes  int64  `json:"bytes"`
	Reason string `json:"reason"`
}

// ScanStats summarizes one pass over a recording.
type ScanStats struct {
	Frames        int64
	Bytes         int64
	Skipped       int64 // skip regions entered, one per run of bad bytes
	SkippedBytes  int64
	TrailingBytes int64 // remainder after the last frame, smaller than a header
}

// readCache is a sliding window over an io.ReaderAt so sequential frame
// scanning does one large read per window instead of one per frame.
type readCache struct {
	r      io.ReaderAt
	size   int64
	window int
	buf    []byte
	start  int64
	length int
}

func newReadCache(r io.ReaderAt, size int64, window int) *readCache {
	if window <= 0 {
		window = defaultCacheWindow
	}
	return &readCache{r: r, size: size, window: window}
}

// view returns the bytes at [off, off+n), shortened at end of input. The
// slice aliases the cache and is valid until the next call.
func (c *readCache) view(off int64, n int) ([]byte, error) {
	if off < 0 || off >= c.size {
		return nil, io.EOF
	}
	if max := c.size - off; int64(n) > max {
		n = int(max)
	}
	if off >= c.start && off+int64(n) <= c.start+int64(c.length) {
		i := int(off - c.start)
		return c.buf[i : i+n], nil
	}
	want := c.window
	if n > want {
		want = n
	}
	if remain := c.size - off; int64(want) > remain {
		want = int(remain)
	}
	if cap(c.buf) < want {
		c.buf = make([]byte, want)
	}
	read, err := c.r.ReadAt(c.buf[:want], off)
	if err != nil && !errors.Is(err, io.EOF) {
		c.length = 0
		return nil, err
	}
	c.start = off
	c.length = read
	if read < n {
		n = read
	}
	return c.buf[:n], nil
}

// Scanner iterates the frames of a raw recording in order, skipping and
// resynchronizing across malformed regions instead of giving up on the
// first bad header.
type Scanner struct {
	cache  *readCache
	closer io.Closer
	size   int64
	offset int64

	metrics *common.Metrics
	stats   ScanStats
	regions []SkipRegion

	regionOpen   bool
	regionStart  int64
	regionReason string
}

// NewScanner scans a recording already open as an io.ReaderAt of known size.
func NewScanner(r io.ReaderAt, size int64) *Scanner {
	return &Scanner{cache: newReadCache(r, size, 0), size: size}
}

// OpenRecording opens the recording at path for scanning. Close releases
// the file.
func OpenRecording(path string) (*Scanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	s := NewScanner(f, info.Size())
	s.closer = f
	return s, nil
}

// Close releases the underlying file when the scanner owns one.
func (s *Scanner) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// SetMetrics attaches a metrics recorder to the scanner.
func (s *Scanner) SetMetrics(m *common.Metrics) {
	s.metrics = m
	if s.metrics != nil {
		s.metrics.SetTotalBytes(s.size)
	}
}

// Stats returns the counters accumulated so far.
func (s *Scanner) Stats() ScanStats {
	return s.stats
}

// SkipRegions returns the recorded skip regions, oldest first.
func (s *Scanner) SkipRegions() []SkipRegion {
	out := make([]SkipRegion, len(s.regions))
	copy(out, s.regions)
	return out
}

// Next returns the next decodable frame and its byte offset within the
// recording. It returns io.EOF once fewer bytes remain than the smallest
// header. The frame's payload aliases the scanner's read cache and is
// valid only until the following call.
func (s *Scanner) Next() (Frame, int64, error) {
	for {
		remain := s.size - s.offset
		if remain < LegacyHeaderLen {
			if remain > 0 && !s.regionOpen {
				s.stats.TrailingBytes = remain
				common.Logf("recording tail: %d trailing bytes, smaller than a header", remain)
			}
			s.closeRegion(s.size, "end of recording")
			return Frame{}, 0, io.EOF
		}

		view, err := s.cache.view(s.offset, HeaderLen)
		if err != nil {
			return Frame{}, 0, err
		}
		hdr, derr := DecodeHeader(view)
		if derr != nil {
			s.skip(derr)
			continue
		}
		total := int64(hdr.FrameLen())
		if total > remain {
			s.skip(&TruncatedFrameError{Declared: int(total), Actual: int(remain)})
			continue
		}

		view, err = s.cache.view(s.offset, int(total))
		if err != nil {
			return Frame{}, 0, err
		}
		frame, derr := DecodeFrame(view)
		if derr != nil {
			s.skip(derr)
			continue
		}

		off := s.offset
		s.closeRegion(off, "")
		s.offset += total
		s.stats.Frames++
		s.stats.Bytes += total
		if s.metrics != nil {
			s.metrics.AddFrame(total)
		}
		return frame, off, nil
	}
}

// skip opens a skip region at the current offset if none is open and steps
// to the next possible frame boundary.
func (s *Scanner) skip(cause error) {
	if !s.regionOpen {
		s.regionOpen = true
		s.regionStart = s.offset
		s.regionReason = cause.Error()
		s.stats.Skipped++
		if s.metrics != nil {
			s.metrics.IncSkipped()
		}
	}
	step := int64(resyncStep)
	if remain := s.size - s.offset; remain < step {
		step = remain
	}
	s.offset += step
	if s.metrics != nil {
		s.metrics.AddBytes(step)
	}
}

func (s *Scanner) closeRegion(end int64, note string) {
	if !s.regionOpen {
		return
	}
	s.regionOpen = false
	n := end - s.regionStart
	s.stats.SkippedBytes += n
	if note == "" {
		common.Logf("resynchronized at offset %d after skipping %d bytes: %s", end, n, s.regionReason)
	} else {
		common.Logf("%s at offset %d after skipping %d bytes: %s", note, end, n, s.regionReason)
	}
	if len(s.regions) < maxSkipRegions {
		s.regions = append(s.regions, SkipRegion{Offset: s.regionStart, Bytes: n, Reason: s.regionReason})
	}
}
