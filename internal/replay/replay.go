package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"example.com/vdifgate/internal/common"
	"example.com/vdifgate/internal/vdif"
)

// Transport delivers one encoded frame per call. The UDP implementation
// maps each call to one datagram.
type Transport interface {
	Send(p []byte) error
	Close() error
}

// UDPTransport sends frames as UDP datagrams to a fixed destination.
type UDPTransport struct {
	conn net.Conn
}

// DialUDP resolves dest (host:port) and binds a connected UDP socket.
func DialUDP(dest string) (*UDPTransport, error) {
	conn, err := net.Dial("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", dest, err)
	}
	return &UDPTransport{conn: conn}, nil
}

func (t *UDPTransport) Send(p []byte) error {
	_, err := t.conn.Write(p)
	return err
}

func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

// Options configures a replay run.
type Options struct {
	// SampleRateHz is the per-channel sample rate used to pace frames.
	// Zero means derive it from the recording's EDV 3 headers.
	SampleRateHz int64
	// Loop is the number of passes over the recording; values below 1
	// mean a single pass.
	Loop int
	// Burst disables pacing and sends frames back to back.
	Burst bool

	Metrics *common.Metrics
}

// Stats summarizes a replay run.
type Stats struct {
	Frames  int64
	Bytes   int64
	Passes  int
	Elapsed time.Duration
}

// LoadRecording scans the recording at path into memory, copying each
// payload out of the scanner's read cache. The scan statistics report any
// regions the scanner had to skip.
func LoadRecording(path string) ([]vdif.Frame, vdif.ScanStats, error) {
	s, err := vdif.OpenRecording(path)
	if err != nil {
		return nil, vdif.ScanStats{}, err
	}
	defer s.Close()

	var frames []vdif.Frame
	for {
		f, _, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, s.Stats(), err
		}
		payload := make([]byte, len(f.Payload))
		copy(payload, f.Payload)
		frames = append(frames, vdif.Frame{Header: f.Header, Payload: payload})
	}
	if len(frames) == 0 {
		return nil, s.Stats(), fmt.Errorf("%s contains no decodable frames", path)
	}
	return frames, s.Stats(), nil
}

// ResolveSampleRate picks the pacing rate: an explicitly configured rate
// wins, then the first EDV 3 header that declares one. Recordings without
// either cannot be paced.
func ResolveSampleRate(frames []vdif.Frame, configured int64) (int64, error) {
	if configured > 0 {
		return configured, nil
	}
	for i := range frames {
		if ext, ok := frames[i].Header.Extension.(vdif.EDV3); ok {
			if rate := ext.SampleRateHz(); rate > 0 {
				return rate, nil
			}
		}
	}
	return 0, errors.New("no sample rate: none configured and the recording carries no EDV 3 rate")
}

// Run replays frames over transport. Paced runs schedule each frame at an
// absolute offset from the start (the sum of the nominal durations of all
// frames before it), so per-frame timing error never accumulates. The
// context is checked between frames; cancellation never cuts off a frame
// already handed to the transport.
func Run(ctx context.Context, frames []vdif.Frame, transport Transport, opts Options) (Stats, error) {
	var stats Stats
	if len(frames) == 0 {
		return stats, errors.New("nothing to replay")
	}

	bufs := make([][]byte, len(frames))
	for i := range frames {
		buf, err := frames[i].Encode()
		if err != nil {
			return stats, fmt.Errorf("encode frame %d: %w", i, err)
		}
		bufs[i] = buf
	}

	var durs []time.Duration
	if !opts.Burst {
		rate, err := ResolveSampleRate(frames, opts.SampleRateHz)
		if err != nil {
			return stats, err
		}
		common.Logf("pacing %d frames at %d samples/s per channel", len(frames), rate)
		durs = make([]time.Duration, len(frames))
		for i := range frames {
			d, err := vdif.FrameDuration(&frames[i], rate)
			if err != nil {
				return stats, fmt.Errorf("frame %d: %w", i, err)
			}
			durs[i] = d
		}
	}

	passes := opts.Loop
	if passes < 1 {
		passes = 1
	}

	start := time.Now()
	var offset time.Duration
	for pass := 0; pass < passes; pass++ {
		for i := range frames {
			if opts.Burst {
				select {
				case <-ctx.Done():
					stats.Elapsed = time.Since(start)
					return stats, ctx.Err()
				default:
				}
			} else {
				if err := sleepUntil(ctx, start.Add(offset)); err != nil {
					stats.Elapsed = time.Since(start)
					return stats, err
				}
			}
			if err := transport.Send(bufs[i]); err != nil {
				stats.Elapsed = time.Since(start)
				return stats, fmt.Errorf("send frame %d: %w", i, err)
			}
			stats.Frames++
			stats.Bytes += int64(len(bufs[i]))
			if opts.Metrics != nil {
				opts.Metrics.AddDatagram(int64(len(bufs[i])))
			}
			if !opts.Burst {
				offset += durs[i]
			}
		}
		stats.Passes++
	}
	// Let the last frame's nominal span elapse so the stream occupies its
	// full duration and a following pass or consumer sees no compression.
	if !opts.Burst {
		if err := sleepUntil(ctx, start.Add(offset)); err != nil {
			stats.Elapsed = time.Since(start)
			return stats, err
		}
	}
	stats.Elapsed = time.Since(start)
	return stats, nil
}

func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
