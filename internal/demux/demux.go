package demux

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"example.com/vdifgate/internal/vdif"
)

// Sink receives the frames of one thread in arrival order. Append must not
// retain the frame's payload after returning; sinks that keep frames around
// copy it first.
type Sink interface {
	Append(f vdif.Frame) error
	Close() error
}

// SinkFactory builds the sink for a thread the first time a frame of that
// thread arrives.
type SinkFactory func(threadID uint16) (Sink, error)

// ThreadStat counts the frames routed to one thread.
type ThreadStat struct {
	ThreadID uint16 `json:"thread_id"`
	Frames   int64  `json:"frames"`
	Bytes    int64  `json:"bytes"`
}

// Demuxer routes frames to per-thread sinks. Sinks are created lazily, so a
// recording with two active threads opens exactly two sinks no matter how
// large the thread ID space is.
type Demuxer struct {
	factory SinkFactory
	sinks   map[uint16]Sink
	order   []uint16
	stats   map[uint16]*ThreadStat
}

// NewDemuxer returns a demuxer that obtains sinks from factory.
func NewDemuxer(factory SinkFactory) *Demuxer {
	return &Demuxer{
		factory: factory,
		sinks:   make(map[uint16]Sink),
		stats:   make(map[uint16]*ThreadStat),
	}
}

// Route hands f to the sink for its thread, creating the sink on the
// thread's first frame. Within a thread, frames reach the sink in the order
// they were routed.
func (d *Demuxer) Route(f vdif.Frame) error {
	id := f.Header.ThreadID
	sink, ok := d.sinks[id]
	if !ok {
		var err error
		sink, err = d.factory(id)
		if err != nil {
			return fmt.Errorf("open sink for thread %d: %w", id, err)
		}
		d.sinks[id] = sink
		d.order = append(d.order, id)
		d.stats[id] = &ThreadStat{ThreadID: id}
	}
	if err := sink.Append(f); err != nil {
		return fmt.Errorf("thread %d: %w", id, err)
	}
	st := d.stats[id]
	st.Frames++
	st.Bytes += int64(f.Len())
	return nil
}

// Threads returns per-thread counters in the order the threads first
// appeared.
func (d *Demuxer) Threads() []ThreadStat {
	out := make([]ThreadStat, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, *d.stats[id])
	}
	return out
}

// ThreadsByID returns the same counters sorted by thread ID.
func (d *Demuxer) ThreadsByID() []ThreadStat {
	out := d.Threads()
	sort.Slice(out, func(i, j int) bool { return out[i].ThreadID < out[j].ThreadID })
	return out
}

// Close closes every open sink. All sinks are closed even if one fails; the
// first error is returned.
func (d *Demuxer) Close() error {
	var first error
	for _, id := range d.order {
		if err := d.sinks[id].Close(); err != nil && first == nil {
			first = fmt.Errorf("close sink for thread %d: %w", id, err)
		}
	}
	return first
}

// MemorySink collects frames in memory, copying each payload so the caller
// may reuse its buffers.
type MemorySink struct {
	frames []vdif.Frame
}

func (s *MemorySink) Append(f vdif.Frame) error {
	payload := make([]byte, len(f.Payload))
	copy(payload, f.Payload)
	s.frames = append(s.frames, vdif.Frame{Header: f.Header, Payload: payload})
	return nil
}

func (s *MemorySink) Close() error { return nil }

// Frames returns the collected frames in arrival order.
func (s *MemorySink) Frames() []vdif.Frame { return s.frames }

// FileSink writes frames back out as a raw single-thread recording.
type FileSink struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// NewFileSink creates path, truncating any existing file.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileSink{path: f.Name(), f: f, w: bufio.NewWriterSize(f, 1<<20)}, nil
}

// Path returns the file the sink writes to.
func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Append(f vdif.Frame) error {
	buf, err := f.Encode()
	if err != nil {
		return err
	}
	_, err = s.w.Write(buf)
	return err
}

func (s *FileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return err
	}
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// ThreadFileName names the output file for one thread of a recording whose
// input name reduced to stem.
func ThreadFileName(stem string, threadID uint16) string {
	return fmt.Sprintf("%s_thread%04d.vdif", stem, threadID)
}

// FileSinkFactory writes each thread to dir under the conventional
// per-thread name derived from stem.
func FileSinkFactory(dir, stem string) SinkFactory {
	return func(threadID uint16) (Sink, error) {
		return NewFileSink(filepath.Join(dir, ThreadFileName(stem, threadID)))
	}
}
