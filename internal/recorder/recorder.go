package recorder

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"example.com/vdifgate/internal/common"
	"example.com/vdifgate/internal/demux"
	"example.com/vdifgate/internal/vdif"
)

// Options configures the recorder.
type Options struct {
	ListenAddr string // UDP address frames arrive on
	OutDir     string // directory for per-thread recordings
	Stem       string // output file stem
}

func (o *Options) applyDefaults() {
	if o.ListenAddr == "" {
		o.ListenAddr = ":7890"
	}
	if o.Stem == "" {
		o.Stem = "rec"
	}
}

// ThreadStatus is the per-thread view exposed over the status API.
type ThreadStatus struct {
	ThreadID uint16 `json:"threadId"`
	Frames   int64  `json:"frames"`
	Bytes    int64  `json:"bytes"`
	File     string `json:"file"`
}

// Status is a point-in-time snapshot of the recorder.
type Status struct {
	ListenAddr string    `json:"listenAddr"`
	StartedAt  time.Time `json:"startedAt"`
	Datagrams  int64     `json:"datagrams"`
	Frames     int64     `json:"frames"`
	Bytes      int64     `json:"bytes"`
	Malformed  int64     `json:"malformed"`
	Invalid    int64     `json:"invalid"`
	Threads    int       `json:"threads"`
}

// Recorder receives one frame per UDP datagram and appends it to a
// per-thread recording. Datagrams that do not decode are counted and
// dropped; frames the sender marked invalid are recorded like any other.
type Recorder struct {
	opts  Options
	conn  *net.UDPConn
	demux *demux.Demuxer

	mu        sync.Mutex
	startedAt time.Time
	datagrams int64
	frames    int64
	bytes     int64
	malformed int64
	invalid   int64
	threads   map[uint16]*ThreadStatus
}

func New(opts Options) (*Recorder, error) {
	opts.applyDefaults()
	if opts.OutDir == "" {
		return nil, errors.New("output directory is required")
	}
	addr, err := net.ResolveUDPAddr("udp", opts.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen address %s: %w", opts.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", opts.ListenAddr, err)
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		conn.Close()
		return nil, err
	}
	return &Recorder{
		opts:    opts,
		conn:    conn,
		demux:   demux.NewDemuxer(demux.FileSinkFactory(opts.OutDir, opts.Stem)),
		threads: make(map[uint16]*ThreadStatus),
	}, nil
}

// Addr returns the bound UDP address, useful when listening on port 0.
func (r *Recorder) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Run receives datagrams until Shutdown closes the socket. It returns nil
// on a clean shutdown and the first write error otherwise.
func (r *Recorder) Run() error {
	r.mu.Lock()
	r.startedAt = time.Now().UTC()
	r.mu.Unlock()
	common.Logf("recording from %s into %s", r.conn.LocalAddr(), r.opts.OutDir)

	buf := make([]byte, 65536)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if err := r.handle(buf[:n]); err != nil {
			return err
		}
	}
}

// handle decodes and routes one datagram. The frame's payload aliases the
// receive buffer; FileSink encodes it before handle returns, so the buffer
// can be reused for the next datagram.
func (r *Recorder) handle(datagram []byte) error {
	f, err := vdif.DecodeFrame(datagram)
	if err != nil {
		r.mu.Lock()
		r.datagrams++
		r.malformed++
		r.mu.Unlock()
		return nil
	}
	if err := r.demux.Route(f); err != nil {
		return err
	}

	r.mu.Lock()
	r.datagrams++
	r.frames++
	r.bytes += int64(f.Len())
	if f.Header.Invalid {
		r.invalid++
	}
	ts, ok := r.threads[f.Header.ThreadID]
	if !ok {
		ts = &ThreadStatus{
			ThreadID: f.Header.ThreadID,
			File:     demux.ThreadFileName(r.opts.Stem, f.Header.ThreadID),
		}
		r.threads[f.Header.ThreadID] = ts
	}
	ts.Frames++
	ts.Bytes += int64(f.Len())
	r.mu.Unlock()
	return nil
}

// Shutdown stops the receive loop. Run returns once the in-flight datagram
// is handled.
func (r *Recorder) Shutdown() {
	_ = r.conn.Close()
}

// CloseFiles flushes and closes every thread recording. Call it after Run
// has returned.
func (r *Recorder) CloseFiles() error {
	return r.demux.Close()
}

func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		ListenAddr: r.conn.LocalAddr().String(),
		StartedAt:  r.startedAt,
		Datagrams:  r.datagrams,
		Frames:     r.frames,
		Bytes:      r.bytes,
		Malformed:  r.malformed,
		Invalid:    r.invalid,
		Threads:    len(r.threads),
	}
}

// Threads returns per-thread stats sorted by thread id.
func (r *Recorder) Threads() []ThreadStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ThreadStatus, 0, len(r.threads))
	for _, ts := range r.threads {
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ThreadID < out[j].ThreadID })
	return out
}
