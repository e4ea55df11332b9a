package capture

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Capture file magic numbers. Classic pcap appears in four forms (two byte
// orders, microsecond and nanosecond timestamps); the pcapng section header
// block type reads the same in either byte order.
const (
	magicPcap            = 0xa1b2c3d4
	magicPcapSwapped     = 0xd4c3b2a1
	magicPcapNano        = 0xa1b23c4d
	magicPcapNanoSwapped = 0x4d3cb2a1
	magicPcapNG          = 0x0a0d0d0a
)

// Stats counts what a Reader saw while walking a capture.
type Stats struct {
	Packets   int64 // capture records read
	Datagrams int64 // UDP payloads delivered
	Skipped   int64 // records without a UDP layer
	Bytes     int64 // payload bytes delivered
}

// Options selects a window of capture records. StartPacket is the 0-based
// index of the first record considered; NumPackets of 0 means all remaining
// records.
type Options struct {
	StartPacket int
	NumPackets  int
}

type packetSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Reader walks the UDP payloads of a pcap or pcapng capture in record
// order. The link layer is decoded per the file's declared link type, so
// Ethernet, raw-IP and loopback captures all work.
type Reader struct {
	f      *os.File
	source *gopacket.PacketSource
	opts   Options
	stats  Stats
	index  int
}

// Open opens the capture at path, sniffing whether it is classic pcap or
// pcapng from the file magic.
func Open(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	head := make([]byte, 4)
	if _, err := f.ReadAt(head, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("read capture magic: %w", err)
	}

	var src packetSource
	switch binary.LittleEndian.Uint32(head) {
	case magicPcap, magicPcapSwapped, magicPcapNano, magicPcapNanoSwapped:
		r, err := pcapgo.NewReader(bufio.NewReaderSize(f, 1<<20))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open pcap: %w", err)
		}
		src = r
	case magicPcapNG:
		r, err := pcapgo.NewNgReader(bufio.NewReaderSize(f, 1<<20), pcapgo.DefaultNgReaderOptions)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open pcapng: %w", err)
		}
		src = r
	default:
		f.Close()
		return nil, fmt.Errorf("%s is not a pcap or pcapng capture", path)
	}

	return &Reader{
		f:      f,
		source: gopacket.NewPacketSource(src, src.LinkType()),
		opts:   opts,
	}, nil
}

// Next returns the payload of the next UDP datagram inside the record
// window. Records without a UDP layer are counted and skipped. It returns
// io.EOF when the capture or the window is exhausted.
func (r *Reader) Next() ([]byte, error) {
	for {
		if r.opts.NumPackets > 0 && r.index >= r.opts.StartPacket+r.opts.NumPackets {
			return nil, io.EOF
		}
		packet, err := r.source.NextPacket()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read capture record %d: %w", r.index, err)
		}
		idx := r.index
		r.index++
		r.stats.Packets++
		if idx < r.opts.StartPacket {
			continue
		}

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			r.stats.Skipped++
			continue
		}
		udp := udpLayer.(*layers.UDP)
		payload := udp.LayerPayload()
		r.stats.Datagrams++
		r.stats.Bytes += int64(len(payload))
		return payload, nil
	}
}

// Stats returns the counters accumulated so far.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}
