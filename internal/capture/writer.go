package capture

import (
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snapLen = 65536

// DatagramWriter writes UDP datagrams into a classic pcap capture, wrapping
// each payload in a fixed Ethernet/IPv4/UDP envelope. It exists for the
// sample generator and for tests that need captures with known contents.
type DatagramWriter struct {
	f   *os.File
	w   *pcapgo.Writer
	buf gopacket.SerializeBuffer

	eth layers.Ethernet
	ip  layers.IPv4
	udp layers.UDP
}

// NewDatagramWriter creates a pcap file at path whose datagrams flow from
// srcPort to dstPort on the 192.0.2.0/24 test network.
func NewDatagramWriter(path string, srcPort, dstPort uint16) (*DatagramWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, err
	}
	dw := &DatagramWriter{
		f:   f,
		w:   w,
		buf: gopacket.NewSerializeBuffer(),
		eth: layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
			DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
			EthernetType: layers.EthernetTypeIPv4,
		},
		ip: layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(192, 0, 2, 1),
			DstIP:    net.IPv4(192, 0, 2, 2),
		},
		udp: layers.UDP{
			SrcPort: layers.UDPPort(srcPort),
			DstPort: layers.UDPPort(dstPort),
		},
	}
	return dw, nil
}

// WriteDatagram appends one UDP record carrying payload, stamped ts.
func (w *DatagramWriter) WriteDatagram(payload []byte, ts time.Time) error {
	if err := w.udp.SetNetworkLayerForChecksum(&w.ip); err != nil {
		return err
	}
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(w.buf, opts, &w.eth, &w.ip, &w.udp, gopacket.Payload(payload)); err != nil {
		return err
	}
	return w.writeRecord(w.buf.Bytes(), ts)
}

// WriteARP appends a broadcast ARP request record. Captures taken on real
// networks carry this kind of chatter, and the extractor must skip it.
func (w *DatagramWriter) WriteARP(ts time.Time) error {
	eth := layers.Ethernet{
		SrcMAC:       w.eth.SrcMAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   w.eth.SrcMAC,
		SourceProtAddress: w.ip.SrcIP.To4(),
		DstHwAddress:      net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstProtAddress:    w.ip.DstIP.To4(),
	}
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(w.buf, opts, &eth, &arp); err != nil {
		return err
	}
	return w.writeRecord(w.buf.Bytes(), ts)
}

func (w *DatagramWriter) writeRecord(data []byte, ts time.Time) error {
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	return w.w.WritePacket(ci, data)
}

// Close flushes and closes the capture file.
func (w *DatagramWriter) Close() error {
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
