package capture

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func collectPayloads(t *testing.T, r *Reader) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		p, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		out = append(out, p)
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cap.pcap")
	w, err := NewDatagramWriter(path, 4001, 4001)
	if err != nil {
		t.Fatalf("NewDatagramWriter: %v", err)
	}
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	payloads := [][]byte{
		bytes.Repeat([]byte{0x11}, 64),
		bytes.Repeat([]byte{0x22}, 48),
		bytes.Repeat([]byte{0x33}, 64),
	}
	if err := w.WriteARP(base); err != nil {
		t.Fatalf("WriteARP: %v", err)
	}
	for i, p := range payloads {
		if err := w.WriteDatagram(p, base.Add(time.Duration(i)*time.Millisecond)); err != nil {
			t.Fatalf("WriteDatagram %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	r, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	got := collectPayloads(t, r)
	if len(got) != len(payloads) {
		t.Fatalf("extracted %d payloads, want %d", len(got), len(payloads))
	}
	for i := range payloads {
		if !bytes.Equal(got[i], payloads[i]) {
			t.Fatalf("payload %d differs from what was written", i)
		}
	}

	stats := r.Stats()
	if stats.Packets != 4 {
		t.Fatalf("Packets = %d, want 4", stats.Packets)
	}
	if stats.Datagrams != 3 {
		t.Fatalf("Datagrams = %d, want 3", stats.Datagrams)
	}
	if stats.Skipped != 1 {
		t.Fatalf("Skipped = %d, want 1", stats.Skipped)
	}
	if want := int64(64 + 48 + 64); stats.Bytes != want {
		t.Fatalf("Bytes = %d, want %d", stats.Bytes, want)
	}
}

func TestCaptureWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "win.pcap")
	w, err := NewDatagramWriter(path, 4001, 4001)
	if err != nil {
		t.Fatalf("NewDatagramWriter: %v", err)
	}
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := w.WriteDatagram([]byte{byte(i)}, base.Add(time.Duration(i)*time.Millisecond)); err != nil {
			t.Fatalf("WriteDatagram %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	r, err := Open(path, Options{StartPacket: 1, NumPackets: 2})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	got := collectPayloads(t, r)
	if len(got) != 2 {
		t.Fatalf("window yielded %d payloads, want 2", len(got))
	}
	if got[0][0] != 1 || got[1][0] != 2 {
		t.Fatalf("window payloads = %d, %d, want 1, 2", got[0][0], got[1][0])
	}
}

func TestOpenRejectsNonCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.pcap")
	if err := os.WriteFile(path, []byte("this is not a capture file"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(path, Options{}); err == nil {
		t.Fatalf("expected error opening non-capture file")
	}
}
