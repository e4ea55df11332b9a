package rules

import (
	"strings"
	"testing"

	"example.com/vdifgate/internal/vdif"
)

func obs(thread uint16, seconds, number uint32) vdif.Frame {
	return vdif.Frame{Header: vdif.Header{
		Seconds:           seconds,
		LegacyMode:        true,
		FrameNumber:       number,
		Epoch:             46,
		FrameLengthWords8: 8,
		ChannelCountLog2:  1,
		StationID:         0x4D68,
		ThreadID:          thread,
	}}
}

func ruleIDs(diags []Diagnostic) []string {
	ids := make([]string, len(diags))
	for i, d := range diags {
		ids[i] = d.RuleID
	}
	return ids
}

func TestCheckerSequences(t *testing.T) {
	tests := []struct {
		name   string
		frames []vdif.Frame
		want   []string
	}{
		{
			name: "clean interleaved threads",
			frames: []vdif.Frame{
				obs(0, 100, 0), obs(1, 100, 0),
				obs(0, 100, 1), obs(1, 100, 1),
				obs(0, 101, 0), obs(1, 101, 0),
			},
			want: nil,
		},
		{
			name:   "duplicate frame number",
			frames: []vdif.Frame{obs(0, 100, 4), obs(0, 100, 4)},
			want:   []string{RuleFrameRegression},
		},
		{
			name:   "frame number decrease",
			frames: []vdif.Frame{obs(0, 100, 4), obs(0, 100, 3)},
			want:   []string{RuleFrameRegression},
		},
		{
			name:   "seconds regression",
			frames: []vdif.Frame{obs(0, 101, 0), obs(0, 100, 0)},
			want:   []string{RuleSecondsRegression},
		},
		{
			name:   "numbering restarts with each second",
			frames: []vdif.Frame{obs(0, 100, 24999), obs(0, 101, 0)},
			want:   nil,
		},
		{
			name:   "threads count independently",
			frames: []vdif.Frame{obs(0, 100, 7), obs(1, 100, 2), obs(0, 100, 8), obs(1, 100, 3)},
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for i, f := range tt.frames {
				c.Observe(f, int64(i*64))
			}
			got := ruleIDs(c.Diagnostics())
			if len(got) != len(tt.want) {
				t.Fatalf("diagnostics = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("diagnostics = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestCheckerInvalidFlag(t *testing.T) {
	f := obs(3, 100, 0)
	f.Header.Invalid = true

	c := NewChecker()
	c.Observe(f, 0)

	diags := c.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("len(diags) = %d, want 1", len(diags))
	}
	d := diags[0]
	if d.RuleID != RuleInvalidFrames {
		t.Fatalf("RuleID = %s, want %s", d.RuleID, RuleInvalidFrames)
	}
	if d.Severity != INFO {
		t.Fatalf("Severity = %s, want %s", d.Severity, INFO)
	}
	if d.ThreadID != 3 {
		t.Fatalf("ThreadID = %d, want 3", d.ThreadID)
	}
}

func TestCheckerVersion(t *testing.T) {
	f := obs(0, 100, 0)
	f.Header.Version = 2

	c := NewChecker()
	c.Observe(f, 0)

	diags := c.Diagnostics()
	if len(diags) != 1 || diags[0].RuleID != RuleVersion {
		t.Fatalf("diagnostics = %v, want one %s", ruleIDs(diags), RuleVersion)
	}
	if !strings.Contains(diags[0].Message, "version 2") {
		t.Fatalf("Message = %q, want it to name version 2", diags[0].Message)
	}
}

func TestCheckerMixedHeaders(t *testing.T) {
	legacy := obs(0, 100, 0)
	full := obs(0, 100, 1)
	full.Header.LegacyMode = false

	c := NewChecker()
	c.Observe(legacy, 0)
	c.Observe(full, 64)

	diags := c.Diagnostics()
	if len(diags) != 1 || diags[0].RuleID != RuleMixedLegacy {
		t.Fatalf("diagnostics = %v, want one %s", ruleIDs(diags), RuleMixedLegacy)
	}
	if diags[0].ThreadID != -1 {
		t.Fatalf("ThreadID = %d, want -1 for a stream-wide finding", diags[0].ThreadID)
	}
	if diags[0].Offset != 64 {
		t.Fatalf("Offset = %d, want 64", diags[0].Offset)
	}
}

func TestCheckerEDV3Sync(t *testing.T) {
	good := obs(0, 100, 0)
	good.Header.LegacyMode = false
	good.Header.FrameLengthWords8 = 4
	good.Header.Extension = vdif.EDV3{SampleRate: 64, RateInMHz: true, SyncPattern: vdif.EDV3SyncPattern}

	bad := obs(0, 100, 1)
	bad.Header.LegacyMode = false
	bad.Header.FrameLengthWords8 = 4
	bad.Header.Extension = vdif.EDV3{SampleRate: 64, RateInMHz: true, SyncPattern: 0xDEADBEEF}

	c := NewChecker()
	c.Observe(good, 0)
	c.Observe(bad, 32)

	diags := c.Diagnostics()
	if len(diags) != 1 || diags[0].RuleID != RuleEDV3Sync {
		t.Fatalf("diagnostics = %v, want one %s", ruleIDs(diags), RuleEDV3Sync)
	}
	if !strings.Contains(diags[0].Message, "0xdeadbeef") {
		t.Fatalf("Message = %q, want the bad sync word in it", diags[0].Message)
	}
}

func TestCheckerShapeChange(t *testing.T) {
	first := obs(5, 100, 0)
	second := obs(5, 100, 1)
	second.Header.FrameLengthWords8 = 16

	c := NewChecker()
	c.Observe(first, 0)
	c.Observe(second, 64)

	diags := c.Diagnostics()
	if len(diags) != 1 || diags[0].RuleID != RuleShapeChange {
		t.Fatalf("diagnostics = %v, want one %s", ruleIDs(diags), RuleShapeChange)
	}
	if diags[0].ThreadID != 5 {
		t.Fatalf("ThreadID = %d, want 5", diags[0].ThreadID)
	}
}

func TestCheckerSkipRegion(t *testing.T) {
	c := NewChecker()
	c.ObserveSkip(vdif.SkipRegion{Offset: 640, Bytes: 128, Reason: "malformed header: frame length is zero"})

	diags := c.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("len(diags) = %d, want 1", len(diags))
	}
	d := diags[0]
	if d.RuleID != RuleSkipRegion {
		t.Fatalf("RuleID = %s, want %s", d.RuleID, RuleSkipRegion)
	}
	if d.Severity != ERROR {
		t.Fatalf("Severity = %s, want %s", d.Severity, ERROR)
	}
	if d.Offset != 640 {
		t.Fatalf("Offset = %d, want 640", d.Offset)
	}
	if !strings.Contains(d.Message, "128") || !strings.Contains(d.Message, "frame length is zero") {
		t.Fatalf("Message = %q, want byte count and cause in it", d.Message)
	}
}

func TestCheckerDeduplicates(t *testing.T) {
	c := NewChecker()
	c.Observe(obs(0, 100, 4), 0)
	for i := 1; i <= 5; i++ {
		c.Observe(obs(0, 100, 4), int64(i*64))
	}
	c.Observe(obs(1, 100, 9), 384)
	c.Observe(obs(1, 100, 9), 448)

	diags := c.Diagnostics()
	if len(diags) != 2 {
		t.Fatalf("len(diags) = %d, want 2", len(diags))
	}
	if diags[0].ThreadID != 0 || diags[0].Count != 5 {
		t.Fatalf("first diag thread %d count %d, want thread 0 count 5", diags[0].ThreadID, diags[0].Count)
	}
	if diags[0].Offset != 64 {
		t.Fatalf("first diag Offset = %d, want 64 (first occurrence)", diags[0].Offset)
	}
	if diags[1].ThreadID != 1 || diags[1].Count != 1 {
		t.Fatalf("second diag thread %d count %d, want thread 1 count 1", diags[1].ThreadID, diags[1].Count)
	}
}

func TestCheckerCounts(t *testing.T) {
	c := NewChecker()
	c.ObserveSkip(vdif.SkipRegion{Offset: 0, Bytes: 64, Reason: "malformed header: frame length is zero"})
	invalid := obs(0, 100, 0)
	invalid.Header.Invalid = true
	c.Observe(invalid, 64)
	c.Observe(obs(0, 100, 0), 128)

	errors, warnings, infos := c.Counts()
	if errors != 1 || warnings != 1 || infos != 1 {
		t.Fatalf("Counts() = %d, %d, %d, want 1, 1, 1", errors, warnings, infos)
	}
}
