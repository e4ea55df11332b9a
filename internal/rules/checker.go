package rules

import (
	"fmt"

	"example.com/vdifgate/internal/vdif"
)

type Severity string

const (
	ERROR Severity = "ERROR"
	WARN  Severity = "WARN"
	INFO  Severity = "INFO"
)

// Diagnostic is one conformance finding over a frame stream. Repeated
// findings of the same rule on the same thread collapse into one entry
// whose Count carries the total; Offset points at the first occurrence.
type Diagnostic struct {
	RuleID   string   `json:"ruleId"`
	Severity Severity `json:"severity"`
	ThreadID int      `json:"threadId"`
	Offset   int64    `json:"offset"`
	Count    int64    `json:"count"`
	Message  string   `json:"message"`
}

// The built-in checks. VDIF has no signing authority for these; they are
// the stream properties conformant senders hold to.
const (
	RuleFrameRegression   = "VC-0001" // frame number repeats or decreases within a second
	RuleSecondsRegression = "VC-0002" // seconds count decreases within a thread
	RuleInvalidFrames     = "VC-0003" // sender flagged frames invalid
	RuleMixedLegacy       = "VC-0004" // stream mixes 16-byte and 32-byte headers
	RuleVersion           = "VC-0005" // version field above the known revisions
	RuleEDV3Sync          = "VC-0006" // EDV 3 word 5 is not the fixed sync pattern
	RuleSkipRegion        = "VC-0007" // scanner skipped undecodable bytes
	RuleShapeChange       = "VC-0008" // frame length or sample layout changed mid-thread
)

// streamThread is the oldest state a check needs about one thread.
type streamThread struct {
	seenFrame   bool
	lastSeconds uint32
	lastNumber  uint32

	shapeSet bool
	length   uint32
	channels uint8
	bits     uint8
	cplx     bool
}

// Checker evaluates conformance rules over a stream of decoded frames and
// the scanner's skip regions.
type Checker struct {
	threads map[uint16]*streamThread
	diags   []Diagnostic
	index   map[string]int

	modeSet    bool
	legacyMode bool
}

func NewChecker() *Checker {
	return &Checker{
		threads: make(map[uint16]*streamThread),
		index:   make(map[string]int),
	}
}

// maxDiagnostics bounds the diagnostic list; Count keeps accumulating for
// entries already present.
const maxDiagnostics = 256

func (c *Checker) emit(ruleID string, severity Severity, threadID int, offset int64, message string) {
	key := fmt.Sprintf("%s/%d", ruleID, threadID)
	if i, ok := c.index[key]; ok {
		c.diags[i].Count++
		return
	}
	if len(c.diags) >= maxDiagnostics {
		return
	}
	c.index[key] = len(c.diags)
	c.diags = append(c.diags, Diagnostic{
		RuleID:   ruleID,
		Severity: severity,
		ThreadID: threadID,
		Offset:   offset,
		Count:    1,
		Message:  message,
	})
}

// Observe runs the frame-level checks against f, read at offset.
func (c *Checker) Observe(f vdif.Frame, offset int64) {
	h := &f.Header
	tid := int(h.ThreadID)

	if !c.modeSet {
		c.modeSet = true
		c.legacyMode = h.LegacyMode
	} else if h.LegacyMode != c.legacyMode {
		c.emit(RuleMixedLegacy, WARN, -1, offset, "stream mixes legacy and full-length headers")
	}

	if h.Version > 1 {
		c.emit(RuleVersion, WARN, tid, offset, fmt.Sprintf("header declares VDIF version %d", h.Version))
	}
	if h.Invalid {
		c.emit(RuleInvalidFrames, INFO, tid, offset, "sender marked frames invalid")
	}
	if ext, ok := h.Extension.(vdif.EDV3); ok && ext.SyncPattern != vdif.EDV3SyncPattern {
		c.emit(RuleEDV3Sync, WARN, tid, offset,
			fmt.Sprintf("EDV 3 sync word %#08x, want %#08x", ext.SyncPattern, uint32(vdif.EDV3SyncPattern)))
	}

	st, ok := c.threads[h.ThreadID]
	if !ok {
		st = &streamThread{}
		c.threads[h.ThreadID] = st
	}
	if st.seenFrame {
		if h.Seconds < st.lastSeconds {
			c.emit(RuleSecondsRegression, WARN, tid, offset,
				fmt.Sprintf("seconds went from %d back to %d", st.lastSeconds, h.Seconds))
		} else if h.Seconds == st.lastSeconds && h.FrameNumber <= st.lastNumber {
			c.emit(RuleFrameRegression, WARN, tid, offset,
				fmt.Sprintf("frame number %d after %d in second %d", h.FrameNumber, st.lastNumber, h.Seconds))
		}
	}
	st.seenFrame = true
	st.lastSeconds = h.Seconds
	st.lastNumber = h.FrameNumber

	if !st.shapeSet {
		st.shapeSet = true
		st.length = h.FrameLengthWords8
		st.channels = h.ChannelCountLog2
		st.bits = h.BitsPerSampleMinus1
		st.cplx = h.Complex
	} else if st.length != h.FrameLengthWords8 || st.channels != h.ChannelCountLog2 ||
		st.bits != h.BitsPerSampleMinus1 || st.cplx != h.Complex {
		c.emit(RuleShapeChange, WARN, tid, offset, "frame length or sample layout changed mid-thread")
	}
}

// ObserveSkip records a region the scanner could not decode.
func (c *Checker) ObserveSkip(r vdif.SkipRegion) {
	c.emit(RuleSkipRegion, ERROR, -1, r.Offset,
		fmt.Sprintf("skipped %d undecodable bytes: %s", r.Bytes, r.Reason))
}

// Diagnostics returns the findings in emission order.
func (c *Checker) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}

// Counts returns how many diagnostics sit at each severity.
func (c *Checker) Counts() (errors, warnings, infos int) {
	for _, d := range c.diags {
		switch d.Severity {
		case ERROR:
			errors++
		case WARN:
			warnings++
		case INFO:
			infos++
		}
	}
	return
}
