package report

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"time"

	"example.com/vdifgate/internal/common"
	"example.com/vdifgate/internal/rules"
	"example.com/vdifgate/internal/vdif"
)

// ThreadSummary describes one data thread of a scanned recording.
type ThreadSummary struct {
	ThreadID      uint16    `json:"threadId"`
	Frames        int64     `json:"frames"`
	Bytes         int64     `json:"bytes"`
	Station       string    `json:"station"`
	Channels      int       `json:"channels"`
	BitsPerSample int       `json:"bitsPerSample"`
	Complex       bool      `json:"complex,omitempty"`
	FrameLen      int       `json:"frameLen"`
	Extension     string    `json:"extension"`
	SampleRateHz  int64     `json:"sampleRateHz,omitempty"`
	FirstSeconds  uint32    `json:"firstSeconds"`
	LastSeconds   uint32    `json:"lastSeconds"`
	FirstNumber   uint32    `json:"firstFrameNumber"`
	LastNumber    uint32    `json:"lastFrameNumber"`
	FirstTime     time.Time `json:"firstTime"`
	LastTime      time.Time `json:"lastTime"`
}

// Verdict condenses the diagnostics into one line an operator can act on.
// Pass means the scan produced no ERROR findings.
type Verdict struct {
	Errors   int  `json:"errors"`
	Warnings int  `json:"warnings"`
	Infos    int  `json:"infos"`
	Pass     bool `json:"pass"`
}

// Summary is the scan report for one recording: provenance, totals,
// per-thread rows and the conformance findings.
type Summary struct {
	Input          string             `json:"input"`
	Sha256         string             `json:"sha256"`
	SizeBytes      int64              `json:"sizeBytes"`
	GeneratedAt    time.Time          `json:"generatedAt"`
	Frames         int64              `json:"frames"`
	Bytes          int64              `json:"bytes"`
	SkippedRegions int64              `json:"skippedRegions"`
	SkippedBytes   int64              `json:"skippedBytes"`
	TrailingBytes  int64              `json:"trailingBytes"`
	Verdict        Verdict            `json:"verdict"`
	Threads        []ThreadSummary    `json:"threads"`
	Diagnostics    []rules.Diagnostic `json:"diagnostics"`
}

// threadAccum carries the in-progress row plus the distinct extension
// kinds seen, in first-seen order.
type threadAccum struct {
	row   ThreadSummary
	kinds []string
}

// Builder accumulates a Summary over one scan pass. Feed it every decoded
// frame and skip region, then call Summarize once the scan is done.
type Builder struct {
	checker *rules.Checker
	threads map[uint16]*threadAccum
}

func NewBuilder() *Builder {
	return &Builder{
		checker: rules.NewChecker(),
		threads: make(map[uint16]*threadAccum),
	}
}

func (b *Builder) Observe(f vdif.Frame, offset int64) {
	b.checker.Observe(f, offset)

	h := &f.Header
	acc, ok := b.threads[h.ThreadID]
	if !ok {
		acc = &threadAccum{row: ThreadSummary{
			ThreadID:      h.ThreadID,
			Station:       h.StationCode(),
			Channels:      h.NumChannels(),
			BitsPerSample: h.BitsPerSample(),
			Complex:       h.Complex,
			FrameLen:      h.FrameLen(),
			FirstSeconds:  h.Seconds,
			FirstNumber:   h.FrameNumber,
			FirstTime:     h.Time(),
		}}
		if ext, isEDV3 := h.Extension.(vdif.EDV3); isEDV3 {
			acc.row.SampleRateHz = ext.SampleRateHz()
		}
		b.threads[h.ThreadID] = acc
	}
	kind := extensionLabel(h)
	if !containsString(acc.kinds, kind) {
		acc.kinds = append(acc.kinds, kind)
		acc.row.Extension = strings.Join(acc.kinds, "/")
	}
	acc.row.Frames++
	acc.row.Bytes += int64(h.FrameLen())
	acc.row.LastSeconds = h.Seconds
	acc.row.LastNumber = h.FrameNumber
	acc.row.LastTime = h.Time()
}

func extensionLabel(h *vdif.Header) string {
	if h.Extension == nil {
		return "legacy"
	}
	return h.Extension.Kind().String()
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (b *Builder) ObserveSkip(r vdif.SkipRegion) {
	b.checker.ObserveSkip(r)
}

// Summarize assembles the report. The input file is hashed here so the
// digest always covers the bytes that were actually scanned.
func (b *Builder) Summarize(input string, stats vdif.ScanStats) (Summary, error) {
	digest, size, err := common.Sha256OfFile(input)
	if err != nil {
		return Summary{}, err
	}

	threads := make([]ThreadSummary, 0, len(b.threads))
	for _, acc := range b.threads {
		threads = append(threads, acc.row)
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].ThreadID < threads[j].ThreadID })

	errors, warnings, infos := b.checker.Counts()
	return Summary{
		Input:          input,
		Sha256:         digest,
		SizeBytes:      size,
		GeneratedAt:    time.Now().UTC(),
		Frames:         stats.Frames,
		Bytes:          stats.Bytes,
		SkippedRegions: stats.Skipped,
		SkippedBytes:   stats.SkippedBytes,
		TrailingBytes:  stats.TrailingBytes,
		Verdict:        Verdict{Errors: errors, Warnings: warnings, Infos: infos, Pass: errors == 0},
		Threads:        threads,
		Diagnostics:    b.checker.Diagnostics(),
	}, nil
}

func SaveJSON(sum Summary, out string) error {
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadJSON(path string) (Summary, error) {
	var sum Summary
	b, err := os.ReadFile(path)
	if err != nil {
		return sum, err
	}
	err = json.Unmarshal(b, &sum)
	return sum, err
}
