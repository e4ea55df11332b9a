package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"example.com/vdifgate/internal/capture"
	"example.com/vdifgate/internal/common"
	"example.com/vdifgate/internal/demux"
	"example.com/vdifgate/internal/manifest"
	"example.com/vdifgate/internal/replay"
	"example.com/vdifgate/internal/report"
	"example.com/vdifgate/internal/station"
	"example.com/vdifgate/internal/vdif"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	switch os.Args[1] {
	case "inspect":
		inspectCmd(os.Args[2:])
	case "extract":
		extractCmd(os.Args[2:])
	case "demux":
		demuxCmd(os.Args[2:])
	case "replay":
		replayCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "manifest":
		manifestCmd(os.Args[2:])
	case "verify-signature":
		verifySignatureCmd(os.Args[2:])
	case "version":
		fmt.Printf("vdifctl %s (built %s)\n", version, buildDate)
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`vdifctl %s (built %s) <command> [options]

Commands:
  inspect   --in <recording.vdif> [--n N] [--offset K] [--json]
  extract   --in <capture.pcap|.pcapng> --out-dir <dir> [--stem name] [--start N] [--count M] [--merge] [--report <scan.json>] [--pdf <scan.pdf>] [--manifest <manifest.json>]
  demux     --in <recording.vdif> --out-dir <dir> [--stem name]
  replay    --in <recording.vdif> --dest <host:port> [--station <profile.yaml>] [--rate HZ] [--loop N] [--burst]
  report    --in <capture|recording> [--json <scan.json>] [--pdf <scan.pdf>]
  manifest  --paths <comma-separated> --out <manifest.json> [--sign --key <key.pem> [--jws-out <file>]]
  verify-signature --manifest <manifest.json> --pub <public.pem> [--jws <signature.jws>]
  version
`, version, buildDate)
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func edvLabel(h *vdif.Header) string {
	if h.Extension == nil {
		return "legacy"
	}
	return h.Extension.Kind().String()
}

// inspectRow is the JSON shape of one dissected frame.
type inspectRow struct {
	Index         int               `json:"index"`
	Offset        int64             `json:"offset"`
	ThreadID      uint16            `json:"threadId"`
	Station       string            `json:"station"`
	EDV           string            `json:"edv"`
	Invalid       bool              `json:"invalid,omitempty"`
	Channels      int               `json:"channels"`
	BitsPerSample int               `json:"bitsPerSample"`
	Complex       bool              `json:"complex,omitempty"`
	FrameLen      int               `json:"frameLen"`
	Samples       int               `json:"samplesPerFrame"`
	SampleRateHz  int64             `json:"sampleRateHz,omitempty"`
	Time          time.Time         `json:"time"`
	Fields        []vdif.FieldValue `json:"fields"`
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	in := fs.String("in", "", "input .vdif recording")
	n := fs.Int("n", 1, "frames to print")
	offset := fs.Int("offset", 0, "frames to skip before printing")
	asJSON := fs.Bool("json", false, "emit JSON instead of text")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}

	s, err := vdif.OpenRecording(*in)
	if err != nil {
		fmt.Println("open recording:", err)
		os.Exit(1)
	}
	defer s.Close()

	rows := []inspectRow{}
	idx := 0
	printed := 0
	for printed < *n {
		f, off, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Println("scan:", err)
			os.Exit(1)
		}
		if idx < *offset {
			idx++
			continue
		}
		hdr, err := f.Header.Encode()
		if err != nil {
			fmt.Println("encode header:", err)
			os.Exit(1)
		}
		fields, err := vdif.Dissect(hdr)
		if err != nil {
			fmt.Println("dissect:", err)
			os.Exit(1)
		}
		if *asJSON {
			rows = append(rows, makeInspectRow(idx, off, &f, fields))
		} else {
			if printed > 0 {
				fmt.Println()
			}
			printFrame(idx, off, &f, fields)
		}
		idx++
		printed++
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			fmt.Println("encode json:", err)
			os.Exit(1)
		}
		return
	}
	if printed == 0 {
		fmt.Println("No frames found")
	}
}

func makeInspectRow(idx int, off int64, f *vdif.Frame, fields []vdif.FieldValue) inspectRow {
	h := &f.Header
	row := inspectRow{
		Index:         idx,
		Offset:        off,
		ThreadID:      h.ThreadID,
		Station:       h.StationCode(),
		EDV:           edvLabel(h),
		Invalid:       h.Invalid,
		Channels:      h.NumChannels(),
		BitsPerSample: h.BitsPerSample(),
		Complex:       h.Complex,
		FrameLen:      h.FrameLen(),
		Samples:       f.SampleCount(),
		Time:          h.Time(),
		Fields:        fields,
	}
	if ext, ok := h.Extension.(vdif.EDV3); ok {
		row.SampleRateHz = ext.SampleRateHz()
	}
	return row
}

func printFrame(idx int, off int64, f *vdif.Frame, fields []vdif.FieldValue) {
	h := &f.Header
	fmt.Printf("Frame %d at offset %d: thread %d, station %s, %s\n", idx, off, h.ThreadID, h.StationCode(), edvLabel(h))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, fv := range fields {
		fmt.Fprintf(w, "  %s\t%d\t%#x\n", fv.Name, fv.Value, fv.Value)
	}
	w.Flush()
	derived := fmt.Sprintf("  derived: %d ch x %d bit", h.NumChannels(), h.BitsPerSample())
	if h.Complex {
		derived += " complex"
	}
	derived += fmt.Sprintf(", %d-byte frame, %d samples, %s", h.FrameLen(), f.SampleCount(), h.Time().Format(time.RFC3339))
	if ext, ok := h.Extension.(vdif.EDV3); ok && ext.SampleRateHz() > 0 {
		derived += fmt.Sprintf(", %d samples/s", ext.SampleRateHz())
	}
	fmt.Println(derived)
}

func extractCmd(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	in := fs.String("in", "", "input capture (.pcap or .pcapng)")
	outDir := fs.String("out-dir", "out", "output directory")
	stem := fs.String("stem", "", "output name stem (default: input base name)")
	start := fs.Int("start", 0, "first capture record, 0-based")
	count := fs.Int("count", 0, "capture records to read, 0 = all remaining")
	merge := fs.Bool("merge", false, "write one merged recording instead of per-thread files")
	reportOut := fs.String("report", "", "scan report JSON output")
	pdfOut := fs.String("pdf", "", "scan report PDF output")
	manifestOut := fs.String("manifest", "", "artifact manifest JSON output")
	logPath := fs.String("log", "", "processing log to append (jsonl)")
	metricsFlag := fs.Bool("metrics", false, "print extraction throughput metrics")
	progressFlag := fs.Bool("progress", false, "display extraction progress updates")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}

	var metrics *common.Metrics
	if *metricsFlag || *progressFlag {
		metrics = common.NewMetrics()
		if info, err := os.Stat(*in); err == nil {
			metrics.SetTotalBytes(info.Size())
		}
	}

	r, err := capture.Open(*in, capture.Options{StartPacket: *start, NumPackets: *count})
	if err != nil {
		fmt.Println("open capture:", err)
		os.Exit(1)
	}
	defer r.Close()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Println("create output dir:", err)
		os.Exit(1)
	}
	name := *stem
	if name == "" {
		name = stemOf(*in)
	}

	var (
		d      *demux.Demuxer
		merged *demux.FileSink
	)
	if *merge {
		merged, err = demux.NewFileSink(filepath.Join(*outDir, name+".vdif"))
		if err != nil {
			fmt.Println("create output:", err)
			os.Exit(1)
		}
	} else {
		d = demux.NewDemuxer(demux.FileSinkFactory(*outDir, name))
	}

	builder := report.NewBuilder()
	var stats vdif.ScanStats
	var payloadOffset int64

	if metrics != nil {
		metrics.Start()
	}
	var stopProgress func()
	if metrics != nil && *progressFlag {
		stopProgress = common.StartProgressPrinter(os.Stderr, metrics, 500*time.Millisecond)
	}
	for {
		payload, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Println("read capture:", err)
			os.Exit(1)
		}
		size := int64(len(payload))
		f, derr := vdif.DecodeFrame(payload)
		if derr != nil {
			builder.ObserveSkip(vdif.SkipRegion{Offset: payloadOffset, Bytes: size, Reason: derr.Error()})
			stats.Skipped++
			stats.SkippedBytes += size
			payloadOffset += size
			if metrics != nil {
				metrics.IncSkipped()
				metrics.AddBytes(size)
			}
			continue
		}
		builder.Observe(f, payloadOffset)
		if merged != nil {
			err = merged.Append(f)
		} else {
			err = d.Route(f)
		}
		if err != nil {
			fmt.Println("write frame:", err)
			os.Exit(1)
		}
		stats.Frames++
		stats.Bytes += int64(f.Len())
		payloadOffset += size
		if metrics != nil {
			metrics.AddFrame(size)
		}
	}
	if stopProgress != nil {
		stopProgress()
	}
	if metrics != nil {
		metrics.Stop()
	}

	var outputs []string
	if merged != nil {
		if err := merged.Close(); err != nil {
			fmt.Println("close output:", err)
			os.Exit(1)
		}
		outputs = append(outputs, merged.Path())
	} else {
		if err := d.Close(); err != nil {
			fmt.Println("close outputs:", err)
			os.Exit(1)
		}
		for _, st := range d.ThreadsByID() {
			outputs = append(outputs, filepath.Join(*outDir, demux.ThreadFileName(name, st.ThreadID)))
		}
	}

	capStats := r.Stats()
	fmt.Printf("Extracted %d frames (%s) from %d datagrams\n", stats.Frames, common.FormatBytes(stats.Bytes), capStats.Datagrams)
	if merged != nil {
		fmt.Println("Wrote", merged.Path())
	} else if len(outputs) > 0 {
		printThreads(d.ThreadsByID(), *outDir, name)
	}
	if stats.Skipped > 0 {
		fmt.Printf("Skipped %d undecodable datagrams (%s)\n", stats.Skipped, common.FormatBytes(stats.SkippedBytes))
	}
	if capStats.Skipped > 0 {
		fmt.Printf("Ignored %d capture records without a UDP payload\n", capStats.Skipped)
	}

	if *reportOut != "" || *pdfOut != "" {
		sum, err := builder.Summarize(*in, stats)
		if err != nil {
			fmt.Println("summarize:", err)
			os.Exit(1)
		}
		fmt.Printf("PASS=%v, errors=%d, warnings=%d, diagnostics=%d\n", sum.Verdict.Pass, sum.Verdict.Errors, sum.Verdict.Warnings, len(sum.Diagnostics))
		if *reportOut != "" {
			if err := report.SaveJSON(sum, *reportOut); err != nil {
				fmt.Println("write report:", err)
				os.Exit(1)
			}
			outputs = append(outputs, *reportOut)
			fmt.Println("Wrote", *reportOut)
		}
		if *pdfOut != "" {
			// The PDF is a convenience rendering; its failure must not fail
			// an extraction whose data files are already on disk.
			if err := report.SavePDF(sum, *pdfOut); err != nil {
				fmt.Printf("WARNING: pdf report failed: %v\n", err)
			} else {
				outputs = append(outputs, *pdfOut)
				fmt.Println("Wrote", *pdfOut)
			}
		}
	}

	if *manifestOut != "" {
		m, err := manifest.Build(outputs)
		if err != nil {
			fmt.Println("manifest build:", err)
			os.Exit(1)
		}
		if err := manifest.Save(m, *manifestOut); err != nil {
			fmt.Println("manifest save:", err)
			os.Exit(1)
		}
		outputs = append(outputs, *manifestOut)
		fmt.Println("Wrote", *manifestOut)
	}

	appendProcessLog(*logPath, "extract", *in, outputs, stats.Frames, stats.Bytes, stats.Skipped, "")

	if metrics != nil && *metricsFlag {
		snap := metrics.Snapshot()
		mbPerSec := snap.ThroughputBytesPerSecond() / 1_000_000
		fmt.Printf("Metrics: duration=%s frames=%d skipped=%d processed=%s throughput=%.2f MB/s\n",
			snap.Duration.Round(10*time.Millisecond), snap.Frames, snap.Skipped, common.FormatBytes(snap.Bytes), mbPerSec)
	}
}

func demuxCmd(args []string) {
	fs := flag.NewFlagSet("demux", flag.ExitOnError)
	in := fs.String("in", "", "input .vdif recording")
	outDir := fs.String("out-dir", "out", "output directory")
	stem := fs.String("stem", "", "output name stem (default: input base name)")
	logPath := fs.String("log", "", "processing log to append (jsonl)")
	metricsFlag := fs.Bool("metrics", false, "print demux throughput metrics")
	progressFlag := fs.Bool("progress", false, "display demux progress updates")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}

	s, err := vdif.OpenRecording(*in)
	if err != nil {
		fmt.Println("open recording:", err)
		os.Exit(1)
	}
	defer s.Close()

	var metrics *common.Metrics
	if *metricsFlag || *progressFlag {
		metrics = common.NewMetrics()
		s.SetMetrics(metrics)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Println("create output dir:", err)
		os.Exit(1)
	}
	name := *stem
	if name == "" {
		name = stemOf(*in)
	}
	d := demux.NewDemuxer(demux.FileSinkFactory(*outDir, name))

	if metrics != nil {
		metrics.Start()
	}
	var stopProgress func()
	if metrics != nil && *progressFlag {
		stopProgress = common.StartProgressPrinter(os.Stderr, metrics, 500*time.Millisecond)
	}
	for {
		f, _, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Println("scan:", err)
			os.Exit(1)
		}
		if err := d.Route(f); err != nil {
			fmt.Println("write frame:", err)
			os.Exit(1)
		}
	}
	if stopProgress != nil {
		stopProgress()
	}
	if metrics != nil {
		metrics.Stop()
	}
	if err := d.Close(); err != nil {
		fmt.Println("close outputs:", err)
		os.Exit(1)
	}

	stats := s.Stats()
	threads := d.ThreadsByID()
	fmt.Printf("Demuxed %d frames (%s) into %d thread files\n", stats.Frames, common.FormatBytes(stats.Bytes), len(threads))
	printThreads(threads, *outDir, name)
	if stats.Skipped > 0 {
		fmt.Printf("Skipped %d undecodable regions (%s)\n", stats.Skipped, common.FormatBytes(stats.SkippedBytes))
	}
	if stats.TrailingBytes > 0 {
		fmt.Printf("Trailing %d bytes after the last frame\n", stats.TrailingBytes)
	}

	var outputs []string
	for _, st := range threads {
		outputs = append(outputs, filepath.Join(*outDir, demux.ThreadFileName(name, st.ThreadID)))
	}
	appendProcessLog(*logPath, "demux", *in, outputs, stats.Frames, stats.Bytes, stats.Skipped, "")

	if metrics != nil && *metricsFlag {
		snap := metrics.Snapshot()
		mbPerSec := snap.ThroughputBytesPerSecond() / 1_000_000
		fmt.Printf("Metrics: duration=%s frames=%d skipped=%d processed=%s throughput=%.2f MB/s\n",
			snap.Duration.Round(10*time.Millisecond), snap.Frames, snap.Skipped, common.FormatBytes(snap.Bytes), mbPerSec)
	}
}

func replayCmd(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	in := fs.String("in", "", "input .vdif recording")
	dest := fs.String("dest", "127.0.0.1:7890", "destination host:port")
	stationPath := fs.String("station", "", "station profile YAML")
	rate := fs.Int64("rate", 0, "pacing sample rate in Hz, overrides the profile")
	loop := fs.Int("loop", 1, "passes over the recording")
	burst := fs.Bool("burst", false, "send back to back without pacing")
	metricsFlag := fs.Bool("metrics", false, "print replay throughput metrics")
	logPath := fs.String("log", "", "processing log to append (jsonl)")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}

	configured := *rate
	if *stationPath != "" {
		p, err := station.Load(*stationPath)
		if err != nil {
			fmt.Println("station profile:", err)
			os.Exit(1)
		}
		if configured == 0 {
			configured = p.SampleRateHz
		}
		if p.Description != "" {
			fmt.Printf("Station %s: %s\n", p.Station, p.Description)
		} else {
			fmt.Println("Station", p.Station)
		}
	}

	frames, stats, err := replay.LoadRecording(*in)
	if err != nil {
		fmt.Println("load recording:", err)
		os.Exit(1)
	}
	if stats.Skipped > 0 {
		fmt.Printf("WARNING: skipped %d undecodable regions (%s) while loading\n", stats.Skipped, common.FormatBytes(stats.SkippedBytes))
	}

	tr, err := replay.DialUDP(*dest)
	if err != nil {
		fmt.Println("dial:", err)
		os.Exit(1)
	}
	defer tr.Close()

	var metrics *common.Metrics
	if *metricsFlag {
		metrics = common.NewMetrics()
		metrics.Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := replay.Run(ctx, frames, tr, replay.Options{
		SampleRateHz: configured,
		Loop:         *loop,
		Burst:        *burst,
		Metrics:      metrics,
	})
	if metrics != nil {
		metrics.Stop()
	}
	switch {
	case err == nil:
		fmt.Printf("Replayed %d frames (%s) to %s in %s (%d passes)\n",
			res.Frames, common.FormatBytes(res.Bytes), *dest, res.Elapsed.Round(time.Millisecond), res.Passes)
	case errors.Is(err, context.Canceled):
		fmt.Printf("Interrupted after %d frames (%s)\n", res.Frames, common.FormatBytes(res.Bytes))
	default:
		fmt.Println("replay:", err)
		os.Exit(1)
	}

	appendProcessLog(*logPath, "replay", *in, nil, res.Frames, res.Bytes, stats.Skipped, fmt.Sprintf("dest=%s passes=%d", *dest, res.Passes))

	if metrics != nil && *metricsFlag {
		snap := metrics.Snapshot()
		mbPerSec := snap.ThroughputBytesPerSecond() / 1_000_000
		fmt.Printf("Metrics: duration=%s datagrams=%d sent=%s throughput=%.2f MB/s\n",
			snap.Duration.Round(10*time.Millisecond), snap.Datagrams, common.FormatBytes(snap.Bytes), mbPerSec)
	}
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := fs.String("in", "", "input capture or recording")
	jsonOut := fs.String("json", "", "scan report JSON output")
	pdfOut := fs.String("pdf", "", "scan report PDF output")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}

	builder := report.NewBuilder()
	var stats vdif.ScanStats

	if cr, cerr := capture.Open(*in, capture.Options{}); cerr == nil {
		var offset int64
		for {
			payload, err := cr.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				fmt.Println("read capture:", err)
				os.Exit(1)
			}
			size := int64(len(payload))
			f, derr := vdif.DecodeFrame(payload)
			if derr != nil {
				builder.ObserveSkip(vdif.SkipRegion{Offset: offset, Bytes: size, Reason: derr.Error()})
				stats.Skipped++
				stats.SkippedBytes += size
				offset += size
				continue
			}
			builder.Observe(f, offset)
			stats.Frames++
			stats.Bytes += int64(f.Len())
			offset += size
		}
		cr.Close()
	} else {
		s, err := vdif.OpenRecording(*in)
		if err != nil {
			fmt.Println("open input:", err)
			os.Exit(1)
		}
		for {
			f, off, err := s.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				fmt.Println("scan:", err)
				os.Exit(1)
			}
			builder.Observe(f, off)
		}
		for _, reg := range s.SkipRegions() {
			builder.ObserveSkip(reg)
		}
		stats = s.Stats()
		s.Close()
	}

	sum, err := builder.Summarize(*in, stats)
	if err != nil {
		fmt.Println("summarize:", err)
		os.Exit(1)
	}

	fmt.Printf("PASS=%v, errors=%d, warnings=%d, diagnostics=%d\n", sum.Verdict.Pass, sum.Verdict.Errors, sum.Verdict.Warnings, len(sum.Diagnostics))
	if len(sum.Threads) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "THREAD\tFRAMES\tBYTES\tSTATION\tSHAPE\tEDV")
		for _, t := range sum.Threads {
			shape := fmt.Sprintf("%dch %dbit", t.Channels, t.BitsPerSample)
			if t.Complex {
				shape += " complex"
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n", t.ThreadID, t.Frames, common.FormatBytes(t.Bytes), t.Station, shape, t.Extension)
		}
		w.Flush()
	}
	for _, dg := range sum.Diagnostics {
		loc := ""
		if dg.ThreadID >= 0 {
			loc = fmt.Sprintf(" thread %d", dg.ThreadID)
		}
		line := fmt.Sprintf("  %s %s%s: %s", dg.Severity, dg.RuleID, loc, dg.Message)
		if dg.Count > 1 {
			line += fmt.Sprintf(" (%d occurrences)", dg.Count)
		}
		fmt.Println(line)
	}

	if *jsonOut != "" {
		if err := report.SaveJSON(sum, *jsonOut); err != nil {
			fmt.Println("write report:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", *jsonOut)
	}
	if *pdfOut != "" {
		if err := report.SavePDF(sum, *pdfOut); err != nil {
			fmt.Println("write pdf:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", *pdfOut)
	}
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	paths := fs.String("paths", "", "comma-separated artifact paths")
	out := fs.String("out", "manifest.json", "output json")
	sign := fs.Bool("sign", false, "sign the manifest (detached JWS over its JSON)")
	keyPath := fs.String("key", "", "PEM RSA private key for signing (requires --sign)")
	jwsOut := fs.String("jws-out", "", "output JWS file (defaults to manifest path with .jws)")
	fs.Parse(args)

	if *paths == "" {
		fmt.Println("required: --paths")
		os.Exit(1)
	}

	var inputs []string
	for _, p := range strings.Split(*paths, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		inputs = append(inputs, p)
	}
	if len(inputs) == 0 {
		fmt.Println("no artifact paths specified")
		os.Exit(1)
	}

	m, err := manifest.Build(inputs)
	if err != nil {
		fmt.Println("manifest build:", err)
		os.Exit(1)
	}

	if !*sign {
		if err := manifest.Save(m, *out); err != nil {
			fmt.Println("manifest save:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", *out)
		return
	}

	if *keyPath == "" {
		fmt.Println("--sign requires --key")
		os.Exit(1)
	}
	keyBytes, err := os.ReadFile(*keyPath)
	if err != nil {
		fmt.Println("read key:", err)
		os.Exit(1)
	}

	sigPath := *jwsOut
	if sigPath == "" {
		base := *out
		ext := filepath.Ext(base)
		if ext != "" {
			sigPath = base[:len(base)-len(ext)] + ".jws"
		} else {
			sigPath = base + ".jws"
		}
	}

	if err := manifest.Sign(&m, keyBytes, sigPath); err != nil {
		fmt.Println("manifest sign:", err)
		os.Exit(1)
	}
	if err := manifest.Save(m, *out); err != nil {
		fmt.Println("manifest save:", err)
		os.Exit(1)
	}
	fmt.Println("Wrote", *out)
	fmt.Println("Wrote signature", sigPath)
}

func verifySignatureCmd(args []string) {
	fs := flag.NewFlagSet("verify-signature", flag.ExitOnError)
	manifestPath := fs.String("manifest", "", "manifest JSON file")
	jwsPath := fs.String("jws", "", "detached JWS file (defaults to the file the manifest names)")
	pubPath := fs.String("pub", "", "signer public key (PEM)")
	fs.Parse(args)

	if *manifestPath == "" || *pubPath == "" {
		fmt.Println("required: --manifest, --pub")
		os.Exit(1)
	}

	m, err := manifest.Load(*manifestPath)
	if err != nil {
		fmt.Println("load manifest:", err)
		os.Exit(1)
	}

	sigPath := *jwsPath
	if sigPath == "" {
		if m.Signature == nil || m.Signature.SignatureFile == "" {
			fmt.Println("manifest names no signature file; pass --jws")
			os.Exit(1)
		}
		sigPath = filepath.Join(filepath.Dir(*manifestPath), m.Signature.SignatureFile)
	}

	pubBytes, err := os.ReadFile(*pubPath)
	if err != nil {
		fmt.Println("read public key:", err)
		os.Exit(1)
	}

	if err := manifest.Verify(m, sigPath, pubBytes); err != nil {
		fmt.Println("verify signature:", err)
		os.Exit(1)
	}
	fmt.Println("Signature OK")
}

func printThreads(stats []demux.ThreadStat, dir, stem string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "THREAD\tFRAMES\tBYTES\tFILE")
	for _, st := range stats {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", st.ThreadID, st.Frames, common.FormatBytes(st.Bytes), filepath.Join(dir, demux.ThreadFileName(stem, st.ThreadID)))
	}
	w.Flush()
}

func appendProcessLog(path, op, input string, outputs []string, frames, bytes, skipped int64, detail string) {
	if path == "" {
		return
	}
	entry := common.ProcessEntry{Op: op, Input: input, Outputs: outputs, Frames: frames, Bytes: bytes, Skipped: skipped, Detail: detail}
	if err := common.NewProcessLog(path).Append(entry); err != nil {
		fmt.Println("process log:", err)
		os.Exit(1)
	}
}
