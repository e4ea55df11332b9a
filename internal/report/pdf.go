package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"example.com/vdifgate/internal/rules"
)

// SavePDF renders the scan summary into a PDF document. The recording
// digest is embedded both as text and as a QR code.
func SavePDF(sum Summary, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Scan Report", false)
	pdf.SetAuthor("vdifctl", false)
	pdf.SetCreator("vdifctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addDigestQR(pdf, sum.Sha256)
	addPDFTitle(pdf, "Scan Report")
	addSummarySection(pdf, sum)
	addThreadsSection(pdf, sum.Threads)
	addDiagnosticsSection(pdf, sum.Diagnostics)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

// addDigestQR places the digest QR in the top right corner of the first
// page. A digest that cannot be encoded just leaves the corner empty; the
// hex digest in the summary still identifies the recording.
func addDigestQR(pdf *gofpdf.Fpdf, digest string) {
	png, err := DigestQR(digest, 256)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("digest-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("digest-qr", 167, 18, 28, 28, false, opts, 0, "")
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, sum Summary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Input", value: filepath.Base(sum.Input)},
		{label: "Size", value: fmt.Sprintf("%d bytes", sum.SizeBytes)},
		{label: "Frames", value: strconv.FormatInt(sum.Frames, 10)},
		{label: "Frame Bytes", value: strconv.FormatInt(sum.Bytes, 10)},
		{label: "Data Threads", value: strconv.Itoa(len(sum.Threads))},
		{label: "Skipped Regions", value: strconv.FormatInt(sum.SkippedRegions, 10)},
		{label: "Skipped Bytes", value: strconv.FormatInt(sum.SkippedBytes, 10)},
		{label: "Errors", value: strconv.Itoa(sum.Verdict.Errors)},
		{label: "Warnings", value: strconv.Itoa(sum.Verdict.Warnings)},
		{label: "Overall", value: passLabel(sum.Verdict.Pass)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}

	pdf.CellFormat(50, 6, "SHA-256", "", 0, "L", false, 0, "")
	pdf.SetFont("Courier", "", 9)
	pdf.CellFormat(0, 6, sum.Sha256, "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func addThreadsSection(pdf *gofpdf.Fpdf, rows []ThreadSummary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Data Threads")
	pdf.Ln(9)

	if len(rows) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No decodable frames.", "", "L", false)
		pdf.Ln(4)
		return
	}

	headers := []string{"Thread", "Frames", "Bytes", "Station", "Shape", "EDV", "First Frame Time"}
	widths := []float64{16, 18, 24, 18, 30, 24, 50}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, row := range rows {
		values := []string{
			strconv.Itoa(int(row.ThreadID)),
			strconv.FormatInt(row.Frames, 10),
			strconv.FormatInt(row.Bytes, 10),
			emptyFallback(row.Station, "-"),
			shapeLabel(row),
			emptyFallback(row.Extension, "-"),
			row.FirstTime.UTC().Format("2006-01-02 15:04:05"),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addDiagnosticsSection(pdf *gofpdf.Fpdf, diags []rules.Diagnostic) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Findings")
	pdf.Ln(9)

	if len(diags) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No findings recorded.", "", "L", false)
		return
	}

	for i, d := range diags {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s (%s)", i+1, d.RuleID, severityLabel(d.Severity))
		pdf.MultiCell(0, 5, header, "", "L", false)

		if msg := strings.TrimSpace(d.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}

		if meta := diagMetadata(d); meta != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, meta, "", "L", false)
		}

		pdf.Ln(2)
	}
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func shapeLabel(row ThreadSummary) string {
	s := fmt.Sprintf("%dch %dbit", row.Channels, row.BitsPerSample)
	if row.Complex {
		s += " complex"
	}
	return s
}

func diagMetadata(d rules.Diagnostic) string {
	parts := make([]string, 0, 3)
	if d.ThreadID >= 0 {
		parts = append(parts, fmt.Sprintf("Thread %d", d.ThreadID))
	}
	parts = append(parts, fmt.Sprintf("Offset %d", d.Offset))
	if d.Count > 1 {
		parts = append(parts, fmt.Sprintf("%d occurrences", d.Count))
	}
	return strings.Join(parts, ", ")
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func severityLabel(sev rules.Severity) string {
	if s := strings.TrimSpace(string(sev)); s != "" {
		return s
	}
	return "UNKNOWN"
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
