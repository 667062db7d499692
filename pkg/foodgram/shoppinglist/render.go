package shoppinglist

import (
	"fmt"
	"io"
	"strings"

	"github.com/phpdave11/gofpdf"
)

// Format selects the report encoding.
type Format string

const (
	FormatText Format = "txt"
	FormatPDF  Format = "pdf"
)

// ParseFormat maps a query value to a Format, defaulting to text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "txt", "text":
		return FormatText, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported shopping list format %q", s)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/plain; charset=utf-8"
}

// Text renders the header, a blank line, then one line per item.
func (r *Report) Text() string {
	var b strings.Builder
	b.WriteString(r.Title())
	b.WriteString("\n\n")
	for i, item := range r.Items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(item.Line())
	}
	return b.String()
}

// Write encodes the report in format f.
func (r *Report) Write(w io.Writer, f Format) error {
	if f == FormatPDF {
		return r.WritePDF(w)
	}
	_, err := io.WriteString(w, r.Text())
	return err
}

// WritePDF renders the report as a single-column A4 document.
func (r *Report) WritePDF(w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(r.Title(), true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr(r.Title()))
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 12)
	for _, item := range r.Items {
		pdf.Cell(0, 8, tr(item.Line()))
		pdf.Ln(8)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}
