package export

import (
	"bytes"
	"fmt"
	"io"

	"git.sr.ht/~sbinet/gg"
	"github.com/go-pdf/fpdf"
)

// A4 image area in millimetres.
const (
	PageWidthMM  = 210.0
	PageHeightMM = 295.0
)

// PageOffsets returns the vertical offset of the image on each page when an
// image imgHeight tall is tiled onto pages pageHeight tall. The first page
// shows the top of the image; every following page shifts it up by one page.
func PageOffsets(imgHeight, pageHeight float64) []float64 {
	offsets := []float64{0}
	if pageHeight <= 0 {
		return offsets
	}
	heightLeft := imgHeight - pageHeight
	for heightLeft > 0 {
		offsets = append(offsets, heightLeft-imgHeight)
		heightLeft -= pageHeight
	}
	return offsets
}

// writePDF tiles the raster across A4 pages at full page width and returns
// the page count.
func writePDF(w io.Writer, dc *gg.Context) (int, error) {
	var img bytes.Buffer
	if err := dc.EncodePNG(&img); err != nil {
		return 0, fmt.Errorf("encode region: %w", err)
	}

	pw, ph := dc.Width(), dc.Height()
	if pw == 0 || ph == 0 {
		return 0, fmt.Errorf("empty region %dx%d", pw, ph)
	}
	imgHeight := float64(ph) * PageWidthMM / float64(pw)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	opts := fpdf.ImageOptions{ImageType: "PNG", AllowNegativePosition: true}
	pdf.RegisterImageOptionsReader("region", opts, &img)

	offsets := PageOffsets(imgHeight, PageHeightMM)
	for _, y := range offsets {
		pdf.AddPage()
		pdf.ImageOptions("region", 0, y, PageWidthMM, imgHeight, false, opts, 0, "")
	}
	if err := pdf.Output(w); err != nil {
		return 0, fmt.Errorf("write pdf: %w", err)
	}
	return len(offsets), nil
}
