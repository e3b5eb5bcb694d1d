package export

import (
	"bytes"
	"reflect"
	"testing"

	"git.sr.ht/~sbinet/gg"
)

func TestPageOffsets(t *testing.T) {
	tests := []struct {
		name      string
		imgHeight float64
		want      []float64
	}{
		{"shorter than a page", 100, []float64{0}},
		{"exactly one page", 295, []float64{0}},
		{"just over one page", 300, []float64{0, -295}},
		{"three pages", 700, []float64{0, -295, -590}},
		{"exactly three pages", 885, []float64{0, -295, -590}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PageOffsets(tt.imgHeight, PageHeightMM)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PageOffsets(%v) = %v, want %v", tt.imgHeight, got, tt.want)
			}
		})
	}
}

func TestPageOffsets_ZeroPageHeight(t *testing.T) {
	if got := PageOffsets(1000, 0); len(got) != 1 {
		t.Errorf("expected a single page, got %v", got)
	}
}

func TestWritePDF_PageCount(t *testing.T) {
	// 100x300 px maps to 210x630 mm: three A4 pages.
	dc := gg.NewContext(100, 300)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	var buf bytes.Buffer
	pages, err := writePDF(&buf, dc)
	if err != nil {
		t.Fatal(err)
	}
	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("output is not a PDF: %q", buf.Bytes()[:8])
	}
}
