package renderer

import (
	"fmt"

	"github.com/go-pdf/fpdf"
)

// drawCard paints the text-and-shape placeholder card carrying the rhyme's
// code, name and page count. It is the backstop of last resort for every
// render failure and must never fail itself: it only uses canvas
// primitives that cannot error on valid coordinates.
func drawCard(pdf *fpdf.Fpdf, x, y, w, h float64, code, name string, pages float64) {
	inset := 14.0
	cx := x + inset
	cy := y + inset
	cw := w - 2*inset
	ch := h - 2*inset

	pdf.SetFillColor(247, 247, 247)
	pdf.SetDrawColor(160, 160, 160)
	pdf.SetLineWidth(1.2)
	pdf.Rect(cx, cy, cw, ch, "FD")

	// Corner accents.
	pdf.SetDrawColor(120, 120, 180)
	pdf.SetLineWidth(2)
	al := 22.0
	pdf.Line(cx, cy, cx+al, cy)
	pdf.Line(cx, cy, cx, cy+al)
	pdf.Line(cx+cw, cy+ch, cx+cw-al, cy+ch)
	pdf.Line(cx+cw, cy+ch, cx+cw, cy+ch-al)

	mid := cy + ch*0.40
	pdf.SetTextColor(60, 60, 60)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetXY(cx, mid)
	pdf.CellFormat(cw, 24, name, "", 0, "C", false, 0, "")

	pdf.SetTextColor(110, 110, 110)
	pdf.SetFont("Helvetica", "", 13)
	pdf.SetXY(cx, mid+30)
	pdf.CellFormat(cw, 16, code, "", 0, "C", false, 0, "")

	pdf.SetTextColor(150, 150, 150)
	pdf.SetFont("Helvetica", "I", 11)
	pdf.SetXY(cx, mid+50)
	pdf.CellFormat(cw, 14, fmt.Sprintf("%g page(s)", pages), "", 0, "C", false, 0, "")
}
