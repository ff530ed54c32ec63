package renderer

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/go-pdf/fpdf"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"
)

// drawVector replays the SVG's path model as native PDF path objects inside
// the rectangle (x, y, w, h). Gradients must have been sanitized away
// beforehand; paths still carrying unresolvable paint are skipped.
func drawVector(pdf *fpdf.Fpdf, svg []byte, x, y, w, h float64) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("vector render panicked: %v", rec)
		}
	}()

	icon, rerr := oksvg.ReadIconStream(bytes.NewReader(svg))
	if rerr != nil {
		return fmt.Errorf("parse svg: %w", rerr)
	}
	vb := icon.ViewBox
	if vb.W <= 0 || vb.H <= 0 {
		return fmt.Errorf("svg has no usable viewBox")
	}

	// Fit the viewBox into the slot, centered, preserving aspect ratio.
	scale := w / vb.W
	if s := h / vb.H; s < scale {
		scale = s
	}
	offX := x + (w-vb.W*scale)/2 - vb.X*scale
	offY := y + (h-vb.H*scale)/2 - vb.Y*scale

	for i := range icon.SVGPaths {
		p := &icon.SVGPaths[i]
		drawn := drawSVGPath(pdf, p, scale, offX, offY)
		if !drawn {
			continue
		}
		if pdf.Err() {
			return fmt.Errorf("path %d: %w", i, pdf.Error())
		}
	}
	return nil
}

func drawSVGPath(pdf *fpdf.Fpdf, p *oksvg.SvgPath, scale, offX, offY float64) bool {
	fill, fillOK := p.FillerColor.(color.Color)
	stroke, strokeOK := p.LinerColor.(color.Color)
	if !fillOK && !strokeOK {
		return false
	}

	style := ""
	alpha := 1.0
	if fillOK {
		r, g, b, a := rgba8(fill)
		if a == 0 {
			fillOK = false
		} else {
			pdf.SetFillColor(r, g, b)
			alpha = p.FillOpacity * float64(a) / 255
			style += "F"
		}
	}
	if strokeOK && p.LineWidth > 0 {
		r, g, b, a := rgba8(stroke)
		if a > 0 {
			pdf.SetDrawColor(r, g, b)
			pdf.SetLineWidth(p.LineWidth * scale)
			style += "D"
		}
	}
	if style == "" {
		return false
	}
	if alpha < 1 {
		pdf.SetAlpha(alpha, "Normal")
		defer pdf.SetAlpha(1, "Normal")
	}

	ad := &pdfAdder{pdf: pdf, scale: scale, offX: offX, offY: offY}
	p.Path.AddTo(ad)
	pdf.DrawPath(style)
	return true
}

func rgba8(c color.Color) (int, int, int, int) {
	r, g, b, a := c.RGBA()
	return int(r >> 8), int(g >> 8), int(b >> 8), int(a >> 8)
}

// pdfAdder adapts rasterx path replay onto fpdf path primitives.
type pdfAdder struct {
	pdf          *fpdf.Fpdf
	scale        float64
	offX, offY   float64
	startX, startY float64
}

var _ rasterx.Adder = (*pdfAdder)(nil)

func (a *pdfAdder) pt(p fixed.Point26_6) (float64, float64) {
	return a.offX + float64(p.X)/64*a.scale, a.offY + float64(p.Y)/64*a.scale
}

func (a *pdfAdder) Start(p fixed.Point26_6) {
	x, y := a.pt(p)
	a.startX, a.startY = x, y
	a.pdf.MoveTo(x, y)
}

func (a *pdfAdder) Line(b fixed.Point26_6) {
	x, y := a.pt(b)
	a.pdf.LineTo(x, y)
}

func (a *pdfAdder) QuadBezier(b, c fixed.Point26_6) {
	cx, cy := a.pt(b)
	x, y := a.pt(c)
	a.pdf.CurveTo(cx, cy, x, y)
}

func (a *pdfAdder) CubeBezier(b, c, d fixed.Point26_6) {
	cx0, cy0 := a.pt(b)
	cx1, cy1 := a.pt(c)
	x, y := a.pt(d)
	a.pdf.CurveBezierCubicTo(cx0, cy0, cx1, cy1, x, y)
}

func (a *pdfAdder) Stop(closeLoop bool) {
	if closeLoop {
		a.pdf.ClosePath()
	}
}
