package renderer

import (
	"bytes"
	"fmt"
	"image/png"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// rasterDPI is the density artwork is rasterized at before being placed on
// the canvas. 150 keeps binders printable without ballooning file size.
const rasterDPI = 150

// drawRaster rasterizes the SVG with MuPDF and places the bitmap inside the
// rectangle (x, y, w, h), centered and aspect-preserving.
func drawRaster(pdf *fpdf.Fpdf, svg []byte, x, y, w, h float64) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("raster render panicked: %v", rec)
		}
	}()

	doc, derr := fitz.NewFromMemory(svg)
	if derr != nil {
		return fmt.Errorf("open svg: %w", derr)
	}
	defer doc.Close()

	img, ierr := doc.ImageDPI(0, rasterDPI)
	if ierr != nil {
		return fmt.Errorf("rasterize svg: %w", ierr)
	}
	bounds := img.Bounds()
	iw, ih := float64(bounds.Dx()), float64(bounds.Dy())
	if iw <= 0 || ih <= 0 {
		return fmt.Errorf("rasterized image is empty")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}

	scale := w / iw
	if s := h / ih; s < scale {
		scale = s
	}
	dw, dh := iw*scale, ih*scale
	dx := x + (w-dw)/2
	dy := y + (h-dh)/2

	// Image names must be unique per document; repeats of the same rhyme
	// are deduplicated upstream by the per-render memo, not here.
	name := "svg-" + uuid.NewString()
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, &buf)
	if pdf.Err() {
		return fmt.Errorf("register image: %w", pdf.Error())
	}
	pdf.ImageOptions(name, dx, dy, dw, dh, false, opts, 0, "")
	if pdf.Err() {
		return fmt.Errorf("place image: %w", pdf.Error())
	}
	log.Debug().Int("w", bounds.Dx()).Int("h", bounds.Dy()).Msg("rasterized svg placed")
	return nil
}
