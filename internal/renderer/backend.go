package renderer

import (
	"bytes"
	"errors"
	"sync"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
	"github.com/srwiley/oksvg"
)

// ErrNoContent reports a binder render for a grade with nothing selected.
var ErrNoContent = errors.New("no rhymes selected")

// ErrUnavailable reports that the PDF canvas itself cannot be driven. It is
// fatal for the binder endpoint only; the rest of the service keeps working.
var ErrUnavailable = errors.New("pdf rendering unavailable")

// Mode tags the backend combination available for drawing SVG artwork.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeVector Mode = "vector"
	ModeRaster Mode = "raster"
	ModeHybrid Mode = "hybrid"
)

// Capabilities is the probed backend set. Vector is the oksvg path replay
// onto native PDF objects; Raster is MuPDF rasterization via go-fitz, whose
// shared library may genuinely be missing at runtime.
type Capabilities struct {
	Mode   Mode
	Vector bool
	Raster bool
}

var (
	probeOnce sync.Once
	probed    Capabilities
)

// probeSVG is a minimal document both backends must accept.
const probeSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><rect x="1" y="1" width="8" height="8" fill="#000000"/></svg>`

// ProbeBackends detects the available rendering backends. The probe runs at
// first use, not process start, so a missing system library never takes
// down unrelated endpoints. The result is memoized for the process
// lifetime.
func ProbeBackends() Capabilities {
	probeOnce.Do(func() {
		v := probeVector()
		r := probeRaster()
		switch {
		case v && r:
			probed = Capabilities{Mode: ModeHybrid, Vector: true, Raster: true}
		case v:
			probed = Capabilities{Mode: ModeVector, Vector: true}
		case r:
			probed = Capabilities{Mode: ModeRaster, Raster: true}
		default:
			probed = Capabilities{Mode: ModeNone}
		}
		log.Info().Str("mode", string(probed.Mode)).Bool("vector", v).Bool("raster", r).
			Msg("svg rendering backends probed")
	})
	return probed
}

func probeVector() (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn().Interface("panic", rec).Msg("vector backend probe panicked")
			ok = false
		}
	}()
	icon, err := oksvg.ReadIconStream(bytes.NewReader([]byte(probeSVG)))
	return err == nil && icon != nil
}

func probeRaster() (ok bool) {
	// go-fitz loads libmupdf through FFI; hosts without it can panic here
	// rather than return an error.
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn().Interface("panic", rec).Msg("raster backend probe panicked")
			ok = false
		}
	}()
	doc, err := fitz.NewFromMemory([]byte(probeSVG))
	if err != nil {
		return false
	}
	defer doc.Close()
	img, err := doc.Image(0)
	return err == nil && img != nil
}
