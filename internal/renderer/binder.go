package renderer

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/rhymebinder/internal/allocator"
	"github.com/local/rhymebinder/internal/assets"
	"github.com/local/rhymebinder/internal/metrics"
)

// SelectionSource is the read-only slice of the selection store the
// renderer consumes. The allocator remains the only writer.
type SelectionSource interface {
	ByGrade(ctx context.Context, school string, grade allocator.Grade) ([]allocator.Selection, error)
}

// Dependencies wires a Renderer. External may be nil (no asset base path
// configured); Probe may be nil to use the process-wide backend probe.
type Dependencies struct {
	Store    SelectionSource
	External assets.Source
	Packaged assets.Source
	CacheDir string
	Probe    func() Capabilities
}

// Renderer assembles binder PDFs from a grade's current selections.
type Renderer struct {
	deps Dependencies
}

func New(deps Dependencies) *Renderer {
	if deps.Probe == nil {
		deps.Probe = ProbeBackends
	}
	if deps.Packaged == nil {
		deps.Packaged = assets.Packaged{}
	}
	return &Renderer{deps: deps}
}

// pagePlan is one output page: either a single full-page entry or up to two
// half-page slots.
type pagePlan struct {
	Index       int
	Full        *allocator.Selection
	Top, Bottom *allocator.Selection
}

// planPages groups selections into ordered pages. Page indexes ascend and
// gaps are skipped. The allocator should prevent a full-page entry from
// coexisting with others, but the plan does not assume it did: the first
// full-page entry wins the page, and the first entry per half slot wins
// the slot.
func planPages(sels []allocator.Selection) []pagePlan {
	byIndex := map[int][]allocator.Selection{}
	var order []int
	for _, s := range sels {
		if _, seen := byIndex[s.PageIndex]; !seen {
			order = append(order, s.PageIndex)
		}
		byIndex[s.PageIndex] = append(byIndex[s.PageIndex], s)
	}
	sort.Ints(order)

	plans := make([]pagePlan, 0, len(order))
	for _, idx := range order {
		group := byIndex[idx]
		sort.SliceStable(group, func(i, j int) bool {
			wi, wj := posWeight(group[i]), posWeight(group[j])
			if wi != wj {
				return wi < wj
			}
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].ID < group[j].ID
		})

		plan := pagePlan{Index: idx}
		for i := range group {
			s := &group[i]
			if s.FullPage() {
				plan.Full = s
				break
			}
		}
		if plan.Full == nil {
			for i := range group {
				s := &group[i]
				switch s.EffectivePosition() {
				case allocator.Top:
					if plan.Top == nil {
						plan.Top = s
					}
				case allocator.Bottom:
					if plan.Bottom == nil {
						plan.Bottom = s
					}
				}
			}
		}
		plans = append(plans, plan)
	}
	return plans
}

func posWeight(s allocator.Selection) int {
	if s.EffectivePosition() == allocator.Bottom {
		return 1
	}
	return 0
}

// resolved is one rhyme's prepared artwork, memoized per render.
type resolved struct {
	svg         []byte
	forceRaster bool
}

// Render assembles the binder PDF for (school, grade) and returns the
// document bytes with a grade-derived download filename.
func (r *Renderer) Render(ctx context.Context, school string, grade allocator.Grade) ([]byte, string, error) {
	start := time.Now()
	sels, err := r.deps.Store.ByGrade(ctx, school, grade)
	if err != nil {
		return nil, "", err
	}
	if len(sels) == 0 {
		return nil, "", fmt.Errorf("school %s grade %s: %w", school, grade, ErrNoContent)
	}
	plans := planPages(sels)

	caps := r.deps.Probe()
	metrics.SetRenderMode(string(caps.Mode))

	pdf, err := newDocument(grade)
	if err != nil {
		return nil, "", err
	}
	pw, ph := pdf.GetPageSize()

	memo := map[string]resolved{}
	for _, plan := range plans {
		pdf.AddPage()
		switch {
		case plan.Full != nil:
			r.renderEntry(ctx, pdf, caps, memo, *plan.Full, 0, 0, pw, ph)
		default:
			if plan.Top != nil {
				r.renderEntry(ctx, pdf, caps, memo, *plan.Top, 0, 0, pw, ph/2)
			}
			if plan.Bottom != nil {
				r.renderEntry(ctx, pdf, caps, memo, *plan.Bottom, 0, ph/2, pw, ph/2)
			}
		}
		if pdf.Err() {
			// The canvas carries errors document-wide; once tripped
			// nothing further can be drawn.
			metrics.ObserveBinder(string(grade), "unavailable", time.Since(start))
			return nil, "", fmt.Errorf("canvas failed on page %d: %v: %w", plan.Index, pdf.Error(), ErrUnavailable)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		metrics.ObserveBinder(string(grade), "unavailable", time.Since(start))
		return nil, "", fmt.Errorf("finalize pdf: %v: %w", err, ErrUnavailable)
	}
	out := buf.Bytes()
	verifyPageCount(out, len(plans))

	metrics.ObserveBinder(string(grade), "success", time.Since(start))
	log.Info().Str("school", school).Str("grade", string(grade)).
		Int("pages", len(plans)).Int("bytes", len(out)).Str("mode", string(caps.Mode)).
		Dur("took", time.Since(start)).Msg("binder rendered")
	return out, fmt.Sprintf("rhyme_binder_%s.pdf", grade), nil
}

func newDocument(grade allocator.Grade) (*fpdf.Fpdf, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Rhyme Binder - %s", grade), true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "", 12)
	if pdf.Err() {
		return nil, fmt.Errorf("init canvas: %v: %w", pdf.Error(), ErrUnavailable)
	}
	return pdf, nil
}

// renderEntry draws one selection into its slot, degrading through the
// available backends and finally to the placeholder card. It never fails:
// a partially styled binder beats a failed download.
func (r *Renderer) renderEntry(ctx context.Context, pdf *fpdf.Fpdf, caps Capabilities, memo map[string]resolved, sel allocator.Selection, x, y, w, h float64) {
	res := r.resolveVisual(ctx, memo, sel, caps)

	var err error
	backend := "card"
	switch {
	case caps.Mode == ModeNone || res.svg == nil:
		// fall through to the card
	case caps.Raster && (res.forceRaster || !caps.Vector):
		backend = "raster"
		err = drawRaster(pdf, res.svg, x, y, w, h)
	default:
		backend = "vector"
		err = drawVector(pdf, res.svg, x, y, w, h)
		if err != nil && caps.Raster {
			log.Debug().Err(err).Str("rhyme", sel.RhymeCode).Msg("vector render failed, trying raster")
			backend = "raster"
			err = drawRaster(pdf, res.svg, x, y, w, h)
		}
	}

	if err != nil {
		log.Warn().Err(err).Str("rhyme", sel.RhymeCode).Str("backend", backend).
			Msg("render degraded to placeholder card")
		metrics.RenderEntry(backend, "degraded")
		backend = "card"
		err = nil
	}
	if backend == "card" {
		drawCard(pdf, x, y, w, h, sel.RhymeCode, sel.RhymeName, sel.Pages)
	}
	metrics.RenderEntry(backend, "success")
}

// resolveVisual resolves and sanitizes the artwork for a rhyme, memoized
// for the duration of one render so repeated rhymes read their asset once.
func (r *Renderer) resolveVisual(ctx context.Context, memo map[string]resolved, sel allocator.Selection, caps Capabilities) resolved {
	if res, ok := memo[sel.RhymeCode]; ok {
		return res
	}

	var a assets.Asset
	var err error
	if r.deps.External != nil {
		a, err = r.deps.External.Fetch(ctx, sel.RhymeCode)
	} else {
		err = assets.ErrNotFound
	}
	if err != nil {
		a, err = r.deps.Packaged.Fetch(ctx, sel.RhymeCode)
	}
	if err != nil {
		a = assets.Asset{Data: assets.Placeholder(sel.RhymeCode, sel.RhymeName, sel.Pages)}
	}

	svg, changed := sanitizeGradients(a.Data)
	res := resolved{svg: svg, forceRaster: changed}
	if hasRasterImage(svg) {
		res.forceRaster = true
		res.svg = localizeImages(res.svg, a.Dir, r.deps.CacheDir, caps.Raster)
	}
	memo[sel.RhymeCode] = res
	return res
}

// verifyPageCount cross-checks the assembled document against the layout
// plan. A mismatch is logged, never surfaced: the binder already exists.
func verifyPageCount(pdfBytes []byte, want int) {
	n, err := api.PageCount(bytes.NewReader(pdfBytes), nil)
	if err != nil {
		log.Warn().Err(err).Msg("binder page count verification failed")
		return
	}
	if n != want {
		log.Warn().Int("want", want).Int("got", n).Msg("binder page count mismatch")
	}
}
