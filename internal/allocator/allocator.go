package allocator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/rhymebinder/internal/catalogue"
)

// Allocator owns creation and deletion of selections. The renderer and the
// listing endpoints only ever read what the allocator has written.
type Allocator struct {
	cat   *catalogue.Catalogue
	store SelectionStore
}

func New(cat *catalogue.Catalogue, store SelectionStore) *Allocator {
	return &Allocator{cat: cat, store: store}
}

// ListAvailable returns catalogue entries bucketed by page-cost key. With
// includeSelected=false, rhymes already selected anywhere for the school are
// excluded across all grades: a rhyme may be used at most once per school.
func (a *Allocator) ListAvailable(ctx context.Context, school string, grade Grade, includeSelected bool) (map[string][]catalogue.Entry, error) {
	used := map[string]bool{}
	if !includeSelected {
		all, err := a.bySchool(ctx, school)
		if err != nil {
			return nil, err
		}
		for _, sels := range all {
			for _, s := range sels {
				used[s.RhymeCode] = true
			}
		}
	}

	buckets := map[string][]catalogue.Entry{}
	for _, e := range a.cat.All() {
		if used[e.Code] {
			continue
		}
		k := PageCostKey(e.Pages)
		buckets[k] = append(buckets[k], e)
	}
	return buckets, nil
}

// ListSelected returns the grade's selections sorted by page index ascending.
func (a *Allocator) ListSelected(ctx context.Context, school string, grade Grade) ([]Selection, error) {
	sels, err := a.store.ByGrade(ctx, school, grade)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sels, func(i, j int) bool { return sels[i].PageIndex < sels[j].PageIndex })
	return sels, nil
}

// ListBySchool returns every grade's selections for the school.
func (a *Allocator) ListBySchool(ctx context.Context, school string) (map[Grade][]Selection, error) {
	all, err := a.bySchool(ctx, school)
	if err != nil {
		return nil, err
	}
	for g := range all {
		sels := all[g]
		sort.SliceStable(sels, func(i, j int) bool { return sels[i].PageIndex < sels[j].PageIndex })
	}
	return all, nil
}

// Reusable is a rhyme already selected under other grades of the same
// school, annotated with the grades using it.
type Reusable struct {
	RhymeCode    string  `json:"rhyme_code"`
	RhymeName    string  `json:"rhyme_name"`
	Pages        float64 `json:"pages"`
	Personalized bool    `json:"personalized"`
	Grades       []Grade `json:"grades"`
}

// ListReusable returns distinct rhymes selected in this school under a grade
// other than the given one, bucketed by page-cost key.
func (a *Allocator) ListReusable(ctx context.Context, school string, grade Grade) (map[string][]Reusable, error) {
	all, err := a.bySchool(ctx, school)
	if err != nil {
		return nil, err
	}

	byCode := map[string]*Reusable{}
	var order []string
	for g, sels := range all {
		if g == grade {
			continue
		}
		for _, s := range sels {
			r, ok := byCode[s.RhymeCode]
			if !ok {
				r = &Reusable{RhymeCode: s.RhymeCode, RhymeName: s.RhymeName, Pages: s.Pages}
				if e, found := a.cat.Lookup(s.RhymeCode); found {
					r.Personalized = e.Personalized
				}
				byCode[s.RhymeCode] = r
				order = append(order, s.RhymeCode)
			}
			if !containsGrade(r.Grades, g) {
				r.Grades = append(r.Grades, g)
			}
		}
	}
	sort.Strings(order)

	buckets := map[string][]Reusable{}
	for _, code := range order {
		r := byCode[code]
		sort.Slice(r.Grades, func(i, j int) bool { return gradeOrder(r.Grades[i]) < gradeOrder(r.Grades[j]) })
		k := PageCostKey(r.Pages)
		buckets[k] = append(buckets[k], *r)
	}
	return buckets, nil
}

// Select places a rhyme at (school, grade, pageIndex), evicting conflicting
// occupants first. Conflicts are resolved, never reported. The delete-then-
// insert sequence is not isolated: two concurrent Select calls for the same
// slot can both land, leaving the page over-occupied until a later call
// cleans it up. Accepted tradeoff for the single-writer deployment model.
func (a *Allocator) Select(ctx context.Context, school string, grade Grade, pageIndex int, code, requestedPosition string) (Selection, error) {
	entry, ok := a.cat.Lookup(code)
	if !ok {
		return Selection{}, fmt.Errorf("rhyme %s: %w", code, ErrNotFound)
	}

	pos := Top
	if entry.Pages == 0.5 && strings.EqualFold(strings.TrimSpace(requestedPosition), string(Bottom)) {
		pos = Bottom
	}

	existing, err := a.store.ByPage(ctx, school, grade, pageIndex)
	if err != nil {
		return Selection{}, err
	}

	var evict []string
	for _, s := range existing {
		if shouldEvict(s, entry.Pages, pos) {
			evict = append(evict, s.ID)
		}
	}
	if len(evict) > 0 {
		if err := a.store.Delete(ctx, school, grade, evict); err != nil {
			return Selection{}, err
		}
	}

	sel := Selection{
		ID:        uuid.NewString(),
		SchoolID:  school,
		Grade:     grade,
		PageIndex: pageIndex,
		RhymeCode: entry.Code,
		RhymeName: entry.Name,
		Pages:     entry.Pages,
		Position:  pos,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.Insert(ctx, sel); err != nil {
		return Selection{}, err
	}
	_ = a.store.AddSchool(ctx, school)

	log.Info().Str("school", school).Str("grade", string(grade)).Int("page", pageIndex).
		Str("rhyme", entry.Code).Str("position", string(pos)).Int("evicted", len(evict)).
		Msg("selection placed")
	return sel, nil
}

// shouldEvict decides whether an existing occupant conflicts with a new
// occupant of the given page cost and normalized position.
func shouldEvict(existing Selection, newPages float64, newPos Position) bool {
	if newPages > 0.5 {
		// Full-page rhymes claim the whole page.
		return true
	}
	if existing.Pages > 0.5 {
		return true
	}
	if existing.Position == newPos {
		return true
	}
	// Unpositioned legacy rows are presumed top.
	if existing.Position == "" && newPos == Top {
		return true
	}
	return false
}

// Remove frees the slot at (school, grade, pageIndex, position). An empty
// page index is an idempotent success so that client retries stay simple.
// Matching applies the precise rules first, then a looser fallback; only
// when both passes fail does it return ErrNotFound.
func (a *Allocator) Remove(ctx context.Context, school string, grade Grade, pageIndex int, position Position) error {
	existing, err := a.store.ByPage(ctx, school, grade, pageIndex)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		log.Debug().Str("school", school).Str("grade", string(grade)).Int("page", pageIndex).
			Msg("remove on empty page index, nothing to do")
		return nil
	}

	match := findRemovable(existing, position)
	if match == nil {
		return fmt.Errorf("no selection at page %d position %s: %w", pageIndex, position, ErrNotFound)
	}
	if err := a.store.Delete(ctx, school, grade, []string{match.ID}); err != nil {
		return err
	}
	log.Info().Str("school", school).Str("grade", string(grade)).Int("page", pageIndex).
		Str("rhyme", match.RhymeCode).Str("position", string(position)).Msg("selection removed")
	return nil
}

func findRemovable(existing []Selection, position Position) *Selection {
	for i, s := range existing {
		switch {
		case s.Position == position:
			return &existing[i]
		case s.FullPage() && position == Top:
			return &existing[i]
		case s.Position == "" && position == Top:
			return &existing[i]
		}
	}
	// Loose fallback for inconsistent data: top matches any full-page
	// occupant, bottom matches any half-page occupant.
	for i, s := range existing {
		if position == Top && s.FullPage() {
			return &existing[i]
		}
		if position == Bottom && !s.FullPage() {
			return &existing[i]
		}
	}
	return nil
}

// GradeStatus reports one grade's fill level.
type GradeStatus struct {
	Grade    Grade `json:"grade"`
	Selected int   `json:"selected"`
	Capacity int   `json:"capacity"`
}

// Status counts selections per grade against the fixed capacity.
func (a *Allocator) Status(ctx context.Context, school string) ([]GradeStatus, error) {
	out := make([]GradeStatus, 0, len(Grades))
	for _, g := range Grades {
		sels, err := a.store.ByGrade(ctx, school, g)
		if err != nil {
			return nil, err
		}
		out = append(out, GradeStatus{Grade: g, Selected: len(sels), Capacity: GradeCapacity})
	}
	return out, nil
}

func (a *Allocator) bySchool(ctx context.Context, school string) (map[Grade][]Selection, error) {
	out := map[Grade][]Selection{}
	for _, g := range Grades {
		sels, err := a.store.ByGrade(ctx, school, g)
		if err != nil {
			return nil, err
		}
		if len(sels) > 0 {
			out[g] = sels
		}
	}
	return out, nil
}

func containsGrade(gs []Grade, g Grade) bool {
	for _, x := range gs {
		if x == g {
			return true
		}
	}
	return false
}

func gradeOrder(g Grade) int {
	for i, x := range Grades {
		if x == g {
			return i
		}
	}
	return len(Grades)
}
