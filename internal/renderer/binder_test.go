package renderer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/rhymebinder/internal/allocator"
	"github.com/local/rhymebinder/internal/store"
)

func cardOnly() Capabilities { return Capabilities{Mode: ModeNone} }

func sel(id, code string, page int, pages float64, pos allocator.Position, at time.Time) allocator.Selection {
	return allocator.Selection{
		ID:        id,
		SchoolID:  "greenfield",
		Grade:     allocator.Nursery,
		PageIndex: page,
		RhymeCode: code,
		RhymeName: "Rhyme " + code,
		Pages:     pages,
		Position:  pos,
		CreatedAt: at,
	}
}

func newCardRenderer(t *testing.T, sels ...allocator.Selection) *Renderer {
	t.Helper()
	mem := store.NewMemory()
	for _, s := range sels {
		require.NoError(t, mem.Insert(context.Background(), s))
	}
	return New(Dependencies{Store: mem, Probe: cardOnly})
}

func pageCount(t *testing.T, pdfBytes []byte) int {
	t.Helper()
	n, err := api.PageCount(bytes.NewReader(pdfBytes), nil)
	require.NoError(t, err)
	return n
}

func TestRenderEmptyGrade(t *testing.T) {
	r := newCardRenderer(t)
	_, _, err := r.Render(context.Background(), "greenfield", allocator.Nursery)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestRenderSinglePage(t *testing.T) {
	r := newCardRenderer(t, sel("a", "RB011", 0, 1.0, "", time.Now()))

	out, name, err := r.Render(context.Background(), "greenfield", allocator.Nursery)
	require.NoError(t, err)
	assert.Equal(t, "rhyme_binder_nursery.pdf", name)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Equal(t, 1, pageCount(t, out))
}

func TestRenderSkipsPageGaps(t *testing.T) {
	now := time.Now()
	r := newCardRenderer(t,
		sel("a", "RB001", 0, 0.5, allocator.Top, now),
		sel("b", "RB002", 0, 0.5, allocator.Bottom, now),
		sel("c", "RB011", 7, 1.0, "", now),
	)

	out, _, err := r.Render(context.Background(), "greenfield", allocator.Nursery)
	require.NoError(t, err)
	assert.Equal(t, 2, pageCount(t, out), "unused indexes 1..6 must not produce blank pages")
}

func TestRenderDeterministicPageCount(t *testing.T) {
	now := time.Now()
	r := newCardRenderer(t,
		sel("a", "RB001", 2, 0.5, allocator.Bottom, now),
		sel("b", "RB002", 0, 0.5, allocator.Top, now),
		sel("c", "RB011", 1, 1.0, "", now),
	)

	first, _, err := r.Render(context.Background(), "greenfield", allocator.Nursery)
	require.NoError(t, err)
	second, _, err := r.Render(context.Background(), "greenfield", allocator.Nursery)
	require.NoError(t, err)
	assert.Equal(t, pageCount(t, first), pageCount(t, second))
	assert.Equal(t, 3, pageCount(t, first))
}

func TestPlanPagesOrdersAndGroups(t *testing.T) {
	now := time.Now()
	plans := planPages([]allocator.Selection{
		sel("c", "RB003", 5, 0.5, allocator.Bottom, now),
		sel("a", "RB001", 0, 0.5, allocator.Top, now),
		sel("b", "RB002", 5, 0.5, allocator.Top, now),
	})

	require.Len(t, plans, 2)
	assert.Equal(t, 0, plans[0].Index)
	assert.Equal(t, 5, plans[1].Index)
	require.NotNil(t, plans[1].Top)
	require.NotNil(t, plans[1].Bottom)
	assert.Equal(t, "RB002", plans[1].Top.RhymeCode)
	assert.Equal(t, "RB003", plans[1].Bottom.RhymeCode)
}

func TestPlanPagesFullPageWins(t *testing.T) {
	now := time.Now()
	plans := planPages([]allocator.Selection{
		sel("a", "RB001", 0, 0.5, allocator.Top, now),
		sel("b", "RB011", 0, 1.0, "", now.Add(time.Second)),
	})

	require.Len(t, plans, 1)
	require.NotNil(t, plans[0].Full)
	assert.Equal(t, "RB011", plans[0].Full.RhymeCode)
	assert.Nil(t, plans[0].Top)
	assert.Nil(t, plans[0].Bottom)
}

func TestPlanPagesFirstPerSlotWins(t *testing.T) {
	base := time.Now()
	plans := planPages([]allocator.Selection{
		sel("later", "RB002", 0, 0.5, allocator.Top, base.Add(time.Minute)),
		sel("earlier", "RB001", 0, 0.5, allocator.Top, base),
	})

	require.Len(t, plans, 1)
	require.NotNil(t, plans[0].Top)
	assert.Equal(t, "RB001", plans[0].Top.RhymeCode)
}

func TestPlanPagesLegacyUnpositionedIsTop(t *testing.T) {
	plans := planPages([]allocator.Selection{
		sel("a", "RB001", 0, 0.5, "", time.Now()),
	})

	require.Len(t, plans, 1)
	require.NotNil(t, plans[0].Top)
	assert.Nil(t, plans[0].Bottom)
}

func TestRenderRepeatedRhymeMemoized(t *testing.T) {
	// The same rhyme on several pages resolves its artwork once and still
	// renders every occurrence.
	now := time.Now()
	r := newCardRenderer(t,
		sel("a", "RB001", 0, 0.5, allocator.Top, now),
		sel("b", "RB001", 1, 0.5, allocator.Top, now),
	)

	out, _, err := r.Render(context.Background(), "greenfield", allocator.Nursery)
	require.NoError(t, err)
	assert.Equal(t, 2, pageCount(t, out))
}
