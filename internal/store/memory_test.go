package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/rhymebinder/internal/allocator"
)

func TestMemoryInsertDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Insert(ctx, allocator.Selection{
		ID: "a", SchoolID: "s1", Grade: allocator.Nursery, PageIndex: 0, RhymeCode: "RB001", Pages: 0.5,
	}))
	require.NoError(t, m.Insert(ctx, allocator.Selection{
		ID: "b", SchoolID: "s1", Grade: allocator.Nursery, PageIndex: 1, RhymeCode: "RB002", Pages: 0.5,
	}))

	all, err := m.ByGrade(ctx, "s1", allocator.Nursery)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	page0, err := m.ByPage(ctx, "s1", allocator.Nursery, 0)
	require.NoError(t, err)
	require.Len(t, page0, 1)
	assert.Equal(t, "RB001", page0[0].RhymeCode)

	require.NoError(t, m.Delete(ctx, "s1", allocator.Nursery, []string{"a"}))
	all, err = m.ByGrade(ctx, "s1", allocator.Nursery)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ID)
}

func TestMemoryIsolatesSchoolsAndGrades(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Insert(ctx, allocator.Selection{ID: "a", SchoolID: "s1", Grade: allocator.Nursery, RhymeCode: "RB001"}))
	require.NoError(t, m.Insert(ctx, allocator.Selection{ID: "b", SchoolID: "s2", Grade: allocator.Nursery, RhymeCode: "RB001"}))

	other, err := m.ByGrade(ctx, "s1", allocator.LKG)
	require.NoError(t, err)
	assert.Empty(t, other)

	s2, err := m.ByGrade(ctx, "s2", allocator.Nursery)
	require.NoError(t, err)
	assert.Len(t, s2, 1)
}
