package store

import (
	"context"
	"sync"

	"github.com/local/rhymebinder/internal/allocator"
)

// Memory is an in-process SelectionStore used by tests and redis-less dev
// runs. It mirrors the document semantics of RedisSelections.
type Memory struct {
	mu      sync.RWMutex
	sels    map[string]map[allocator.Grade]map[string]allocator.Selection
	schools map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		sels:    map[string]map[allocator.Grade]map[string]allocator.Selection{},
		schools: map[string]bool{},
	}
}

func (m *Memory) bucket(school string, grade allocator.Grade) map[string]allocator.Selection {
	grades, ok := m.sels[school]
	if !ok {
		grades = map[allocator.Grade]map[string]allocator.Selection{}
		m.sels[school] = grades
	}
	b, ok := grades[grade]
	if !ok {
		b = map[string]allocator.Selection{}
		grades[grade] = b
	}
	return b
}

func (m *Memory) Insert(_ context.Context, sel allocator.Selection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(sel.SchoolID, sel.Grade)[sel.ID] = sel
	return nil
}

func (m *Memory) Delete(_ context.Context, school string, grade allocator.Grade, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bucket(school, grade)
	for _, id := range ids {
		delete(b, id)
	}
	return nil
}

func (m *Memory) ByGrade(_ context.Context, school string, grade allocator.Grade) ([]allocator.Selection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []allocator.Selection
	if grades, ok := m.sels[school]; ok {
		for _, sel := range grades[grade] {
			out = append(out, sel)
		}
	}
	return out, nil
}

func (m *Memory) ByPage(ctx context.Context, school string, grade allocator.Grade, pageIndex int) ([]allocator.Selection, error) {
	all, err := m.ByGrade(ctx, school, grade)
	if err != nil {
		return nil, err
	}
	var out []allocator.Selection
	for _, sel := range all {
		if sel.PageIndex == pageIndex {
			out = append(out, sel)
		}
	}
	return out, nil
}

func (m *Memory) AddSchool(_ context.Context, school string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schools[school] = true
	return nil
}
