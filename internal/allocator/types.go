package allocator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Grade identifies one class level of a school. The set is fixed for now but
// new grades only need to be appended to Grades.
type Grade string

const (
	Playgroup Grade = "playgroup"
	Nursery   Grade = "nursery"
	LKG       Grade = "lkg"
	UKG       Grade = "ukg"
)

// Grades lists every known grade in booklet order.
var Grades = []Grade{Playgroup, Nursery, LKG, UKG}

// GradeCapacity is the maximum number of selections per grade.
const GradeCapacity = 25

// ParseGrade resolves a grade name case-insensitively.
func ParseGrade(s string) (Grade, error) {
	g := Grade(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Grades {
		if g == known {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown grade %q", s)
}

// Position is a half-page slot inside a binder page. It only carries meaning
// for 0.5-page rhymes; full-page rhymes are always stored as top. Records
// written by earlier tool versions may have no position at all, which every
// consumer treats as top.
type Position string

const (
	Top    Position = "top"
	Bottom Position = "bottom"
)

// ParsePosition resolves top/bottom case-insensitively.
func ParsePosition(s string) (Position, error) {
	switch Position(strings.ToLower(strings.TrimSpace(s))) {
	case Top:
		return Top, nil
	case Bottom:
		return Bottom, nil
	}
	return "", fmt.Errorf("unknown position %q", s)
}

// Selection is one occupied slot of a school's binder layout. Name and
// Pages are denormalized from the catalogue at selection time. Selections
// are never mutated: replacement is always delete plus insert.
type Selection struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	Grade     Grade     `json:"grade"`
	PageIndex int       `json:"page_index"`
	RhymeCode string    `json:"rhyme_code"`
	RhymeName string    `json:"rhyme_name"`
	Pages     float64   `json:"pages"`
	Position  Position  `json:"position,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FullPage reports whether the selection occupies the whole page.
func (s Selection) FullPage() bool { return s.Pages > 0.5 }

// EffectivePosition maps legacy unpositioned records to top.
func (s Selection) EffectivePosition() Position {
	if s.Position == Bottom {
		return Bottom
	}
	return Top
}

// ErrNotFound is returned when a rhyme code is absent from the catalogue or
// no selection matches a removal request.
var ErrNotFound = errors.New("not found")

// SelectionStore is the persistence surface the allocator drives. The redis
// implementation lives in internal/store; tests use the in-memory one.
type SelectionStore interface {
	Insert(ctx context.Context, sel Selection) error
	Delete(ctx context.Context, school string, grade Grade, ids []string) error
	ByPage(ctx context.Context, school string, grade Grade, pageIndex int) ([]Selection, error)
	ByGrade(ctx context.Context, school string, grade Grade) ([]Selection, error)
	AddSchool(ctx context.Context, school string) error
}

// PageCostKey formats a page cost as a bucket key ("0.5", "1").
func PageCostKey(pages float64) string {
	return strconv.FormatFloat(pages, 'f', -1, 64)
}
