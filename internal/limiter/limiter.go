package limiter

import (
	"strings"
	"sync"
)

// Render caps concurrent binder renders. Rendering rasterizes pages in
// memory, so a small global bound keeps worst-case memory flat; a per-key
// bound of one avoids duplicate work when a client retries the same binder.
type Render struct {
	mu     sync.Mutex
	global chan struct{}
	perKey map[string]chan struct{}
}

func New(maxConcurrent int) *Render {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Render{
		global: make(chan struct{}, maxConcurrent),
		perKey: map[string]chan struct{}{},
	}
}

// Allow tries to reserve a render slot for school:grade.
// Returns a release function and true if allowed; otherwise nil,false.
func (r *Render) Allow(schoolID, grade string) (func(), bool) {
	key := strings.ToLower(schoolID) + ":" + strings.ToLower(grade)
	r.mu.Lock()
	ch, ok := r.perKey[key]
	if !ok {
		ch = make(chan struct{}, 1)
		r.perKey[key] = ch
	}
	r.mu.Unlock()

	select {
	case ch <- struct{}{}:
	default:
		return func() {}, false
	}
	select {
	case r.global <- struct{}{}:
		return func() { <-r.global; <-ch }, true
	default:
		<-ch
		return func() {}, false
	}
}
