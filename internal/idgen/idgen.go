// Package idgen hands out record ids derived from the wall clock in milliseconds.
package idgen

import (
	"sync"
	"time"
)

// Generator returns strictly increasing ids: the current Unix millisecond, bumped past the last id it
// issued or observed when the clock has not moved on.
type Generator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func New(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// Observe records an id that already exists so later ids are issued above it.
func (g *Generator) Observe(id int64) {
	g.mu.Lock()
	if id > g.last {
		g.last = id
	}
	g.mu.Unlock()
}
