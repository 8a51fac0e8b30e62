package clock

import (
	"sync"
	"time"
)

// Clock is the time source for every deadline check.
type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time { return Normalize(time.Now()) }

// Normalize приводит время к UTC с точностью до микросекунд,
// чтобы значения совпадали после чтения из Postgres и SQLite
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Manual is a clock for tests that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: Normalize(start)}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = Normalize(m.now.Add(d))
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = Normalize(t)
}
