package helpers

import (
	"math/rand"
	"time"
)

func RandUnix() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// FixedClock is ground clock for tests, advanced explicitly with Add.
type FixedClock struct{ T time.Time }

func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{T: t} }

func (c *FixedClock) Now() time.Time      { return c.T }
func (c *FixedClock) Add(d time.Duration) { c.T = c.T.Add(d) }
