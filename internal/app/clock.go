package app

import (
	"math/rand/v2"
	"time"

	"github.com/neomorfeo/teamhost/internal/domain"
)

// SystemClock is the wall clock, in UTC.
type SystemClock struct{}

var _ domain.Clock = SystemClock{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

func (SystemClock) AfterFunc(d time.Duration, fn func()) domain.Timer {
	return time.AfterFunc(d, fn)
}

// MathRandom draws from the process-wide math/rand/v2 source.
type MathRandom struct{}

var _ domain.RandomSource = MathRandom{}

func (MathRandom) RandomInt(min, max int) int {
	return min + rand.IntN(max-min)
}
