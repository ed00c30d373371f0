package crdt

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Clock supplies wall-clock time and randomness to tag/UID generation.
// Both are replica-scoped resources; production code uses
// systemClock, tests inject a fixed clock so generated tags and UIDs
// are deterministic.
type Clock interface {
	NowMillis() int64
	RandomDigits(n int) string
}

// systemClock is the default Clock, backed by the real wall clock and
// crypto/rand.
type systemClock struct{}

func (systemClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}

func (systemClock) RandomDigits(n int) string {
	max := int64(1)
	for i := 0; i < n; i++ {
		max *= 10
	}
	v, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		// crypto/rand failing is not recoverable in a way that
		// keeps tag generation meaningful; fall back to the
		// time-derived low bits rather than panic.
		v = big.NewInt(time.Now().UnixNano() % max)
	}
	return fmt.Sprintf("%0*d", n, v.Int64())
}

// SystemClock is the shared default Clock instance.
var SystemClock Clock = systemClock{}

// FixedClock is a deterministic Clock for tests: NowMillis always
// returns Millis, and RandomDigits cycles through Digits in order.
type FixedClock struct {
	Millis int64
	Digits []string
	next   int
}

func (c *FixedClock) NowMillis() int64 { return c.Millis }

func (c *FixedClock) RandomDigits(n int) string {
	if len(c.Digits) == 0 {
		return fmt.Sprintf("%0*d", n, 0)
	}
	d := c.Digits[c.next%len(c.Digits)]
	c.next++
	return d
}

// GenerateTag produces a tag of the shape
// "<replica id>_<epoch-ms>_<6-digit random>", as specified for OR-Set
// and OR-Map adds.
func GenerateTag(clock Clock, replicaID string) string {
	return fmt.Sprintf("%s_%d_%s", replicaID, clock.NowMillis(), clock.RandomDigits(6))
}

// GenerateUID produces an RGA element UID of the same shape as a tag;
// lexicographic ordering on these strings defines the sequence's total
// order.
func GenerateUID(clock Clock, replicaID string) string {
	return GenerateTag(clock, replicaID)
}
