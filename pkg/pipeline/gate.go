package pipeline

import "time"

// Watermark is the word-count/timestamp snapshot recorded at a stage's last
// successful run.
type Watermark struct {
	Words int
	At    time.Time
}

// Gate is the trigger predicate for content-driven stages: fire when enough
// new words accumulated since the watermark, or enough time elapsed.
type Gate struct {
	MinWords    int
	MinInterval time.Duration
}

// ShouldFire evaluates the gate at an utterance-boundary event.
// Before the first successful run the watermark timestamp is zero and only
// the word threshold applies.
func (g Gate) ShouldFire(w Watermark, currentWords int, now time.Time) bool {
	newWords := currentWords - w.Words
	if newWords >= g.MinWords {
		return true
	}
	if !w.At.IsZero() && now.Sub(w.At) >= g.MinInterval {
		return true
	}
	return false
}
