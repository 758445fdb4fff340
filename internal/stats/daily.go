package stats

import "time"

// This file contains helpers around daily stats. It complements stats.go.

// PruneDaily drops daily records older than keep days. It returns how many were removed.
func (r *Recorder) PruneDaily(keep int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := dateKey(r.now().AddDate(0, 0, -keep))
	n := 0
	for k := range r.dailyMax {
		if k < cutoff {
			delete(r.dailyMax, k)
			n++
		}
	}
	return n
}

// SetClock overrides the recorder's notion of now. Intended for tests.
func (r *Recorder) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}
