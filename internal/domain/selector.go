package domain

import (
	"fmt"
	"strings"
	"time"
)

// SelectCandidate picks the next host target from the live pool.
//
// The entry named exclude (the current target, compared case-sensitively) is
// dropped first. A single remaining candidate is returned as is. Otherwise the
// pool narrows to candidates whose tag contains any preferred tag, ignoring
// case; if none match, every candidate stays eligible. The pick is uniform over
// the resulting pool.
func SelectCandidate(candidates []Candidate, exclude string, preferredTags []string, rng RandomSource) (Candidate, bool) {
	pool := make([]Candidate, 0, len(candidates))
	removed := false
	for _, c := range candidates {
		if !removed && exclude != "" && c.Name == exclude {
			removed = true
			continue
		}
		pool = append(pool, c)
	}

	switch len(pool) {
	case 0:
		return Candidate{}, false
	case 1:
		return pool[0], true
	}

	preferred := make([]Candidate, 0, len(pool))
	for _, c := range pool {
		if matchesAnyTag(c.Tag, preferredTags) {
			preferred = append(preferred, c)
		}
	}
	if len(preferred) > 0 {
		pool = preferred
	}

	return pool[rng.RandomInt(0, len(pool))], true
}

func matchesAnyTag(tag string, preferredTags []string) bool {
	if tag == "" {
		return false
	}
	lower := strings.ToLower(tag)
	for _, p := range preferredTags {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// FormatHostedDuration renders the time hosted since start as H:MM:SS, with a
// trailing "s" under one minute. A zero start renders as "0s".
func FormatHostedDuration(start, now time.Time) string {
	if start.IsZero() {
		return "0s"
	}

	secs := int64(now.Sub(start) / time.Second)
	if secs < 0 {
		secs = 0
	}

	out := fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
	if secs < 60 {
		return out + "s"
	}
	return out
}
