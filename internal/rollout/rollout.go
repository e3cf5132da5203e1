// Package rollout implements the deterministic canary/stable cohort
// selector described in spec §4.5. The bucket hash is part of the wire
// contract — changing the constants below changes which chats land in
// canary, so they are fixed exactly as specified.
package rollout

import "fmt"

// Cohort is the rollout cohort a (actor, chat) pair resolves to.
type Cohort string

const (
	CohortStable Cohort = "stable"
	CohortCanary Cohort = "canary"
)

// Selection is the result of a rollout decision.
type Selection struct {
	Bucket  int
	Percent int
	Cohort  Cohort
}

// bucketHash computes an FNV32-like hash of s, using the exact constants
// and shift sequence the spec mandates (not the stdlib hash/fnv
// implementation, which does not reproduce this shift sequence).
func bucketHash(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h += (h << 1) + (h << 4) + (h << 7) + (h << 8) + (h << 24)
	}
	return h
}

// normalizePercent clamps percent into [0, 100] and truncates it to an
// integer.
func normalizePercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// Select deterministically buckets (actorID, chatID) into [0, 100) and
// decides stable vs canary against the configured canary percent.
func Select(actorID, chatID string, percent int) Selection {
	p := normalizePercent(percent)
	bucket := int(bucketHash(fmt.Sprintf("%s:%s", actorID, chatID)) % 100)

	cohort := CohortStable
	if p > 0 && bucket < p {
		cohort = CohortCanary
	}

	return Selection{Bucket: bucket, Percent: p, Cohort: cohort}
}
