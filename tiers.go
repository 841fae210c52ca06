package rulecache

import "fmt"

// Tier maps an access-count threshold to a TTL. An entry whose access count
// is strictly greater than Threshold gets TTLSeconds.
type Tier struct {
	Threshold  int
	TTLSeconds int
}

// DefaultTiers preserves the historical mapping: the hotter a key, the
// SHORTER it lives. Frequently read rules are re-fetched from the relational
// store sooner, so edits surface quickly on busy scopes, while cold scopes
// ride out the long tail from cache. Pass your own table through Options if
// you want the conventional direction.
func DefaultTiers() []Tier {
	return []Tier{
		{Threshold: 10, TTLSeconds: 60},   // hot
		{Threshold: 3, TTLSeconds: 300},   // warm
		{Threshold: -1, TTLSeconds: 1800}, // cold
	}
}

// tierTable selects a TTL for an observed access count. Tiers are ordered by
// descending threshold; the last tier is the catch-all.
type tierTable struct {
	tiers []Tier
}

func newTierTable(tiers []Tier) (tierTable, error) {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	for i, t := range tiers {
		if t.TTLSeconds <= 0 {
			return tierTable{}, fmt.Errorf("rulecache: tier %d has non-positive ttl %d", i, t.TTLSeconds)
		}
		if i > 0 && t.Threshold >= tiers[i-1].Threshold {
			return tierTable{}, fmt.Errorf("rulecache: tier thresholds must strictly descend")
		}
	}
	return tierTable{tiers: tiers}, nil
}

func (t tierTable) ttlFor(accessCount int) int {
	for _, tier := range t.tiers {
		if accessCount > tier.Threshold {
			return tier.TTLSeconds
		}
	}
	// unreachable with a validated table; keep the invariant ttl > 0 anyway
	return t.tiers[len(t.tiers)-1].TTLSeconds
}
