package rulecache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// The backing store failed an operation and the call degraded to
	// absent/no-op. op ∈ {"get", "set", "del", "exists", "del_pattern"}.
	StoreUnavailable(op, key string, err error)

	// A stored entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "expired"}
	SelfHeal(storageKey, reason string)

	// A cascading delete closed a loop. path ends at the revisited key.
	CycleDetected(path []string)

	// The memory governor ran a reclamation pass.
	EvictionPass(evicted int, freedBytes int64)

	// InvalidateScope finished; keys is how many entries went away.
	ScopeInvalidated(scope string, keys int)

	// The warming scheduler finished a tick.
	WarmingPass(probed, warmed int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) StoreUnavailable(string, string, error) {}
func (NopHooks) SelfHeal(string, string)                {}
func (NopHooks) CycleDetected([]string)                 {}
func (NopHooks) EvictionPass(int, int64)                {}
func (NopHooks) ScopeInvalidated(string, int)           {}
func (NopHooks) WarmingPass(int, int)                   {}
