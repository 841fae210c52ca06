// Package rulecache implements a read-optimizing cache for per-scope betting
// restriction rules and sales cutoff windows. Lookups are scope-keyed
// (operator, optional selling window, vendor and wagered number), TTLs adapt
// to observed access frequency, and deletes cascade along declared dependency
// edges. The backing store is pluggable; when it is unconfigured or
// unreachable every operation degrades to absent/no-op so wager acceptance is
// never blocked by the cache.
//
// Components:
//   - provider.Provider: byte store with TTL (Redis, Ristretto, BigCache).
//   - codec.Codec[V]: (de)serializes V <-> []byte for the domain helpers.
//   - scopeindex.Index: scope -> member keys, used by InvalidateScope.
//     Local (in-process) by default, optional Redis implementation for
//     multi-replica deployments.
//
// Keys:
//
//	cutoff:<operator>:<window>:<vendor>            - sales cutoff entries
//	restriction:<operator>:<window>:<vendor>:<num> - restriction rule entries
//
// Absent scope parts are encoded as "-" so partial and fully qualified
// scopes never collide.
//
// Read pattern:
//
//	v, ok := cache.GetCutoff(ctx, scope) // absent on miss OR store outage
//	if !ok {
//	    v = computeFromSource(scope) // caller owns the non-cached fallback
//	    _ = cache.SetCutoff(ctx, scope, v)
//	}
package rulecache
