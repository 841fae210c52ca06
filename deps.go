package rulecache

import "sync"

// depGraph maps a dependency key to the set of keys that declared it.
// Edges are added forward at set time and removed only when the dependency
// side is deleted; deleting a dependent leaves its inbound edges in place.
type depGraph struct {
	mu    sync.RWMutex
	edges map[string]map[string]struct{}
}

func newDepGraph() *depGraph {
	return &depGraph{edges: make(map[string]map[string]struct{})}
}

func (g *depGraph) register(dependency, dependent string) {
	g.mu.Lock()
	set, ok := g.edges[dependency]
	if !ok {
		set = make(map[string]struct{})
		g.edges[dependency] = set
	}
	set[dependent] = struct{}{}
	g.mu.Unlock()
}

func (g *depGraph) dependents(key string) []string {
	g.mu.RLock()
	set := g.edges[key]
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	g.mu.RUnlock()
	return out
}

func (g *depGraph) drop(key string) {
	g.mu.Lock()
	delete(g.edges, key)
	g.mu.Unlock()
}
