package rulecache

import "sync"

// lruNode is one tracked key in recency order.
type lruNode struct {
	key  string
	prev *lruNode
	next *lruNode
}

// governor keeps best-effort byte accounting for entries this process has
// written, ordered by recency. Past the configured ceiling it hands back the
// least recently used keys to evict until usage is under the low-water mark
// (7/8 of the ceiling). Accounting is process-local only and never reconciled
// against the store.
type governor struct {
	mu    sync.Mutex
	limit int64
	used  int64
	sizes map[string]int64
	nodes map[string]*lruNode
	head  *lruNode
	tail  *lruNode
}

func newGovernor(limit int64) *governor {
	return &governor{
		limit: limit,
		sizes: make(map[string]int64),
		nodes: make(map[string]*lruNode),
	}
}

// noteWrite records a successful write and returns the LRU victims to evict
// (never the key just written) plus the bytes their removal frees.
func (g *governor) noteWrite(key string, size int64) ([]string, int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.sizes[key]; ok {
		g.used -= old
	}
	g.sizes[key] = size
	g.used += size
	g.touch(key)

	if g.limit <= 0 || g.used <= g.limit {
		return nil, 0
	}
	low := g.limit - g.limit/8
	var (
		victims []string
		freed   int64
	)
	for n := g.tail; n != nil && g.used > low; n = g.tail {
		if n.key == key {
			break // never evict the entry that triggered the pass
		}
		freed += g.sizes[n.key]
		g.used -= g.sizes[n.key]
		delete(g.sizes, n.key)
		g.unlink(n)
		delete(g.nodes, n.key)
		victims = append(victims, n.key)
	}
	return victims, freed
}

func (g *governor) noteAccess(key string) {
	g.mu.Lock()
	if _, ok := g.nodes[key]; ok {
		g.touch(key)
	}
	g.mu.Unlock()
}

// noteDelete removes a key from the accounting and reports the bytes freed.
func (g *governor) noteDelete(key string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	size, ok := g.sizes[key]
	if !ok {
		return 0
	}
	g.used -= size
	delete(g.sizes, key)
	if n, ok := g.nodes[key]; ok {
		g.unlink(n)
		delete(g.nodes, key)
	}
	return size
}

func (g *governor) bytes() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.used
}

func (g *governor) touch(key string) {
	if n, ok := g.nodes[key]; ok {
		g.unlink(n)
		g.pushFront(n)
		return
	}
	n := &lruNode{key: key}
	g.nodes[key] = n
	g.pushFront(n)
}

func (g *governor) pushFront(n *lruNode) {
	n.prev = nil
	n.next = g.head
	if g.head != nil {
		g.head.prev = n
	}
	g.head = n
	if g.tail == nil {
		g.tail = n
	}
}

func (g *governor) unlink(n *lruNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		g.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		g.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
