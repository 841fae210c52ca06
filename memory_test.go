package rulecache

import "testing"

func TestGovernorEvictsLeastRecentlyUsed(t *testing.T) {
	g := newGovernor(100)
	g.noteWrite("a", 30)
	g.noteWrite("b", 30)
	g.noteWrite("c", 30)

	// Touch "a" so "b" becomes the oldest.
	g.noteAccess("a")

	victims, freed := g.noteWrite("d", 30)
	// used 120 > 100; low water = 100 - 12 = 88; one eviction gets to 90,
	// the second to 60.
	if len(victims) != 2 || victims[0] != "b" || victims[1] != "c" {
		t.Fatalf("victims = %v, want [b c]", victims)
	}
	if freed != 60 {
		t.Fatalf("freed = %d, want 60", freed)
	}
	if g.bytes() != 60 {
		t.Fatalf("bytes = %d, want 60", g.bytes())
	}
}

func TestGovernorNeverEvictsTriggeringKey(t *testing.T) {
	g := newGovernor(50)
	victims, _ := g.noteWrite("huge", 200)
	if len(victims) != 0 {
		t.Fatalf("sole oversized entry must not evict itself: %v", victims)
	}
	if g.bytes() != 200 {
		t.Fatalf("bytes = %d, want 200", g.bytes())
	}
}

func TestGovernorRewriteReplacesSize(t *testing.T) {
	g := newGovernor(0) // no ceiling
	g.noteWrite("a", 40)
	g.noteWrite("a", 25)
	if g.bytes() != 25 {
		t.Fatalf("bytes = %d, want 25 after rewrite", g.bytes())
	}
}

func TestGovernorNoteDelete(t *testing.T) {
	g := newGovernor(0)
	g.noteWrite("a", 40)
	g.noteWrite("b", 10)

	if freed := g.noteDelete("a"); freed != 40 {
		t.Fatalf("freed = %d, want 40", freed)
	}
	if freed := g.noteDelete("a"); freed != 0 {
		t.Fatalf("double delete freed = %d, want 0", freed)
	}
	if freed := g.noteDelete("missing"); freed != 0 {
		t.Fatalf("unknown key freed = %d, want 0", freed)
	}
	if g.bytes() != 10 {
		t.Fatalf("bytes = %d, want 10", g.bytes())
	}
}

func TestGovernorAccessRefreshesRecency(t *testing.T) {
	g := newGovernor(100)
	g.noteWrite("old", 40)
	g.noteWrite("mid", 40)
	g.noteAccess("old")

	victims, _ := g.noteWrite("new", 40)
	if len(victims) != 1 || victims[0] != "mid" {
		t.Fatalf("victims = %v, want [mid]", victims)
	}
	// Accessing an untracked key must not resurrect it.
	g.noteAccess("mid")
	if g.bytes() != 80 {
		t.Fatalf("bytes = %d, want 80", g.bytes())
	}
}
