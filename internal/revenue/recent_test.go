package revenue

import "testing"

func TestRecentAccruals_EvictsLeastRecentlyUsed(t *testing.T) {
	r := newRecentAccruals(2)
	r.Add("a")
	r.Add("b")
	r.Contains("a") // a is now newer than b
	r.Add("c")

	if !r.Contains("a") || !r.Contains("c") {
		t.Fatal("recently used ids were evicted")
	}
	if r.Contains("b") {
		t.Fatal("least recently used id survived")
	}
	if r.Len() != 2 {
		t.Fatalf("len = %d, want 2", r.Len())
	}
}

func TestRecentAccruals_AddIsIdempotent(t *testing.T) {
	r := newRecentAccruals(0)
	r.Add("a")
	r.Add("a")
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
}
