package value

import (
	"fmt"
	"math/rand"
	"testing"
)

func newKey(s string) *String {
	return &String{Chars: s, Hash: HashString(s)}
}

func TestTableSetGetDelete(t *testing.T) {
	var tbl Table
	a, b := newKey("a"), newKey("b")

	if !tbl.Set(a, Number(1)) {
		t.Fatalf("expected first set of a to report new key")
	}
	if tbl.Set(a, Number(2)) {
		t.Fatalf("expected overwrite of a to report existing key")
	}
	tbl.Set(b, Bool(true))

	if v, ok := tbl.Get(a); !ok || v.Num != 2 {
		t.Fatalf("expected a=2, got %v (ok=%v)", v, ok)
	}
	if !tbl.Delete(a) {
		t.Fatalf("expected delete of a to succeed")
	}
	if tbl.Delete(a) {
		t.Fatalf("expected second delete of a to fail")
	}
	if _, ok := tbl.Get(a); ok {
		t.Fatalf("expected a to be gone")
	}
	if v, ok := tbl.Get(b); !ok || !v.B {
		t.Fatalf("expected b=true to survive deleting a, got %v", v)
	}
	if tbl.Len() != 1 {
		t.Fatalf("expected 1 live entry, got %d", tbl.Len())
	}
}

func TestTableTombstoneKeepsProbeChain(t *testing.T) {
	var tbl Table
	// force a collision chain by sharing the hash
	k1 := &String{Chars: "k1", Hash: 7}
	k2 := &String{Chars: "k2", Hash: 7}
	k3 := &String{Chars: "k3", Hash: 7}
	tbl.Set(k1, Number(1))
	tbl.Set(k2, Number(2))
	tbl.Set(k3, Number(3))

	tbl.Delete(k2)
	if v, ok := tbl.Get(k3); !ok || v.Num != 3 {
		t.Fatalf("lookup past tombstone failed: %v ok=%v", v, ok)
	}
	countBefore := tbl.Count()
	// reinsertion reuses the tombstone without growing count
	tbl.Set(k2, Number(22))
	if tbl.Count() != countBefore {
		t.Fatalf("expected tombstone reuse to keep count %d, got %d", countBefore, tbl.Count())
	}
	if v, _ := tbl.Get(k2); v.Num != 22 {
		t.Fatalf("expected k2=22, got %v", v)
	}
}

func TestTableLoadFactorAndLastWriteWins(t *testing.T) {
	var tbl Table
	rng := rand.New(rand.NewSource(42))
	keys := make([]*String, 200)
	for i := range keys {
		keys[i] = newKey(fmt.Sprintf("key%d", i))
	}
	want := map[*String]float64{}

	for step := 0; step < 5000; step++ {
		k := keys[rng.Intn(len(keys))]
		if rng.Intn(3) == 0 {
			tbl.Delete(k)
			delete(want, k)
		} else {
			n := float64(step)
			tbl.Set(k, Number(n))
			want[k] = n
		}
		if tbl.Capacity() > 0 && float64(tbl.Count()) > float64(tbl.Capacity())*0.75 {
			t.Fatalf("step %d: load factor exceeded: count=%d capacity=%d", step, tbl.Count(), tbl.Capacity())
		}
	}

	for _, k := range keys {
		v, ok := tbl.Get(k)
		n, present := want[k]
		if ok != present {
			t.Fatalf("%s: presence mismatch, table=%v want=%v", k.Chars, ok, present)
		}
		if ok && v.Num != n {
			t.Fatalf("%s: expected %v, got %v", k.Chars, n, v.Num)
		}
	}
	if tbl.Len() != len(want) {
		t.Fatalf("expected %d live entries, got %d", len(want), tbl.Len())
	}
}

func TestTableFindStringAndRemoveWhite(t *testing.T) {
	var tbl Table
	hello := newKey("hello")
	world := newKey("world")
	tbl.Set(hello, Nil())
	tbl.Set(world, Nil())

	if got := tbl.FindString("hello", HashString("hello")); got != hello {
		t.Fatalf("expected FindString to return the stored key")
	}
	if got := tbl.FindString("nope", HashString("nope")); got != nil {
		t.Fatalf("expected nil for missing content, got %v", got.Chars)
	}

	hello.Marked = true
	tbl.RemoveWhite()
	if tbl.FindString("world", world.Hash) != nil {
		t.Fatalf("expected unmarked key to be purged")
	}
	if tbl.FindString("hello", hello.Hash) != hello {
		t.Fatalf("expected marked key to survive")
	}
}

func TestTableAddAllIsSnapshot(t *testing.T) {
	var from, to Table
	m := newKey("m")
	later := newKey("later")
	from.Set(m, Number(1))
	from.AddAll(&to)
	from.Set(later, Number(2))

	if _, ok := to.Get(m); !ok {
		t.Fatalf("expected copied entry")
	}
	if _, ok := to.Get(later); ok {
		t.Fatalf("entries added after the copy must not appear")
	}
}
