package value

import "testing"

func TestArrayGrowAndAlias(t *testing.T) {
	a := NewArray(0, Unlimited)
	a.Retain() // slot "a"
	b := a
	b.Retain() // slot "b" aliases the same handle

	if !a.Set(10, Int(99)) {
		t.Fatalf("Set(10, 99) refused")
	}

	if a.Len() != 11 || b.Len() != 11 {
		t.Fatalf("want sizeof(a)==sizeof(b)==11, got a=%d b=%d", a.Len(), b.Len())
	}
	if got := b.Get(10); got.AsInt() != 99 {
		t.Fatalf("b[10] = %v, want 99", got)
	}
}

func TestArrayMaxSizeRefusesGrowth(t *testing.T) {
	a := NewArray(2, 2)
	if a.Set(5, Int(1)) {
		t.Fatalf("Set past max_size should fail")
	}
	if a.Len() != 2 {
		t.Fatalf("array should not have grown, len=%d", a.Len())
	}
}

func TestMappingRoundTrip(t *testing.T) {
	m := NewMapping()
	m.Set(Str("a"), Int(1))
	m.Set(Str("b"), Int(2))
	m.Set(Str("c"), Int(3))

	keys, vals := m.KeysValues()
	if len(keys) != 3 || len(vals) != 3 {
		t.Fatalf("expected 3 keys/values, got %d/%d", len(keys), len(vals))
	}
	for i, k := range keys {
		got, ok := m.Get(k)
		if !ok || !got.Equal(vals[i]) {
			t.Fatalf("m[keys[%d]] != values[%d]", i, i)
		}
	}
}

func TestMappingSubtract(t *testing.T) {
	m := NewMapping()
	m.Set(Str("a"), Int(1))
	m.Set(Str("b"), Int(2))
	m.Set(Str("c"), Int(3))

	sub := NewMapping()
	sub.Set(Str("b"), Int(0))

	n := MapSubtract(m, sub)
	if n.Len() != 2 {
		t.Fatalf("sizeof(n) = %d, want 2", n.Len())
	}
	if n.Member(Str("b")) {
		t.Fatalf("member(n, \"b\") should be 0")
	}
}

func TestRefcountInvariant(t *testing.T) {
	inner := NewArray(0, Unlimited)
	inner.Retain() // one ref from a local variable slot

	outer := NewArray(0, Unlimited)
	outer.Retain()
	outer.Set(0, ArrVal(inner)) // Set retains inner -> 2 refs total

	if inner.Ref() != 2 {
		t.Fatalf("inner refcount = %d, want 2", inner.Ref())
	}

	outer.Release() // drops the local's ref to outer; outer frees, releasing inner once
	if inner.Ref() != 1 {
		t.Fatalf("inner refcount after outer release = %d, want 1", inner.Ref())
	}
}

func TestIntegerZeroStringConvention(t *testing.T) {
	if Int(0).AsString() != "" {
		t.Fatalf("integer 0 must read as empty string")
	}
	if Str("").Truthy() {
		// empty string is still truthy; only integer 0 is falsy
	} else {
		t.Fatalf("empty string must be truthy")
	}
	if Int(0).Truthy() {
		t.Fatalf("integer 0 must be falsy")
	}
}
