package efun

import "testing"

func TestSscanfStringAndInt(t *testing.T) {
	n, vals := Sscanf("score: 42", "score: %d")
	if n != 1 {
		t.Fatalf("got n=%d, want 1", n)
	}
	if vals[0].AsInt() != 42 {
		t.Fatalf("got %v, want 42", vals[0])
	}
}

func TestSscanfStringStopsAtLiteral(t *testing.T) {
	n, vals := Sscanf("bob,42", "%s,%d")
	if n != 2 {
		t.Fatalf("got n=%d, want 2", n)
	}
	if vals[0].AsString() != "bob" || vals[1].AsInt() != 42 {
		t.Fatalf("got %v, %v", vals[0], vals[1])
	}
}

func TestSscanfHexWithPrefix(t *testing.T) {
	n, vals := Sscanf("0xFF", "%x")
	if n != 1 || vals[0].AsInt() != 255 {
		t.Fatalf("got n=%d vals=%v, want 1, [255]", n, vals)
	}
}

func TestSscanfSkipConversion(t *testing.T) {
	n, vals := Sscanf("12 34", "%*d %d")
	if n != 1 {
		t.Fatalf("got n=%d, want 1 (skip doesn't capture)", n)
	}
	if vals[0].AsInt() != 34 {
		t.Fatalf("got %v, want 34", vals[0])
	}
}

func TestSscanfMismatchStopsEarly(t *testing.T) {
	n, vals := Sscanf("abc", "%d")
	if n != 0 || len(vals) != 0 {
		t.Fatalf("got n=%d vals=%v, want 0 captures on a non-numeric %%d", n, vals)
	}
}
