package efun

import (
	"testing"

	"github.com/limpingninja/ci2go/internal/value"
	"github.com/limpingninja/ci2go/internal/vm"
)

func TestStringSubstringAndCase(t *testing.T) {
	s, ip, fr := newTestSuite()
	table := map[string]vm.EfunFunc{}
	s.registerStrings(table)

	if got := call(t, table["strlen"], ip, fr, value.Str("hello")); got.AsInt() != 5 {
		t.Fatalf("strlen = %v, want 5", got)
	}
	if got := call(t, table["leftstr"], ip, fr, value.Str("hello"), value.Int(3)); got.AsString() != "hel" {
		t.Fatalf("leftstr = %q, want %q", got.AsString(), "hel")
	}
	if got := call(t, table["rightstr"], ip, fr, value.Str("hello"), value.Int(3)); got.AsString() != "llo" {
		t.Fatalf("rightstr = %q, want %q", got.AsString(), "llo")
	}
	if got := call(t, table["midstr"], ip, fr, value.Str("hello"), value.Int(1), value.Int(3)); got.AsString() != "ell" {
		t.Fatalf("midstr = %q, want %q", got.AsString(), "ell")
	}
	if got := call(t, table["upcase"], ip, fr, value.Str("Hello")); got.AsString() != "HELLO" {
		t.Fatalf("upcase = %q", got.AsString())
	}
	if got := call(t, table["downcase"], ip, fr, value.Str("Hello")); got.AsString() != "hello" {
		t.Fatalf("downcase = %q", got.AsString())
	}
}

func TestStringSubstVsReplaceString(t *testing.T) {
	s, ip, fr := newTestSuite()
	table := map[string]vm.EfunFunc{}
	s.registerStrings(table)

	one := call(t, table["subst"], ip, fr, value.Str("a-a-a"), value.Str("a"), value.Str("b"))
	if one.AsString() != "b-a-a" {
		t.Fatalf("subst replaced more than the first occurrence: %q", one.AsString())
	}
	all := call(t, table["replace_string"], ip, fr, value.Str("a-a-a"), value.Str("a"), value.Str("b"))
	if all.AsString() != "b-b-b" {
		t.Fatalf("replace_string should replace every occurrence: %q", all.AsString())
	}
}

func TestStringInstrZeroBasedWithSentinel(t *testing.T) {
	s, ip, fr := newTestSuite()
	table := map[string]vm.EfunFunc{}
	s.registerStrings(table)

	if got := call(t, table["instr"], ip, fr, value.Str("hello world"), value.Str("world")); got.AsInt() != 6 {
		t.Fatalf("instr = %v, want 6", got)
	}
	if got := call(t, table["instr"], ip, fr, value.Str("hello"), value.Str("xyz")); got.AsInt() != -1 {
		t.Fatalf("instr for missing substring = %v, want -1", got)
	}
}

func TestStringAtoiItoaOtoaAtoo(t *testing.T) {
	s, ip, fr := newTestSuite()
	table := map[string]vm.EfunFunc{}
	s.registerStrings(table)

	if got := call(t, table["atoi"], ip, fr, value.Str("  42 trailing")); got.AsInt() != 42 {
		t.Fatalf("atoi = %v, want 42", got)
	}
	if got := call(t, table["itoa"], ip, fr, value.Int(-7)); got.AsString() != "-7" {
		t.Fatalf("itoa = %q, want -7", got.AsString())
	}
	if got := call(t, table["atoo"], ip, fr, value.Str("/obj/thing.c#0")); got.AsInt() != 0 {
		t.Fatalf("atoo for an object with no live handle should yield integer 0, got %v", got)
	}
}

func TestSprintfEfunMatchesSprintfHelper(t *testing.T) {
	s, ip, fr := newTestSuite()
	table := map[string]vm.EfunFunc{}
	s.registerStrings(table)

	got := call(t, table["sprintf"], ip, fr, value.Str("%s has %d coins"), value.Str("bob"), value.Int(5))
	if got.AsString() != "bob has 5 coins" {
		t.Fatalf("sprintf efun = %q", got.AsString())
	}
}
