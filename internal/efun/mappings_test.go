package efun

import (
	"testing"

	"github.com/limpingninja/ci2go/internal/value"
	"github.com/limpingninja/ci2go/internal/vm"
)

func TestMappingKeysValuesMemberDelete(t *testing.T) {
	s, ip, fr := newTestSuite()
	table := map[string]vm.EfunFunc{}
	s.registerMappings(table)

	m := value.NewMapping()
	m.Set(value.Str("a"), value.Int(1))
	m.Set(value.Str("b"), value.Int(2))
	mv := value.MapValOf(m)

	if got := call(t, table["member"], ip, fr, mv, value.Str("a")); got.AsInt() != 1 {
		t.Fatalf("member(a) = %v, want truthy", got)
	}
	if got := call(t, table["member"], ip, fr, mv, value.Str("z")); got.AsInt() != 0 {
		t.Fatalf("member(z) = %v, want falsy", got)
	}

	keys := call(t, table["keys"], ip, fr, mv)
	ka, _ := keys.AsArray()
	if ka.Len() != 2 {
		t.Fatalf("keys length = %d, want 2", ka.Len())
	}

	call(t, table["map_delete"], ip, fr, mv, value.Str("a"))
	if got := call(t, table["member"], ip, fr, mv, value.Str("a")); got.AsInt() != 0 {
		t.Fatalf("member(a) after delete = %v, want falsy", got)
	}
}
