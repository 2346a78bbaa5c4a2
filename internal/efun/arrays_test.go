package efun

import (
	"testing"

	"github.com/limpingninja/ci2go/internal/object"
	"github.com/limpingninja/ci2go/internal/value"
	"github.com/limpingninja/ci2go/internal/vm"
)

func newTestSuite() (*Suite, *vm.Interp, *vm.Frame) {
	table := object.NewTable()
	ip := vm.New(table)
	s := &Suite{}
	return s, ip, &vm.Frame{}
}

func call(t *testing.T, fn vm.EfunFunc, ip *vm.Interp, fr *vm.Frame, args ...value.Value) value.Value {
	t.Helper()
	v, err := fn(ip, fr, args)
	if err != nil {
		t.Fatalf("efun call returned error: %v", err)
	}
	return v
}

func TestArraySizeofImplodeExplode(t *testing.T) {
	s, ip, fr := newTestSuite()
	table := map[string]vm.EfunFunc{}
	s.registerArrays(table)
	s.registerStrings(table)

	arr := value.NewArray(0, value.Unlimited)
	arr.Set(0, value.Str("a"))
	arr.Set(1, value.Str("b"))
	arr.Set(2, value.Str("c"))

	if got := call(t, table["sizeof"], ip, fr, value.ArrVal(arr)); got.AsInt() != 3 {
		t.Fatalf("sizeof = %v, want 3", got)
	}

	joined := call(t, table["implode"], ip, fr, value.ArrVal(arr), value.Str(","))
	if joined.AsString() != "a,b,c" {
		t.Fatalf("implode = %q, want %q", joined.AsString(), "a,b,c")
	}

	exploded := call(t, table["explode"], ip, fr, value.Str("a,b,c"), value.Str(","))
	a, ok := exploded.AsArray()
	if !ok || a.Len() != 3 || a.Get(1).AsString() != "b" {
		t.Fatalf("explode = %v", exploded)
	}
}

func TestSortArrayAscendingAndDescending(t *testing.T) {
	s, ip, fr := newTestSuite()
	table := map[string]vm.EfunFunc{}
	s.registerArrays(table)

	arr := value.NewArray(0, value.Unlimited)
	arr.Set(0, value.Int(3))
	arr.Set(1, value.Int(1))
	arr.Set(2, value.Int(2))

	asc, _ := call(t, table["sort_array"], ip, fr, value.ArrVal(arr)).AsArray()
	if asc.Get(0).AsInt() != 1 || asc.Get(1).AsInt() != 2 || asc.Get(2).AsInt() != 3 {
		t.Fatalf("ascending sort wrong: %v %v %v", asc.Get(0), asc.Get(1), asc.Get(2))
	}

	desc, _ := call(t, table["sort_array"], ip, fr, value.ArrVal(arr), value.Int(1)).AsArray()
	if desc.Get(0).AsInt() != 3 || desc.Get(2).AsInt() != 1 {
		t.Fatalf("descending sort wrong: %v %v %v", desc.Get(0), desc.Get(1), desc.Get(2))
	}
}

func TestMemberArrayAndUniqueArray(t *testing.T) {
	s, ip, fr := newTestSuite()
	table := map[string]vm.EfunFunc{}
	s.registerArrays(table)

	arr := value.NewArray(0, value.Unlimited)
	arr.Set(0, value.Int(5))
	arr.Set(1, value.Int(5))
	arr.Set(2, value.Int(9))

	idx := call(t, table["member_array"], ip, fr, value.Int(9), value.ArrVal(arr))
	if idx.AsInt() != 2 {
		t.Fatalf("member_array = %v, want 2", idx)
	}
	missing := call(t, table["member_array"], ip, fr, value.Int(42), value.ArrVal(arr))
	if missing.AsInt() != -1 {
		t.Fatalf("member_array for absent value = %v, want -1", missing)
	}

	uniq, _ := call(t, table["unique_array"], ip, fr, value.ArrVal(arr)).AsArray()
	if uniq.Len() != 2 {
		t.Fatalf("unique_array length = %d, want 2", uniq.Len())
	}
}
