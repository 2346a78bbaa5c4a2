package efun

import (
	"sort"
	"strings"

	"github.com/limpingninja/ci2go/internal/value"
	"github.com/limpingninja/ci2go/internal/vm"
)

func (s *Suite) registerArrays(t map[string]vm.EfunFunc) {
	t["sizeof"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		v := arg(args, 0)
		if a, ok := v.AsArray(); ok {
			return value.Int(int64(a.Len())), nil
		}
		if m, ok := v.AsMapping(); ok {
			return value.Int(int64(m.Len())), nil
		}
		if v.Kind == value.String {
			return value.Int(int64(len(v.AsString()))), nil
		}
		return value.Int(0), nil
	}

	t["implode"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		a, ok := arg(args, 0).AsArray()
		if !ok {
			return value.Str(""), nil
		}
		sep := argStr(args, 1)
		parts := make([]string, a.Len())
		for i, v := range a.Items() {
			parts[i] = v.AsString()
		}
		return value.Str(strings.Join(parts, sep)), nil
	}

	t["explode"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		str := argStr(args, 0)
		sep := argStr(args, 1)
		var parts []string
		if sep == "" {
			parts = []string{str}
		} else {
			parts = strings.Split(str, sep)
		}
		out := value.NewArray(len(parts), value.Unlimited)
		for i, p := range parts {
			out.Set(i, value.Str(p))
		}
		return value.ArrVal(out), nil
	}

	t["member_array"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		needle := arg(args, 0)
		a, ok := arg(args, 1).AsArray()
		if !ok {
			return value.Int(-1), nil
		}
		for i, v := range a.Items() {
			if v.Equal(needle) {
				return value.Int(int64(i)), nil
			}
		}
		return value.Int(-1), nil
	}

	// sort_array(arr[, descending]) sorts a copy by the tagged union's
	// natural order: ints numerically, strings lexically, anything else by
	// insertion position (a stable no-op comparison), matching the
	// original driver's refusal to order incomparable kinds against each
	// other.
	t["sort_array"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		a, ok := arg(args, 0).AsArray()
		if !ok {
			return value.ArrVal(value.NewArray(0, value.Unlimited)), nil
		}
		items := a.Items()
		desc := len(args) > 1 && arg(args, 1).Truthy()
		sort.SliceStable(items, func(i, j int) bool {
			less := valueLess(items[i], items[j])
			if desc {
				return !less && !items[i].Equal(items[j])
			}
			return less
		})
		out := value.NewArray(len(items), value.Unlimited)
		for i, v := range items {
			out.Set(i, v)
		}
		return value.ArrVal(out), nil
	}

	t["reverse"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		a, ok := arg(args, 0).AsArray()
		if !ok {
			return value.ArrVal(value.NewArray(0, value.Unlimited)), nil
		}
		items := a.Items()
		out := value.NewArray(len(items), value.Unlimited)
		for i, v := range items {
			out.Set(len(items)-1-i, v)
		}
		return value.ArrVal(out), nil
	}

	t["unique_array"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		a, ok := arg(args, 0).AsArray()
		if !ok {
			return value.ArrVal(value.NewArray(0, value.Unlimited)), nil
		}
		var seen []value.Value
		for _, v := range a.Items() {
			dup := false
			for _, s := range seen {
				if s.Equal(v) {
					dup = true
					break
				}
			}
			if !dup {
				seen = append(seen, v)
			}
		}
		out := value.NewArray(len(seen), value.Unlimited)
		for i, v := range seen {
			out.Set(i, v)
		}
		return value.ArrVal(out), nil
	}
}

func valueLess(a, b value.Value) bool {
	if a.Kind == value.Int && b.Kind == value.Int {
		return a.AsInt() < b.AsInt()
	}
	if a.Kind == value.String && b.Kind == value.String {
		return a.AsString() < b.AsString()
	}
	return false
}
