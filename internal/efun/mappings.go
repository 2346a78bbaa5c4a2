package efun

import (
	"github.com/limpingninja/ci2go/internal/value"
	"github.com/limpingninja/ci2go/internal/vm"
)

func (s *Suite) registerMappings(t map[string]vm.EfunFunc) {
	t["keys"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		m, ok := arg(args, 0).AsMapping()
		if !ok {
			return value.ArrVal(value.NewArray(0, value.Unlimited)), nil
		}
		ks, _ := m.KeysValues()
		out := value.NewArray(len(ks), value.Unlimited)
		for i, k := range ks {
			out.Set(i, k)
		}
		return value.ArrVal(out), nil
	}

	t["values"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		m, ok := arg(args, 0).AsMapping()
		if !ok {
			return value.ArrVal(value.NewArray(0, value.Unlimited)), nil
		}
		_, vs := m.KeysValues()
		out := value.NewArray(len(vs), value.Unlimited)
		for i, v := range vs {
			out.Set(i, v)
		}
		return value.ArrVal(out), nil
	}

	t["member"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		m, ok := arg(args, 0).AsMapping()
		if !ok {
			return value.Int(0), nil
		}
		if m.Member(arg(args, 1)) {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	}

	t["map_delete"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		m, ok := arg(args, 0).AsMapping()
		if !ok {
			return value.Int(0), nil
		}
		m.Delete(arg(args, 1))
		return value.Int(1), nil
	}
}
