package efun

import (
	"github.com/limpingninja/ci2go/internal/object"
	"github.com/limpingninja/ci2go/internal/value"
	"github.com/limpingninja/ci2go/internal/vm"
)

func (s *Suite) registerIdentity(t map[string]vm.EfunFunc) {
	t["this_object"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		return value.Obj(fr.ObjH), nil
	}
	t["this_player"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		return value.Obj(ip.ThisPlayer), nil
	}
	t["caller_object"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		if fr.Prev == nil {
			return value.Int(0), nil
		}
		return value.Obj(fr.Prev.ObjH), nil
	}

	t["clone"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		h, err := s.Host.Clone(argStr(args, 0))
		if err != nil {
			return value.Int(0), nil
		}
		return value.Obj(h), nil
	}

	t["destruct"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		h, ok := arg(args, 0).AsObject()
		if !ok {
			return value.Int(0), nil
		}
		s.Host.Destruct(h)
		return value.Int(1), nil
	}

	t["move_object"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		h, _ := arg(args, 0).AsObject()
		dest, _ := arg(args, 1).AsObject()
		if ip.Objects.Move(h, dest) {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	}

	t["location"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		h, ok := arg(args, 0).AsObject()
		if !ok {
			return value.Int(0), nil
		}
		obj, ok := ip.Objects.Get(h)
		if !ok {
			return value.Int(0), nil
		}
		return value.Obj(obj.Location), nil
	}

	t["contents"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		h, ok := arg(args, 0).AsObject()
		if !ok {
			return value.ArrVal(value.NewArray(0, value.Unlimited)), nil
		}
		obj, ok := ip.Objects.Get(h)
		if !ok {
			return value.ArrVal(value.NewArray(0, value.Unlimited)), nil
		}
		arr := value.NewArray(0, value.Unlimited)
		for i, c := range obj.Contents {
			arr.Set(i, value.Obj(c))
		}
		return value.ArrVal(arr), nil
	}

	t["next_object"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		h, _ := arg(args, 0).AsObject()
		return value.Obj(ip.Objects.NextObject(h)), nil
	}

	t["present"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		id := argStr(args, 0)
		where, ok := arg(args, 1).AsObject()
		if !ok {
			where = fr.ObjH
		}
		found, ok := ip.Objects.Present(where, func(cand object.Handle) bool {
			candObj, ok := ip.Objects.Get(cand)
			if !ok {
				return false
			}
			if fn, fok := candObj.Proto.Functions["id"]; fok {
				res, _ := ip.Call(nil, cand, candObj.Proto, fn, []value.Value{value.Str(id)})
				return res.Truthy()
			}
			return false
		})
		if !ok {
			return value.Int(0), nil
		}
		return value.Obj(found), nil
	}

	// attach/allow_attach are preserved only for the backward-compatible
	// loading path and the implicit auto-object attachment (design notes
	// §9); ordinary behavior composition is multiple inheritance, so this
	// is a thin bookkeeping list rather than a function-lookup chain.
	t["attach"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		master, ok := arg(args, 0).AsObject()
		if !ok {
			return value.Int(0), nil
		}
		obj, ok := ip.Objects.Get(fr.ObjH)
		if !ok {
			return value.Int(0), nil
		}
		for _, existing := range obj.Attachees {
			if existing == master {
				return value.Int(1), nil
			}
		}
		obj.Attachees = append(obj.Attachees, master)
		return value.Int(1), nil
	}
	t["allow_attach"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		return value.Int(1), nil
	}

	t["call_other"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		h, ok := arg(args, 0).AsObject()
		if !ok {
			return value.Int(0), nil
		}
		obj, ok := ip.Objects.Get(h)
		if !ok {
			return value.Int(0), nil
		}
		name := argStr(args, 1)
		rest := args
		if len(rest) > 2 {
			rest = rest[2:]
		} else {
			rest = nil
		}
		target, fn := resolveMethod(obj.Proto, name)
		if fn == nil {
			return value.Int(0), nil
		}
		return ip.Call(fr.Obj, h, target, fn, rest)
	}

	t["command"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		h, ok := arg(args, 0).AsObject()
		if !ok {
			h = fr.ObjH
		}
		if s.Host.ExecuteCommand(h, argStr(args, 1)) {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	}

	t["compile_object"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		_, err := s.Host.CompileObject(argStr(args, 0))
		if err != nil {
			return value.Int(0), nil
		}
		return value.Int(1), nil
	}

	t["compile_string"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		proto, err := s.Host.CompileString(argStr(args, 0))
		if err != nil {
			return value.Int(0), nil
		}
		return value.Str(proto.Path), nil
	}
}

// resolveMethod implements the same-object-first, then-MRO lookup
// call_other needs, mirroring internal/vm/call.go's resolveByName without
// needing that package's function-index cache (call_other is always a
// fresh, uncached dispatch by name).
func resolveMethod(proto *object.Prototype, name string) (*object.Prototype, *object.Function) {
	if fn, ok := proto.Functions[name]; ok {
		return proto, fn
	}
	for _, p := range proto.MRO {
		if fn, ok := p.Functions[name]; ok {
			return p, fn
		}
	}
	return nil, nil
}
