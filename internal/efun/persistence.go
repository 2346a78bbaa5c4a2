package efun

import (
	"github.com/limpingninja/ci2go/internal/persist"
	"github.com/limpingninja/ci2go/internal/value"
	"github.com/limpingninja/ci2go/internal/vm"
)

// registerPersistence wires save_value/restore_value (arbitrary-Value
// serialization, spec.md §7) and save_object/restore_object (the
// single-object shorthand over the same `path#refno {...}` grammar) onto
// internal/persist and the Host's object-table lookup.
func (s *Suite) registerPersistence(t map[string]vm.EfunFunc) {
	t["save_value"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		encoded := persist.SaveValue(arg(args, 0), objRefFn(ip))
		return value.Str(encoded), nil
	}

	t["restore_value"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		v, _, err := persist.RestoreValue(argStr(args, 0), objLookupFn(ip))
		if err != nil {
			return value.Int(0), nil
		}
		return v, nil
	}

	t["save_object"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		path := argStr(args, 0)
		if path == "" {
			if obj, ok := ip.Objects.Get(fr.ObjH); ok {
				path = obj.Proto.Path
			}
		}
		if err := s.Host.SaveObject(fr.ObjH, path); err != nil {
			return value.Int(0), nil
		}
		return value.Int(1), nil
	}

	t["restore_object"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		path := argStr(args, 0)
		if path == "" {
			if obj, ok := ip.Objects.Get(fr.ObjH); ok {
				path = obj.Proto.Path
			}
		}
		if err := s.Host.RestoreObject(fr.ObjH, path); err != nil {
			return value.Int(0), nil
		}
		return value.Int(1), nil
	}
}

func objRefFn(ip *vm.Interp) persist.RefForObject {
	return func(v value.Value) (persist.ObjectRef, bool) {
		h, ok := v.AsObject()
		if !ok {
			return persist.ObjectRef{}, false
		}
		obj, ok := ip.Objects.Get(h)
		if !ok {
			return persist.ObjectRef{}, false
		}
		return persist.ObjectRef{Path: obj.Proto.Path, Refno: h.Slot}, true
	}
}

func objLookupFn(ip *vm.Interp) persist.ObjectLookup {
	return func(ref persist.ObjectRef) (value.Value, bool) {
		for _, h := range ip.Objects.Handles() {
			if h.Slot == ref.Refno {
				if obj, ok := ip.Objects.Get(h); ok && obj.Proto.Path == ref.Path {
					return value.Obj(h), true
				}
			}
		}
		return value.Int(0), false
	}
}
