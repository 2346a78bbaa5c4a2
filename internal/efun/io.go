package efun

import (
	"github.com/limpingninja/ci2go/internal/value"
	"github.com/limpingninja/ci2go/internal/vm"
)

// registerIO wires read_file/write_file/remove/rename/get_dir/file_size
// (spec.md §6) to the sandboxed filesystem, passing the calling object as
// caller so vfs.FS.valid can consult the master object's valid_read /
// valid_write callback (spec.md §4.5).
func (s *Suite) registerIO(t map[string]vm.EfunFunc) {
	t["read_file"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		path := argStr(args, 0)
		start := int(argInt(args, 1))
		count := int(argInt(args, 2))
		data, err := s.FS.ReadFile(path, fr.ObjH, s.Host.Privileged(fr.ObjH), start, count)
		if err != nil {
			return value.Int(0), nil
		}
		return value.Str(data), nil
	}

	t["write_file"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		path, data := argStr(args, 0), argStr(args, 1)
		if err := s.FS.WriteFile(path, data, fr.ObjH, s.Host.Privileged(fr.ObjH)); err != nil {
			return value.Int(0), nil
		}
		return value.Int(1), nil
	}

	t["remove"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		if err := s.FS.Remove(argStr(args, 0), fr.ObjH, s.Host.Privileged(fr.ObjH)); err != nil {
			return value.Int(0), nil
		}
		return value.Int(1), nil
	}

	t["rename"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		if err := s.FS.Rename(argStr(args, 0), argStr(args, 1), fr.ObjH, s.Host.Privileged(fr.ObjH)); err != nil {
			return value.Int(0), nil
		}
		return value.Int(1), nil
	}

	t["get_dir"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		names, err := s.FS.GetDir(argStr(args, 0), fr.ObjH, s.Host.Privileged(fr.ObjH))
		if err != nil {
			return value.ArrVal(value.NewArray(0, value.Unlimited)), nil
		}
		out := value.NewArray(len(names), value.Unlimited)
		for i, n := range names {
			out.Set(i, value.Str(n))
		}
		return value.ArrVal(out), nil
	}

	t["file_size"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		sz, err := s.FS.FileSize(argStr(args, 0), fr.ObjH, s.Host.Privileged(fr.ObjH))
		if err != nil {
			return value.Int(-1), nil
		}
		return value.Int(sz), nil
	}
}
