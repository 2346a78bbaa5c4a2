package efun

import (
	"github.com/limpingninja/ci2go/internal/mlog"
	"github.com/limpingninja/ci2go/internal/value"
	"github.com/limpingninja/ci2go/internal/vm"
)

// sysctl operation codes (spec.md §6 "Administrative efuns"), mirroring
// the original driver's single-function admin switch rather than a
// separate efun per operation.
const (
	SysctlSave int64 = iota
	SysctlShutdown
	SysctlVersion
)

// registerAdmin wires sysctl/syslog/syswrite (spec.md §6). sysctl and
// syswrite are gated on the calling object being privileged (spec.md
// §4.5's master-object exemption doubles as the admin-capability check
// here); syslog is open to every caller.
func (s *Suite) registerAdmin(t map[string]vm.EfunFunc) {
	t["sysctl"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		if !s.Host.Privileged(fr.ObjH) {
			return value.Int(0), nil
		}
		switch argInt(args, 0) {
		case SysctlSave:
			if err := s.Host.Save(argStr(args, 1)); err != nil {
				return value.Int(0), nil
			}
			return value.Int(1), nil
		case SysctlShutdown:
			s.Host.Shutdown()
			return value.Int(1), nil
		case SysctlVersion:
			return value.Str("ci2go/1.0"), nil
		default:
			return value.Int(0), nil
		}
	}

	t["syslog"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		mlog.Infof("mud: %s", argStr(args, 0))
		return value.Int(1), nil
	}

	t["syswrite"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		if !s.Host.Privileged(fr.ObjH) {
			return value.Int(0), nil
		}
		mlog.Debugf("mud: %s", argStr(args, 0))
		return value.Int(1), nil
	}
}
