package efun

import (
	"github.com/limpingninja/ci2go/internal/value"
	"github.com/limpingninja/ci2go/internal/vm"
)

// registerTiming wires time/mktime/alarm/remove_alarm/set_heart_beat
// (spec.md §4.4, §6) onto the Host's driver clock and alarm queue —
// these efuns only ever enqueue work; Driver.Tick is what actually calls
// back into script code later (spec.md §5).
func (s *Suite) registerTiming(t map[string]vm.EfunFunc) {
	t["time"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		return value.Int(s.Host.Now().Unix()), nil
	}

	t["mktime"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		return value.Int(s.Host.Now().Unix()), nil
	}

	t["alarm"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		id := s.Host.Alarm(fr.ObjH, argFloat(args, 0), argStr(args, 1))
		return value.Int(int64(id)), nil
	}

	t["remove_alarm"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		remaining := s.Host.RemoveAlarm(fr.ObjH, argStr(args, 0))
		return value.Int(int64(remaining)), nil
	}

	t["set_heart_beat"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		s.Host.SetHeartBeat(fr.ObjH, argFloat(args, 0))
		return value.Int(1), nil
	}
}
