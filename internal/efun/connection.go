package efun

import (
	"github.com/limpingninja/ci2go/internal/object"
	"github.com/limpingninja/ci2go/internal/transport"
	"github.com/limpingninja/ci2go/internal/value"
	"github.com/limpingninja/ci2go/internal/vm"
)

// registerConnection wires the interactive-connection efuns (spec.md §4.6,
// §6) to the transport.Registry and the Host's live-user roster.
func (s *Suite) registerConnection(t map[string]vm.EfunFunc) {
	t["users"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		hs := s.Host.Users()
		out := value.NewArray(len(hs), value.Unlimited)
		for i, h := range hs {
			out.Set(i, value.Obj(h))
		}
		return value.ArrVal(out), nil
	}

	t["next_who"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		prev, _ := arg(args, 0).AsObject()
		hs := s.Host.Users()
		if !prev.Valid() {
			if len(hs) == 0 {
				return value.Int(0), nil
			}
			return value.Obj(hs[0]), nil
		}
		for i, h := range hs {
			if h == prev && i+1 < len(hs) {
				return value.Obj(hs[i+1]), nil
			}
		}
		return value.Int(0), nil
	}

	t["connected"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		h, ok := arg(args, 0).AsObject()
		if !ok {
			h = fr.ObjH
		}
		if s.conn(ip, h) != nil {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	}

	// get_devconn(obj) returns the remote address string of obj's
	// connection, the closest analogue this transport layer has to the
	// original driver's raw descriptor number (there is no bare fd to
	// expose once net.Conn owns the socket).
	t["get_devconn"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		h, ok := arg(args, 0).AsObject()
		if !ok {
			h = fr.ObjH
		}
		c := s.conn(ip, h)
		if c == nil {
			return value.Int(0), nil
		}
		return value.Str(c.RemoteAddr()), nil
	}

	t["send_device"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		h, _ := arg(args, 0).AsObject()
		c := s.conn(ip, h)
		if c == nil {
			return value.Int(0), nil
		}
		c.Send([]byte(argStr(args, 1)))
		return value.Int(1), nil
	}

	// reconnect_device(obj, newobj) implements the exec()-style connection
	// handoff: newobj takes over obj's live socket (used by the login
	// object handing a fresh connection to the player object it creates).
	t["reconnect_device"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		from, ok := arg(args, 0).AsObject()
		if !ok {
			return value.Int(0), nil
		}
		to, ok := arg(args, 1).AsObject()
		if !ok {
			return value.Int(0), nil
		}
		fromObj, fok := ip.Objects.Get(from)
		toObj, tok := ip.Objects.Get(to)
		if !fok || !tok || !fromObj.Connection.Valid() {
			return value.Int(0), nil
		}
		c, cok := s.Conns.Get(fromObj.Connection)
		if !cok {
			return value.Int(0), nil
		}
		c.Attached = to
		toObj.Connection = fromObj.Connection
		fromObj.Connection = object.Handle{}
		return value.Int(1), nil
	}

	t["disconnect_device"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		h, ok := arg(args, 0).AsObject()
		if !ok {
			h = fr.ObjH
		}
		c := s.conn(ip, h)
		if c == nil {
			return value.Int(0), nil
		}
		c.Close()
		return value.Int(1), nil
	}

	t["query_terminal"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		h, ok := arg(args, 0).AsObject()
		if !ok {
			h = fr.ObjH
		}
		c := s.conn(ip, h)
		if c == nil {
			return value.Int(0), nil
		}
		info := c.Telnet.QueryTerminal()
		m := value.NewMapping()
		m.Set(value.Str("term_client"), value.Str(info.TermClient))
		m.Set(value.Str("term_type"), value.Str(info.TermType))
		m.Set(value.Str("term_support"), value.Int(int64(info.TermSupport)))
		m.Set(value.Str("width"), value.Int(int64(info.Width)))
		m.Set(value.Str("height"), value.Int(int64(info.Height)))
		m.Set(value.Str("naws"), boolVal(info.NAWS))
		m.Set(value.Str("ttype"), boolVal(info.TTYPE))
		m.Set(value.Str("echo"), boolVal(info.Echo))
		m.Set(value.Str("sga"), boolVal(info.SGA))
		return value.MapValOf(m), nil
	}

	t["get_mssp"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		out := value.NewArray(len(s.MSSP), value.Unlimited)
		for i, v := range s.MSSP {
			pair := value.NewArray(2, value.Unlimited)
			pair.Set(0, value.Str(v.Name))
			pair.Set(1, value.Str(v.Value))
			out.Set(i, value.ArrVal(pair))
		}
		return value.ArrVal(out), nil
	}

	// set_mssp(arr) replaces the MSSP table wholesale from an array of
	// {name, value} pairs, preserving order (spec.md §4.6: MSSP is an
	// ordered list, not a mapping, since some fields repeat by name).
	// set_mssp(map) is also accepted: one variable per key, in the
	// mapping's iteration order, so a name cannot repeat.
	t["set_mssp"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		if !s.Host.Privileged(fr.ObjH) {
			return value.Int(0), nil
		}
		if mp, ok := arg(args, 0).AsMapping(); ok {
			keys, vals := mp.KeysValues()
			vars := make([]transport.MSSPVar, 0, len(keys))
			for i := range keys {
				vars = append(vars, transport.MSSPVar{Name: keys[i].AsString(), Value: vals[i].AsString()})
			}
			s.MSSP = vars
			return value.Int(1), nil
		}
		arr, ok := arg(args, 0).AsArray()
		if !ok {
			return value.Int(0), nil
		}
		vars := make([]transport.MSSPVar, 0, arr.Len())
		for _, v := range arr.Items() {
			pair, pok := v.AsArray()
			if !pok || pair.Len() < 2 {
				continue
			}
			vars = append(vars, transport.MSSPVar{
				Name:  pair.Get(0).AsString(),
				Value: pair.Get(1).AsString(),
			})
		}
		s.MSSP = vars
		return value.Int(1), nil
	}
}

// conn resolves h's live transport.Conn, or nil if h has no object, no
// attached connection, or the connection has since closed.
func (s *Suite) conn(ip *vm.Interp, h object.Handle) *transport.Conn {
	obj, ok := ip.Objects.Get(h)
	if !ok || !obj.Connection.Valid() {
		return nil
	}
	c, ok := s.Conns.Get(obj.Connection)
	if !ok || !c.Alive() {
		return nil
	}
	return c
}

func boolVal(b bool) value.Value {
	if b {
		return value.Int(1)
	}
	return value.Int(0)
}
