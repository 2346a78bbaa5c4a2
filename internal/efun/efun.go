// Package efun implements the script-facing external-function suite of
// spec.md §6: the identity/dispatch, string, array, mapping, I/O,
// connection, timing, persistence, and admin efuns, plus the
// sprintf/sscanf format languages. Every entry point has the
// vm.EfunFunc shape (ip *vm.Interp, fr *vm.Frame, args []value.Value) so
// the whole table installs into an Interp's dispatch map in one call
// (spec.md §4.2 item 6 "operators as efuns").
package efun

import (
	"time"

	"github.com/limpingninja/ci2go/internal/object"
	"github.com/limpingninja/ci2go/internal/password"
	"github.com/limpingninja/ci2go/internal/transport"
	"github.com/limpingninja/ci2go/internal/value"
	"github.com/limpingninja/ci2go/internal/vfs"
	"github.com/limpingninja/ci2go/internal/vm"
)

// Host is the subset of internal/driver.Driver's behavior the efun suite
// needs: object lifecycle, compilation, queues, and timers. Defined here
// (not in internal/driver) so this package stays import-free of the
// driver package — internal/driver.Driver satisfies Host structurally,
// the same dependency direction the teacher's pkg/minicli uses for its
// Handler callback interface (routing commands into minimega's daemon
// state without importing it).
type Host interface {
	Clone(path string) (object.Handle, error)
	Destruct(h object.Handle)
	CompileObject(path string) (*object.Prototype, error)
	CompileString(code string) (*object.Prototype, error)
	QueueCommand(obj object.Handle, cmd string)
	ExecuteCommand(obj object.Handle, cmd string) bool
	Alarm(obj object.Handle, delaySeconds float64, fn string) uint64
	RemoveAlarm(obj object.Handle, fn string) float64
	SetHeartBeat(obj object.Handle, seconds float64)
	Now() time.Time
	Privileged(h object.Handle) bool
	Users() []object.Handle
	SaveObject(h object.Handle, path string) error
	RestoreObject(h object.Handle, path string) error
	Save(path string) error
	Shutdown()
}

// Suite bundles every collaborator the efun table closures need: the
// object arena (read directly off ip.Objects, since vm.Interp already
// carries it), the sandboxed filesystem, the connection registry, the
// password backend, and the Host for lifecycle/queue operations.
type Suite struct {
	Host     Host
	FS       *vfs.FS
	Conns    *transport.Registry
	Password password.Hasher

	MSSP []transport.MSSPVar
}

// New returns a Suite with the given collaborators wired in.
func New(host Host, fs *vfs.FS, conns *transport.Registry, pw password.Hasher) *Suite {
	return &Suite{Host: host, FS: fs, Conns: conns, Password: pw}
}

// Table builds the full name->EfunFunc dispatch map (spec.md §6's listed
// efuns) ready for driver.Driver.RegisterEfuns.
func (s *Suite) Table() map[string]vm.EfunFunc {
	t := map[string]vm.EfunFunc{}
	s.registerIdentity(t)
	s.registerStrings(t)
	s.registerArrays(t)
	s.registerMappings(t)
	s.registerIO(t)
	s.registerConnection(t)
	s.registerTiming(t)
	s.registerPersistence(t)
	s.registerAdmin(t)
	return t
}

// Names returns every registered efun name, for wiring into
// compiler.Compiler.Efuns (spec.md §4.1: the compiler must know which
// identifiers are efuns to emit OpEfunCall for them).
func (s *Suite) Names() map[string]bool {
	names := make(map[string]bool)
	for name := range s.Table() {
		names[name] = true
	}
	return names
}

// arg is a small helper for bounds-safe positional argument access: efuns
// called with too few arguments read the missing ones as integer 0,
// matching the tagged-union's "missing means 0" convention rather than
// erroring (spec.md §3).
func arg(args []value.Value, i int) value.Value {
	if i < 0 || i >= len(args) {
		return value.Int(0)
	}
	return args[i]
}

func argInt(args []value.Value, i int) int64    { return arg(args, i).AsInt() }
func argStr(args []value.Value, i int) string    { return arg(args, i).AsString() }
func argFloat(args []value.Value, i int) float64 { return float64(arg(args, i).AsInt()) }
