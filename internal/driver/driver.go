// Package driver owns the main loop, alarm/command/destruct queues, and
// the reset/clean_up/heart_beat passes of spec.md §4.7. It is the single
// "Driver value owned by the main loop" the design notes (§9) call for in
// place of the original's scattered module-level globals: every other
// package (object, vm, vfs, transport, persist, compiler) is a stateless
// or narrowly-stateful collaborator this package wires together and
// drives one tick at a time.
package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/limpingninja/ci2go/internal/compiler"
	"github.com/limpingninja/ci2go/internal/mlog"
	"github.com/limpingninja/ci2go/internal/object"
	"github.com/limpingninja/ci2go/internal/password"
	"github.com/limpingninja/ci2go/internal/persist"
	"github.com/limpingninja/ci2go/internal/transport"
	"github.com/limpingninja/ci2go/internal/value"
	"github.com/limpingninja/ci2go/internal/vfs"
	"github.com/limpingninja/ci2go/internal/vm"
)

// Config bundles the startup-time parameters spec.md §6's CLI surface
// calls for: the script library path, the save-file location, the
// network port, and the soft/hard cycle-cap switches.
type Config struct {
	LibBase      string // vfs base directory (the script library root)
	SaveFile     string
	Port         int
	MaxConns     int
	SoftCycles   bool
	HardCycles   bool
	BootObject   string // master object's path, e.g. "/secure/master.c"
	LoginObject  string // cloned for each new connection
	ResetPeriod  time.Duration
	CleanupEvery time.Duration
}

// DefaultConfig mirrors the original driver's conservative defaults.
func DefaultConfig() Config {
	return Config{
		LibBase:      "./lib",
		SaveFile:     "./save/world.o",
		Port:         4000,
		MaxConns:     256,
		SoftCycles:   true,
		HardCycles:   true,
		BootObject:   "/secure/master.c",
		LoginObject:  "/obj/login.c",
		ResetPeriod:  15 * time.Minute,
		CleanupEvery: time.Minute,
	}
}

// Driver is the single value the main loop owns (design notes §9),
// encapsulating every module-level global the original driver kept
// scattered across translation units.
type Driver struct {
	Config Config
	Log    *mlog.Logger

	Objects  *object.Table
	Interp   *vm.Interp
	Compiler *compiler.Compiler
	FS       *vfs.FS
	Conns    *transport.Registry
	Listener *transport.Listener
	Password password.Hasher

	MasterObj object.Handle

	MSSP []transport.MSSPVar

	alarms   *alarmList
	commands *commandQueue
	destruct *destructQueue

	sink chan transport.Event

	lastReset   time.Time
	lastCleanup time.Time

	shutdown chan struct{}
}

// New wires every collaborator together per DESIGN.md's grounding ledger
// and returns a Driver ready to have efuns registered on its Interp and
// its Tick loop driven (spec.md §4.7).
func New(cfg Config) (*Driver, error) {
	fs, err := vfs.New(cfg.LibBase)
	if err != nil {
		return nil, fmt.Errorf("driver: opening library %q: %w", cfg.LibBase, err)
	}

	d := &Driver{
		Config:   cfg,
		Log:      mlog.New(mlog.INFO, 1024),
		Objects:  object.NewTable(),
		FS:       fs,
		Conns:    transport.NewRegistry(),
		Password: password.NewBcryptHasher(),
		alarms:   newAlarmList(),
		commands: newCommandQueue(),
		destruct: newDestructQueue(),
		sink:     make(chan transport.Event, 256),
		shutdown: make(chan struct{}),
	}
	d.Interp = vm.New(d.Objects)
	d.Interp.Log = d.Log
	d.Interp.Source = d.sourceLine

	limits := vm.DefaultLimits()
	if !cfg.SoftCycles {
		limits.SoftCycles = 0
	}
	if !cfg.HardCycles {
		limits.HardCycles = 0
	}
	d.Interp.Limits = limits

	d.Compiler = compiler.NewCompiler(d.loadInherit, nil)
	return d, nil
}

// RegisterEfuns installs efuns into the interpreter and the compiler's
// efun-name table together, since the compiler needs to know which bare
// identifiers are efuns (spec.md §4.1) before it can emit OpEfunCall for
// them.
func (d *Driver) RegisterEfuns(table map[string]vm.EfunFunc) {
	names := make(map[string]bool, len(table))
	for name, fn := range table {
		d.Interp.Efuns[name] = fn
		names[name] = true
	}
	d.Compiler.Efuns = names
}

func (d *Driver) sourceLine(path string, line int) string {
	data, err := d.FS.ReadFile(path, object.Handle{}, true, line, 1)
	if err != nil {
		return ""
	}
	return data
}

// loadInherit is the compiler.Loader: resolve and compile path, reading
// its source from the sandboxed library filesystem (spec.md §4.1 "inherit
// "path" statements ... compiling them transitively if needed").
func (d *Driver) loadInherit(path string) (*object.Prototype, error) {
	return d.CompileObject(path)
}

// CompileObject implements compile_object(path) (spec.md §6): find or
// compile path's prototype. Compiler.Compile caches by path, so
// recompiling the same path is free and returns the first Prototype
// built for it; a script file changed on disk is not recompiled.
func (d *Driver) CompileObject(path string) (*object.Prototype, error) {
	src, err := d.FS.ReadFile(path, object.Handle{}, true, 0, 0)
	if err != nil {
		return nil, err
	}
	return d.Compiler.Compile(path, src)
}

// CompileString implements compile_string(code) (spec.md §6): an
// anonymous eval object compiled from in-memory source rather than a
// library file. Per spec.md §9's open question ("the source's handling is
// inconsistent between eval and exec paths"), this driver resolves it by
// giving every compile_string call a distinct synthetic path
// (`/eval/<n>.c`) so each one gets its own cached Prototype instead of
// colliding on a shared name — eval objects are never visible to
// save_object and are never written to the library filesystem.
var evalCounter int

func (d *Driver) CompileString(code string) (*object.Prototype, error) {
	evalCounter++
	path := fmt.Sprintf("/eval/%d.c", evalCounter)
	return d.Compiler.Compile(path, code)
}

// Clone implements clone(path) (spec.md §4.4): find/compile the
// prototype, allocate a zeroed clone, mark it active, and invoke init()
// if the program defines one. The implicit auto-object attachment
// (design notes §9's "attach chain preserved ... for the auto-object
// installed on every clone") is left to the boot/master object's own
// init() convention rather than hardcoded here, since this core no longer
// needs attach() for ordinary composition.
func (d *Driver) Clone(path string) (object.Handle, error) {
	proto, err := d.CompileObject(path)
	if err != nil {
		return object.Handle{}, err
	}
	h, obj := d.Objects.Clone(proto)
	obj.State = object.StateActive
	obj.LastAccess = time.Now()
	if fn, ok := proto.Functions["init"]; ok {
		if _, err := d.Interp.Call(nil, h, proto, fn, nil); err != nil {
			return h, err
		}
	}
	return h, nil
}

// Destruct implements destruct(obj) (spec.md §4.4): queues h for
// end-of-tick processing rather than destroying it immediately, so code
// still executing on h's behalf this tick keeps a consistent view of it.
func (d *Driver) Destruct(h object.Handle) {
	d.destruct.Push(h)
}

// QueueCommand implements the command() efun's direct-enqueue form and
// the input path's "queue it as a command on the owner object" branch
// (spec.md §4.6, §4.7 step 2).
func (d *Driver) QueueCommand(obj object.Handle, cmd string) {
	d.commands.Push(obj, cmd)
}

// Alarm implements alarm(delay, "fn") (spec.md §6).
func (d *Driver) Alarm(obj object.Handle, delaySeconds float64, fn string) uint64 {
	return d.alarms.Add(obj, fn, durationFromSeconds(delaySeconds), time.Now())
}

// RemoveAlarm implements remove_alarm(obj, "fn") (spec.md §6).
func (d *Driver) RemoveAlarm(obj object.Handle, fn string) float64 {
	return d.alarms.Remove(obj, fn, time.Now())
}

// SetHeartBeat implements set_heart_beat(sec) (spec.md §6): 0 disables
// the heartbeat.
func (d *Driver) SetHeartBeat(obj object.Handle, seconds float64) {
	o, ok := d.Objects.Get(obj)
	if !ok {
		return
	}
	o.HeartBeatInterval = durationFromSeconds(seconds)
	o.LastHeartBeat = time.Now()
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Now is time() (spec.md §6).
func (d *Driver) Now() time.Time { return time.Now() }

// Privileged reports whether h bypasses the master-object file-permission
// callback (spec.md §4.5's "privileged-object flag").
func (d *Driver) Privileged(h object.Handle) bool {
	obj, ok := d.Objects.Get(h)
	return ok && obj.Privileged
}

// Users implements users() (spec.md §6): every object with a live
// connection, in handle-slot order.
func (d *Driver) Users() []object.Handle {
	var out []object.Handle
	for _, h := range d.Objects.Handles() {
		obj, ok := d.Objects.Get(h)
		if ok && obj.Connection.Valid() {
			if c, live := d.Conns.Get(obj.Connection); live && c.Alive() {
				out = append(out, h)
			}
		}
	}
	return out
}

// SaveObject/RestoreObject implement the single-object shorthand efuns
// (spec.md §6): a one-object snapshot using the same grammar as the
// whole-world save, reusing internal/persist's codec directly rather than
// a separate format.
func (d *Driver) SaveObject(h object.Handle, path string) error {
	obj, ok := d.Objects.Get(h)
	if !ok {
		return fmt.Errorf("driver: save_object: no such object")
	}
	refFn := func(v value.Value) (persist.ObjectRef, bool) {
		oh, ok := v.AsObject()
		if !ok {
			return persist.ObjectRef{}, false
		}
		o, ok := d.Objects.Get(oh)
		if !ok {
			return persist.ObjectRef{}, false
		}
		return persist.ObjectRef{Path: o.Proto.Path, Refno: oh.Slot}, true
	}
	return d.FS.WriteFile(path, persist.EncodeObject(obj, refFn), h, d.Privileged(h))
}

func (d *Driver) RestoreObject(h object.Handle, path string) error {
	obj, ok := d.Objects.Get(h)
	if !ok {
		return fmt.Errorf("driver: restore_object: no such object")
	}
	data, err := d.FS.ReadFile(path, h, d.Privileged(h), 0, 0)
	if err != nil {
		return err
	}
	lookup := func(ref persist.ObjectRef) (value.Value, bool) {
		for _, candidate := range d.Objects.Handles() {
			o, ok := d.Objects.Get(candidate)
			if ok && o.Proto.Path == ref.Path && candidate.Slot == ref.Refno {
				return value.Obj(candidate), true
			}
		}
		return value.Int(0), false
	}
	return persist.DecodeObjectInto(obj, data, lookup)
}

// Shutdown implements sysctl("shutdown") (spec.md §6): stop accepting new
// connections and signal the main loop to exit after this tick.
func (d *Driver) Shutdown() {
	select {
	case <-d.shutdown:
	default:
		close(d.shutdown)
	}
	if d.Listener != nil {
		d.Listener.Close()
	}
}

func (d *Driver) ShutdownRequested() bool {
	select {
	case <-d.shutdown:
		return true
	default:
		return false
	}
}

// Listen starts accepting telnet connections on cfg.Port (spec.md §4.6).
func (d *Driver) Listen() error {
	ln, err := transport.Listen(fmt.Sprintf(":%d", d.Config.Port), d.Config.MaxConns)
	if err != nil {
		return err
	}
	d.Listener = ln
	go ln.Serve(d.Conns, d.sink)
	return nil
}

// Save writes the full object graph to path (spec.md §4.8).
func (d *Driver) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	snap := &persist.Snapshot{Table: d.Objects}
	return snap.Save(f)
}

// Restore loads the full object graph from path, compiling prototypes on
// demand through CompileObject (spec.md §4.8 "performed before the main
// loop starts").
func (d *Driver) Restore(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	snap := &persist.Snapshot{Table: d.Objects}
	return snap.Load(f, d.CompileObject)
}

// basename mirrors the compiler's Name::f() basename matching, exposed
// here for efuns (otoa's path-from-object rendering) that need the same
// convention.
func basename(path string) string {
	return filepath.Base(path)
}
