package driver

import (
	"time"

	"github.com/limpingninja/ci2go/internal/object"
	"github.com/limpingninja/ci2go/internal/transport"
	"github.com/limpingninja/ci2go/internal/value"
)

// Tick runs exactly one iteration of the main loop in the order spec.md
// §4.7 specifies. It is the only method that mutates the object graph —
// every other entry point (efuns, transport goroutines) only ever
// enqueues work for Tick to perform, preserving the single-logical-thread
// heap guarantee of spec.md §5 while I/O itself runs on goroutines.
func (d *Driver) Tick(now time.Time) {
	d.drainTransportEvents(now)   // step 1 (poll) + step 2 (route input)
	d.fireAlarms(now)             // step 3
	d.fireHeartbeats(now)         // step 4
	d.runCommands()               // step 5
	d.runPeriodicPasses(now)      // step 6
	d.drainDestructQueue()        // step 7
	d.flushConnections()
}

// drainTransportEvents implements spec.md §4.7 steps 1–2: pull every
// event the reader goroutines have queued since the last tick (connect,
// one line, disconnect) and route each input line through the
// input-redirect/input_to mechanism or the command queue (spec.md §4.6).
func (d *Driver) drainTransportEvents(now time.Time) {
	for {
		select {
		case ev := <-d.sink:
			d.handleEvent(ev, now)
		default:
			return
		}
	}
}

func (d *Driver) handleEvent(ev transport.Event, now time.Time) {
	switch ev.Kind {
	case transport.EventConnect:
		d.handleConnect(ev.Conn, now)
	case transport.EventLine:
		d.handleLine(ev.Conn, ev.Line)
	case transport.EventDisconnect:
		d.handleDisconnect(ev.Conn)
	}
}

func (d *Driver) handleConnect(c *transport.Conn, now time.Time) {
	if d.Config.LoginObject == "" {
		return
	}
	h, err := d.Clone(d.Config.LoginObject)
	if err != nil {
		d.Log.Errorf("driver: cloning login object for new connection: %v", err)
		return
	}
	obj, ok := d.Objects.Get(h)
	if !ok {
		return
	}
	obj.Connection = c.Ref
	c.Attached = h
	if fn, ok := obj.Proto.Functions["connect"]; ok {
		d.Interp.Call(nil, h, obj.Proto, fn, nil)
	}
}

func (d *Driver) handleDisconnect(c *transport.Conn) {
	if !c.Attached.Valid() {
		d.Conns.Free(c.Ref)
		return
	}
	obj, ok := d.Objects.Get(c.Attached)
	if ok {
		if fn, fok := obj.Proto.Functions["disconnect"]; fok {
			d.Interp.Call(nil, c.Attached, obj.Proto, fn, nil)
		}
		obj.Connection = object.Handle{}
	}
	d.commands.Drop(c.Attached)
	d.Conns.Free(c.Ref)
}

// handleLine implements spec.md §4.6's input dispatch: a one-shot
// input_to(target,"fn") redirect wins over the persistent
// redirect_input("fn") form, which in turn wins over the ordinary
// command queue.
func (d *Driver) handleLine(c *transport.Conn, line string) {
	if !c.Attached.Valid() {
		return
	}
	obj, ok := d.Objects.Get(c.Attached)
	if !ok {
		return
	}
	obj.LastAccess = time.Now()

	if obj.InputToTarget.Valid() {
		target, fn := obj.InputToTarget, obj.InputToFunc
		obj.InputToTarget = object.Handle{}
		obj.InputToFunc = ""
		if tobj, tok := d.Objects.Get(target); tok {
			if f, fok := tobj.Proto.Functions[fn]; fok {
				d.Interp.Call(nil, target, tobj.Proto, f, []value.Value{value.Str(line)})
				return
			}
		}
		return
	}
	if obj.InputRedirectFunc != "" {
		if f, fok := obj.Proto.Functions[obj.InputRedirectFunc]; fok {
			d.Interp.Call(nil, c.Attached, obj.Proto, f, []value.Value{value.Str(line)})
			return
		}
	}
	d.commands.Push(c.Attached, line)
}

// fireAlarms implements spec.md §4.7 step 3 and §8's ordering law: alarms
// due at or before now fire in (fire_time, registration order).
func (d *Driver) fireAlarms(now time.Time) {
	for _, a := range d.alarms.Due(now) {
		obj, ok := d.Objects.Get(a.Obj)
		if !ok {
			continue
		}
		fn, ok := obj.Proto.Functions[a.Func]
		if !ok {
			continue
		}
		d.Interp.Call(nil, a.Obj, obj.Proto, fn, nil)
	}
}

// fireHeartbeats implements spec.md §4.7 step 4 / §4.4 "heart_beat()
// fires at the object's configured interval on each tick where the
// interval has elapsed."
func (d *Driver) fireHeartbeats(now time.Time) {
	for _, h := range d.Objects.Handles() {
		obj, ok := d.Objects.Get(h)
		if !ok || obj.HeartBeatInterval <= 0 {
			continue
		}
		if now.Sub(obj.LastHeartBeat) < obj.HeartBeatInterval {
			continue
		}
		obj.LastHeartBeat = now
		fn, ok := obj.Proto.Functions["heart_beat"]
		if !ok {
			continue
		}
		d.Interp.Call(nil, h, obj.Proto, fn, nil)
	}
}

// runCommands implements spec.md §4.7 step 5: one queued command per
// interactive object per tick, routed through ExecuteCommand: the
// object's "command" entry point if defined, otherwise its registered
// verbs (spec.md glossary "Verb").
func (d *Driver) runCommands() {
	for _, pc := range d.commands.PopOne() {
		d.ExecuteCommand(pc.Obj, pc.Cmd)
	}
}

// ExecuteCommand runs one line against h's "command" entry point if
// defined, falling back to its registered verb table (spec.md glossary
// "Verb"), and reports whether anything matched. This backs both the
// tick loop's one-command-per-object draw and the immediate, synchronous
// `command(obj, str)` efun (spec.md §6 "Dynamic dispatch").
func (d *Driver) ExecuteCommand(h object.Handle, line string) bool {
	obj, ok := d.Objects.Get(h)
	if !ok {
		return false
	}
	obj.LastAccess = time.Now()
	if fn, ok := obj.Proto.Functions["command"]; ok {
		d.Interp.Call(nil, h, obj.Proto, fn, []value.Value{value.Str(line)})
		return true
	}
	return d.dispatchVerb(h, obj, line)
}

// dispatchVerb matches a raw input line against obj's registered verbs:
// the first verb whose Pattern is a prefix of the line wins, mirroring
// the original driver's simple verb-table matching.
func (d *Driver) dispatchVerb(h object.Handle, obj *object.Object, line string) bool {
	for _, v := range obj.Verbs {
		if matchVerb(v.Pattern, line) {
			if fn, ok := obj.Proto.Functions[v.Function]; ok {
				d.Interp.Call(nil, h, obj.Proto, fn, []value.Value{value.Str(line)})
				return true
			}
		}
	}
	return false
}

func matchVerb(pattern, line string) bool {
	if pattern == "" {
		return true
	}
	if len(line) < len(pattern) {
		return false
	}
	return line[:len(pattern)] == pattern
}

// runPeriodicPasses implements spec.md §4.7 step 6: reset/clean_up passes
// on their configured intervals.
func (d *Driver) runPeriodicPasses(now time.Time) {
	if d.Config.ResetPeriod > 0 && now.Sub(d.lastReset) >= d.Config.ResetPeriod {
		d.lastReset = now
		d.runResetPass(now)
	}
	if d.Config.CleanupEvery > 0 && now.Sub(d.lastCleanup) >= d.Config.CleanupEvery {
		d.lastCleanup = now
		d.runCleanupPass(now)
	}
}

// idleThreshold is how long an object must have gone untouched before
// reset()/clean_up() will consider it (spec.md §4.4 "skipping objects
// idle for less than a threshold").
const idleThreshold = 2 * time.Minute

// runResetPass implements reset() (spec.md §4.4): invoked on every clone
// except the boot object and prototypes (this driver has no separate
// auto-object prototype distinct from an ordinary clone's proto, so the
// only hard exclusion is the master object itself).
func (d *Driver) runResetPass(now time.Time) {
	for _, h := range d.Objects.Handles() {
		if h == d.MasterObj {
			continue
		}
		obj, ok := d.Objects.Get(h)
		if !ok || now.Sub(obj.LastAccess) < idleThreshold {
			continue
		}
		fn, ok := obj.Proto.Functions["reset"]
		if !ok {
			continue
		}
		d.Interp.Call(nil, h, obj.Proto, fn, nil)
	}
}

// runCleanupPass implements clean_up(refcount) (spec.md §4.4): idle,
// unoccupied clones not in any container are asked whether they should be
// destructed; a truthy return opts in.
func (d *Driver) runCleanupPass(now time.Time) {
	for _, h := range d.Objects.Handles() {
		if h == d.MasterObj {
			continue
		}
		obj, ok := d.Objects.Get(h)
		if !ok {
			continue
		}
		if obj.Connection.Valid() || obj.Location.Valid() || len(obj.Contents) > 0 {
			continue
		}
		if now.Sub(obj.LastAccess) < idleThreshold {
			continue
		}
		fn, ok := obj.Proto.Functions["clean_up"]
		if !ok {
			continue
		}
		result, err := d.Interp.Call(nil, h, obj.Proto, fn, []value.Value{value.Int(0)})
		if err == nil && result.Truthy() {
			d.Destruct(h)
		}
	}
}

// drainDestructQueue implements spec.md §4.7 step 7: actually free every
// object queued by destruct() this tick, strictly after every other kind
// of work (spec.md §5 "Object destruction happens strictly after all
// other work in the tick").
func (d *Driver) drainDestructQueue() {
	for _, h := range d.destruct.Drain() {
		if obj, ok := d.Objects.Get(h); ok {
			d.commands.Drop(h)
			if obj.Connection.Valid() {
				if c, cok := d.Conns.Get(obj.Connection); cok {
					c.Close()
				}
			}
		}
		d.Objects.Destruct(h)
	}
}

// flushConnections drains each live connection's staged output buffer,
// completing spec.md §4.7 step 1's "drain output buffers" half.
func (d *Driver) flushConnections() {
	d.Conns.Each(func(_ object.Handle, c *transport.Conn) {
		if c.Alive() {
			c.Flush()
		}
	})
}

// Run drives Tick on interval until Shutdown is called.
func (d *Driver) Run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.shutdown:
			return
		case now := <-ticker.C:
			d.Tick(now)
		}
	}
}
