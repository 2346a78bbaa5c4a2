package driver

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ticker.c exercises every phase of Tick in one pass: a heart_beat that
// bumps a counter, a command entry point that stores its argument in
// last_cmd, and an alarm-fired function that marks a flag.
const tickerSource = `
	int beats;
	int alarmed;
	string last_cmd;

	void heart_beat() {
		beats = beats + 1;
	}

	void on_alarm() {
		alarmed = 1;
	}

	void command(string line) {
		last_cmd = line;
	}

	int get_beats() { return beats; }
	int get_alarmed() { return alarmed; }
	string get_last_cmd() { return last_cmd; }
`

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "obj"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(base, "obj", "ticker.c"), []byte(tickerSource), 0644); err != nil {
		t.Fatalf("write ticker.c: %v", err)
	}
	cfg := DefaultConfig()
	cfg.LibBase = base
	cfg.ResetPeriod = 0
	cfg.CleanupEvery = 0
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("driver.New: %v", err)
	}
	return d
}

// TestTickFiresAlarmHeartbeatAndCommandInOneStep drives a single Tick
// across a heartbeat-enabled, alarm-armed object with one queued command
// and checks every phase actually ran.
func TestTickFiresAlarmHeartbeatAndCommandInOneStep(t *testing.T) {
	d := newTestDriver(t)

	h, err := d.Clone("/obj/ticker.c")
	if err != nil {
		t.Fatalf("clone ticker.c: %v", err)
	}

	d.SetHeartBeat(h, 0.01)
	d.Alarm(h, 0.01, "on_alarm")
	d.QueueCommand(h, "look")

	time.Sleep(20 * time.Millisecond)
	d.Tick(time.Now())

	obj, _ := d.Objects.Get(h)
	proto := obj.Proto

	beats, err := d.Interp.Call(nil, h, proto, proto.Functions["get_beats"], nil)
	if err != nil {
		t.Fatalf("get_beats: %v", err)
	}
	if beats.AsInt() != 1 {
		t.Fatalf("beats = %v, want 1 (heartbeat should have fired once)", beats)
	}

	alarmed, err := d.Interp.Call(nil, h, proto, proto.Functions["get_alarmed"], nil)
	if err != nil {
		t.Fatalf("get_alarmed: %v", err)
	}
	if alarmed.AsInt() != 1 {
		t.Fatalf("alarmed = %v, want 1 (alarm should have fired)", alarmed)
	}

	lastCmd, err := d.Interp.Call(nil, h, proto, proto.Functions["get_last_cmd"], nil)
	if err != nil {
		t.Fatalf("get_last_cmd: %v", err)
	}
	if lastCmd.AsString() != "look" {
		t.Fatalf("last_cmd = %q, want %q (queued command should have run)", lastCmd.AsString(), "look")
	}
}

// TestTickDestructIsDeferredToEndOfTick ensures destruct() queues rather
// than immediately frees an object, and that a later Tick actually
// reclaims it (spec.md §5's "strictly after all other work in the tick").
func TestTickDestructIsDeferredToEndOfTick(t *testing.T) {
	d := newTestDriver(t)

	h, err := d.Clone("/obj/ticker.c")
	if err != nil {
		t.Fatalf("clone ticker.c: %v", err)
	}

	d.Destruct(h)
	if _, ok := d.Objects.Get(h); !ok {
		t.Fatalf("object freed before Tick ran destruct queue")
	}

	d.Tick(time.Now())
	if _, ok := d.Objects.Get(h); ok {
		t.Fatalf("object still present after Tick drained the destruct queue")
	}
}

// TestTickRunsAtMostOneQueuedCommandPerObjectPerTick checks the
// round-robin fairness guarantee: two queued commands on the same object
// only drain one per Tick.
func TestTickRunsAtMostOneQueuedCommandPerObjectPerTick(t *testing.T) {
	d := newTestDriver(t)

	h, err := d.Clone("/obj/ticker.c")
	if err != nil {
		t.Fatalf("clone ticker.c: %v", err)
	}

	d.QueueCommand(h, "first")
	d.QueueCommand(h, "second")

	d.Tick(time.Now())

	obj, _ := d.Objects.Get(h)
	proto := obj.Proto
	got, _ := d.Interp.Call(nil, h, proto, proto.Functions["get_last_cmd"], nil)
	if got.AsString() != "first" {
		t.Fatalf("last_cmd after one Tick = %q, want %q (only one command should drain per tick)", got.AsString(), "first")
	}

	d.Tick(time.Now())
	got, _ = d.Interp.Call(nil, h, proto, proto.Functions["get_last_cmd"], nil)
	if got.AsString() != "second" {
		t.Fatalf("last_cmd after second Tick = %q, want %q", got.AsString(), "second")
	}
}
