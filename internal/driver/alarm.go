package driver

import (
	"sort"
	"time"

	"github.com/limpingninja/ci2go/internal/object"
)

// Alarm is one pending (fire_time, object, function) entry of the main
// loop's alarm list (spec.md §4.7, design notes §9 "Cooperative
// scheduling": a priority queue of (fire_time, object_handle, function
// name), not a coroutine). ID is a driver-assigned handle that Add returns
// and the alarm() efun hands back to the script; Remove does not use it
// and matches on the object/function pair instead.
type Alarm struct {
	ID      uint64
	At      time.Time
	Obj     object.Handle
	Func    string
	seq     uint64 // insertion order, for spec.md §8 "same-time alarms fire in registration order"
	expired bool
}

// alarmList is a simple insertion-ordered slice kept sorted lazily at
// fire time rather than a container/heap: the original driver's alarm
// list is small (a handful of pending timers per object at most) and a
// stable sort by (At, seq) is exactly spec.md §5's ordering guarantee
// ("among multiple alarms due at the same instant, firing order is
// insertion order").
type alarmList struct {
	entries []*Alarm
	nextID  uint64
	seq     uint64
}

func newAlarmList() *alarmList { return &alarmList{} }

// Add schedules fn on obj to fire after delay, implementing alarm(delay,
// "fn") (spec.md §6). Returns the alarm's ID, which the alarm() efun
// returns to the calling script.
func (al *alarmList) Add(obj object.Handle, fn string, delay time.Duration, now time.Time) uint64 {
	al.nextID++
	al.seq++
	a := &Alarm{ID: al.nextID, At: now.Add(delay), Obj: obj, Func: fn, seq: al.seq}
	al.entries = append(al.entries, a)
	return a.ID
}

// Remove implements remove_alarm(obj, "fn") (spec.md §6, §5 "Cancellation
// and timeouts"): cancels the first still-pending alarm matching
// (obj, fn), returning the remaining delay in seconds, or RemoveSentinel
// if none is found.
const RemoveSentinel = -1

func (al *alarmList) Remove(obj object.Handle, fn string, now time.Time) float64 {
	for _, a := range al.entries {
		if a.expired || a.Obj != obj || a.Func != fn {
			continue
		}
		a.expired = true
		remaining := a.At.Sub(now).Seconds()
		if remaining < 0 {
			remaining = 0
		}
		return remaining
	}
	return RemoveSentinel
}

// Due pops every alarm whose fire time has passed, in firing order
// (earliest first, ties broken by registration order), and compacts the
// live list in place.
func (al *alarmList) Due(now time.Time) []*Alarm {
	var due []*Alarm
	var live []*Alarm
	for _, a := range al.entries {
		if a.expired {
			continue
		}
		if !a.At.After(now) {
			due = append(due, a)
		} else {
			live = append(live, a)
		}
	}
	al.entries = live
	sort.Slice(due, func(i, j int) bool {
		if !due[i].At.Equal(due[j].At) {
			return due[i].At.Before(due[j].At)
		}
		return due[i].seq < due[j].seq
	})
	return due
}
