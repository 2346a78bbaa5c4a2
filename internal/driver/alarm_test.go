package driver

import (
	"testing"
	"time"

	"github.com/limpingninja/ci2go/internal/handle"
)

func obj(slot uint32) handle.Handle { return handle.Handle{Slot: slot, Gen: 1} }

func TestAlarmDueOrdersByTimeThenRegistration(t *testing.T) {
	al := newAlarmList()
	now := time.Now()

	al.Add(obj(1), "late", 2*time.Second, now)
	al.Add(obj(2), "first", time.Second, now)
	al.Add(obj(3), "tiebreak-a", time.Second, now)
	al.Add(obj(4), "tiebreak-b", time.Second, now)

	due := al.Due(now.Add(3 * time.Second))
	if len(due) != 4 {
		t.Fatalf("got %d due alarms, want 4", len(due))
	}
	want := []string{"first", "tiebreak-a", "tiebreak-b", "late"}
	for i, fn := range want {
		if due[i].Func != fn {
			t.Fatalf("due[%d] = %q, want %q", i, due[i].Func, fn)
		}
	}
}

func TestAlarmDueLeavesNotYetDueAlarmsPending(t *testing.T) {
	al := newAlarmList()
	now := time.Now()
	al.Add(obj(1), "soon", time.Second, now)
	al.Add(obj(2), "later", time.Hour, now)

	due := al.Due(now.Add(2 * time.Second))
	if len(due) != 1 || due[0].Func != "soon" {
		t.Fatalf("got %v, want exactly [soon]", due)
	}
	if len(al.entries) != 1 || al.entries[0].Func != "later" {
		t.Fatalf("later alarm should remain pending, got %v", al.entries)
	}
}

func TestAlarmRemoveCancelsAndReportsRemaining(t *testing.T) {
	al := newAlarmList()
	now := time.Now()
	al.Add(obj(1), "fn", 10*time.Second, now)

	remaining := al.Remove(obj(1), "fn", now.Add(4*time.Second))
	if remaining < 5.9 || remaining > 6.1 {
		t.Fatalf("remaining = %v, want ~6", remaining)
	}
	if due := al.Due(now.Add(time.Minute)); len(due) != 0 {
		t.Fatalf("removed alarm still fired: %v", due)
	}
}

func TestAlarmRemoveMissingReturnsSentinel(t *testing.T) {
	al := newAlarmList()
	if got := al.Remove(obj(1), "nope", time.Now()); got != RemoveSentinel {
		t.Fatalf("got %v, want RemoveSentinel", got)
	}
}
