package object

import (
	"time"

	"github.com/limpingninja/ci2go/internal/handle"
	"github.com/limpingninja/ci2go/internal/value"
)

// State is the lifecycle state of an Object (spec.md §4.4).
type State int

const (
	StateLoading State = iota
	StateActive
	StateDirty
	StateDestructing
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateDirty:
		return "dirty"
	case StateDestructing:
		return "destructing"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Verb is one registered input-pattern handler (spec.md glossary "Verb").
type Verb struct {
	Pattern  string
	Function string
}

// Object is a clone — an instance of a Prototype with its own globals
// (spec.md §3 "Object"). Container linkage, attachments, and the
// interactive/connection fields are all expressed as handles rather than
// pointers, per the arena rework in the design notes.
type Object struct {
	Ref   Handle // this object's own stable identity
	Proto *Prototype

	Globals []value.Value

	Location Handle
	Contents []Handle
	Prev     Handle // sibling links; no code sets them, and removal from Location's Contents scans the slice
	Next     Handle

	// Attach chain (design notes §9): retained only for the implicit
	// auto-object installed on every clone and for loading old snapshots.
	// Ordinary behavior composition is multiple inheritance, not attach.
	Attachees []Handle

	Verbs []Verb

	// Connection is set if this object is interactive (has a live telnet
	// session attached). Zero Handle means not connected.
	Connection handle.Handle

	// InputRedirect/InputTo implement redirect_input()/input_to(): the
	// function to deliver the next line of raw input to, instead of
	// routing it through the verb/command queue.
	InputRedirectFunc string
	InputToTarget     Handle
	InputToFunc       string

	HeartBeatInterval time.Duration
	LastHeartBeat     time.Time

	State State

	LastAccess time.Time

	// Privileged bypasses the master-object read/write callback
	// (spec.md §4.5).
	Privileged bool
}

// NewObject allocates a zeroed clone of proto with flattened globals sized
// for its full ancestor layout.
func NewObject(proto *Prototype) *Object {
	return &Object{
		Proto:      proto,
		Globals:    make([]value.Value, proto.NumGlobals),
		State:      StateLoading,
		LastAccess: time.Now(),
	}
}

// SetGlobal stores v at slot, retaining/releasing heap containers as
// needed, and marks the object dirty (spec.md §4.4 "Any global store sets
// dirty").
func (o *Object) SetGlobal(slot int, v value.Value) {
	if slot < 0 || slot >= len(o.Globals) {
		return
	}
	value.Release(o.Globals[slot])
	value.Retain(v)
	o.Globals[slot] = v
	if o.State == StateActive {
		o.State = StateDirty
	}
}

func (o *Object) Garbage() bool { return o.State == StateDestructing || o.State == StateDestroyed }

// RegisterVerb adds or replaces a verb pattern -> function binding
// (spec.md glossary "Verb", §6 `command`).
func (o *Object) RegisterVerb(pattern, function string) {
	for i, v := range o.Verbs {
		if v.Pattern == pattern {
			o.Verbs[i].Function = function
			return
		}
	}
	o.Verbs = append(o.Verbs, Verb{Pattern: pattern, Function: function})
}

func (o *Object) RemoveVerb(pattern string) {
	for i, v := range o.Verbs {
		if v.Pattern == pattern {
			o.Verbs = append(o.Verbs[:i], o.Verbs[i+1:]...)
			return
		}
	}
}
