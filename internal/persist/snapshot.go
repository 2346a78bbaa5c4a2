package persist

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/limpingninja/ci2go/internal/object"
	"github.com/limpingninja/ci2go/internal/value"
)

// Snapshot writes/reads the full object graph per spec.md §4.8: every
// non-prototype, non-garbage object as `path#refno { name = value; ... }`,
// with globals enumerated in GST order so a recompiled program with
// reordered-but-same-named globals still restores correctly by name.
type Snapshot struct {
	Table *object.Table
}

// Save writes every live object in t to w.
func (s *Snapshot) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var saveErr error
	s.Table.Each(func(h object.Handle, obj *object.Object) {
		if saveErr != nil {
			return
		}
		_, saveErr = bw.WriteString(encodeObject(obj, s.refForObject))
	})
	if saveErr != nil {
		return saveErr
	}
	return bw.Flush()
}

func (s *Snapshot) refForObject(v value.Value) (ObjectRef, bool) {
	h, ok := v.AsObject()
	if !ok {
		return ObjectRef{}, false
	}
	obj, ok := s.Table.Get(h)
	if !ok {
		return ObjectRef{}, false
	}
	return ObjectRef{Path: obj.Proto.Path, Refno: h.Slot}, true
}

// globalNames enumerates proto's flattened global slots in the same order
// ResolveGlobal's slot numbering expects, pairing each with the declaring
// program's name for that variable (spec.md §4.8's "globals-in-GST-order").
func globalNames(proto *object.Prototype) []string {
	names := make([]string, proto.NumGlobals)
	seen := make(map[*object.Prototype]bool)
	for _, p := range proto.MRO {
		if seen[p] {
			continue
		}
		seen[p] = true
		base, ok := proto.AncestorMap[p]
		if !ok {
			continue
		}
		for i, vi := range p.Globals {
			slot := base + i
			if slot >= 0 && slot < len(names) {
				names[slot] = vi.Name
			}
		}
	}
	return names
}

// EncodeObject renders a single object in the same `path#refno {...}`
// grammar Save uses, for the save_object(path) efun's single-object
// shorthand (spec.md §6).
func EncodeObject(obj *object.Object, ref RefForObject) string {
	return encodeObject(obj, ref)
}

// DecodeObjectInto parses a single `path#refno {...}` block from data and
// assigns its globals onto obj by name, for restore_object(path)'s
// single-object counterpart to EncodeObject. lookup resolves any
// @path#refno object references the block's values contain; a nil lookup
// makes every such reference restore as integer 0.
func DecodeObjectInto(obj *object.Object, data string, lookup ObjectLookup) error {
	blocks, err := splitBlocks(data)
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		return fmt.Errorf("persist: no object block found")
	}
	names := globalNames(obj.Proto)
	slotByName := make(map[string]int, len(names))
	for i, n := range names {
		if n != "" {
			slotByName[n] = i
		}
	}
	for _, assign := range blocks[0].assigns {
		v, _, err := RestoreValue(assign.value, lookup)
		if err != nil {
			return fmt.Errorf("persist: global %s: %w", assign.name, err)
		}
		if slot, ok := slotByName[assign.name]; ok {
			obj.SetGlobal(slot, v)
		}
	}
	return nil
}

func encodeObject(obj *object.Object, ref RefForObject) string {
	names := globalNames(obj.Proto)
	var b strings.Builder
	fmt.Fprintf(&b, "%s#%d {", obj.Proto.Path, obj.Ref.Slot)
	for i, v := range obj.Globals {
		name := fmt.Sprintf("slot%d", i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		fmt.Fprintf(&b, " %s = %s;", name, SaveValue(v, ref))
	}
	b.WriteString(" }\n")
	return b.String()
}

// ProtoLookup resolves a prototype by path during Load, compiling it on
// demand if necessary — supplied by the driver, which owns the compiler.
type ProtoLookup func(path string) (*object.Prototype, error)

// Load restores a snapshot written by Save. It runs in two passes per
// spec.md §4.8: first every object block is parsed enough to allocate a
// clone with zeroed globals (so refnos resolve to handles), then every
// block's globals are parsed for real against an ObjectLookup backed by
// the refno table built in pass one.
func (s *Snapshot) Load(r io.Reader, protos ProtoLookup) error {
	text, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	blocks, err := splitBlocks(string(text))
	if err != nil {
		return err
	}

	type pending struct {
		block
		handle object.Handle
		obj    *object.Object
	}
	refTable := make(map[ObjectRef]object.Handle, len(blocks))
	pendings := make([]pending, 0, len(blocks))

	for _, blk := range blocks {
		proto, err := protos(blk.path)
		if err != nil {
			return fmt.Errorf("persist: loading %s: %w", blk.path, err)
		}
		h, obj := s.Table.Clone(proto)
		refTable[ObjectRef{Path: blk.path, Refno: uint32(blk.refno)}] = h
		pendings = append(pendings, pending{block: blk, handle: h, obj: obj})
	}

	lookup := func(ref ObjectRef) (value.Value, bool) {
		h, ok := refTable[ref]
		if !ok {
			return value.Int(0), false
		}
		return value.Obj(h), true
	}

	for _, p := range pendings {
		names := globalNames(p.obj.Proto)
		slotByName := make(map[string]int, len(names))
		for i, n := range names {
			if n != "" {
				slotByName[n] = i
			}
		}
		for _, assign := range p.assigns {
			v, _, err := RestoreValue(assign.value, lookup)
			if err != nil {
				return fmt.Errorf("persist: %s#%d global %s: %w", p.path, p.refno, assign.name, err)
			}
			if slot, ok := slotByName[assign.name]; ok {
				p.obj.SetGlobal(slot, v)
			}
		}
		p.obj.State = object.StateActive
	}
	return nil
}

type assignment struct{ name, value string }

type block struct {
	path    string
	refno   int64
	assigns []assignment
}

// splitBlocks performs the lightweight structural parse of the snapshot
// text into `path#refno { ... }` blocks, deferring full value parsing to
// Load's second pass.
func splitBlocks(text string) ([]block, error) {
	var blocks []block
	i := 0
	n := len(text)
	for i < n {
		for i < n && (text[i] == ' ' || text[i] == '\n' || text[i] == '\t' || text[i] == '\r') {
			i++
		}
		if i >= n {
			break
		}
		hashIdx := strings.IndexByte(text[i:], '#')
		if hashIdx < 0 {
			return nil, fmt.Errorf("persist: expected path#refno at offset %d", i)
		}
		path := text[i : i+hashIdx]
		i += hashIdx + 1
		start := i
		for i < n && text[i] >= '0' && text[i] <= '9' {
			i++
		}
		refno, err := strconv.ParseInt(text[start:i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("persist: bad refno for %s: %w", path, err)
		}
		for i < n && text[i] != '{' {
			i++
		}
		if i >= n {
			return nil, fmt.Errorf("persist: missing '{' after %s#%d", path, refno)
		}
		i++ // past '{'
		assigns, next, err := parseAssignments(text, i)
		if err != nil {
			return nil, err
		}
		i = next
		blocks = append(blocks, block{path: path, refno: refno, assigns: assigns})
	}
	return blocks, nil
}

// parseAssignments scans `name = <value>;` pairs up to the closing '}',
// tracking bracket depth and string-quote state so that a ';' inside a
// quoted string or a nested array/mapping literal isn't mistaken for an
// assignment terminator.
func parseAssignments(text string, i int) ([]assignment, int, error) {
	var out []assignment
	n := len(text)
outer:
	for {
		for i < n && (text[i] == ' ' || text[i] == '\n' || text[i] == '\t' || text[i] == '\r') {
			i++
		}
		if i < n && text[i] == '}' {
			return out, i + 1, nil
		}
		if i >= n {
			return nil, i, fmt.Errorf("persist: unterminated object block")
		}
		nameStart := i
		for i < n && text[i] != ' ' && text[i] != '=' {
			i++
		}
		name := text[nameStart:i]
		for i < n && text[i] != '=' {
			i++
		}
		if i >= n {
			return nil, i, fmt.Errorf("persist: expected '=' after %q", name)
		}
		i++ // past '='
		for i < n && text[i] == ' ' {
			i++
		}
		valStart := i
		depth := 0
		inStr := false
		for i < n {
			c := text[i]
			if inStr {
				if c == '\\' {
					i += 2
					continue
				}
				if c == '"' {
					inStr = false
				}
				i++
				continue
			}
			switch c {
			case '"':
				inStr = true
			case '(':
				depth++
			case ')':
				depth--
			case ';':
				if depth == 0 {
					out = append(out, assignment{name: name, value: text[valStart:i]})
					i++
					continue outer
				}
			}
			i++
		}
		return nil, i, fmt.Errorf("persist: unterminated value for %q", name)
	}
}
