// Package persist implements spec.md §4.8 (snapshot save/restore) and the
// `save_value`/`restore_value` grammar of §6: quoted strings with escapes,
// decimal integers, `({...})` arrays, `([k:v,...])` mappings, and object
// references as `@path#refno` tokens resolved against the live object
// table in a second pass, exactly as §8's "save/restore idempotence"
// property requires.
package persist

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/limpingninja/ci2go/internal/value"
)

// ObjectRef is what SaveValue needs to serialize a Value of kind Object:
// the clone's prototype path and its arena slot, which together uniquely
// identify it within one snapshot (the generation is not persisted — a
// restored object gets a fresh generation anyway).
type ObjectRef struct {
	Path  string
	Refno uint32
}

// ObjectLookup resolves an ObjectRef back to a value.Value during
// restore. The snapshot loader supplies one backed by the refno table it
// built in its first pass (spec.md §4.8 "wires up object references in a
// second pass after all objects exist").
type ObjectLookup func(ref ObjectRef) (value.Value, bool)

// RefForObject resolves a live Value of kind Object into the ObjectRef
// SaveValue should emit for it. Supplied by the caller (the snapshot
// writer) since only it has the path-lookup table.
type RefForObject func(v value.Value) (ObjectRef, bool)

// SaveValue renders v in the grammar spec.md §6 "Persisted state layout"
// describes. objRef may be nil if the value is known not to contain object
// references (e.g. most script-level save_value(v) calls); encountering an
// object value with a nil objRef renders it as integer 0, matching the
// "unresolvable reference reads as 0" convention used throughout.
func SaveValue(v value.Value, objRef RefForObject) string {
	var b strings.Builder
	writeValue(&b, v, objRef)
	return b.String()
}

func writeValue(b *strings.Builder, v value.Value, objRef RefForObject) {
	switch v.Kind {
	case value.String:
		b.WriteByte('"')
		for _, r := range v.AsString() {
			switch r {
			case '\\':
				b.WriteString(`\\`)
			case '"':
				b.WriteString(`\"`)
			case '\n':
				b.WriteString(`\n`)
			case '\t':
				b.WriteString(`\t`)
			case '\r':
				b.WriteString(`\r`)
			default:
				b.WriteRune(r)
			}
		}
		b.WriteByte('"')

	case value.Array:
		arr, _ := v.AsArray()
		b.WriteString("({")
		for i, item := range arr.Items() {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, item, objRef)
		}
		b.WriteString("})")

	case value.Mapping:
		mp, _ := v.AsMapping()
		keys, vals := mp.KeysValues()
		b.WriteString("([")
		for i := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, keys[i], objRef)
			b.WriteByte(':')
			writeValue(b, vals[i], objRef)
		}
		b.WriteString("])")

	case value.Object:
		if objRef != nil {
			if ref, ok := objRef(v); ok {
				fmt.Fprintf(b, "@%s#%d", ref.Path, ref.Refno)
				return
			}
		}
		b.WriteByte('0')

	default:
		fmt.Fprintf(b, "%d", v.AsInt())
	}
}

// RestoreValue parses one value from the front of s per the SaveValue
// grammar, returning the value and the unconsumed remainder of s.
func RestoreValue(s string, lookup ObjectLookup) (value.Value, string, error) {
	s = skipSpace(s)
	if s == "" {
		return value.Int(0), s, fmt.Errorf("persist: unexpected end of input")
	}

	switch {
	case s[0] == '"':
		return parseString(s)
	case strings.HasPrefix(s, "({"):
		return parseArray(s, lookup)
	case strings.HasPrefix(s, "(["):
		return parseMapping(s, lookup)
	case s[0] == '@':
		return parseObjectRef(s, lookup)
	case s[0] == '-' || (s[0] >= '0' && s[0] <= '9'):
		return parseInt(s)
	default:
		return value.Int(0), s, fmt.Errorf("persist: unrecognized value syntax at %q", preview(s))
	}
}

func skipSpace(s string) string {
	return strings.TrimLeft(s, " \t\n\r")
}

func preview(s string) string {
	if len(s) > 20 {
		return s[:20] + "..."
	}
	return s
}

func parseInt(s string) (value.Value, string, error) {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return value.Int(0), s, fmt.Errorf("persist: bad integer literal %q: %w", s[:i], err)
	}
	return value.Int(n), s[i:], nil
}

func parseString(s string) (value.Value, string, error) {
	if s[0] != '"' {
		return value.Int(0), s, fmt.Errorf("persist: expected opening quote")
	}
	var b strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		if c == '"' {
			return value.Str(b.String()), s[i+1:], nil
		}
		if c == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[i+1])
			}
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
	}
	return value.Int(0), s, fmt.Errorf("persist: unterminated string literal")
}

func parseArray(s string, lookup ObjectLookup) (value.Value, string, error) {
	rest := s[2:] // past "({"
	arr := value.NewArray(0, value.Unlimited)
	idx := 0
	rest = skipSpace(rest)
	if strings.HasPrefix(rest, "})") {
		return value.ArrVal(arr), rest[2:], nil
	}
	for {
		var v value.Value
		var err error
		v, rest, err = RestoreValue(rest, lookup)
		if err != nil {
			return value.Int(0), rest, err
		}
		arr.Set(idx, v)
		idx++
		rest = skipSpace(rest)
		if strings.HasPrefix(rest, "})") {
			return value.ArrVal(arr), rest[2:], nil
		}
		if !strings.HasPrefix(rest, ",") {
			return value.Int(0), rest, fmt.Errorf("persist: expected ',' or '})' in array at %q", preview(rest))
		}
		rest = skipSpace(rest[1:])
	}
}

func parseMapping(s string, lookup ObjectLookup) (value.Value, string, error) {
	rest := s[2:] // past "(["
	mp := value.NewMapping()
	rest = skipSpace(rest)
	if strings.HasPrefix(rest, "])") {
		return value.MapValOf(mp), rest[2:], nil
	}
	for {
		var k, v value.Value
		var err error
		k, rest, err = RestoreValue(rest, lookup)
		if err != nil {
			return value.Int(0), rest, err
		}
		rest = skipSpace(rest)
		if !strings.HasPrefix(rest, ":") {
			return value.Int(0), rest, fmt.Errorf("persist: expected ':' in mapping entry at %q", preview(rest))
		}
		v, rest, err = RestoreValue(skipSpace(rest[1:]), lookup)
		if err != nil {
			return value.Int(0), rest, err
		}
		mp.Set(k, v)
		rest = skipSpace(rest)
		if strings.HasPrefix(rest, "])") {
			return value.MapValOf(mp), rest[2:], nil
		}
		if !strings.HasPrefix(rest, ",") {
			return value.Int(0), rest, fmt.Errorf("persist: expected ',' or '])' in mapping at %q", preview(rest))
		}
		rest = skipSpace(rest[1:])
	}
}

func parseObjectRef(s string, lookup ObjectLookup) (value.Value, string, error) {
	i := 1
	for i < len(s) && s[i] != '#' {
		i++
	}
	if i >= len(s) {
		return value.Int(0), s, fmt.Errorf("persist: malformed object reference %q", preview(s))
	}
	path := s[1:i]
	j := i + 1
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	refno, err := strconv.ParseUint(s[i+1:j], 10, 32)
	if err != nil {
		return value.Int(0), s, fmt.Errorf("persist: malformed object refno in %q: %w", preview(s), err)
	}
	rest := s[j:]
	if lookup == nil {
		return value.Int(0), rest, nil
	}
	v, ok := lookup(ObjectRef{Path: path, Refno: uint32(refno)})
	if !ok {
		// Spec.md §3 invariant: a reference to a non-existent object
		// coerces to integer 0 rather than failing the whole restore.
		return value.Int(0), rest, nil
	}
	return v, rest, nil
}
