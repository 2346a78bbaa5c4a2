package efun

import (
	"strconv"
	"strings"

	"github.com/limpingninja/ci2go/internal/value"
	"github.com/limpingninja/ci2go/internal/vm"
)

func (s *Suite) registerStrings(t map[string]vm.EfunFunc) {
	t["strlen"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		return value.Int(int64(len(argStr(args, 0)))), nil
	}

	t["leftstr"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		str := argStr(args, 0)
		n := int(argInt(args, 1))
		if n < 0 {
			n = 0
		}
		if n > len(str) {
			n = len(str)
		}
		return value.Str(str[:n]), nil
	}

	t["rightstr"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		str := argStr(args, 0)
		n := int(argInt(args, 1))
		if n < 0 {
			n = 0
		}
		if n > len(str) {
			n = len(str)
		}
		return value.Str(str[len(str)-n:]), nil
	}

	t["midstr"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		str := argStr(args, 0)
		start := int(argInt(args, 1))
		if start < 0 {
			start = 0
		}
		if start > len(str) {
			return value.Str(""), nil
		}
		length := len(str) - start
		if len(args) > 2 {
			length = int(argInt(args, 2))
		}
		if length < 0 {
			length = 0
		}
		end := start + length
		if end > len(str) {
			end = len(str)
		}
		return value.Str(str[start:end]), nil
	}

	// subst replaces only the first occurrence of find with replace,
	// complementing replace_string's replace-all (this distinguishes the
	// two otherwise-synonymous-sounding efuns spec.md §6 lists side by
	// side).
	t["subst"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		str, find, repl := argStr(args, 0), argStr(args, 1), argStr(args, 2)
		idx := strings.Index(str, find)
		if idx < 0 || find == "" {
			return value.Str(str), nil
		}
		return value.Str(str[:idx] + repl + str[idx+len(find):]), nil
	}

	t["replace_string"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		str, find, repl := argStr(args, 0), argStr(args, 1), argStr(args, 2)
		if find == "" {
			return value.Str(str), nil
		}
		return value.Str(strings.ReplaceAll(str, find, repl)), nil
	}

	// instr returns the 0-based index of sub within str starting the
	// search at start (default 0), or -1 if not found — the original
	// driver's sentinel-return convention (matching vfs.FileSize's -1/-2
	// choices elsewhere in this codebase) rather than a found/not-found
	// boolean out-parameter.
	t["instr"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		str, sub := argStr(args, 0), argStr(args, 1)
		start := int(argInt(args, 2))
		if start < 0 {
			start = 0
		}
		if start > len(str) {
			return value.Int(-1), nil
		}
		idx := strings.Index(str[start:], sub)
		if idx < 0 {
			return value.Int(-1), nil
		}
		return value.Int(int64(idx + start)), nil
	}

	t["upcase"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		return value.Str(strings.ToUpper(argStr(args, 0))), nil
	}
	t["downcase"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		return value.Str(strings.ToLower(argStr(args, 0))), nil
	}

	t["atoi"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		str := strings.TrimSpace(argStr(args, 0))
		n, _ := strconv.ParseInt(leadingInt(str), 10, 64)
		return value.Int(n), nil
	}
	t["itoa"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		return value.Str(strconv.FormatInt(argInt(args, 0), 10)), nil
	}

	t["otoa"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		h, ok := arg(args, 0).AsObject()
		if !ok {
			return value.Str("0"), nil
		}
		obj, ok := ip.Objects.Get(h)
		if !ok {
			return value.Str("0"), nil
		}
		return value.Str(obj.Proto.Path + "#" + strconv.FormatUint(uint64(h.Slot), 10)), nil
	}
	t["atoo"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		str := argStr(args, 0)
		hashIdx := strings.IndexByte(str, '#')
		if hashIdx < 0 {
			return value.Int(0), nil
		}
		path := str[:hashIdx]
		refno, err := strconv.ParseUint(str[hashIdx+1:], 10, 32)
		if err != nil {
			return value.Int(0), nil
		}
		for _, h := range ip.Objects.Handles() {
			if h.Slot == uint32(refno) {
				if candidate, ok := ip.Objects.Get(h); ok && candidate.Proto.Path == path {
					return value.Obj(h), nil
				}
			}
		}
		return value.Int(0), nil
	}

	t["sprintf"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Str(""), nil
		}
		return value.Str(Sprintf(argStr(args, 0), args[1:])), nil
	}
	t["sscanf"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		if len(args) < 2 {
			return value.Int(0), nil
		}
		n, results := Sscanf(argStr(args, 0), argStr(args, 1))
		for i, res := range results {
			lvIdx := 2 + i
			if lvIdx >= len(args) {
				break
			}
			writeLValue(fr, args[lvIdx], res)
		}
		return value.Int(int64(n)), nil
	}

	t["crypt"] = func(ip *vm.Interp, fr *vm.Frame, args []value.Value) (value.Value, error) {
		if s.Password == nil {
			return value.Str(""), nil
		}
		plain := argStr(args, 0)
		if len(args) > 1 && argStr(args, 1) != "" {
			hash := argStr(args, 1)
			if s.Password.Verify(plain, hash) {
				return value.Str(hash), nil
			}
			return value.Int(0), nil
		}
		hashed, err := s.Password.Hash(plain)
		if err != nil {
			return value.Str(""), nil
		}
		return value.Str(hashed), nil
	}
}

func leadingInt(s string) string {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return "0"
	}
	if s[0] == '-' {
		return "-" + s[start:i]
	}
	return s[start:i]
}

// writeLValue stores v through an l-value Value popped onto the script
// side of an sscanf call. Array/mapping-cell l-values are written
// directly; local/global l-values require the VM's own slot access and
// are resolved by the vm package's assignment opcode instead — sscanf's
// "%s"/"%d" targets are ordinarily plain array-cell or mapping-entry
// l-values built by the compiler for this purpose (`sscanf(s,fmt,&x)`
// style addressing), which is all this helper needs to support directly.
func writeLValue(fr *vm.Frame, lv, v value.Value) {
	l, ok := lv.AsLValue()
	if !ok {
		return
	}
	if l.Arr != nil {
		key := l.Key.AsInt()
		l.Arr.Set(int(key), v)
	} else if l.Map != nil {
		l.Map.Set(l.Key, v)
	}
}
