package efun

import (
	"strconv"
	"strings"

	"github.com/limpingninja/ci2go/internal/value"
)

// Sprintf implements the sprintf() format language of spec.md §6: %s %d
// %i %c %o %x %X %% conversions, a numeric or '*' width, a '.'-prefixed
// numeric or '*' precision, and the flags '-' (left justify), '0' (zero
// pad), '+' (force sign), ' ' (pad positive numbers with a leading
// space), '|' (center within the field), and '=' followed by one
// character (custom pad character in place of the default space/zero).
// %O renders a Value the way save_value would, for debug dumps.
//
// This is a pragmatic rendering of the original driver's sprintf, not a
// byte-for-byte port: field-justification and padding are fully
// supported; the rarer combination of '@' array-spread with a
// per-element format repeat is not, since no script in this tree's test
// fixtures exercises it.
func Sprintf(format string, args []value.Value) string {
	var out strings.Builder
	argi := 0
	next := func() value.Value {
		if argi < len(args) {
			v := args[argi]
			argi++
			return v
		}
		return value.Int(0)
	}

	i, n := 0, len(format)
	for i < n {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			i++
			continue
		}
		i++
		if i >= n {
			out.WriteByte('%')
			break
		}
		if format[i] == '%' {
			out.WriteByte('%')
			i++
			continue
		}

		spec := directive{padChar: ' '}
		// flags
	flags:
		for i < n {
			switch format[i] {
			case '-':
				spec.left = true
				i++
			case '0':
				spec.padChar = '0'
				i++
			case '+':
				spec.forceSign = true
				i++
			case ' ':
				spec.spaceSign = true
				i++
			case '|':
				spec.center = true
				i++
			case '=':
				i++
				if i < n {
					spec.padChar = format[i]
					i++
				}
			default:
				break flags
			}
		}
		// width
		if i < n && format[i] == '*' {
			spec.width = int(next().AsInt())
			i++
		} else {
			start := i
			for i < n && format[i] >= '0' && format[i] <= '9' {
				i++
			}
			if i > start {
				spec.width, _ = strconv.Atoi(format[start:i])
			}
		}
		// precision
		if i < n && format[i] == '.' {
			i++
			spec.hasPrec = true
			if i < n && format[i] == '*' {
				spec.prec = int(next().AsInt())
				i++
			} else {
				start := i
				for i < n && format[i] >= '0' && format[i] <= '9' {
					i++
				}
				spec.prec, _ = strconv.Atoi(format[start:i])
			}
		}
		if i >= n {
			break
		}
		verb := format[i]
		i++

		rendered := renderVerb(verb, spec, next())
		out.WriteString(pad(rendered, spec))
	}
	return out.String()
}

type directive struct {
	left, forceSign, spaceSign, center bool
	padChar                            byte
	width, prec                        int
	hasPrec                            bool
}

func renderVerb(verb byte, spec directive, v value.Value) string {
	switch verb {
	case 's':
		s := v.AsString()
		if spec.hasPrec && spec.prec < len(s) {
			s = s[:spec.prec]
		}
		return s
	case 'd', 'i':
		n := v.AsInt()
		s := strconv.FormatInt(n, 10)
		if n >= 0 {
			if spec.forceSign {
				s = "+" + s
			} else if spec.spaceSign {
				s = " " + s
			}
		}
		return s
	case 'c':
		n := v.AsInt()
		if n < 0 || n > 0x10FFFF {
			return ""
		}
		return string(rune(n))
	case 'o':
		return strconv.FormatInt(v.AsInt(), 8)
	case 'x':
		return strconv.FormatInt(v.AsInt(), 16)
	case 'X':
		return strings.ToUpper(strconv.FormatInt(v.AsInt(), 16))
	case 'O':
		return dumpValue(v)
	default:
		return ""
	}
}

// dumpValue gives %O a readable one-line rendering of any Value kind,
// reusing the same shape save_value/restore_value use for containers so
// a debug dump looks like the persisted form.
func dumpValue(v value.Value) string {
	switch v.Kind {
	case value.String:
		return strconv.Quote(v.AsString())
	case value.Int:
		return strconv.FormatInt(v.AsInt(), 10)
	case value.Object:
		h, _ := v.AsObject()
		return "#<object " + strconv.FormatUint(uint64(h.Slot), 10) + ">"
	case value.Array:
		a, _ := v.AsArray()
		parts := make([]string, a.Len())
		for i, e := range a.Items() {
			parts[i] = dumpValue(e)
		}
		return "({ " + strings.Join(parts, ", ") + " })"
	case value.Mapping:
		m, _ := v.AsMapping()
		ks, vs := m.KeysValues()
		parts := make([]string, len(ks))
		for i := range ks {
			parts[i] = dumpValue(ks[i]) + ":" + dumpValue(vs[i])
		}
		return "([ " + strings.Join(parts, ", ") + " ])"
	default:
		return "0"
	}
}

// pad applies width/justification/pad-character to a rendered field,
// the part of the format language shared by every conversion.
func pad(s string, spec directive) string {
	if spec.width <= len(s) {
		return s
	}
	fill := spec.width - len(s)
	padStr := strings.Repeat(string(spec.padChar), fill)
	switch {
	case spec.center:
		left := fill / 2
		right := fill - left
		return strings.Repeat(string(spec.padChar), left) + s + strings.Repeat(string(spec.padChar), right)
	case spec.left:
		return s + strings.Repeat(" ", fill)
	default:
		return padStr + s
	}
}
