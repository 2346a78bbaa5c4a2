package efun

import (
	"strconv"
	"strings"

	"github.com/limpingninja/ci2go/internal/value"
)

// Sscanf implements sscanf() (spec.md §6): %s, %d, and %x (with an
// optional "0x" prefix) conversions, '%*x'-style skip (consume input,
// capture nothing), and '%%' for a literal percent. Every other format
// byte must match the input literally or the scan stops there. It
// returns the number of values successfully captured and those values,
// in order, for the caller to write through sscanf's trailing l-value
// arguments.
func Sscanf(input, format string) (int, []value.Value) {
	var out []value.Value
	ii, fi := 0, 0
	in, ft := len(input), len(format)

	for fi < ft {
		fc := format[fi]
		if fc != '%' {
			if ii < in && input[ii] == fc {
				ii++
				fi++
				continue
			}
			break
		}
		fi++
		if fi >= ft {
			break
		}
		if format[fi] == '%' {
			if ii < in && input[ii] == '%' {
				ii++
			}
			fi++
			continue
		}
		skip := false
		if format[fi] == '*' {
			skip = true
			fi++
			if fi >= ft {
				break
			}
		}
		verb := format[fi]
		fi++

		// The literal text immediately following this conversion in the
		// format string, if any, bounds a greedy %s capture.
		var stopAt string
		if fi < ft && format[fi] != '%' {
			stopAt = string(format[fi])
		}

		switch verb {
		case 's':
			start := ii
			if stopAt != "" {
				idx := strings.IndexByte(input[ii:], stopAt[0])
				if idx < 0 {
					ii = in
				} else {
					ii += idx
				}
			} else {
				ii = in
			}
			if !skip {
				out = append(out, value.Str(input[start:ii]))
			}
		case 'd':
			start := ii
			if ii < in && (input[ii] == '-' || input[ii] == '+') {
				ii++
			}
			for ii < in && input[ii] >= '0' && input[ii] <= '9' {
				ii++
			}
			if ii == start {
				return len(out), out
			}
			if !skip {
				n, _ := strconv.ParseInt(input[start:ii], 10, 64)
				out = append(out, value.Int(n))
			}
		case 'x':
			if ii+1 < in && input[ii] == '0' && (input[ii+1] == 'x' || input[ii+1] == 'X') {
				ii += 2
			}
			hexStart := ii
			for ii < in && isHexDigit(input[ii]) {
				ii++
			}
			if ii == hexStart {
				return len(out), out
			}
			if !skip {
				n, _ := strconv.ParseInt(input[hexStart:ii], 16, 64)
				out = append(out, value.Int(n))
			}
		default:
			return len(out), out
		}
	}
	return len(out), out
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
