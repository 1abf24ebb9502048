package numutil

import "strconv"

// Int64WithCommas returns a string representation of an integer with
// commas as thousands separators.
//
// Example:
//
//	12345 -> "12,345"
func Int64WithCommas(n int64) string {
	if n < 0 {
		return "-" + Int64WithCommas(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	out := make([]byte, 0, len(s)+len(s)/3)
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	out = append(out, s[:lead]...)
	for i := lead; i < len(s); i += 3 {
		out = append(out, ',')
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}

// IntWithCommas is Int64WithCommas for plain ints.
func IntWithCommas(i int) string {
	return Int64WithCommas(int64(i))
}
