package timer

import "fmt"

// EncodeHHMMSS formats whole seconds as zero-padded HHMMSS.
// Durations of 100 hours or more get extra hour digits.
func EncodeHHMMSS(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d%02d%02d", h, m, s)
}

// DecodeHHMMSS parses exactly six digits into seconds. Only the shape is
// validated: "009999" is 99 minutes and 99 seconds.
func DecodeHHMMSS(value string) (int, error) {
	if len(value) != 6 {
		return 0, fmt.Errorf("%w: %q is not 6 digits", ErrMalformedTimeValue, value)
	}

	var fields [3]int
	for i := 0; i < 6; i++ {
		c := value[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q contains non-digit %q", ErrMalformedTimeValue, value, c)
		}
		fields[i/2] = fields[i/2]*10 + int(c-'0')
	}

	return fields[0]*3600 + fields[1]*60 + fields[2], nil
}
