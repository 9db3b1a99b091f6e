// Package pi supplies decimal digits of π and fixed-length segments of them.
package pi

import (
	_ "embed"
	"os"
	"strings"

	"github.com/samber/oops"
)

//go:embed pi_digits.txt
var embedded string

// DefaultSegment is the segment a fresh world starts from.
const DefaultSegment = "3141592653"

// Digits is an immutable string of decimal digits.
type Digits struct {
	s string
}

// Parse keeps only the ASCII digits of s.
func Parse(s string) Digits {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return Digits{s: b.String()}
}

// Load reads a digits file, dropping whitespace, the decimal point and any
// other non-digit byte.
func Load(path string) (Digits, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Digits{}, oops.In("pi").With("path", path).Wrapf(err, "read digits")
	}
	d := Parse(string(raw))
	if d.Len() == 0 {
		return Digits{}, oops.In("pi").With("path", path).Errorf("no digits in file")
	}
	return d, nil
}

// Default returns the embedded leading digits of π.
func Default() Digits {
	return Parse(embedded)
}

func (d Digits) Len() int       { return len(d.s) }
func (d Digits) String() string { return d.s }

// Segment returns digits [start, start+length), clamped to what is available.
func (d Digits) Segment(start, length int) string {
	if start < 0 || length <= 0 || start >= len(d.s) {
		return ""
	}
	end := len(d.s)
	if length < end-start {
		end = start + length
	}
	return d.s[start:end]
}

// DigitAt returns the numeric value of the i-th byte of seg, or 0 if i is out
// of range or the byte is not a digit.
func DigitAt(seg string, i int) int {
	if i < 0 || i >= len(seg) {
		return 0
	}
	c := seg[i]
	if c < '0' || c > '9' {
		return 0
	}
	return int(c - '0')
}
