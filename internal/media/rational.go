package media

import (
	"fmt"
	"strconv"
	"strings"
)

// Rational is an exact frame rate such as 30000/1001.
type Rational struct {
	Num uint32
	Den uint32
}

// NewRational returns num/den reduced to lowest terms.
func NewRational(num, den uint32) (Rational, error) {
	if den == 0 {
		return Rational{}, fmt.Errorf("zero denominator")
	}
	g := gcd(num, den)
	if g == 0 {
		g = 1
	}
	return Rational{Num: num / g, Den: den / g}, nil
}

// ParseRational accepts "30", "30000/1001" and decimal "29.970".
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rational{}, fmt.Errorf("empty rational")
	}

	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseUint(num, 10, 32)
		if err != nil {
			return Rational{}, fmt.Errorf("rational numerator %q: %w", num, err)
		}
		d, err := strconv.ParseUint(den, 10, 32)
		if err != nil {
			return Rational{}, fmt.Errorf("rational denominator %q: %w", den, err)
		}
		return NewRational(uint32(n), uint32(d))
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	frac = strings.TrimRight(frac, "0")
	if len(frac) > 6 {
		frac = frac[:6]
	}
	den := uint64(1)
	for range frac {
		den *= 10
	}
	w, err := strconv.ParseUint(whole, 10, 32)
	if err != nil {
		return Rational{}, fmt.Errorf("rational %q: %w", s, err)
	}
	var f uint64
	if frac != "" {
		if f, err = strconv.ParseUint(frac, 10, 32); err != nil {
			return Rational{}, fmt.Errorf("rational %q: %w", s, err)
		}
	}
	num := w*den + f
	if num > 1<<32-1 {
		return Rational{}, fmt.Errorf("rational %q out of range", s)
	}
	return NewRational(uint32(num), uint32(den))
}

// IsZero reports whether r is the zero value or 0/n.
func (r Rational) IsZero() bool {
	return r.Num == 0 || r.Den == 0
}

// Float64 returns r as a float, 0 for the zero value.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Round returns r rounded to the nearest integer frame rate.
func (r Rational) Round() uint32 {
	if r.Den == 0 {
		return 0
	}
	return (r.Num + r.Den/2) / r.Den
}

func (r Rational) String() string {
	if r.Den == 1 {
		return strconv.FormatUint(uint64(r.Num), 10)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

func gcd(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
