package mask

import (
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
)

// separator is inserted before the digit at index at, once the buffer has
// grown past it.
type separator struct {
	at  int
	sep string
}

// digitSpec groups a fixed-length digit string with separators, e.g. the tax
// id 2-3-3-4-2 layout or the 5-3 postal code.
type digitSpec struct {
	kind       Kind
	max        int
	separators []separator
}

// TaxID formats a 14 digit company tax id as 12.345.678/0001-95.
func TaxID() Spec {
	return digitSpec{
		kind: KindTaxID,
		max:  14,
		separators: []separator{
			{at: 2, sep: "."},
			{at: 5, sep: "."},
			{at: 8, sep: "/"},
			{at: 12, sep: "-"},
		},
	}
}

// PostalCode formats an 8 digit postal code as 12345-678.
func PostalCode() Spec {
	return digitSpec{
		kind:       KindPostalCode,
		max:        8,
		separators: []separator{{at: 5, sep: "-"}},
	}
}

func (s digitSpec) Kind() Kind { return s.kind }

func (s digitSpec) Apply(raw string) (Result, error) {
	digits := model.Digits(raw)
	if len(digits) > s.max {
		digits = digits[:s.max]
	}
	if digits == "" {
		return Result{}, nil
	}
	return Result{Display: s.group(digits), Canonical: digits}, nil
}

func (s digitSpec) Format(canonical any) string {
	digits := model.Digits(model.StringOf(canonical))
	if len(digits) > s.max {
		digits = digits[:s.max]
	}
	return s.group(digits)
}

func (s digitSpec) group(digits string) string {
	var b strings.Builder
	b.Grow(len(digits) + len(s.separators))
	next := 0
	for idx := 0; idx < len(digits); idx++ {
		if next < len(s.separators) && s.separators[next].at == idx {
			b.WriteString(s.separators[next].sep)
			next++
		}
		b.WriteByte(digits[idx])
	}
	return b.String()
}

type phoneSpec struct{}

// Phone formats 10 or 11 digit phone numbers as (11) 8765-4321 or
// (11) 98765-4321.
func Phone() Spec { return phoneSpec{} }

func (phoneSpec) Kind() Kind { return KindPhone }

func (p phoneSpec) Apply(raw string) (Result, error) {
	digits := model.Digits(raw)
	if len(digits) > 11 {
		digits = digits[:11]
	}
	if digits == "" {
		return Result{}, nil
	}
	return Result{Display: p.group(digits), Canonical: digits}, nil
}

func (p phoneSpec) Format(canonical any) string {
	digits := model.Digits(model.StringOf(canonical))
	if len(digits) > 11 {
		digits = digits[:11]
	}
	return p.group(digits)
}

func (phoneSpec) group(digits string) string {
	switch {
	case digits == "":
		return ""
	case len(digits) <= 2:
		return "(" + digits
	}
	area, rest := digits[:2], digits[2:]
	split := 4
	if len(digits) == 11 {
		split = 5
	}
	if len(rest) <= split {
		return "(" + area + ") " + rest
	}
	return "(" + area + ") " + rest[:split] + "-" + rest[split:]
}
