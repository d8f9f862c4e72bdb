package mask

import (
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
)

// maxCurrencyDigits keeps the cents accumulator inside int64 and float64
// integer precision.
const maxCurrencyDigits = 15

type currencySpec struct{}

// Currency treats every keystroke buffer as a stream of digits in the minor
// unit. The whole buffer is re-parsed on each keystroke and divided by 100,
// so partial input always yields a valid amount. Display uses "." for
// thousands and "," for decimals.
func Currency() Spec { return currencySpec{} }

func (currencySpec) Kind() Kind { return KindCurrency }

func (currencySpec) Apply(raw string) (Result, error) {
	all := model.Digits(raw)
	if all == "" {
		return Result{}, nil
	}
	digits := strings.TrimLeft(all, "0")
	if len(digits) > maxCurrencyDigits {
		digits = digits[:maxCurrencyDigits]
	}
	var cents int64
	if digits != "" {
		parsed, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return Result{}, nil
		}
		cents = parsed
	}
	return Result{
		Display:   formatCents(cents),
		Canonical: float64(cents) / 100,
	}, nil
}

func (currencySpec) Format(canonical any) string {
	amount, ok := model.NumberOf(canonical)
	if !ok {
		return ""
	}
	return formatCents(int64(math.Round(amount * 100)))
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	frac := cents % 100

	var b strings.Builder
	b.WriteString(sign)
	lead := len(whole) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(whole[:lead])
	for idx := lead; idx < len(whole); idx += 3 {
		b.WriteByte('.')
		b.WriteString(whole[idx : idx+3])
	}
	b.WriteByte(',')
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(frac, 10))
	return b.String()
}
