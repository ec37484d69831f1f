package ui

import (
	"slices"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
)

// DisplayDateLayout is the short regional date form, e.g. "Jan 5, 2024".
const DisplayDateLayout = "Jan 2, 2006"

// Formatter renders amounts and dates for display. Values are never modified.
type Formatter struct {
	symbol  string
	decimal string
	group   string
	// primary is the size of the rightmost digit group, secondary of the
	// groups left of it (3 and 2 in en-IN). Zero disables grouping.
	primary   int
	secondary int
}

// groupingSample is formatted once per locale to learn its separators.
const groupingSample = 1234567.5

// NewFormatter builds a formatter for a BCP 47 locale such as "en-IN".
// An unparsable locale falls back to English.
func NewFormatter(locale, symbol string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	f := &Formatter{symbol: symbol, decimal: "."}
	sample := message.NewPrinter(tag).Sprint(number.Decimal(groupingSample, number.Scale(1)))
	f.learnSeparators(sample)
	return f
}

// learnSeparators reads the decimal and group separators and the group sizes
// from the locale rendering of groupingSample.
func (f *Formatter) learnSeparators(sample string) {
	var (
		runs []int
		seps []string
		run  int
	)
	for _, r := range sample {
		if unicode.IsDigit(r) {
			run++
			continue
		}
		runs = append(runs, run)
		seps = append(seps, string(r))
		run = 0
	}
	if len(seps) == 0 {
		return
	}
	// The last separator precedes the single fraction digit.
	f.decimal = seps[len(seps)-1]
	runs, seps = runs[1:], seps[:len(seps)-1]
	if len(seps) == 0 {
		return
	}
	f.group = seps[0]
	f.primary = runs[len(runs)-1]
	f.secondary = f.primary
	if len(runs) >= 2 {
		f.secondary = runs[len(runs)-2]
	}
}

// Currency formats an amount with two decimals and locale grouping. Digits
// come from the decimal itself, so no precision is lost.
func (f *Formatter) Currency(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	whole, frac, _ := strings.Cut(d.StringFixed(2), ".")
	if frac == "" {
		frac = "00"
	}
	return sign + f.symbol + f.groupDigits(whole) + f.decimal + frac
}

func (f *Formatter) groupDigits(whole string) string {
	if f.primary <= 0 || len(whole) <= f.primary {
		return whole
	}
	var parts []string
	end := len(whole)
	size := f.primary
	for end > size {
		parts = append(parts, whole[end-size:end])
		end -= size
		size = f.secondary
	}
	parts = append(parts, whole[:end])
	slices.Reverse(parts)
	return strings.Join(parts, f.group)
}

func (f *Formatter) Date(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DisplayDateLayout)
}
