// Package money parses and formats yen amounts.
package money

import (
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/width"
)

var (
	ErrNotNumeric  = errors.New("amount is not a number")
	ErrNotPositive = errors.New("amount must be positive")
)

// stripped are the currency marks and separators users type around amounts.
var stripped = strings.NewReplacer(
	"¥", "",
	"円", "",
	",", "",
	" ", "",
	"\t", "",
)

// Normalize folds full-width digits and punctuation to ASCII and drops
// currency marks, thousands separators and spaces.
func Normalize(input string) string {
	// width.Narrow maps ￥ to ¥ and ， to , before stripping.
	return stripped.Replace(width.Narrow.String(strings.TrimSpace(input)))
}

// Parse reads a positive integer amount from free-form chat input such as
// "１，２００円" or "¥1,200".
func Parse(input string) (int64, error) {
	s := Normalize(input)
	if s == "" {
		return 0, ErrNotNumeric
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrNotNumeric
	}
	if v <= 0 {
		return 0, ErrNotPositive
	}
	return v, nil
}

var printer = message.NewPrinter(language.Japanese)

// Format renders an amount with thousands separators, e.g. "1,200円".
func Format(amount int64) string {
	return printer.Sprintf("%d円", amount)
}
