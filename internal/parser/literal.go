package parser

import (
	"fmt"
	"strconv"
	"time"
)

// Date is a calendar date without time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the date of t in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return NewDate(t), nil
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Datetime layouts accepted for unquoted values, tried in order. Layouts
// without a zone are read as UTC.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// classifyWord turns an unquoted word into a typed literal.
func classifyWord(word string) (Literal, error) {
	switch word {
	case "true":
		return Literal{Kind: KindBoolean, Value: true}, nil
	case "false":
		return Literal{Kind: KindBoolean, Value: false}, nil
	}

	switch {
	case isInteger(word):
		n, err := strconv.ParseInt(word, 10, 64)
		if err != nil {
			return Literal{}, fmt.Errorf("integer %s out of range", word)
		}
		return Literal{Kind: KindInteger, Value: n}, nil
	case isDecimal(word):
		f, err := strconv.ParseFloat(word, 64)
		if err != nil {
			return Literal{}, fmt.Errorf("invalid number %s", word)
		}
		return Literal{Kind: KindFloat, Value: f}, nil
	case looksLikeDate(word):
		d, err := ParseDate(word)
		if err != nil {
			return Literal{}, fmt.Errorf("invalid date %s", word)
		}
		return Literal{Kind: KindDate, Value: d}, nil
	case looksLikeDatetime(word):
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, word); err == nil {
				return Literal{Kind: KindDateTime, Value: t}, nil
			}
		}
		return Literal{}, fmt.Errorf("invalid datetime %s", word)
	}

	return Literal{Kind: KindString, Value: word}, nil
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func digits(s string) int {
	n := 0
	for n < len(s) && isDigit(s[n]) {
		n++
	}
	return n
}

func stripSign(s string) string {
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		return s[1:]
	}
	return s
}

func isInteger(s string) bool {
	s = stripSign(s)
	return len(s) > 0 && digits(s) == len(s)
}

func isDecimal(s string) bool {
	s = stripSign(s)
	n := digits(s)
	if n == 0 || n >= len(s) || s[n] != '.' {
		return false
	}
	rest := s[n+1:]
	return len(rest) > 0 && digits(rest) == len(rest)
}

// looksLikeDate matches dddd-dd-dd.
func looksLikeDate(s string) bool {
	return len(s) == 10 && datePrefix(s)
}

// looksLikeDatetime matches dddd-dd-ddTdd:dd followed by anything.
func looksLikeDatetime(s string) bool {
	if len(s) < 16 || !datePrefix(s) || s[10] != 'T' {
		return false
	}
	return isDigit(s[11]) && isDigit(s[12]) && s[13] == ':' && isDigit(s[14]) && isDigit(s[15])
}

func datePrefix(s string) bool {
	return digits(s[:4]) == 4 && s[4] == '-' && digits(s[5:7]) == 2 && s[7] == '-' && digits(s[8:10]) == 2
}
