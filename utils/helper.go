package utils

import (
	"errors"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
	"github.com/xuri/excelize/v2"
)

var CountryCode = "KR"

// RunTimestampLayout is the timestamp used in generated file names.
const RunTimestampLayout = "20060102_150405"

var barcodePattern = regexp.MustCompile(`^R\d+$`)

// NormalizePhoneNumber formats a contact number in national format (010-1234-5678).
// The raw value is returned when it cannot be parsed.
func NormalizePhoneNumber(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	p, err := libphonenumber.Parse(raw, CountryCode)
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return raw
	}
	return libphonenumber.Format(p, libphonenumber.NATIONAL)
}

func RunTimestamp(t time.Time) string {
	return t.Format(RunTimestampLayout)
}

// GenerateTrackingNumber returns a random decimal string of the given length; the first digit is never 0.
func GenerateTrackingNumber(digits int) string {
	if digits < 1 {
		digits = 1
	}
	var b strings.Builder
	b.Grow(digits)
	b.WriteByte(byte('1' + rand.Intn(9)))
	for i := 1; i < digits; i++ {
		b.WriteByte(byte('0' + rand.Intn(10)))
	}
	return b.String()
}

// NormalizeBarcode is the comparison form of a barcode: trimmed and upper-cased.
func NormalizeBarcode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsCanonicalBarcode reports whether s looks like a sellable-unit barcode (R + digits).
func IsCanonicalBarcode(s string) bool {
	return barcodePattern.MatchString(NormalizeBarcode(s))
}

// StripSpaces removes every whitespace rune, used for label matching.
func StripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// CellAt returns the trimmed cell of a ragged excelize row, or "" when out of range.
func CellAt(rows [][]string, r, c int) string {
	if r < 0 || r >= len(rows) || c < 0 || c >= len(rows[r]) {
		return ""
	}
	return strings.TrimSpace(rows[r][c])
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			// if not exists in map, append it, otherwise do nothing
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	// Remove any whitespace, thousands separators and check for empty strings
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}

	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}

	return dec, nil
}

// ParseQuantity coerces a spreadsheet cell to a non-negative integer quantity.
// Fractions are floored; anything unparsable is 0.
func ParseQuantity(value string) int {
	dec, err := ParseDecimal(value)
	if err != nil || dec.IsNegative() {
		return 0
	}
	return int(dec.Floor().IntPart())
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"2006/01/02 15:04",
	"2006.01.02",
	"2006.01.02 15:04",
	"2006. 1. 2",
	"20060102",
	"2006년 01월 02일",
	"2006년 1월 2일",
}

// ParseDate reads the date cells found in marketplace templates, including Excel
// serial numbers. Unparsable values give nil.
func ParseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			d := truncateDay(t)
			return &d
		}
	}
	// trailing weekday or time annotations, e.g. "2024-05-20 (월)"
	if len(value) > 10 {
		if t, err := time.ParseInLocation("2006-01-02", value[:10], time.Local); err == nil {
			d := truncateDay(t)
			return &d
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 && serial < 2958466 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
			return &d
		}
	}
	return nil
}

// FormatDate renders a nullable date as YYYY-MM-DD, "" for nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}
