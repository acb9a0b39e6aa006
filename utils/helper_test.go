package utils

import (
	"testing"
	"time"
)

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"5", 5},
		{" 7 ", 7},
		{"3.9", 3},
		{"1,200", 1200},
		{"", 0},
		{"abc", 0},
		{"-4", 0},
		{"0.5", 0},
	}
	for _, c := range cases {
		if got := ParseQuantity(c.in); got != c.want {
			t.Fatalf("ParseQuantity(%q): expected %d, got %d", c.in, c.want, got)
		}
	}
}

func TestGenerateTrackingNumber(t *testing.T) {
	for _, digits := range []int{10, 11, 12} {
		for i := 0; i < 50; i++ {
			got := GenerateTrackingNumber(digits)
			if len(got) != digits {
				t.Fatalf("expected %d digits, got %q", digits, got)
			}
			if got[0] == '0' {
				t.Fatalf("leading zero in %q", got)
			}
			for _, r := range got {
				if r < '0' || r > '9' {
					t.Fatalf("non-digit in %q", got)
				}
			}
		}
	}
}

func TestIsCanonicalBarcode(t *testing.T) {
	cases := map[string]bool{
		"R1001":   true,
		" r2002 ": true,
		"R":       false,
		"S1001":   false,
		"R10A1":   false,
		"":        false,
	}
	for in, want := range cases {
		if got := IsCanonicalBarcode(in); got != want {
			t.Fatalf("IsCanonicalBarcode(%q): expected %v", in, want)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 5, 20, 0, 0, 0, 0, time.Local)
	for _, in := range []string{"2024-05-20", "2024-05-20 10:30", "2024/05/20", "2024.05.20", "20240520", "2024-05-20 (월)", "45432"} {
		got := ParseDate(in)
		if got == nil || !got.Equal(want) {
			t.Fatalf("ParseDate(%q): expected %v, got %v", in, want, got)
		}
	}
	if ParseDate("next tuesday") != nil {
		t.Fatal("expected nil for unparsable date")
	}
	if FormatDate(nil) != "" || FormatDate(&want) != "2024-05-20" {
		t.Fatal("unexpected FormatDate output")
	}
}

func TestNormalizePhoneNumber(t *testing.T) {
	if got := NormalizePhoneNumber("01012345678"); got != "010-1234-5678" {
		t.Fatalf("expected national format, got %q", got)
	}
	if got := NormalizePhoneNumber("call me"); got != "call me" {
		t.Fatalf("expected raw value kept, got %q", got)
	}
}

func TestStripSpacesAndCellAt(t *testing.T) {
	if got := StripSpaces(" 회송 담당자 "); got != "회송담당자" {
		t.Fatalf("got %q", got)
	}
	rows := [][]string{{"a", " b "}, {}}
	if CellAt(rows, 0, 1) != "b" || CellAt(rows, 1, 0) != "" || CellAt(rows, 5, 0) != "" {
		t.Fatal("CellAt out of range handling")
	}
}
