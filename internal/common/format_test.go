package common

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0":          "0.00",
		"90":         "90.00",
		"1000":       "1,000.00",
		"1234567.5":  "1,234,567.50",
		"-25000.25":  "-25,000.25",
		"999999.999": "1,000,000.00",
	}
	for in, want := range cases {
		if got := FormatAmount(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatAmount(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestShortIdAndTime(t *testing.T) {
	if got := ShortId(""); got != "none" {
		t.Errorf("Expected none, got %q", got)
	}
	if got := ShortId("0123456789abcdef"); got != "01234567..." {
		t.Errorf("Unexpected short id %q", got)
	}
	if got := FormatTime(nil); got != "never" {
		t.Errorf("Expected never, got %q", got)
	}
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := FormatTime(&ts); got != "2025-01-02 03:04:05" {
		t.Errorf("Unexpected time %q", got)
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	r := NewReport(&buf, 20)
	r.Header("TITLE")
	r.Section("User: x", "ID: 1")
	r.Item(false, "%s", "first")
	r.Item(true, "%s", "last")

	out := buf.String()
	for _, want := range []string{"TITLE", "┌─ User: x", "│  ID: 1", "│  first", "└  last", strings.Repeat("=", 20)} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, out)
		}
	}
}
