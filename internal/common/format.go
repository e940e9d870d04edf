package common

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultWidth = 80
	WideWidth    = 100

	timeLayout = "2006-01-02 15:04:05"
)

// Report writes boxed CLI output
type Report struct {
	w     io.Writer
	width int
}

func NewReport(w io.Writer, width int) *Report {
	return &Report{w: w, width: width}
}

func (r *Report) Separator(char string) {
	fmt.Fprintln(r.w, strings.Repeat(char, r.width))
}

func (r *Report) Header(title string) {
	fmt.Fprintln(r.w, "\n"+strings.Repeat("=", r.width))
	fmt.Fprintln(r.w, title)
	r.Separator("=")
}

func (r *Report) Footer(message string) {
	fmt.Fprintln(r.w, "\n"+strings.Repeat("=", r.width))
	fmt.Fprintln(r.w, message)
	fmt.Fprintln(r.w, strings.Repeat("=", r.width)+"\n")
}

// Section opens a box titled title; Item lines follow it.
func (r *Report) Section(title string, details ...string) {
	fmt.Fprintf(r.w, "\n┌─ %s\n", title)
	for _, d := range details {
		fmt.Fprintf(r.w, "│  %s\n", d)
	}
	fmt.Fprintln(r.w, "├"+strings.Repeat("─", r.width-2))
}

func (r *Report) Item(isLast bool, format string, args ...interface{}) {
	prefix := "│  "
	if isLast {
		prefix = "└  "
	}
	fmt.Fprintf(r.w, prefix+format+"\n", args...)
}

// FormatAmount renders a balance with two decimals and thousands separators.
func FormatAmount(amount decimal.Decimal) string {
	s := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + frac
}

// ShortId truncates ids for table output.
func ShortId(id string) string {
	if id == "" {
		return "none"
	}
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

func FormatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(timeLayout)
}
