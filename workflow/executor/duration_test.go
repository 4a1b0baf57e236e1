package executor

import (
	"testing"
	"time"
)

func TestParseISO8601Duration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"PT5S", 5 * time.Second},
		{"PT5M", 5 * time.Minute},
		{"PT1H", time.Hour},
		{"P1D", 24 * time.Hour},
		{"P1DT2H30M", 24*time.Hour + 2*time.Hour + 30*time.Minute},
		{"PT0.5S", 500 * time.Millisecond},
	}
	for _, c := range cases {
		got, err := parseISO8601Duration(c.in)
		if err != nil {
			t.Fatalf("%q: error = %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("%q = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseISO8601Duration_InvalidRejected(t *testing.T) {
	if _, err := parseISO8601Duration("5S"); err == nil {
		t.Error("expected an error for a duration missing the leading P")
	}
}
