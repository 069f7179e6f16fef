package cases

import (
	"errors"
	"testing"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		input string
		want  int64
	}{
		{"30s", 30},
		{"10m", 600},
		{"2h", 7200},
		{"7d", 604800},
		{"1w", 604800},
		{"1y", 31536000},
		{"1h30m", 5400},
		{"1d12h", 129600},
		{"2w3d", 1468800},
		{" 10M ", 600},
		{"permanent", Permanent},
		{"PERMANENT", Permanent},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.input)
		if err != nil {
			t.Errorf("ParseDuration(%q): %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDuration(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestParseDurationRejectsJunk(t *testing.T) {
	for _, input := range []string{
		"", "  ", "abc", "10", "m", "10x", "10m5", "-5m", "forever", "999999999999y",
	} {
		_, err := ParseDuration(input)
		var durErr *DurationError
		if !errors.As(err, &durErr) {
			t.Errorf("ParseDuration(%q): expected DurationError, got %v", input, err)
		}
	}
}

func TestCheckMuteRange(t *testing.T) {
	if err := CheckMuteRange("10m", 600, 60, 2419200); err != nil {
		t.Fatalf("10m should be in range: %v", err)
	}
	for _, tc := range []struct {
		input   string
		seconds int64
	}{
		{"30s", 30},
		{"29d", 2505600},
		{"permanent", Permanent},
	} {
		err := CheckMuteRange(tc.input, tc.seconds, 60, 2419200)
		var durErr *DurationError
		if !errors.As(err, &durErr) {
			t.Errorf("CheckMuteRange(%q): expected DurationError, got %v", tc.input, err)
		}
	}
}

func TestFormatDurationRoundTrips(t *testing.T) {
	for _, input := range []string{"30s", "10m", "2h", "7d", "1h30m", "1w2d3h"} {
		seconds, err := ParseDuration(input)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", input, err)
		}
		back, err := ParseDuration(FormatDuration(seconds))
		if err != nil {
			t.Fatalf("re-parse of %q: %v", FormatDuration(seconds), err)
		}
		if back != seconds {
			t.Errorf("round trip of %q lost seconds: %d != %d", input, back, seconds)
		}
	}
	if FormatDuration(Permanent) != "permanent" {
		t.Errorf("permanent not rendered")
	}
}
