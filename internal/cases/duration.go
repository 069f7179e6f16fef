package cases

import (
	"strings"
	"unicode"
)

var unitSeconds = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
	'w': 604800,
	'y': 31536000,
}

// ParseDuration converts a moderator-supplied duration string into seconds.
// The grammar is one or more <integer><unit> groups which are summed, with
// units s, m, h, d, w, y. The literal "permanent" maps to the Permanent
// sentinel. Anything else yields a DurationError.
func ParseDuration(input string) (int64, error) {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return 0, &DurationError{Input: input, Reason: "empty"}
	}
	if trimmed == "permanent" {
		return Permanent, nil
	}

	var total int64
	var digits strings.Builder
	sawGroup := false

	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if unicode.IsDigit(rune(c)) {
			digits.WriteByte(c)
			continue
		}
		mult, ok := unitSeconds[c]
		if !ok {
			return 0, &DurationError{Input: input, Reason: "unknown unit " + string(c)}
		}
		if digits.Len() == 0 {
			return 0, &DurationError{Input: input, Reason: "unit without a count"}
		}
		value, err := parseSeconds(digits.String())
		if err != nil {
			return 0, &DurationError{Input: input, Reason: "count too large"}
		}
		total += value * mult
		if total > Permanent {
			return 0, &DurationError{Input: input, Reason: "duration too large"}
		}
		digits.Reset()
		sawGroup = true
	}

	if digits.Len() > 0 {
		return 0, &DurationError{Input: input, Reason: "trailing count without a unit"}
	}
	if !sawGroup {
		return 0, &DurationError{Input: input, Reason: "no duration groups"}
	}
	if total <= 0 {
		return 0, &DurationError{Input: input, Reason: "duration must be positive"}
	}
	return total, nil
}

func parseSeconds(s string) (int64, error) {
	var n int64
	for i := 0; i < len(s); i++ {
		n = n*10 + int64(s[i]-'0')
		if n > Permanent {
			return 0, &DurationError{Input: s, Reason: "overflow"}
		}
	}
	return n, nil
}

// CheckMuteRange validates a mute duration against the configured bounds.
// Permanent mutes are rejected; the platform timeout primitive caps out.
func CheckMuteRange(input string, seconds, min, max int64) error {
	if seconds == Permanent {
		return &DurationError{Input: input, Reason: "mutes cannot be permanent"}
	}
	if seconds < min || seconds > max {
		return &DurationError{Input: input, Reason: "mute duration out of range"}
	}
	return nil
}
