package runner

import "strings"

// Benchmark verdicts.
const (
	VerdictCorrect   = "correct"
	VerdictIncorrect = "incorrect"
)

// Normalize prepares a benchmark answer for comparison: surrounding
// whitespace is trimmed, the text is uppercased, and a single trailing
// period is dropped. No other rewriting is performed.
func Normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}

// Judge compares a raw benchmark response against the expected answer and
// returns a verdict.
//
// Matching rule: both sides are normalized (see Normalize) and must be
// equal. When the expected answer is a single letter A-Z, the response must
// itself normalize to exactly that one capital letter; a response that
// merely contains the letter somewhere is incorrect.
func Judge(raw, expected string) string {
	resp := Normalize(raw)
	want := Normalize(expected)

	if len(want) == 1 && want[0] >= 'A' && want[0] <= 'Z' {
		if len(resp) == 1 && resp == want {
			return VerdictCorrect
		}
		return VerdictIncorrect
	}
	if resp != "" && resp == want {
		return VerdictCorrect
	}
	return VerdictIncorrect
}
