package runner

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  a  ", "A"},
		{"B.", "B"},
		{"b .", "B"},
		{"The answer is C", "THE ANSWER IS C"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestJudgeSingleLetter(t *testing.T) {
	cases := []struct {
		raw, expected, want string
	}{
		{"A", "A", VerdictCorrect},
		{" a ", "A", VerdictCorrect},
		{"a.", "A", VerdictCorrect},
		{"B", "A", VerdictIncorrect},
		{"The answer is A", "A", VerdictIncorrect}, // must be exactly one letter
		{"", "A", VerdictIncorrect},
		{"AA", "A", VerdictIncorrect},
	}
	for _, c := range cases {
		if got := Judge(c.raw, c.expected); got != c.want {
			t.Errorf("Judge(%q, %q) = %s, want %s", c.raw, c.expected, got, c.want)
		}
	}
}

func TestJudgeFreeForm(t *testing.T) {
	cases := []struct {
		raw, expected, want string
	}{
		{"forty two", "Forty Two", VerdictCorrect},
		{"forty two.", "forty two", VerdictCorrect},
		{"forty three", "forty two", VerdictIncorrect},
		{"", "", VerdictIncorrect}, // empty response never matches
	}
	for _, c := range cases {
		if got := Judge(c.raw, c.expected); got != c.want {
			t.Errorf("Judge(%q, %q) = %s, want %s", c.raw, c.expected, got, c.want)
		}
	}
}
