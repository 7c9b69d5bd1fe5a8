package runner

import "strings"

// InputDetector guesses from one line of output whether the process is now
// blocked reading its input. It is a heuristic, not a proof.
type InputDetector interface {
	AwaitingInput(line string) bool
}

// DetectorFunc adapts a function to InputDetector.
type DetectorFunc func(line string) bool

func (f DetectorFunc) AwaitingInput(line string) bool { return f(line) }

// DefaultPromptKeywords are matched case-insensitively anywhere in a line.
var DefaultPromptKeywords = []string{"input", "enter", ":", "?"}

// KeywordDetector fires when a line contains any of its keywords.
type KeywordDetector struct {
	Keywords []string
}

// NewKeywordDetector returns a detector over DefaultPromptKeywords.
func NewKeywordDetector() *KeywordDetector {
	return &KeywordDetector{Keywords: DefaultPromptKeywords}
}

func (d *KeywordDetector) AwaitingInput(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range d.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
