package assistant

import "strings"

// Reveal splits a complete answer into the cumulative word-by-word frames
// a caller can show one at a time. It is a pure presentation transform:
// the answer is already final when Reveal runs.
func Reveal(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	frames := make([]string, len(words))
	for i := range words {
		frames[i] = strings.Join(words[:i+1], " ")
	}
	return frames
}
