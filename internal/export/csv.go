package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Default word-count bounds for utterance export. Both bounds are
// exclusive: an utterance is kept when minWords < words < maxWords.
const (
	DefaultMinWords = 3
	DefaultMaxWords = 20
)

// WriteUtterances writes a single-column CSV of deduplicated utterances,
// keeping only those whose word count falls strictly between the bounds.
// First occurrence order is preserved. Returns the number of rows written.
func WriteUtterances(path string, utterances []string, minWords, maxWords int) (int, error) {
	if minWords <= 0 {
		minWords = DefaultMinWords
	}
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	if minWords >= maxWords {
		return 0, fmt.Errorf("invalid word bounds %d..%d", minWords, maxWords)
	}

	seen := make(map[string]bool, len(utterances))
	var kept []string
	for _, u := range utterances {
		if seen[u] {
			continue
		}
		seen[u] = true
		words := len(strings.Fields(u))
		if words > minWords && words < maxWords {
			kept = append(kept, u)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	for _, u := range kept {
		if err := w.Write([]string{u}); err != nil {
			return 0, fmt.Errorf("write utterance: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}
	return len(kept), nil
}
