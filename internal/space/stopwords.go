package space

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadStopWords reads one word per line, lowercased and trimmed. Blank lines are skipped.
func LoadStopWords(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stop words: %w", err)
	}
	defer f.Close()
	words := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		w := strings.ToLower(strings.TrimSpace(sc.Text()))
		if w != "" {
			words[w] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stop words: %w", err)
	}
	return words, nil
}
