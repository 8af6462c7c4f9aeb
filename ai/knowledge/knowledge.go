// Package knowledge provides naive keyword-overlap lookup over a small corpus
// of reference text snippets.
package knowledge

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// minOverlap is the minimum number of shared keywords for a snippet to match.
const minOverlap = 2

// Snippet is an immutable reference text blob loaded from the corpus.
type Snippet struct {
	Name string
	Text string
}

// Corpus holds the loaded snippets with tokenized keyword sets.
type Corpus struct {
	snippets []scoredSnippet
}

type scoredSnippet struct {
	snippet Snippet
	words   map[string]struct{}
}

// LoadCorpus reads .txt and .md files from a directory. A missing or empty
// directory yields an empty corpus, not an error.
func LoadCorpus(dir string) (*Corpus, error) {
	c := &Corpus{}
	if dir == "" {
		return c, nil
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		slog.Warn("knowledge: corpus directory does not exist", "dir", dir)
		return c, nil
	}
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Warn("knowledge: failed to read snippet", "file", entry.Name(), "error", err)
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		c.snippets = append(c.snippets, scoredSnippet{
			snippet: Snippet{Name: entry.Name(), Text: text},
			words:   tokenize(text),
		})
	}

	slog.Info("knowledge: corpus loaded", "dir", dir, "snippets", len(c.snippets))
	return c, nil
}

// Size returns the number of loaded snippets.
func (c *Corpus) Size() int {
	return len(c.snippets)
}

// Lookup returns the snippet with the highest keyword overlap against the
// query, or nil when nothing reaches the minimum overlap.
func (c *Corpus) Lookup(query string) *Snippet {
	queryWords := tokenize(query)
	if len(queryWords) == 0 {
		return nil
	}

	var best *Snippet
	bestScore := 0
	for i := range c.snippets {
		score := 0
		for w := range queryWords {
			if _, ok := c.snippets[i].words[w]; ok {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = &c.snippets[i].snippet
		}
	}

	if bestScore < minOverlap {
		return nil
	}
	return best
}

// stopwords excluded from overlap scoring.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "is": {}, "it": {}, "i": {}, "you": {}, "me": {}, "my": {},
	"for": {}, "on": {}, "with": {}, "what": {}, "how": {}, "do": {},
}

func tokenize(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(field) < 2 {
			continue
		}
		if _, skip := stopwords[field]; skip {
			continue
		}
		words[field] = struct{}{}
	}
	return words
}
