package domain

import (
	"sort"
	"strconv"
	"strings"
)

// WordPair is one input row: a word, its correct translation, and the
// language pair. Immutable once read.
type WordPair struct {
	Word           string
	Translation    string
	SourceLanguage string
	TargetLanguage string
}

// DistractorSet is the generation result for one WordPair.
type DistractorSet struct {
	Pair        WordPair
	Theme       string
	Distractors []string
}

// OutputEntry is the per-word shape of the output JSON file.
type OutputEntry struct {
	Theme       string   `json:"theme"`
	Translation string   `json:"translation"`
	Distractors []string `json:"distractors"`
}

// DistractorPayload is the raw model response: a "theme" key plus
// numeric-string keys ("1", "2", ...) holding the distractors.
type DistractorPayload map[string]string

func (p DistractorPayload) Theme() string {
	return strings.TrimSpace(p["theme"])
}

// Distractors returns the numbered values in ascending key order, which is
// the model's generation order. The dedup tie-break depends on this order.
func (p DistractorPayload) Distractors() []string {
	keys := make([]int, 0, len(p))
	for k := range p {
		if n, err := strconv.Atoi(k); err == nil && n > 0 {
			keys = append(keys, n)
		}
	}
	sort.Ints(keys)

	out := make([]string, 0, len(keys))
	for _, n := range keys {
		if v := strings.TrimSpace(p[strconv.Itoa(n)]); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Valid reports whether the payload has at least one numbered distractor.
// A missing theme is tolerated; a later regeneration response can fill it.
func (p DistractorPayload) Valid() bool {
	return len(p.Distractors()) > 0
}
