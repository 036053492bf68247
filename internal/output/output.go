package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kapu/distractor-gen-go/internal/domain"
)

// Load reads a previous run's output file so already-generated words can be
// skipped. A missing file is an empty result, not an error.
func Load(path string) (map[string]*domain.OutputEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]*domain.OutputEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	existing := make(map[string]*domain.OutputEntry)
	if err := json.Unmarshal(data, &existing); err != nil {
		return nil, fmt.Errorf("existing output is not valid JSON: %w", err)
	}
	return existing, nil
}

// Write persists the word-to-entry map as indented JSON. The file is written
// to a .tmp sibling and renamed so a crash mid-write cannot corrupt a
// previous run's output. HTML escaping is off so Cyrillic/CJK distractors
// stay literal.
func Write(path string, entries map[string]*domain.OutputEntry) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(entries); err != nil {
		return err
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmpFile, path)
}
