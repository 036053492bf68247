package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	toolerrors "github.com/kapu/distractor-gen-go/pkg/errors"
)

var wordListColumns = []string{"word", "translation", "source_language", "target_language"}

// LoadWordPairs reads the delimited input file. The header must contain all
// four required columns (any order). Rows with a wrong field count or empty
// word/translation are skipped with a warning; the file itself failing to
// parse is fatal.
func LoadWordPairs(path string, logger *zap.Logger) ([]WordPair, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open word list: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read word list header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range wordListColumns {
		if _, ok := index[col]; !ok {
			return nil, toolerrors.NewValidationError("missing required column", col, path)
		}
	}

	var pairs []WordPair
	row := 1
	for {
		record, err := reader.Read()
		row++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn("skipping malformed row", zap.Int("row", row), zap.Error(err))
			continue
		}

		pair := WordPair{
			Word:           strings.TrimSpace(record[index["word"]]),
			Translation:    strings.TrimSpace(record[index["translation"]]),
			SourceLanguage: strings.TrimSpace(record[index["source_language"]]),
			TargetLanguage: strings.TrimSpace(record[index["target_language"]]),
		}

		if pair.Word == "" || pair.Translation == "" {
			logger.Warn("skipping row with empty word or translation", zap.Int("row", row))
			continue
		}

		pairs = append(pairs, pair)
	}

	return pairs, nil
}
