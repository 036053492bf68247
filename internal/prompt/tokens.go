package prompt

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

// CountTokens counts prompt tokens with the encoding of the given model,
// falling back to cl100k_base for models tiktoken does not know.
func CountTokens(text, model string) (int, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return 0, fmt.Errorf("load token encoding: %w", err)
		}
	}

	return len(encoding.Encode(text, nil, nil)), nil
}
