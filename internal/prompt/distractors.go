package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/kapu/distractor-gen-go/internal/domain"
)

// DistractorRequest is the per-word JSON payload appended to the
// instruction template.
type DistractorRequest struct {
	Word           string `json:"word"`
	Translation    string `json:"translation"`
	TargetLanguage string `json:"target_language"`
	SourceLanguage string `json:"source_language"`
	NumDistractors int    `json:"num_distractors"`
}

const distractorInstructions = `Act as language learning tests generator. You need to create set of distractors for input word.

Distractor is:
1. Thematically related word (or phrase)
2. Not the synonym of the given word (or contains synonym of the given word)
3. The same part of speech as the given word
4. Not the right translation of the given word in source language
5. Given in the target language (this is very important)

Don't add translation to source language in distractor, e.g. "собака (dog)".
Good distractor: "собака", bad distractor: "собака (dog)".

Very important: All output distractors should be in target language. They all must be different from each other.
Also, you need to make sure that all distractors are thematically related between each other and with the given word.

Firstly, you need to determine theme of the given word. Then, you need to generate distractors based on the theme in valid json structure.

Example user input: {"word": "cat", "translation": "кошка", "target_language": "ru", "source_language": "en", "num_distractors": 3}
Output:
{"theme": "pets (only house pets)", "1": "собака", "2": "хомяк", "3": "кролик"}

Example user input: {"word": "salty", "translation": "соленый", "target_language": "ru", "source_language": "en", "num_distractors": 2}
Output:
{"theme": "tastes or flavors", "1": "сладкий", "2": "горький"}

Example user input: {"word": "jeans", "translation": "джинсы", "target_language": "ru", "source_language": "en", "num_distractors": 4}
Output:
{"theme": "types of clothing", "1": "юбка", "2": "перчатки", "3": "брюки", "4": "платье"}`

// BuildDistractors renders the full prompt for one word pair: the fixed
// rules with few-shot examples plus the request payload.
func BuildDistractors(pair domain.WordPair, count int) (string, error) {
	request := DistractorRequest{
		Word:           pair.Word,
		Translation:    pair.Translation,
		TargetLanguage: pair.TargetLanguage,
		SourceLanguage: pair.SourceLanguage,
		NumDistractors: count,
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal distractor request: %w", err)
	}

	return fmt.Sprintf("%s\n\nUser input: %s\nOutput:", distractorInstructions, payload), nil
}

// Instructions returns the fixed instruction template without a request,
// used for token accounting.
func Instructions() string {
	return distractorInstructions
}
