package errors

import "fmt"

// Error codes
const (
	CodeGeneration = "GENERATION_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeCache      = "CACHE_ERROR"
)

type ToolError struct {
	Message string
	Code    string
	Context map[string]any
	Cause   error
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// GenerationError reports a failed or unparseable model response for a word.
type GenerationError struct {
	*ToolError
	Word     string
	Provider string
}

func NewGenerationError(message, word, provider string, cause error) *GenerationError {
	return &GenerationError{
		ToolError: &ToolError{
			Message: message,
			Code:    CodeGeneration,
			Context: map[string]any{
				"word":     word,
				"provider": provider,
			},
			Cause: cause,
		},
		Word:     word,
		Provider: provider,
	}
}

type ValidationError struct {
	*ToolError
	Field string
	Value interface{}
}

func NewValidationError(message, field string, value interface{}) *ValidationError {
	return &ValidationError{
		ToolError: &ToolError{
			Message: message,
			Code:    CodeValidation,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

type CacheError struct {
	*ToolError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		ToolError: &ToolError{
			Message: message,
			Code:    CodeCache,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}
