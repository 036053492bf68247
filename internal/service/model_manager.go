package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kapu/distractor-gen-go/internal/constants"
	"github.com/kapu/distractor-gen-go/internal/util"
)

// ModelManager routes JSON generation requests to the OpenAI primary with
// an optional Gemini fallback, behind a shared circuit breaker.
type ModelManager struct {
	openai         *OpenAIProvider
	gemini         *GeminiProvider
	primary        JSONProvider
	fallback       JSONProvider
	logger         *zap.Logger
	enableFallback bool
	circuitBreaker *util.CircuitBreaker
}

type ModelManagerConfig struct {
	OpenAIAPIKey       string
	DefaultOpenAIModel string
	GeminiAPIKey       string
	DefaultGeminiModel string
	EnableFallback     bool
}

func NewModelManager(ctx context.Context, cfg ModelManagerConfig, logger *zap.Logger) (*ModelManager, error) {
	defaultOpenAI := cfg.DefaultOpenAIModel
	if defaultOpenAI == "" {
		defaultOpenAI = "gpt-4.1-mini"
	}

	openaiProvider := NewOpenAIProvider(cfg.OpenAIAPIKey, defaultOpenAI, logger)
	if openaiProvider == nil {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	var geminiProvider *GeminiProvider
	if cfg.GeminiAPIKey != "" {
		geminiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}

		defaultGemini := cfg.DefaultGeminiModel
		if defaultGemini == "" {
			defaultGemini = "gemini-2.5-flash"
		}
		geminiProvider = NewGeminiProvider(geminiClient, defaultGemini, logger)
		logger.Info("Gemini fallback available", zap.String("model", defaultGemini))
	} else {
		logger.Info("Gemini fallback disabled (no API key)")
	}

	mm := &ModelManager{
		openai:  openaiProvider,
		gemini:  geminiProvider,
		primary: openaiProvider,
		logger:  logger,
	}
	mm.enableFallback = cfg.EnableFallback && geminiProvider != nil
	if mm.enableFallback {
		mm.fallback = geminiProvider
	}

	mm.circuitBreaker = util.NewCircuitBreaker(
		constants.CircuitBreakerConfig.FailureThreshold,
		constants.CircuitBreakerConfig.ResetTimeout,
		constants.CircuitBreakerConfig.HealthCheckInterval,
		mm.healthCheckPing,
		logger,
	)

	return mm, nil
}

// GenerateJSON renders one prompt through the provider chain and unmarshals
// the JSON response into dest.
func (mm *ModelManager) GenerateJSON(ctx context.Context, prompt string, preset ModelPreset, dest any, opts *GenerateOptions) (*GenerateMetadata, error) {
	if !mm.circuitBreaker.CanExecute() {
		status := mm.circuitBreaker.GetStatus()
		nextRetry := "unknown"
		if status.NextRetryTime != nil {
			nextRetry = status.NextRetryTime.Format("15:04:05")
		}

		mm.logger.Error("text-generation service unavailable (circuit open)",
			zap.String("state", status.State.String()),
			zap.Int("failure_count", status.FailureCount),
			zap.String("next_retry", nextRetry),
		)

		return nil, fmt.Errorf("text-generation service unavailable (circuit open, next retry %s)", nextRetry)
	}

	var options GenerateOptions
	if opts != nil {
		options = *opts
	}
	options.JSONMode = true

	primaryResult, primaryErr := mm.invokeProvider(ctx, mm.primary, prompt, preset, &options)
	if primaryErr == nil {
		mm.circuitBreaker.RecordSuccess()
		metadata := &GenerateMetadata{
			Provider: mm.primary.Name(),
			Model:    primaryResult.Model,
		}
		return mm.decodeJSON(primaryResult.Text, metadata, dest)
	}

	if mm.enableFallback && mm.fallback != nil {
		fallbackResult, fallbackErr := mm.invokeProvider(ctx, mm.fallback, prompt, preset, &options)
		if fallbackErr == nil {
			mm.circuitBreaker.RecordSuccess()
			metadata := &GenerateMetadata{
				Provider:     mm.fallback.Name(),
				Model:        fallbackResult.Model,
				UsedFallback: true,
			}
			return mm.decodeJSON(fallbackResult.Text, metadata, dest)
		}

		mm.recordFailure(primaryErr)
		mm.recordFailure(fallbackErr)
		return nil, fallbackErr
	}

	mm.recordFailure(primaryErr)
	return nil, primaryErr
}

func (mm *ModelManager) invokeProvider(ctx context.Context, provider JSONProvider, prompt string, preset ModelPreset, opts *GenerateOptions) (ProviderResult, error) {
	if provider == nil {
		return ProviderResult{}, fmt.Errorf("model provider is not configured")
	}
	return provider.Generate(ctx, prompt, preset, opts)
}

func (mm *ModelManager) decodeJSON(text string, metadata *GenerateMetadata, dest any) (*GenerateMetadata, error) {
	cleaned := CleanJSONText(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%s API returned empty response", metadata.Provider)
	}

	if err := json.Unmarshal([]byte(cleaned), dest); err != nil {
		// Last resort: carve out the outermost object, models sometimes
		// wrap the JSON in prose.
		if carved := extractJSONObject(cleaned); carved != "" {
			if retryErr := json.Unmarshal([]byte(carved), dest); retryErr == nil {
				return metadata, nil
			}
		}

		mm.logger.Error("Failed to unmarshal JSON response",
			zap.String("provider", metadata.Provider),
			zap.Error(err),
			zap.String("response_preview", util.TruncateString(cleaned, 200)),
		)
		return nil, fmt.Errorf("invalid JSON from %s: %w", metadata.Provider, err)
	}

	return metadata, nil
}

// CleanJSONText strips markdown code fences that chat models like to wrap
// around JSON payloads.
func CleanJSONText(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "```json"))
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "```"))
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "```"))
	}
	return cleaned
}

func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func (mm *ModelManager) recordFailure(err error) {
	if err == nil || !isServiceFailure(err) {
		return
	}

	timeout := constants.CircuitBreakerConfig.ResetTimeout
	if isRateLimitError(err) {
		timeout = constants.CircuitBreakerConfig.RateLimitTimeout
	}

	mm.circuitBreaker.RecordFailure(timeout)
}

func (mm *ModelManager) healthCheckPing() bool {
	mm.logger.Info("Health Check: Testing text-generation providers...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	openaiOK := false
	if mm.openai != nil {
		openaiOK = mm.openai.Ping(ctx)
	}

	geminiOK := false
	if mm.enableFallback && mm.gemini != nil {
		geminiOK = mm.gemini.Ping(ctx)
	}

	isHealthy := openaiOK || geminiOK

	mm.logger.Info("Health Check: Result",
		zap.Bool("openai", openaiOK),
		zap.Bool("gemini", geminiOK),
		zap.Bool("healthy", isHealthy),
	)

	return isHealthy
}

var (
	statusCodeRegex = regexp.MustCompile(`\b(5\d{2})\b`)
	geminiCodeRegex = regexp.MustCompile(`"code":(\d{3})`)
	openaiCodeRegex = regexp.MustCompile(`^(\d{3})\s`)
)

var serviceFailureKeywords = []string{
	"timeout",
	"ETIMEDOUT",
	"UNAVAILABLE",
	"model is overloaded",
	"circuit open",
}

// isServiceFailure classifies provider errors that should count against the
// circuit breaker and are worth a delayed retry: timeouts, overload and 5xx
// responses, and anything rate-limited.
func isServiceFailure(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	for _, key := range serviceFailureKeywords {
		if strings.Contains(msg, key) {
			return true
		}
	}

	if isRateLimitError(err) {
		return true
	}

	if statusCodeRegex.MatchString(msg) {
		return true
	}

	for _, re := range []*regexp.Regexp{geminiCodeRegex, openaiCodeRegex} {
		if matches := re.FindStringSubmatch(msg); len(matches) > 1 {
			if code, convErr := strconv.Atoi(matches[1]); convErr == nil {
				return code >= 500 && code < 600
			}
		}
	}

	return false
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	if strings.Contains(msg, "429") || strings.Contains(msg, "Rate limit") || strings.Contains(msg, "quota") {
		return true
	}

	for _, re := range []*regexp.Regexp{geminiCodeRegex, openaiCodeRegex} {
		if matches := re.FindStringSubmatch(msg); len(matches) > 1 {
			if code, convErr := strconv.Atoi(matches[1]); convErr == nil {
				return code == 429
			}
		}
	}

	return false
}
