package service

import (
	"context"
	"fmt"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"go.uber.org/zap"

	"github.com/kapu/distractor-gen-go/internal/constants"
	"github.com/kapu/distractor-gen-go/internal/domain"
	"github.com/kapu/distractor-gen-go/internal/prompt"
	"github.com/kapu/distractor-gen-go/internal/service/cache"
	"github.com/kapu/distractor-gen-go/internal/util"
	toolerrors "github.com/kapu/distractor-gen-go/pkg/errors"
)

// jsonGenerator is the slice of ModelManager the generator depends on, so
// tests can drive the dedup loop with deterministic fakes.
type jsonGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, preset ModelPreset, dest any, opts *GenerateOptions) (*GenerateMetadata, error)
}

// DistractorCache is the optional cross-run cache capability; satisfied by
// cache.Service.
type DistractorCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type cachedSet struct {
	Theme       string   `json:"theme"`
	Distractors []string `json:"distractors"`
}

// DistractorGenerator produces a DistractorSet per word pair: one
// generation call, fuzzy deduplication, then bounded regeneration of the
// dropped slots at elevated temperature.
type DistractorGenerator struct {
	models         jsonGenerator
	cache          DistractorCache
	cacheTTL       time.Duration
	threshold      int
	responseTrials int
	logger         *zap.Logger
	sleep          func(time.Duration)
}

func NewDistractorGenerator(models jsonGenerator, threshold int, logger *zap.Logger) *DistractorGenerator {
	return &DistractorGenerator{
		models:         models,
		threshold:      threshold,
		responseTrials: constants.RetryConfig.ResponseTrials,
		logger:         logger,
		sleep:          time.Sleep,
	}
}

// SetCache enables the cross-run distractor cache.
func (g *DistractorGenerator) SetCache(c DistractorCache, ttl time.Duration) {
	if c == nil {
		return
	}
	g.cache = c
	g.cacheTTL = ttl
}

// Generate returns a finalized DistractorSet for the pair. count <= 0
// yields an empty set without any remote call. Deduplication budget
// exhaustion is not an error: the best-known set is returned.
func (g *DistractorGenerator) Generate(ctx context.Context, pair domain.WordPair, count, dedupTrials int) (*domain.DistractorSet, error) {
	if count <= 0 {
		return &domain.DistractorSet{Pair: pair, Distractors: []string{}}, nil
	}

	key := cache.DistractorKey(pair.SourceLanguage, pair.TargetLanguage, pair.Word, count)
	if g.cache != nil {
		var cached cachedSet
		if found, err := g.cache.Get(ctx, key, &cached); err == nil && found && len(cached.Distractors) > 0 {
			g.logger.Debug("distractor cache hit", zap.String("word", pair.Word))
			return &domain.DistractorSet{Pair: pair, Theme: cached.Theme, Distractors: cached.Distractors}, nil
		}
	}

	promptText, err := prompt.BuildDistractors(pair, count)
	if err != nil {
		return nil, err
	}

	payload, err := g.safeGenerate(ctx, promptText, PresetGeneration)
	if err != nil {
		return nil, toolerrors.NewGenerationError("distractor generation failed", pair.Word, "", err)
	}

	theme := payload.Theme()
	candidates := dropTranslation(payload.Distractors(), pair.Translation)
	if len(candidates) > count {
		candidates = candidates[:count]
	}

	unique, dropped := g.dropDuplicates(candidates)
	if len(dropped) > 0 {
		g.logger.Debug("near-duplicate distractors dropped",
			zap.String("word", pair.Word),
			zap.Strings("duplicates", dropped),
		)
	}

	for trial := 1; trial <= dedupTrials && len(unique) < count; trial++ {
		retryPayload, retryErr := g.safeGenerate(ctx, promptText, PresetDiversify)
		if retryErr != nil {
			g.logger.Warn("regeneration trial failed",
				zap.String("word", pair.Word),
				zap.Int("trial", trial),
				zap.Error(retryErr),
			)
			continue
		}

		for _, candidate := range retryPayload.Distractors() {
			if len(unique) >= count {
				break
			}
			if candidate == pair.Translation {
				continue
			}
			if !g.duplicatesAny(unique, candidate) {
				unique = append(unique, candidate)
			}
		}

		if theme == "" {
			theme = retryPayload.Theme()
		}
	}

	// Budget exhausted: backfill the remaining slots from the dropped
	// duplicates in generation order. Best effort, never an error.
	if len(unique) < count && len(dropped) > 0 {
		g.logger.Warn("deduplication budget exhausted, backfilling from duplicates",
			zap.String("word", pair.Word),
			zap.Int("unique", len(unique)),
			zap.Int("requested", count),
		)
		for _, candidate := range dropped {
			if len(unique) >= count {
				break
			}
			unique = append(unique, candidate)
		}
	}

	set := &domain.DistractorSet{Pair: pair, Theme: theme, Distractors: unique}

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, cachedSet{Theme: set.Theme, Distractors: set.Distractors}, g.cacheTTL); err != nil {
			g.logger.Warn("failed to cache distractor set", zap.String("word", pair.Word), zap.Error(err))
		}
	}

	return set, nil
}

// safeGenerate runs one model call with bounded retries over malformed
// responses and transient service failures.
func (g *DistractorGenerator) safeGenerate(ctx context.Context, promptText string, preset ModelPreset) (domain.DistractorPayload, error) {
	var lastErr error

	for attempt := 1; attempt <= g.responseTrials; attempt++ {
		payload := domain.DistractorPayload{}
		_, err := g.models.GenerateJSON(ctx, promptText, preset, &payload, nil)
		if err == nil {
			if payload.Valid() {
				return payload, nil
			}
			// Parsed but wrong shape: retry immediately
			lastErr = fmt.Errorf("response missing theme or numbered distractor keys")
			continue
		}

		lastErr = err
		if attempt == g.responseTrials {
			break
		}

		if isRateLimitError(err) {
			g.sleep(constants.RetryConfig.RateLimitDelay)
		} else if isServiceFailure(err) {
			g.sleep(constants.RetryConfig.BaseDelay * time.Duration(attempt))
		}
	}

	return nil, lastErr
}

// dropDuplicates scans in generation order and drops every item whose
// partial-ratio score against an earlier kept item reaches the threshold.
// The earliest item of a duplicate chain is the one kept.
func (g *DistractorGenerator) dropDuplicates(distractors []string) (unique, duplicates []string) {
	if len(distractors) < 2 {
		return distractors, nil
	}

	for _, candidate := range distractors {
		if g.duplicatesAny(unique, candidate) {
			duplicates = append(duplicates, candidate)
		} else {
			unique = append(unique, candidate)
		}
	}

	return unique, duplicates
}

func (g *DistractorGenerator) duplicatesAny(kept []string, candidate string) bool {
	for _, existing := range kept {
		if g.isDuplicate(existing, candidate) {
			return true
		}
	}
	return false
}

func (g *DistractorGenerator) isDuplicate(a, b string) bool {
	return fuzzy.PartialRatio(util.Normalize(a), util.Normalize(b)) >= g.threshold
}

func dropTranslation(distractors []string, translation string) []string {
	out := make([]string, 0, len(distractors))
	for _, d := range distractors {
		if d != translation {
			out = append(out, d)
		}
	}
	return out
}
