package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/distractor-gen-go/internal/domain"
)

type fakeStep struct {
	payload domain.DistractorPayload
	err     error
}

type fakeModels struct {
	steps   []fakeStep
	presets []ModelPreset
	prompts []string
}

func (f *fakeModels) GenerateJSON(_ context.Context, prompt string, preset ModelPreset, dest any, _ *GenerateOptions) (*GenerateMetadata, error) {
	call := len(f.presets)
	f.presets = append(f.presets, preset)
	f.prompts = append(f.prompts, prompt)

	if call >= len(f.steps) {
		return nil, errors.New("unexpected extra model call")
	}

	step := f.steps[call]
	if step.err != nil {
		return nil, step.err
	}

	payload, ok := dest.(*domain.DistractorPayload)
	if !ok {
		return nil, errors.New("unexpected destination type")
	}
	for k, v := range step.payload {
		(*payload)[k] = v
	}

	return &GenerateMetadata{Provider: "Fake", Model: "fake-model"}, nil
}

func newTestGenerator(models *fakeModels) *DistractorGenerator {
	g := NewDistractorGenerator(models, 90, zap.NewNop())
	g.sleep = func(time.Duration) {}
	return g
}

var applePair = domain.WordPair{
	Word:           "apple",
	Translation:    "яблоко",
	SourceLanguage: "en",
	TargetLanguage: "ru",
}

func TestGenerateCountZeroMakesNoRemoteCalls(t *testing.T) {
	models := &fakeModels{}
	g := newTestGenerator(models)

	set, err := g.Generate(context.Background(), applePair, 0, 3)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(models.presets) != 0 {
		t.Fatalf("expected no remote calls, got %d", len(models.presets))
	}
	if set.Distractors == nil || len(set.Distractors) != 0 {
		t.Fatalf("expected empty distractor list, got %v", set.Distractors)
	}
}

func TestGenerateKeepsDistinctDistractors(t *testing.T) {
	models := &fakeModels{steps: []fakeStep{
		{payload: domain.DistractorPayload{"theme": "fruits", "1": "груша", "2": "слива", "3": "вишня"}},
	}}
	g := newTestGenerator(models)

	set, err := g.Generate(context.Background(), applePair, 3, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(models.presets) != 1 || models.presets[0] != PresetGeneration {
		t.Fatalf("expected one generation call, got %v", models.presets)
	}
	if set.Theme != "fruits" {
		t.Fatalf("unexpected theme: %q", set.Theme)
	}

	want := []string{"груша", "слива", "вишня"}
	if len(set.Distractors) != len(want) {
		t.Fatalf("expected %v, got %v", want, set.Distractors)
	}
	for i, w := range want {
		if set.Distractors[i] != w {
			t.Fatalf("expected %v, got %v", want, set.Distractors)
		}
	}
}

func TestGenerateRegeneratesNearDuplicates(t *testing.T) {
	models := &fakeModels{steps: []fakeStep{
		{payload: domain.DistractorPayload{"theme": "bodies of water", "1": "озеро", "2": "крещенское озеро", "3": "пруд"}},
		{payload: domain.DistractorPayload{"theme": "bodies of water", "1": "река"}},
	}}
	g := newTestGenerator(models)

	pair := domain.WordPair{Word: "sea", Translation: "море", SourceLanguage: "en", TargetLanguage: "ru"}
	set, err := g.Generate(context.Background(), pair, 3, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(models.presets) != 2 {
		t.Fatalf("expected exactly one regeneration call, got calls %v", models.presets)
	}
	if models.presets[1] != PresetDiversify {
		t.Fatalf("expected regeneration at diversify preset, got %v", models.presets[1])
	}

	want := []string{"озеро", "пруд", "река"}
	if len(set.Distractors) != len(want) {
		t.Fatalf("expected %v, got %v", want, set.Distractors)
	}
	for i, w := range want {
		if set.Distractors[i] != w {
			t.Fatalf("expected %v, got %v", want, set.Distractors)
		}
	}
}

func TestGenerateExhaustedBudgetBackfillsFromDuplicates(t *testing.T) {
	models := &fakeModels{steps: []fakeStep{
		{payload: domain.DistractorPayload{"theme": "bodies of water", "1": "озеро", "2": "крещенское озеро", "3": "озеро большое"}},
		// Regeneration keeps producing near-duplicates
		{payload: domain.DistractorPayload{"theme": "bodies of water", "1": "озеро малое"}},
	}}
	g := newTestGenerator(models)

	pair := domain.WordPair{Word: "sea", Translation: "море", SourceLanguage: "en", TargetLanguage: "ru"}
	set, err := g.Generate(context.Background(), pair, 3, 1)
	if err != nil {
		t.Fatalf("budget exhaustion must not error, got %v", err)
	}
	if len(models.presets) != 2 {
		t.Fatalf("expected generation plus one trial, got %v", models.presets)
	}
	if len(set.Distractors) != 3 {
		t.Fatalf("expected backfilled set of 3, got %v", set.Distractors)
	}
	if set.Distractors[0] != "озеро" {
		t.Fatalf("expected earliest item kept first, got %v", set.Distractors)
	}
}

func TestGenerateFillsThemeFromRegeneration(t *testing.T) {
	models := &fakeModels{steps: []fakeStep{
		{payload: domain.DistractorPayload{"1": "озеро", "2": "крещенское озеро"}},
		{payload: domain.DistractorPayload{"theme": "bodies of water", "1": "река"}},
	}}
	g := newTestGenerator(models)

	pair := domain.WordPair{Word: "sea", Translation: "море", SourceLanguage: "en", TargetLanguage: "ru"}
	set, err := g.Generate(context.Background(), pair, 2, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(models.presets) != 2 {
		t.Fatalf("expected one regeneration call, got %v", models.presets)
	}
	if set.Theme != "bodies of water" {
		t.Fatalf("theme must be filled from the regeneration response, got %q", set.Theme)
	}
	if len(set.Distractors) != 2 || set.Distractors[0] != "озеро" || set.Distractors[1] != "река" {
		t.Fatalf("unexpected distractors: %v", set.Distractors)
	}
}

func TestSafeGenerateBackoffMatchesErrorClass(t *testing.T) {
	valid := domain.DistractorPayload{"theme": "fruits", "1": "груша", "2": "слива", "3": "вишня"}

	cases := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"rate limited", errors.New("429 Too Many Requests"), 20 * time.Second},
		{"service failure", errors.New("503 Service Unavailable"), 2 * time.Second},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			models := &fakeModels{steps: []fakeStep{{err: tc.err}, {payload: valid}}}
			g := newTestGenerator(models)

			var slept []time.Duration
			g.sleep = func(d time.Duration) { slept = append(slept, d) }

			if _, err := g.Generate(context.Background(), applePair, 3, 1); err != nil {
				t.Fatalf("expected recovery on retry, got %v", err)
			}
			if len(slept) != 1 || slept[0] != tc.want {
				t.Fatalf("expected one backoff of %v, got %v", tc.want, slept)
			}
		})
	}
}

func TestGenerateNeverReturnsTranslation(t *testing.T) {
	models := &fakeModels{steps: []fakeStep{
		{payload: domain.DistractorPayload{"theme": "fruits", "1": "груша", "2": "яблоко", "3": "слива", "4": "вишня"}},
	}}
	g := newTestGenerator(models)

	set, err := g.Generate(context.Background(), applePair, 3, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(set.Distractors) != 3 {
		t.Fatalf("expected 3 distractors, got %v", set.Distractors)
	}
	for _, d := range set.Distractors {
		if d == applePair.Translation {
			t.Fatalf("translation leaked into distractors: %v", set.Distractors)
		}
	}
}

func TestGenerateRetriesMalformedResponse(t *testing.T) {
	models := &fakeModels{steps: []fakeStep{
		{payload: domain.DistractorPayload{"note": "no theme, no numbers"}},
		{payload: domain.DistractorPayload{"theme": "fruits", "1": "груша", "2": "слива", "3": "вишня"}},
	}}
	g := newTestGenerator(models)

	set, err := g.Generate(context.Background(), applePair, 3, 1)
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if len(models.presets) != 2 {
		t.Fatalf("expected 2 calls (malformed then valid), got %d", len(models.presets))
	}
	if len(set.Distractors) != 3 {
		t.Fatalf("expected 3 distractors, got %v", set.Distractors)
	}
}

func TestGenerateFailsAfterResponseTrials(t *testing.T) {
	boom := errors.New("backend exploded")
	models := &fakeModels{steps: []fakeStep{{err: boom}, {err: boom}, {err: boom}}}
	g := newTestGenerator(models)

	_, err := g.Generate(context.Background(), applePair, 3, 1)
	if err == nil {
		t.Fatal("expected error after exhausting response trials")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if len(models.presets) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(models.presets))
	}
}

func TestDropDuplicatesFewerThanTwoIsNoop(t *testing.T) {
	g := newTestGenerator(&fakeModels{})

	unique, duplicates := g.dropDuplicates([]string{"озеро"})
	if len(unique) != 1 || unique[0] != "озеро" || duplicates != nil {
		t.Fatalf("expected input unchanged, got unique=%v duplicates=%v", unique, duplicates)
	}

	unique, duplicates = g.dropDuplicates(nil)
	if len(unique) != 0 || duplicates != nil {
		t.Fatalf("expected empty result, got unique=%v duplicates=%v", unique, duplicates)
	}
}

func TestDropDuplicatesKeepsEarliest(t *testing.T) {
	g := newTestGenerator(&fakeModels{})

	unique, duplicates := g.dropDuplicates([]string{"example", "example as", "feature"})
	if len(unique) != 2 || unique[0] != "example" || unique[1] != "feature" {
		t.Fatalf("expected earliest kept, got %v", unique)
	}
	if len(duplicates) != 1 || duplicates[0] != "example as" {
		t.Fatalf("expected later item flagged, got %v", duplicates)
	}
}

func TestDropDuplicatesChainResolvesToFirst(t *testing.T) {
	g := newTestGenerator(&fakeModels{})

	unique, duplicates := g.dropDuplicates([]string{"озеро", "крещенское озеро", "озеро большое"})
	if len(unique) != 1 || unique[0] != "озеро" {
		t.Fatalf("expected only the first of the chain kept, got %v", unique)
	}
	if len(duplicates) != 2 {
		t.Fatalf("expected both later items flagged, got %v", duplicates)
	}
}

type fakeCache struct {
	store map[string][]byte
	gets  int
	sets  int
}

func (f *fakeCache) Get(_ context.Context, key string, dest any) (bool, error) {
	f.gets++
	data, ok := f.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.sets++
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.store[key] = data
	return nil
}

func TestGenerateStoresAndReusesCache(t *testing.T) {
	models := &fakeModels{steps: []fakeStep{
		{payload: domain.DistractorPayload{"theme": "fruits", "1": "груша", "2": "слива", "3": "вишня"}},
	}}
	g := newTestGenerator(models)
	cache := &fakeCache{store: make(map[string][]byte)}
	g.SetCache(cache, time.Hour)

	first, err := g.Generate(context.Background(), applePair, 3, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("expected one cache write, got %d", cache.sets)
	}

	second, err := g.Generate(context.Background(), applePair, 3, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(models.presets) != 1 {
		t.Fatalf("cache hit must not trigger a remote call, got %d calls", len(models.presets))
	}
	if second.Theme != first.Theme || len(second.Distractors) != len(first.Distractors) {
		t.Fatalf("cached set differs: %v vs %v", second, first)
	}
}
