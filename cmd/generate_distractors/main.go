package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/kapu/distractor-gen-go/internal/config"
	"github.com/kapu/distractor-gen-go/internal/domain"
	"github.com/kapu/distractor-gen-go/internal/output"
	"github.com/kapu/distractor-gen-go/internal/prompt"
	"github.com/kapu/distractor-gen-go/internal/service"
	"github.com/kapu/distractor-gen-go/internal/service/cache"
	"github.com/kapu/distractor-gen-go/internal/util"
)

func main() {
	var inputPath string
	var outputPath string
	var modelName string
	var count int
	var dedupTrials int
	var workers int
	var force bool

	flag.StringVar(&inputPath, "i", "", "path to file with pairs of words and its translations")
	flag.IntVar(&count, "n", -1, "number of distractors to generate for each word (-1 uses config default)")
	flag.IntVar(&dedupTrials, "d", -1, "max. number of trials to deduplicate distractors (-1 uses config default)")
	flag.StringVar(&outputPath, "o", "distractors.json", "path to the output JSON file")
	flag.IntVar(&workers, "w", 1, "number of word pairs processed concurrently")
	flag.StringVar(&modelName, "model", "", "OpenAI model override (e.g. gpt-4.1-mini, gpt-4o)")
	flag.BoolVar(&force, "force", false, "regenerate words already present in the output file")
	flag.Parse()

	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "input file is required (-i)")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if count < 0 {
		count = cfg.Generation.Count
	}
	if dedupTrials < 0 {
		dedupTrials = cfg.Generation.DeduplicateTrials
	}
	if modelName != "" {
		cfg.OpenAI.Model = modelName
	}
	if workers < 1 {
		workers = 1
	}

	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	pairs, err := domain.LoadWordPairs(inputPath, logger)
	if err != nil {
		logger.Fatal("failed to load word list", zap.String("input", inputPath), zap.Error(err))
	}
	if len(pairs) == 0 {
		logger.Info("nothing to generate", zap.String("input", inputPath))
		return
	}

	if tokens, tokenErr := prompt.CountTokens(prompt.Instructions(), cfg.OpenAI.Model); tokenErr == nil {
		logger.Info("tokens in the prompt", zap.Int("tokens", tokens), zap.String("model", cfg.OpenAI.Model))
	} else {
		logger.Warn("failed to count prompt tokens", zap.Error(tokenErr))
	}

	outputs := make(map[string]*domain.OutputEntry, len(pairs))
	if !force {
		existing, loadErr := output.Load(outputPath)
		if loadErr != nil {
			logger.Warn("failed to read existing output, regenerating everything", zap.Error(loadErr))
		} else {
			for word, entry := range existing {
				outputs[word] = entry
			}
		}
	}

	ctx := context.Background()

	mm, err := service.NewModelManager(ctx, service.ModelManagerConfig{
		OpenAIAPIKey:       cfg.OpenAI.APIKey,
		DefaultOpenAIModel: cfg.OpenAI.Model,
		GeminiAPIKey:       cfg.Gemini.APIKey,
		DefaultGeminiModel: cfg.Gemini.Model,
		EnableFallback:     cfg.Gemini.EnableFallback,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create model manager", zap.Error(err))
	}

	generator := service.NewDistractorGenerator(mm, cfg.Generation.DuplicateThreshold, logger)

	if cfg.Redis.Host != "" {
		cacheSvc, cacheErr := cache.NewService(cache.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if cacheErr != nil {
			logger.Warn("distractor cache disabled", zap.Error(cacheErr))
		} else {
			defer cacheSvc.Close()
			generator.SetCache(cacheSvc, cfg.Redis.TTL)
		}
	}

	targets := make([]domain.WordPair, 0, len(pairs))
	for _, pair := range pairs {
		if _, ok := outputs[pair.Word]; ok {
			logger.Info("skip (cached)", zap.String("word", pair.Word))
			continue
		}
		targets = append(targets, pair)
	}

	logger.Info("starting generation run",
		zap.Int("total", len(pairs)),
		zap.Int("targets", len(targets)),
		zap.Int("count", count),
		zap.Int("deduplicate_trials", dedupTrials),
		zap.Int("workers", workers),
		zap.Bool("force", force),
	)

	// Each pair is independent: workers share nothing but the generator,
	// and every goroutine writes only its own slice index.
	results := make([]*domain.DistractorSet, len(targets))
	durations := make([]float64, len(targets))

	bar := progressbar.Default(int64(len(targets)), "generating distractors")
	workerPool := pool.New().WithMaxGoroutines(workers)

	for i, pair := range targets {
		workerPool.Go(func() {
			start := time.Now()
			set, genErr := generator.Generate(ctx, pair, count, dedupTrials)
			durations[i] = time.Since(start).Seconds()
			_ = bar.Add(1)

			if genErr != nil {
				logger.Warn("skipping word", zap.String("word", pair.Word), zap.Error(genErr))
				return
			}

			results[i] = set
			if cfg.Generation.RequestDelay > 0 {
				time.Sleep(cfg.Generation.RequestDelay)
			}
		})
	}
	workerPool.Wait()

	generated := 0
	for _, set := range results {
		if set == nil {
			continue
		}
		outputs[set.Pair.Word] = &domain.OutputEntry{
			Theme:       set.Theme,
			Translation: set.Pair.Translation,
			Distractors: set.Distractors,
		}
		generated++
	}

	if len(durations) > 0 {
		mean, std := util.MeanStd(durations)
		logger.Info("generation time",
			zap.String("per_word", fmt.Sprintf("%.3f ± %.3f sec", mean, std)),
		)
	}

	if err := output.Write(outputPath, outputs); err != nil {
		logger.Fatal("failed to write output", zap.Error(err))
	}

	logger.Info("saved distractors",
		zap.Int("words", len(outputs)),
		zap.Int("generated", generated),
		zap.Int("failed", len(targets)-generated),
		zap.String("output", outputPath),
	)
}
