package constants

import "time"

var RetryConfig = struct {
	ResponseTrials int
	BaseDelay      time.Duration
	RateLimitDelay time.Duration
}{
	ResponseTrials: 3,                // attempts per model call before giving up on a word
	BaseDelay:      2 * time.Second,  // backoff base for transient service failures
	RateLimitDelay: 20 * time.Second, // wait before retrying after a 429
}

var CircuitBreakerConfig = struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	RateLimitTimeout    time.Duration
	HealthCheckInterval time.Duration
}{
	FailureThreshold:    3,
	ResetTimeout:        30 * time.Second,
	RateLimitTimeout:    2 * time.Minute,
	HealthCheckInterval: 5 * time.Minute,
}

var CacheTTL = struct {
	DistractorSet time.Duration
}{
	DistractorSet: 14 * 24 * time.Hour,
}

var GenerationDefaults = struct {
	Count              int
	DeduplicateTrials  int
	DuplicateThreshold int
}{
	Count:              10,
	DeduplicateTrials:  1,
	DuplicateThreshold: 90,
}
