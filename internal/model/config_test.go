package model

import "testing"

func TestNormalizeFillsZeroFields(t *testing.T) {
	got := Config{}.Normalize()

	if got.Chunking.ChunkCount != DefaultConfig().Chunking.ChunkCount {
		t.Errorf("expected default chunk count, got %d", got.Chunking.ChunkCount)
	}
	if got.Chunking.MinChunkSizeBytes != minChunkSizeFloor {
		t.Errorf("expected min chunk size floor, got %d", got.Chunking.MinChunkSizeBytes)
	}
	if got.Retry.MaxAttempts != DefaultConfig().Retry.MaxAttempts {
		t.Errorf("expected default max attempts, got %d", got.Retry.MaxAttempts)
	}
	if len(got.Storage.Destinations) == 0 {
		t.Errorf("expected a default destination to be filled in")
	}
}

func TestNormalizeClampsBelowMinChunkSize(t *testing.T) {
	cfg := Config{Chunking: Chunking{ChunkCount: 4, MinChunkSizeBytes: 100}}.Normalize()
	if cfg.Chunking.MinChunkSizeBytes != minChunkSizeFloor {
		t.Errorf("expected clamp to %d, got %d", minChunkSizeFloor, cfg.Chunking.MinChunkSizeBytes)
	}
}

func TestNormalizeClampsBackoffMultiplierFloor(t *testing.T) {
	cfg := Config{Retry: RetryPolicy{MaxAttempts: 3, InitialDelayMs: 500, BackoffMultiplier: 0.1}}.Normalize()
	if cfg.Retry.BackoffMultiplier != 1.0 {
		t.Errorf("expected backoff multiplier clamped to 1.0, got %v", cfg.Retry.BackoffMultiplier)
	}
}

func TestNormalizePreservesExplicitValues(t *testing.T) {
	cfg := Config{
		Chunking: Chunking{ChunkCount: 8, MinChunkSizeBytes: 1024 * 1024},
		Retry:    RetryPolicy{MaxAttempts: 5, InitialDelayMs: 1000, BackoffMultiplier: 3.0},
	}.Normalize()

	if cfg.Chunking.ChunkCount != 8 {
		t.Errorf("expected chunk count preserved, got %d", cfg.Chunking.ChunkCount)
	}
	if cfg.Retry.BackoffMultiplier != 3.0 {
		t.Errorf("expected backoff multiplier preserved, got %v", cfg.Retry.BackoffMultiplier)
	}
}
