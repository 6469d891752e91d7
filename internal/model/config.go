package model

const minChunkSizeFloor = 64 * 1024 // 64 KiB

// Chunking controls how a download is split across parallel range requests.
type Chunking struct {
	ChunkCount        int  `json:"chunkCount" yaml:"chunkCount"`
	MinChunkSizeBytes int64 `json:"minChunkSizeBytes" yaml:"minChunkSizeBytes"`
	PreferParallel    bool `json:"preferParallel" yaml:"preferParallel"`
}

// RetryPolicy controls the retry/backoff driver in the session manager.
type RetryPolicy struct {
	MaxAttempts        int     `json:"maxAttempts" yaml:"maxAttempts"`
	InitialDelayMs     int64   `json:"initialDelayMs" yaml:"initialDelayMs"`
	BackoffMultiplier  float64 `json:"backoffMultiplier" yaml:"backoffMultiplier"`
}

// StorageConfig configures the storage resolver.
type StorageConfig struct {
	Destinations      []Destination `json:"destinations" yaml:"destinations"`
	OverwriteExisting bool          `json:"overwriteExisting" yaml:"overwriteExisting"`
	ValidateFreeSpace bool          `json:"validateFreeSpace" yaml:"validateFreeSpace"`
	MinFreeSpaceBytes int64         `json:"minFreeSpaceBytes" yaml:"minFreeSpaceBytes"`
}

// IntegrityConfig toggles the checks run by the integrity verifier.
type IntegrityConfig struct {
	VerifyFileSize        bool `json:"verifyFileSize" yaml:"verifyFileSize"`
	VerifyChecksum        bool `json:"verifyChecksum" yaml:"verifyChecksum"`
	VerifyArchiveStructure bool `json:"verifyArchiveStructure" yaml:"verifyArchiveStructure"`
	VerifyContentType     bool `json:"verifyContentType" yaml:"verifyContentType"`
	VerifySignature       bool `json:"verifySignature" yaml:"verifySignature"`
}

// Config is the whole-of-engine configuration record. Listeners are
// intentionally absent: they are process-local and never persisted.
type Config struct {
	Chunking  Chunking        `json:"chunking" yaml:"chunking"`
	Retry     RetryPolicy     `json:"retry" yaml:"retry"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Integrity IntegrityConfig `json:"integrity" yaml:"integrity"`
}

// DefaultConfig returns the configuration defaults named in the data model.
func DefaultConfig() Config {
	return Config{
		Chunking: Chunking{
			ChunkCount:        3,
			MinChunkSizeBytes: 512 * 1024,
			PreferParallel:    true,
		},
		Retry: RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMs:    2000,
			BackoffMultiplier: 2.0,
		},
		Storage: StorageConfig{
			Destinations:      []Destination{AutoDestination()},
			OverwriteExisting: false,
			ValidateFreeSpace: true,
			MinFreeSpaceBytes: 0,
		},
		Integrity: IntegrityConfig{
			VerifyFileSize:        true,
			VerifyChecksum:        true,
			VerifyArchiveStructure: true,
			VerifyContentType:     false,
			VerifySignature:       false,
		},
	}
}

// Normalize applies the construction-time clamps the spec calls out
// (minimum chunk size, minimum backoff multiplier) and fills any zero
// fields left over from a partially-built Config.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.Chunking.ChunkCount <= 0 {
		c.Chunking.ChunkCount = def.Chunking.ChunkCount
	}
	if c.Chunking.MinChunkSizeBytes < minChunkSizeFloor {
		c.Chunking.MinChunkSizeBytes = minChunkSizeFloor
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.InitialDelayMs <= 0 {
		c.Retry.InitialDelayMs = def.Retry.InitialDelayMs
	}
	if c.Retry.BackoffMultiplier < 1.0 {
		c.Retry.BackoffMultiplier = 1.0
	}
	if len(c.Storage.Destinations) == 0 {
		c.Storage.Destinations = def.Storage.Destinations
	}
	return c
}
