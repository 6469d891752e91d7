package model

// ChunkState is the durable record of one chunk's progress: the minimum
// byte a resumed fetch must ask for. Index i is only ever written by the
// fetcher assigned to that index (single-writer-per-index).
type ChunkState struct {
	Index        uint32 `json:"index"`
	Start        uint64 `json:"start"`
	EndInclusive *uint64 `json:"endInclusive"` // nil means unbounded
	NextOffset   uint64  `json:"nextOffset"`
}

// Bounded reports whether this chunk has a known end byte.
func (c ChunkState) Bounded() bool { return c.EndInclusive != nil }

// Complete reports whether the chunk has fetched every byte in its range.
// An unbounded chunk is never "complete" by this measure; callers must
// infer completion from stream EOF instead.
func (c ChunkState) Complete() bool {
	if !c.Bounded() {
		return false
	}
	return c.NextOffset == *c.EndInclusive+1
}

// CompletedBytes returns the number of bytes fetched so far in this chunk.
func (c ChunkState) CompletedBytes() uint64 {
	if c.NextOffset < c.Start {
		return 0
	}
	return c.NextOffset - c.Start
}

// ChunkPlan is the planner's output: a byte range assignment together with
// the offset a fetcher should resume from.
type ChunkPlan struct {
	Index        uint32
	Start        uint64
	EndInclusive *uint64
	ResumeOffset uint64
}

func (p ChunkPlan) Bounded() bool { return p.EndInclusive != nil }

// ToState converts a plan into the ChunkState the fetcher will maintain
// while it runs.
func (p ChunkPlan) ToState() ChunkState {
	return ChunkState{
		Index:        p.Index,
		Start:        p.Start,
		EndInclusive: p.EndInclusive,
		NextOffset:   p.ResumeOffset,
	}
}

func Ptr(v uint64) *uint64 { return &v }
