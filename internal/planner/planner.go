// Package planner turns a resource's total length, the chunking
// configuration, and any prior chunk state into the set of byte-range jobs
// a download attempt should run.
package planner

import (
	"github.com/duskfetch/dlengine/internal/model"
)

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Plan implements the chunk planner algorithm from §4.D. totalBytes <= 0
// means the length is unknown. priorStates, when non-nil, takes precedence
// over startOffset for resuming a specific chunk's progress.
func Plan(totalBytes int64, cfg model.Chunking, startOffset uint64, priorStates []model.ChunkState) []model.ChunkPlan {
	if totalBytes <= 0 {
		start := startOffset
		return []model.ChunkPlan{{Index: 0, Start: 0, EndInclusive: nil, ResumeOffset: start}}
	}

	total := uint64(totalBytes)
	ranges := sliceRanges(total, cfg)

	if priorStates != nil {
		return applyPriorStates(ranges, priorStates)
	}
	if startOffset > 0 {
		return applyStartOffset(ranges, startOffset, total)
	}
	return ranges
}

// sliceRanges divides [0, total) into contiguous half-open slices per the
// effective-chunk-size rule, with the last slice absorbing the remainder.
func sliceRanges(total uint64, cfg model.Chunking) []model.ChunkPlan {
	minSize := uint64(cfg.MinChunkSizeBytes)
	if minSize == 0 {
		minSize = 64 * 1024
	}
	effective := total / uint64(max(cfg.ChunkCount, 1))
	if effective < minSize {
		effective = minSize
	}
	count := int((total + effective - 1) / effective)
	count = clampInt(count, 1, max(cfg.ChunkCount, 1))
	if count < 1 {
		count = 1
	}

	sliceLen := total / uint64(count)
	plans := make([]model.ChunkPlan, 0, count)
	var start uint64
	for i := 0; i < count; i++ {
		end := start + sliceLen - 1
		if i == count-1 {
			end = total - 1
		}
		plans = append(plans, model.ChunkPlan{
			Index:        uint32(i),
			Start:        start,
			EndInclusive: model.Ptr(end),
			ResumeOffset: start,
		})
		start = end + 1
	}
	return plans
}

func applyPriorStates(ranges []model.ChunkPlan, priorStates []model.ChunkState) []model.ChunkPlan {
	byIndex := make(map[uint32]model.ChunkState, len(priorStates))
	for _, st := range priorStates {
		byIndex[st.Index] = st
	}
	var out []model.ChunkPlan
	for _, r := range ranges {
		endInclusive := *r.EndInclusive
		resume := r.Start
		if st, ok := byIndex[r.Index]; ok {
			resumed := model.ChunkState{
				Index:        r.Index,
				Start:        r.Start,
				EndInclusive: r.EndInclusive,
				NextOffset:   clampU64(st.NextOffset, r.Start, endInclusive+1),
			}
			if resumed.Complete() {
				continue
			}
			resume = resumed.NextOffset
		}
		r.ResumeOffset = resume
		out = append(out, r)
	}
	return out
}

func applyStartOffset(ranges []model.ChunkPlan, startOffset, total uint64) []model.ChunkPlan {
	var out []model.ChunkPlan
	for _, r := range ranges {
		endInclusive := *r.EndInclusive
		if endInclusive < startOffset {
			continue // fully covered by prior progress
		}
		if startOffset > r.Start {
			r.ResumeOffset = startOffset
		} else {
			r.ResumeOffset = r.Start
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		// startOffset landed past every planned range; synthesize a single
		// tail-catchup plan so a byte-accurate resume is still possible.
		tailStart := startOffset
		if tailStart > total-1 {
			tailStart = total - 1
		}
		out = append(out, model.ChunkPlan{
			Index:        0,
			Start:        tailStart,
			EndInclusive: model.Ptr(total - 1),
			ResumeOffset: tailStart,
		})
	}
	return out
}

func clampU64(v, lo, hi uint64) uint64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
