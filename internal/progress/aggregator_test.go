package progress

import (
	"testing"

	"github.com/duskfetch/dlengine/internal/model"
)

func TestAddBytesEmitsImmediatelyWhenTotalUnknown(t *testing.T) {
	var emitted []model.Progress
	agg := NewAggregator(0, func(p model.Progress) { emitted = append(emitted, p) })

	agg.AddBytes(0, 100)
	agg.AddBytes(0, 50)

	if len(emitted) != 2 {
		t.Fatalf("expected every AddBytes to emit when total is unknown, got %d emissions", len(emitted))
	}
	if emitted[1].BytesDownloaded != 150 {
		t.Errorf("expected cumulative byte count 150, got %d", emitted[1].BytesDownloaded)
	}
	if emitted[1].TotalBytes != nil {
		t.Errorf("expected TotalBytes to stay nil when never set")
	}
}

func TestAddBytesThrottledBelowStepAndInterval(t *testing.T) {
	var emitted []model.Progress
	agg := NewAggregator(0, func(p model.Progress) { emitted = append(emitted, p) })
	agg.SetTotalBytes(10 * 1024 * 1024)

	// First call after SetTotalBytes always has elapsedSinceEmit large
	// relative to lastEmission's zero value, so it emits; subsequent tiny
	// deltas within the same instant should not.
	agg.AddBytes(0, 1024)
	firstCount := len(emitted)

	agg.AddBytes(0, 512) // well under the 24 KiB step, same instant
	if len(emitted) != firstCount {
		t.Errorf("expected a sub-step byte delta not to trigger emission, got %d emissions (was %d)", len(emitted), firstCount)
	}
}

func TestFlushForcesEmissionRegardlessOfThrottle(t *testing.T) {
	var emitted []model.Progress
	agg := NewAggregator(0, func(p model.Progress) { emitted = append(emitted, p) })
	agg.SetTotalBytes(10 * 1024 * 1024)

	agg.AddBytes(0, 1024)
	before := len(emitted)
	agg.AddBytes(0, 1) // suppressed by throttle
	agg.Flush(0)

	if len(emitted) != before+1 {
		t.Fatalf("expected Flush to force exactly one more emission, had %d now have %d", before, len(emitted))
	}
}

func TestSetTotalBytesOnlyAppliesOnce(t *testing.T) {
	agg := NewAggregator(0, func(model.Progress) {})
	agg.SetTotalBytes(1000)
	agg.SetTotalBytes(9999)

	var emitted model.Progress
	agg.onEmit = func(p model.Progress) { emitted = p }
	agg.Flush(0)

	if emitted.TotalBytes == nil || *emitted.TotalBytes != 1000 {
		t.Errorf("expected the first SetTotalBytes call to win, got %v", emitted.TotalBytes)
	}
}

func TestReachingFullPercentForcesEmission(t *testing.T) {
	var emitted []model.Progress
	agg := NewAggregator(0, func(p model.Progress) { emitted = append(emitted, p) })
	agg.SetTotalBytes(100)

	agg.AddBytes(0, 40) // emits (first call)
	before := len(emitted)
	agg.AddBytes(0, 60) // reaches 100%, must emit even though byte step and interval haven't elapsed

	if len(emitted) != before+1 {
		t.Fatalf("expected reaching 100%% to force an emission")
	}
	last := emitted[len(emitted)-1]
	if last.Percent == nil || *last.Percent != 100 {
		t.Errorf("expected percent 100, got %v", last.Percent)
	}
	if last.RemainingBytes == nil || *last.RemainingBytes != 0 {
		t.Errorf("expected 0 remaining bytes, got %v", last.RemainingBytes)
	}
}
