package session

import (
	"testing"

	"github.com/duskfetch/dlengine/internal/model"
)

type panickingListener struct {
	NoopListener
}

func (panickingListener) OnQueued(model.Handle) { panic("boom") }

type recordingListener struct {
	NoopListener
	queued chan struct{}
}

func (l *recordingListener) OnQueued(model.Handle) { l.queued <- struct{}{} }

func TestBroadcasterRecoversFromPanickingListener(t *testing.T) {
	bc := &broadcaster{}
	bc.add(panickingListener{})

	after := &recordingListener{queued: make(chan struct{}, 1)}
	bc.add(after)

	bc.queued(model.Handle{ID: "a"})

	select {
	case <-after.queued:
	default:
		t.Fatalf("expected the listener registered after the panicking one to still receive the event")
	}
}

func TestBroadcasterDeliversToEveryListener(t *testing.T) {
	bc := &broadcaster{}
	first := &recordingListener{queued: make(chan struct{}, 1)}
	second := &recordingListener{queued: make(chan struct{}, 1)}
	bc.add(first)
	bc.add(second)

	bc.queued(model.Handle{ID: "a"})

	if len(first.queued) != 1 || len(second.queued) != 1 {
		t.Errorf("expected both listeners to receive the event")
	}
}
