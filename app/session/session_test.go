package session

import (
	"sync"
	"testing"
)

func TestZeroSessionIsIdle(t *testing.T) {
	st := NewStore()
	s := st.Get(42)
	if s.Active() {
		t.Error("unknown user should be idle")
	}
	if s.Step != "" || s.Ratio != "" || s.PendingImage != nil {
		t.Errorf("zero session not empty: %+v", s)
	}
}

func TestBeginReplacesPreviousFlow(t *testing.T) {
	st := NewStore()
	st.Begin(1, FlowImageToImage, StepAwaitingImage)
	st.Update(1, func(s *Session) {
		s.PendingImage = []byte{0xff, 0xd8}
		s.Step = StepAwaitingPrompt
	})

	st.Begin(1, FlowTextToImage, StepAwaitingRatio)

	s := st.Get(1)
	if s.Flow != FlowTextToImage || s.Step != StepAwaitingRatio {
		t.Errorf("session = %+v", s)
	}
	if s.PendingImage != nil {
		t.Error("pending image survived flow restart")
	}
}

func TestClearResetsAndBumpsEpoch(t *testing.T) {
	st := NewStore()
	epoch := st.Begin(1, FlowUpscale, StepAwaitingImage)
	if st.Stale(1, epoch) {
		t.Fatal("fresh epoch reported stale")
	}

	st.Clear(1)

	if st.Get(1).Active() {
		t.Error("session still active after clear")
	}
	if !st.Stale(1, epoch) {
		t.Error("epoch not bumped by clear")
	}
}

func TestBeginInvalidatesInFlightWork(t *testing.T) {
	st := NewStore()
	first := st.Begin(7, FlowTextToImage, StepAwaitingPrompt)
	second := st.Begin(7, FlowCaption, StepAwaitingImage)

	if !st.Stale(7, first) {
		t.Error("old epoch should be stale after new flow")
	}
	if st.Stale(7, second) {
		t.Error("current epoch reported stale")
	}
}

func TestUserIsolation(t *testing.T) {
	st := NewStore()
	st.Begin(1, FlowTextToImage, StepAwaitingPrompt)
	st.Begin(2, FlowOCR, StepAwaitingImage)

	st.Clear(1)

	if got := st.Get(2).Flow; got != FlowOCR {
		t.Errorf("user 2 flow = %q after clearing user 1", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	st := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				st.Begin(id, FlowTextToImage, StepAwaitingRatio)
				st.Update(id, func(s *Session) { s.Ratio = "square" })
				st.Get(id)
				st.Clear(id)
			}
		}(int64(i % 4))
	}
	wg.Wait()
}
