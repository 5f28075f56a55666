package translate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// checkSentence verifies that the text is exactly the committed labels in
// order and that the sequence numbers have no gaps.
func checkSentence(t *testing.T, s SentenceState) {
	t.Helper()
	var want strings.Builder
	for i, rec := range s.Signs {
		if rec.Seq != i {
			t.Errorf("sign %d has seq %d; signs = %+v", i, rec.Seq, s.Signs)
			return
		}
		want.WriteString(rec.Label)
	}
	if s.Text != want.String() {
		t.Errorf("text %q does not match committed labels %q", s.Text, want.String())
	}
}

func TestPipeline_ConcurrentCommandsDoNotInterleave(t *testing.T) {
	tp := newTestPipeline(t, Config{AutoAdd: true})

	const rounds = 300
	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Classifier: alternating held signs with timestamps far enough apart
	// to pass the hold and the cooldown.
	wg.Add(1)
	go func() {
		defer wg.Done()
		labels := []string{"a", "b"}
		for i := 0; i < rounds; i++ {
			label := labels[(i/40)%len(labels)]
			now := tp.clk.Advance(ms(40))
			tp.OnClassification(Sample{Label: label, Confidence: 0.9, ObservedAt: now})
		}
		close(stop)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := tp.AddLetterManually(); err != nil &&
				!errors.Is(err, ErrNoActiveDetection) && !errors.Is(err, ErrLowConfidence) {
				t.Errorf("AddLetterManually() error = %v", err)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := tp.ClearSentence(context.Background()); err != nil {
				t.Errorf("ClearSentence() error = %v", err)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			checkSentence(t, tp.Snapshot().Sentence)
		}
	}()

	wg.Wait()
	checkSentence(t, tp.Snapshot().Sentence)

	for _, tr := range tp.sink.all() {
		checkSentence(t, SentenceState{Text: tr.Sentence, Signs: tr.Signs})
	}
}

func TestPipeline_ShutdownFlushesAndStops(t *testing.T) {
	tp := newTestPipeline(t, Config{AutoAdd: true})
	tp.show("o", 0.9, 40, ms(33))
	if got := tp.Snapshot().Sentence.Text; got != "o" {
		t.Fatalf("Text = %q, want o", got)
	}
	updates, _ := tp.Subscribe()

	flushed, err := tp.Shutdown(context.Background())
	if err != nil || !flushed {
		t.Fatalf("Shutdown() = %v, %v", flushed, err)
	}
	if n := tp.sink.count(); n != 1 {
		t.Fatalf("sink entries = %d, want 1", n)
	}
	if got := tp.sink.last().Sentence; got != "o" {
		t.Fatalf("flushed sentence = %q, want o", got)
	}
	for range updates {
	}

	// A frame still in flight when the session ends must not commit.
	tp.show("k", 0.9, 40, ms(33))
	tp.AddSpace()
	if got := tp.Snapshot().Sentence.Text; got != "o" {
		t.Errorf("Text after shutdown = %q, want o", got)
	}
	if _, err := tp.AddLetterManually(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("AddLetterManually() after shutdown = %v, want ErrSessionClosed", err)
	}
	if err := tp.SaveToHistory(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("SaveToHistory() after shutdown = %v, want ErrSessionClosed", err)
	}
	if _, err := tp.ClearSentence(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("ClearSentence() after shutdown = %v, want ErrSessionClosed", err)
	}
	if tp.sink.count() != 1 {
		t.Errorf("sink entries = %d, want 1", tp.sink.count())
	}
}

func TestPipeline_ShutdownStopsOnFlushError(t *testing.T) {
	sink := &fakeSink{err: errDiskFull}
	tp := newTestPipeline(t, Config{History: sink})
	tp.show("o", 0.9, 5, ms(33))
	if _, err := tp.AddLetterManually(); err != nil {
		t.Fatal(err)
	}

	if _, err := tp.Shutdown(context.Background()); err == nil {
		t.Fatal("Shutdown() should report the flush error")
	}
	if _, err := tp.AddLetterManually(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("AddLetterManually() = %v, want ErrSessionClosed", err)
	}
}
