package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nomadai/concierge/internal/logging"
)

func newObserved() (*Recorder, *observer.ObservedLogs, *time.Time) {
	core, logs := observer.New(zapcore.DebugLevel)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	r := NewRecorder(logging.NewWithCore(core), func() time.Time { return *clock })
	return r, logs, clock
}

func TestEmit_FlatRecord(t *testing.T) {
	r, logs, _ := newObserved()

	r.Emit(Event{
		Name:      "turn_completed",
		SessionID: "s1",
		Latency:   1500 * time.Millisecond,
		Outcome:   OutcomeOK,
		Fields:    map[string]interface{}{"iterations": 2},
	})

	entries := logs.FilterMessage("turn_completed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event_name"] != "turn_completed" || fields["session_id"] != "s1" || fields["outcome"] != "ok" {
		t.Errorf("fields = %v", fields)
	}
	if fields["latency_ms"] != int64(1500) {
		t.Errorf("latency_ms = %v (%T)", fields["latency_ms"], fields["latency_ms"])
	}
	if fields["iterations"] != int64(2) {
		t.Errorf("iterations = %v (%T)", fields["iterations"], fields["iterations"])
	}

	r.Emit(Event{Name: "turn_failed", Outcome: OutcomeError})
	if got := logs.FilterMessage("turn_failed").All(); len(got) != 1 || got[0].Level != zapcore.WarnLevel {
		t.Errorf("error events should log at warn: %+v", got)
	}
}

func TestSnapshot(t *testing.T) {
	r, _, clock := newObserved()
	r.SetSessionGauge(func() int { return 3 })

	r.IncRequest("chat")
	r.IncRequest("chat")
	r.IncRequest("voice")
	r.RecordError("rate_limited")
	r.RecordError("")
	r.RecordCache(true)
	r.RecordCache(false)
	r.RecordCache(false)
	r.RecordCache(true)
	r.RecordLoopExhausted()
	r.ObserveLatency("reasoning_model", 100*time.Millisecond, nil)
	r.ObserveLatency("reasoning_model", 300*time.Millisecond, errors.New("boom"))

	*clock = clock.Add(90 * time.Second)
	snap := r.Snapshot()

	if snap.Requests["chat"] != 2 || snap.Requests["voice"] != 1 {
		t.Errorf("Requests = %v", snap.Requests)
	}
	if len(snap.Errors) != 1 || snap.Errors["rate_limited"] != 1 {
		t.Errorf("Errors = %v", snap.Errors)
	}
	if snap.Cache.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", snap.Cache.HitRate)
	}
	lat := snap.Latency["reasoning_model"]
	if lat.AvgMs != 200 || lat.Calls != 2 || lat.Failures != 1 {
		t.Errorf("Latency = %+v", lat)
	}
	if snap.LoopExhausted != 1 || snap.ActiveSessions != 3 {
		t.Errorf("LoopExhausted=%d ActiveSessions=%d", snap.LoopExhausted, snap.ActiveSessions)
	}
	if snap.UptimeSeconds != 90 {
		t.Errorf("UptimeSeconds = %v", snap.UptimeSeconds)
	}

	snap.Requests["chat"] = 99
	if r.Snapshot().Requests["chat"] != 2 {
		t.Error("Snapshot shares maps with the recorder")
	}
}

func TestRollingWindow(t *testing.T) {
	r, _, _ := newObserved()
	for i := 0; i < latencyWindow; i++ {
		r.ObserveLatency("stt", time.Second, nil)
	}
	for i := 0; i < latencyWindow; i++ {
		r.ObserveLatency("stt", 10*time.Millisecond, nil)
	}

	lat := r.Snapshot().Latency["stt"]
	if lat.AvgMs != 10 {
		t.Errorf("AvgMs = %v, want 10 (old samples rolled out)", lat.AvgMs)
	}
	if lat.Samples != latencyWindow || lat.Calls != 2*latencyWindow {
		t.Errorf("Samples=%d Calls=%d", lat.Samples, lat.Calls)
	}
}

func TestRetryObserver(t *testing.T) {
	r, logs, _ := newObserved()
	obs := r.RetryObserver()

	obs("speech_to_text", 1, 20*time.Millisecond, errors.New("503"))
	obs("speech_to_text", 2, 10*time.Millisecond, nil)

	lat := r.Snapshot().Latency["speech_to_text"]
	if lat.Calls != 2 || lat.Failures != 1 {
		t.Errorf("Latency = %+v", lat)
	}
	if logs.FilterMessage("dependency attempt failed").Len() != 1 {
		t.Error("failed attempt should be logged")
	}
}

func TestConcurrentRecording(t *testing.T) {
	r, _, _ := newObserved()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.IncRequest("chat")
				r.RecordCache(j%2 == 0)
				r.ObserveLatency("llm", time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	snap := r.Snapshot()
	if snap.Requests["chat"] != 1000 || snap.Cache.Hits != 500 {
		t.Errorf("Requests=%d Hits=%d", snap.Requests["chat"], snap.Cache.Hits)
	}
}
