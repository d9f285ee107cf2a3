package tts_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/sentence-clips-service/internal/config"
	"github.com/book-expert/sentence-clips-service/internal/core"
	"github.com/book-expert/sentence-clips-service/internal/tts"
)

const audioPrefix = "audio:"

// createTestConfig creates a minimal test configuration for engine testing.
func createTestConfig(workers int) *config.Config {
	return &config.Config{
		Synthesis: config.SynthesisConfig{
			Voice:             "en-US-AriaNeural",
			Rate:              "+0%",
			Volume:            "+0%",
			TimeoutSeconds:    30,
			Workers:           workers,
			RequestsPerMinute: 0,
		},
	}
}

// createTestLogger creates a logger for testing.
func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	tempDir := t.TempDir()

	log, err := logger.New(tempDir, "test.log")
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}

	t.Cleanup(func() {
		closeErr := log.Close()
		if closeErr != nil {
			t.Logf("Failed to close logger: %v", closeErr)
		}
	})

	return log
}

// mockSynthesizer is a synthesis provider that records calls and can be
// told to fail on a specific sentence or to delay each call.
type mockSynthesizer struct {
	mu      sync.Mutex
	calls   []string
	failOn  string
	failErr error
	delay   time.Duration
}

func (m *mockSynthesizer) Synthesize(
	ctx context.Context,
	text string,
	_ core.VoiceSpec,
) ([]byte, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.failOn != "" && text == m.failOn {
		return nil, m.failErr
	}

	return []byte(audioPrefix + text), nil
}

func (m *mockSynthesizer) recordedCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.calls...)
}

func TestNewEngine(t *testing.T) {
	t.Parallel()

	engine := tts.NewEngine(createTestConfig(1), createTestLogger(t))
	if engine == nil {
		t.Fatal("Expected non-nil engine")
	}
}

func TestEngine_Synthesize_Success(t *testing.T) {
	t.Parallel()

	mock := &mockSynthesizer{}
	engine := tts.NewEngineWithSynthesizer(
		createTestConfig(1),
		createTestLogger(t),
		mock,
	)

	audio, err := engine.Synthesize(
		context.Background(),
		"Hello world.",
		core.VoiceSpec{},
	)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	expected := audioPrefix + "Hello world."
	if string(audio) != expected {
		t.Errorf("Expected %q, got %q", expected, string(audio))
	}
}

func TestEngine_Synthesize_TimeoutClassification(t *testing.T) {
	t.Parallel()

	mock := &mockSynthesizer{
		failOn:  "slow sentence",
		failErr: context.DeadlineExceeded,
	}
	engine := tts.NewEngineWithSynthesizer(
		createTestConfig(1),
		createTestLogger(t),
		mock,
	)

	_, err := engine.Synthesize(
		context.Background(),
		"slow sentence",
		core.VoiceSpec{},
	)
	if !errors.Is(err, core.ErrSynthesisTimeout) {
		t.Errorf("Expected synthesis timeout error, got: %v", err)
	}

	if errors.Is(err, core.ErrSynthesis) {
		t.Errorf("Timeout should not classify as plain synthesis failure: %v", err)
	}
}

func TestEngine_Synthesize_FailureClassification(t *testing.T) {
	t.Parallel()

	mock := &mockSynthesizer{
		failOn:  "bad sentence",
		failErr: errors.New("connection reset"),
	}
	engine := tts.NewEngineWithSynthesizer(
		createTestConfig(1),
		createTestLogger(t),
		mock,
	)

	_, err := engine.Synthesize(
		context.Background(),
		"bad sentence",
		core.VoiceSpec{},
	)
	if !errors.Is(err, core.ErrSynthesis) {
		t.Errorf("Expected synthesis failure error, got: %v", err)
	}

	if errors.Is(err, core.ErrSynthesisTimeout) {
		t.Errorf("Provider failure should not classify as timeout: %v", err)
	}
}

func TestEngine_Synthesize_DeadlineExpires(t *testing.T) {
	t.Parallel()

	mock := &mockSynthesizer{delay: 500 * time.Millisecond}
	engine := tts.NewEngineWithSynthesizer(
		createTestConfig(1),
		createTestLogger(t),
		mock,
	)

	ctx, cancel := context.WithTimeout(
		context.Background(),
		50*time.Millisecond,
	)
	defer cancel()

	_, err := engine.Synthesize(ctx, "never finishes", core.VoiceSpec{})
	if !errors.Is(err, core.ErrSynthesisTimeout) {
		t.Errorf("Expected synthesis timeout error, got: %v", err)
	}
}

func TestEngine_Synthesize_CancellationPassesThrough(t *testing.T) {
	t.Parallel()

	mock := &mockSynthesizer{delay: 500 * time.Millisecond}
	engine := tts.NewEngineWithSynthesizer(
		createTestConfig(1),
		createTestLogger(t),
		mock,
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Synthesize(ctx, "canceled sentence", core.VoiceSpec{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}

	if errors.Is(err, core.ErrSynthesis) {
		t.Errorf("Cancellation should not classify as synthesis failure: %v", err)
	}
}

func TestEngine_SynthesizeAll_Sequential(t *testing.T) {
	t.Parallel()

	mock := &mockSynthesizer{}
	engine := tts.NewEngineWithSynthesizer(
		createTestConfig(1),
		createTestLogger(t),
		mock,
	)

	sentences := []string{"First sentence.", "Second one?", "Third!"}

	results, err := engine.SynthesizeAll(
		context.Background(),
		sentences,
		core.VoiceSpec{},
	)
	if err != nil {
		t.Fatalf("SynthesizeAll failed: %v", err)
	}

	if len(results) != len(sentences) {
		t.Fatalf("Expected %d results, got %d", len(sentences), len(results))
	}

	for index, sentence := range sentences {
		expected := audioPrefix + sentence
		if string(results[index]) != expected {
			t.Errorf(
				"Result %d: expected %q, got %q",
				index,
				expected,
				string(results[index]),
			)
		}
	}

	calls := mock.recordedCalls()
	for index, sentence := range sentences {
		if calls[index] != sentence {
			t.Errorf(
				"Call %d: expected %q, got %q",
				index,
				sentence,
				calls[index],
			)
		}
	}
}

func TestEngine_SynthesizeAll_SequentialStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	mock := &mockSynthesizer{
		failOn:  "Second one?",
		failErr: errors.New("provider exploded"),
	}
	engine := tts.NewEngineWithSynthesizer(
		createTestConfig(1),
		createTestLogger(t),
		mock,
	)

	sentences := []string{"First sentence.", "Second one?", "Third!"}

	results, err := engine.SynthesizeAll(
		context.Background(),
		sentences,
		core.VoiceSpec{},
	)
	if !errors.Is(err, core.ErrSynthesis) {
		t.Errorf("Expected synthesis failure error, got: %v", err)
	}

	if results != nil {
		t.Errorf("Expected nil results on failure, got %d entries", len(results))
	}

	calls := mock.recordedCalls()
	if len(calls) != 2 {
		t.Errorf("Expected synthesis to stop after 2 calls, got %d", len(calls))
	}
}

func TestEngine_SynthesizeAll_ParallelPreservesOrder(t *testing.T) {
	t.Parallel()

	mock := &mockSynthesizer{delay: 10 * time.Millisecond}
	engine := tts.NewEngineWithSynthesizer(
		createTestConfig(4),
		createTestLogger(t),
		mock,
	)

	sentences := []string{
		"Sentence one.",
		"Sentence two.",
		"Sentence three.",
		"Sentence four.",
		"Sentence five.",
		"Sentence six.",
		"Sentence seven.",
		"Sentence eight.",
	}

	results, err := engine.SynthesizeAll(
		context.Background(),
		sentences,
		core.VoiceSpec{},
	)
	if err != nil {
		t.Fatalf("SynthesizeAll failed: %v", err)
	}

	for index, sentence := range sentences {
		expected := audioPrefix + sentence
		if string(results[index]) != expected {
			t.Errorf(
				"Result %d: expected %q, got %q",
				index,
				expected,
				string(results[index]),
			)
		}
	}
}

func TestEngine_SynthesizeAll_ParallelAbortsOnFailure(t *testing.T) {
	t.Parallel()

	mock := &mockSynthesizer{
		failOn:  "Sentence two.",
		failErr: errors.New("provider exploded"),
	}
	engine := tts.NewEngineWithSynthesizer(
		createTestConfig(2),
		createTestLogger(t),
		mock,
	)

	sentences := []string{
		"Sentence one.",
		"Sentence two.",
		"Sentence three.",
		"Sentence four.",
		"Sentence five.",
		"Sentence six.",
	}

	results, err := engine.SynthesizeAll(
		context.Background(),
		sentences,
		core.VoiceSpec{},
	)
	if !errors.Is(err, core.ErrSynthesis) {
		t.Errorf("Expected synthesis failure error, got: %v", err)
	}

	if results != nil {
		t.Errorf("Expected nil results on failure, got %d entries", len(results))
	}
}

func TestEngine_SynthesizeAll_Empty(t *testing.T) {
	t.Parallel()

	engine := tts.NewEngineWithSynthesizer(
		createTestConfig(1),
		createTestLogger(t),
		&mockSynthesizer{},
	)

	_, err := engine.SynthesizeAll(context.Background(), nil, core.VoiceSpec{})
	if !errors.Is(err, core.ErrNoSentences) {
		t.Errorf("Expected no sentences error, got: %v", err)
	}
}

func TestEngine_SynthesizeAll_ZeroWorkersRunsSequentially(t *testing.T) {
	t.Parallel()

	mock := &mockSynthesizer{}
	engine := tts.NewEngineWithSynthesizer(
		createTestConfig(0),
		createTestLogger(t),
		mock,
	)

	sentences := []string{"One.", "Two."}

	results, err := engine.SynthesizeAll(
		context.Background(),
		sentences,
		core.VoiceSpec{},
	)
	if err != nil {
		t.Fatalf("SynthesizeAll failed: %v", err)
	}

	if len(results) != len(sentences) {
		t.Fatalf("Expected %d results, got %d", len(sentences), len(results))
	}

	calls := mock.recordedCalls()
	if len(calls) != 2 || calls[0] != "One." || calls[1] != "Two." {
		t.Errorf("Expected ordered sequential calls, got %v", calls)
	}
}

func TestEngine_SynthesizeAll_RateLimited(t *testing.T) {
	t.Parallel()

	cfg := createTestConfig(1)
	cfg.Synthesis.RequestsPerMinute = 600

	mock := &mockSynthesizer{}
	engine := tts.NewEngineWithSynthesizer(cfg, createTestLogger(t), mock)

	sentences := []string{"One.", "Two.", "Three."}
	started := time.Now()

	results, err := engine.SynthesizeAll(
		context.Background(),
		sentences,
		core.VoiceSpec{},
	)
	if err != nil {
		t.Fatalf("SynthesizeAll failed: %v", err)
	}

	if len(results) != len(sentences) {
		t.Fatalf("Expected %d results, got %d", len(sentences), len(results))
	}

	// 600 requests per minute paces one request per 100ms, so three
	// sentences need at least two full intervals after the first.
	elapsed := time.Since(started)
	if elapsed < 150*time.Millisecond {
		t.Errorf("Expected rate limiting to pace requests, finished in %v", elapsed)
	}
}
