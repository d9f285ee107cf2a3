// Package tts orchestrates per-sentence speech synthesis. It wraps a
// synthesis provider with rate limiting, per-sentence deadlines, and a
// bounded worker pool, while keeping results in input order.
package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"golang.org/x/time/rate"

	"github.com/book-expert/sentence-clips-service/internal/config"
	"github.com/book-expert/sentence-clips-service/internal/core"
	"github.com/book-expert/sentence-clips-service/internal/tts/edge"
)

const (
	minWorkers = 1

	// limiterBurst keeps request pacing strict: one request per tick.
	limiterBurst = 1
)

// Log formats and error format strings.
const (
	errFmtRateLimitWait  = "rate limit wait failed: %w"
	errFmtCause          = "%w: %v"
	errFmtSentenceFailed = "sentence %d failed: %w"

	logFmtBatchStart     = "Synthesizing %d sentences with %d workers"
	logFmtSentenceDone   = "Synthesized sentence %d/%d"
	logFmtSentenceFailed = "Failed to synthesize sentence %d: %v"
)

// Engine turns sentences into audio clips through a synthesis provider.
//
// Synthesis runs sequentially by default. With more than one worker,
// sentences are synthesized concurrently but results keep their input
// positions, so clip ordering never depends on completion timing.
type Engine struct {
	provider core.Synthesizer
	limiter  *rate.Limiter
	timeout  time.Duration
	workers  int
	log      *logger.Logger
}

// NewEngine creates an engine backed by the read-aloud provider.
func NewEngine(cfg *config.Config, log *logger.Logger) *Engine {
	return NewEngineWithSynthesizer(cfg, log, edge.NewClient(log))
}

// NewEngineWithSynthesizer creates an engine with a custom provider. This
// constructor is primarily for testing purposes, allowing injection of mock
// providers while maintaining the same engine behavior.
func NewEngineWithSynthesizer(
	cfg *config.Config,
	log *logger.Logger,
	provider core.Synthesizer,
) *Engine {
	workers := cfg.Synthesis.Workers
	if workers < minWorkers {
		workers = minWorkers
	}

	return &Engine{
		provider: provider,
		limiter:  newLimiter(cfg.Synthesis.RequestsPerMinute),
		timeout:  cfg.Synthesis.Timeout(),
		workers:  workers,
		log:      log,
	}
}

// newLimiter builds the request pacer. Zero or negative requests per minute
// disables pacing.
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}

	interval := time.Minute / time.Duration(requestsPerMinute)

	return rate.NewLimiter(rate.Every(interval), limiterBurst)
}

// Synthesize converts one sentence into audio, bounded by the configured
// per-sentence deadline.
//
// Provider failures come back wrapped in the service error taxonomy: deadline
// expiry maps to core.ErrSynthesisTimeout and any other provider failure to
// core.ErrSynthesis, so callers can classify with errors.Is. Cancellation of
// the caller's context passes through unchanged.
func (e *Engine) Synthesize(
	ctx context.Context,
	text string,
	voice core.VoiceSpec,
) ([]byte, error) {
	if e.limiter != nil {
		waitErr := e.limiter.Wait(ctx)
		if waitErr != nil {
			return nil, fmt.Errorf(errFmtRateLimitWait, waitErr)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	audio, synthErr := e.provider.Synthesize(callCtx, text, voice)
	if synthErr != nil {
		return nil, classify(synthErr)
	}

	return audio, nil
}

// classify maps a provider error onto the service error taxonomy.
func classify(synthErr error) error {
	if errors.Is(synthErr, context.DeadlineExceeded) {
		return fmt.Errorf(errFmtCause, core.ErrSynthesisTimeout, synthErr)
	}

	if errors.Is(synthErr, context.Canceled) {
		return synthErr
	}

	return fmt.Errorf(errFmtCause, core.ErrSynthesis, synthErr)
}

// SynthesizeAll converts every sentence into audio, returning one payload per
// sentence in input order.
//
// The batch is atomic: the first failure aborts outstanding work and the
// whole call returns that failure, so callers never see partial results.
func (e *Engine) SynthesizeAll(
	ctx context.Context,
	sentences []string,
	voice core.VoiceSpec,
) ([][]byte, error) {
	if len(sentences) == 0 {
		return nil, core.ErrNoSentences
	}

	e.log.Info(logFmtBatchStart, len(sentences), e.workers)

	if e.workers <= minWorkers {
		return e.synthesizeSequential(ctx, sentences, voice)
	}

	return e.synthesizeParallel(ctx, sentences, voice)
}

// synthesizeSequential processes sentences one at a time, stopping at the
// first failure.
func (e *Engine) synthesizeSequential(
	ctx context.Context,
	sentences []string,
	voice core.VoiceSpec,
) ([][]byte, error) {
	results := make([][]byte, len(sentences))

	for index, sentence := range sentences {
		audio, synthErr := e.Synthesize(ctx, sentence, voice)
		if synthErr != nil {
			e.log.Error(logFmtSentenceFailed, index+1, synthErr)

			return nil, fmt.Errorf(errFmtSentenceFailed, index+1, synthErr)
		}

		results[index] = audio

		e.log.Info(logFmtSentenceDone, index+1, len(sentences))
	}

	return results, nil
}

// synthesizeParallel processes sentences concurrently using a worker pool.
// Each result lands in the slot matching its sentence index. The first
// failure cancels the batch context so outstanding sentences stop early.
func (e *Engine) synthesizeParallel(
	ctx context.Context,
	sentences []string,
	voice core.VoiceSpec,
) ([][]byte, error) {
	var (
		waitGroup  sync.WaitGroup
		mutex      sync.Mutex
		firstError error
	)

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]byte, len(sentences))

	// Create worker pool to control concurrency
	workerPool := make(chan struct{}, e.workers)

	for sentenceIndex, sentence := range sentences {
		waitGroup.Add(1)

		go func(index int, text string) {
			defer waitGroup.Done()

			// Acquire worker slot to control concurrency
			workerPool <- struct{}{}

			defer func() { <-workerPool }()

			if batchCtx.Err() != nil {
				return
			}

			audio, synthErr := e.Synthesize(batchCtx, text, voice)
			if synthErr != nil {
				mutex.Lock()

				if firstError == nil {
					firstError = fmt.Errorf(
						errFmtSentenceFailed,
						index+1,
						synthErr,
					)
				}

				mutex.Unlock()
				e.log.Error(logFmtSentenceFailed, index+1, synthErr)
				cancel()

				return
			}

			results[index] = audio

			e.log.Info(logFmtSentenceDone, index+1, len(sentences))
		}(sentenceIndex, sentence)
	}

	waitGroup.Wait()
	close(workerPool)

	if firstError != nil {
		return nil, firstError
	}

	return results, nil
}
