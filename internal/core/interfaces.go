// Package core defines the shared contracts and error taxonomy for the
// sentence-clips service.
package core

import (
	"context"
	"errors"
)

// Default provider settings applied when a request leaves a field blank.
const (
	DefaultVoice  = "en-US-JennyNeural"
	DefaultRate   = "+0%"
	DefaultVolume = "+0%"
)

// Run-level errors. Splitting and synthesis failures abort the run; callers
// distinguish them with errors.Is to pick the user-facing message.
var (
	// ErrTextEmpty indicates that a synthesis request carried no text.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrNoSentences indicates that splitting the input produced no sentences.
	ErrNoSentences = errors.New("no sentences were detected in the input")
	// ErrSynthesisTimeout indicates that a synthesis call exceeded its bound.
	ErrSynthesisTimeout = errors.New("speech synthesis timed out")
	// ErrSynthesis indicates any other provider-side synthesis failure.
	ErrSynthesis = errors.New("speech synthesis failed")
)

// VoiceSpec carries the provider settings for one run. All three values are
// free-form strings handed to the provider verbatim.
type VoiceSpec struct {
	Voice  string
	Rate   string
	Volume string
}

// WithDefaults returns a copy of the spec with blank fields replaced by the
// default provider settings.
func (s VoiceSpec) WithDefaults() VoiceSpec {
	if s.Voice == "" {
		s.Voice = DefaultVoice
	}

	if s.Rate == "" {
		s.Rate = DefaultRate
	}

	if s.Volume == "" {
		s.Volume = DefaultVolume
	}

	return s
}

// Clip ties one sentence to its target file name. Index is 1-based display
// order; order is preserved end-to-end.
type Clip struct {
	Index    int
	Sentence string
	FileName string
}

// RunResult describes one completed generation run. Audio bytes are not held
// here; they live in the run's store under the clip file names and the
// archive name.
type RunResult struct {
	RunID       string
	Clips       []Clip
	ArchiveName string
	ArchiveSize int64
}

// Synthesizer produces encoded audio for a single piece of text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, spec VoiceSpec) ([]byte, error)
}

// BatchSynthesizer produces audio for an ordered list of sentences. The
// result slice is index-aligned with the input; a failure of any element
// fails the whole batch.
type BatchSynthesizer interface {
	SynthesizeAll(ctx context.Context, sentences []string, spec VoiceSpec) ([][]byte, error)
}

// RunStore holds the artifacts of a single run under their target names.
type RunStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	Destroy(ctx context.Context) error
}

// RunStoreOpener creates or reattaches run-scoped stores. Open is used by the
// pipeline for a fresh run; Bind reattaches to an existing run, failing when
// the run is unknown or already expired.
type RunStoreOpener interface {
	Open(ctx context.Context, runID string) (RunStore, error)
	Bind(ctx context.Context, runID string) (RunStore, error)
}
