// Package pipeline turns raw input text into a finished run: sentences,
// named clips, synthesized audio, and the downloadable archive.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/sentence-clips-service/internal/archive"
	"github.com/book-expert/sentence-clips-service/internal/core"
	"github.com/book-expert/sentence-clips-service/internal/tts/text"
	"github.com/book-expert/sentence-clips-service/internal/tts/ttsutils"
)

const extMP3 = ".mp3"

// Runner wires the splitter, the synthesizer, and the run store together.
// One Runner serves all runs; per-run state such as the name allocator is
// created fresh for every call.
type Runner struct {
	splitter      *text.Splitter
	synth         core.BatchSynthesizer
	opener        core.RunStoreOpener
	maxStemLength int
	log           *logger.Logger
}

// NewRunner creates a runner. maxStemLength bounds the sanitized file name
// stems; values below one fall back to the default.
func NewRunner(
	splitter *text.Splitter,
	synth core.BatchSynthesizer,
	opener core.RunStoreOpener,
	maxStemLength int,
	log *logger.Logger,
) *Runner {
	if maxStemLength < 1 {
		maxStemLength = ttsutils.DefaultMaxStemLength
	}

	return &Runner{
		splitter:      splitter,
		synth:         synth,
		opener:        opener,
		maxStemLength: maxStemLength,
		log:           log,
	}
}

// Preview splits the input and assigns clip file names without synthesizing
// anything. The returned clips carry the exact names a generation run with
// the same input would produce.
func (r *Runner) Preview(input string) ([]core.Clip, error) {
	clips, _, err := r.plan(input)
	if err != nil {
		return nil, err
	}

	return clips, nil
}

// Generate runs the full pipeline: split, synthesize every sentence, store
// the clips, and store the packaged archive.
//
// The run is atomic. Any failure after the run store opens destroys the
// partially filled store, so a returned error means no artifacts remain.
func (r *Runner) Generate(
	ctx context.Context,
	input string,
	voice core.VoiceSpec,
) (*core.RunResult, error) {
	clips, sentences, err := r.plan(input)
	if err != nil {
		return nil, err
	}

	r.log.Info("Starting run with %d sentences", len(sentences))

	audio, synthErr := r.synth.SynthesizeAll(ctx, sentences, voice)
	if synthErr != nil {
		return nil, fmt.Errorf("failed to synthesize sentences: %w", synthErr)
	}

	runID := uuid.NewString()

	store, openErr := r.opener.Open(ctx, runID)
	if openErr != nil {
		return nil, fmt.Errorf("failed to open run store: %w", openErr)
	}

	archiveSize, storeErr := r.storeArtifacts(ctx, store, clips, audio)
	if storeErr != nil {
		r.destroyQuietly(ctx, store, runID)

		return nil, storeErr
	}

	r.log.Info(
		"Run %s complete: %d clips, archive %d bytes",
		runID,
		len(clips),
		archiveSize,
	)

	return &core.RunResult{
		RunID:       runID,
		Clips:       clips,
		ArchiveName: archive.DefaultName,
		ArchiveSize: archiveSize,
	}, nil
}

// OpenRun reattaches to an existing run's store.
func (r *Runner) OpenRun(ctx context.Context, runID string) (core.RunStore, error) {
	store, err := r.opener.Bind(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to bind run '%s': %w", runID, err)
	}

	return store, nil
}

// CleanupClips removes the per-sentence clip objects from a run, leaving the
// archive in place for download. Failures are logged and swallowed; cleanup
// never fails a run that already succeeded.
func (r *Runner) CleanupClips(
	ctx context.Context,
	store core.RunStore,
	clips []core.Clip,
) {
	for _, clip := range clips {
		deleteErr := store.Delete(ctx, clip.FileName)
		if deleteErr != nil {
			r.log.Warn(
				"Failed to clean up clip '%s': %v",
				clip.FileName,
				deleteErr,
			)
		}
	}
}

// plan splits the input and assigns each sentence its unique clip file name.
// Names are allocated per run, so identical inputs always produce identical
// name sequences.
func (r *Runner) plan(input string) ([]core.Clip, []string, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil, core.ErrTextEmpty
	}

	sentences := r.splitter.Split(input)
	if len(sentences) == 0 {
		return nil, nil, core.ErrNoSentences
	}

	allocator := ttsutils.NewNameAllocator()
	clips := make([]core.Clip, len(sentences))

	for index, sentence := range sentences {
		stem := ttsutils.SanitizeStem(sentence, r.maxStemLength)
		fileName := allocator.Claim(stem) + extMP3

		clips[index] = core.Clip{
			Index:    index + 1,
			Sentence: sentence,
			FileName: fileName,
		}
	}

	return clips, sentences, nil
}

// storeArtifacts saves every clip and the packaged archive, returning the
// archive size in bytes.
func (r *Runner) storeArtifacts(
	ctx context.Context,
	store core.RunStore,
	clips []core.Clip,
	audio [][]byte,
) (int64, error) {
	entries := make([]archive.Entry, len(clips))

	for index, clip := range clips {
		putErr := store.Put(ctx, clip.FileName, audio[index])
		if putErr != nil {
			return 0, fmt.Errorf(
				"failed to store clip '%s': %w",
				clip.FileName,
				putErr,
			)
		}

		entries[index] = archive.Entry{
			Name: clip.FileName,
			Data: audio[index],
		}
	}

	archiveData, buildErr := archive.Build(entries)
	if buildErr != nil {
		return 0, fmt.Errorf("failed to build archive: %w", buildErr)
	}

	putErr := store.Put(ctx, archive.DefaultName, archiveData)
	if putErr != nil {
		return 0, fmt.Errorf("failed to store archive: %w", putErr)
	}

	return int64(len(archiveData)), nil
}

// destroyQuietly tears down a partially filled run store.
func (r *Runner) destroyQuietly(
	ctx context.Context,
	store core.RunStore,
	runID string,
) {
	destroyErr := store.Destroy(ctx)
	if destroyErr != nil {
		r.log.Warn("Failed to clean up run %s: %v", runID, destroyErr)
	}
}
