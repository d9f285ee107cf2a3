// Package pipeline_test tests the generation pipeline.
package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/sentence-clips-service/internal/core"
	"github.com/book-expert/sentence-clips-service/internal/pipeline"
	"github.com/book-expert/sentence-clips-service/internal/runstore"
	"github.com/book-expert/sentence-clips-service/internal/tts/text"
)

var (
	errMockSynthesis = errors.New("mock synthesis error")
	errMockPut       = errors.New("mock put error")
)

// mockBatchSynthesizer is a mock implementation of the BatchSynthesizer
// interface.
type mockBatchSynthesizer struct {
	synthesizeShouldFail bool
	synthesizedSentences []string
	synthesizedVoice     core.VoiceSpec
}

func (m *mockBatchSynthesizer) SynthesizeAll(
	_ context.Context,
	sentences []string,
	spec core.VoiceSpec,
) ([][]byte, error) {
	if m.synthesizeShouldFail {
		return nil, errMockSynthesis
	}

	m.synthesizedSentences = sentences
	m.synthesizedVoice = spec

	results := make([][]byte, len(sentences))
	for index, sentence := range sentences {
		results[index] = []byte("audio:" + sentence)
	}

	return results, nil
}

// failingStore fails every Put so tests can exercise run cleanup.
type failingStore struct {
	destroyed bool
}

func (s *failingStore) Put(_ context.Context, _ string, _ []byte) error {
	return errMockPut
}

func (s *failingStore) Get(_ context.Context, _ string) ([]byte, error) {
	return nil, runstore.ErrObjectNotFound
}

func (s *failingStore) Delete(_ context.Context, _ string) error {
	return nil
}

func (s *failingStore) Destroy(_ context.Context) error {
	s.destroyed = true

	return nil
}

// failingOpener hands out a failingStore and counts opens.
type failingOpener struct {
	store     *failingStore
	openCalls int
}

func (o *failingOpener) Open(_ context.Context, _ string) (core.RunStore, error) {
	o.openCalls++

	return o.store, nil
}

func (o *failingOpener) Bind(_ context.Context, _ string) (core.RunStore, error) {
	return o.store, nil
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

// createTestRunner builds a runner with the default splitter and stem bound.
func createTestRunner(
	t *testing.T,
	synth core.BatchSynthesizer,
	opener core.RunStoreOpener,
) *pipeline.Runner {
	t.Helper()

	return pipeline.NewRunner(
		text.NewSplitter(),
		synth,
		opener,
		80,
		createTestLogger(t),
	)
}

func TestRunner_Preview(t *testing.T) {
	t.Parallel()

	runner := createTestRunner(t, &mockBatchSynthesizer{}, runstore.NewMemoryOpener())

	clips, err := runner.Preview("Hello world. How are you? Great!")
	require.NoError(t, err)
	require.Len(t, clips, 3)

	assert.Equal(t, 1, clips[0].Index)
	assert.Equal(t, "Hello world.", clips[0].Sentence)
	assert.Equal(t, "Hello world.mp3", clips[0].FileName)

	assert.Equal(t, 2, clips[1].Index)
	assert.Equal(t, "How are you?", clips[1].Sentence)
	assert.Equal(t, "How are you_.mp3", clips[1].FileName)

	assert.Equal(t, 3, clips[2].Index)
	assert.Equal(t, "Great!", clips[2].Sentence)
	assert.Equal(t, "Great!.mp3", clips[2].FileName)
}

func TestRunner_Preview_EmptyInput(t *testing.T) {
	t.Parallel()

	runner := createTestRunner(t, &mockBatchSynthesizer{}, runstore.NewMemoryOpener())

	_, err := runner.Preview("")
	require.ErrorIs(t, err, core.ErrTextEmpty)

	_, err = runner.Preview("   \n\t ")
	require.ErrorIs(t, err, core.ErrTextEmpty)
}

func TestRunner_Preview_DuplicateNames(t *testing.T) {
	t.Parallel()

	runner := createTestRunner(t, &mockBatchSynthesizer{}, runstore.NewMemoryOpener())

	clips, err := runner.Preview("Hello. Hello. Hello.")
	require.NoError(t, err)
	require.Len(t, clips, 3)

	assert.Equal(t, "Hello.mp3", clips[0].FileName)
	assert.Equal(t, "Hello (2).mp3", clips[1].FileName)
	assert.Equal(t, "Hello (3).mp3", clips[2].FileName)
}

func TestRunner_Generate(t *testing.T) {
	t.Parallel()

	synth := &mockBatchSynthesizer{}
	runner := createTestRunner(t, synth, runstore.NewMemoryOpener())

	voice := core.VoiceSpec{Voice: "en-GB-SoniaNeural", Rate: "+10%", Volume: "-5%"}
	ctx := context.Background()

	result, err := runner.Generate(ctx, "First one. Second two.", voice)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "sentences_mp3.zip", result.ArchiveName)
	assert.Positive(t, result.ArchiveSize)
	require.Len(t, result.Clips, 2)
	assert.Equal(t, "First one.mp3", result.Clips[0].FileName)
	assert.Equal(t, "Second two.mp3", result.Clips[1].FileName)

	assert.Equal(t, []string{"First one.", "Second two."}, synth.synthesizedSentences)
	assert.Equal(t, voice, synth.synthesizedVoice)

	store, err := runner.OpenRun(ctx, result.RunID)
	require.NoError(t, err)

	clipData, err := store.Get(ctx, "First one.mp3")
	require.NoError(t, err)
	assert.Equal(t, []byte("audio:First one."), clipData)

	archiveData, err := store.Get(ctx, result.ArchiveName)
	require.NoError(t, err)
	assert.Len(t, archiveData, int(result.ArchiveSize))
}

func TestRunner_Generate_SynthesisFailure(t *testing.T) {
	t.Parallel()

	opener := &failingOpener{store: &failingStore{}}
	runner := createTestRunner(
		t,
		&mockBatchSynthesizer{synthesizeShouldFail: true},
		opener,
	)

	result, err := runner.Generate(
		context.Background(),
		"Doomed sentence.",
		core.VoiceSpec{},
	)
	require.ErrorIs(t, err, errMockSynthesis)
	assert.Nil(t, result)
	assert.Zero(t, opener.openCalls)
}

func TestRunner_Generate_StoreFailureDestroysRun(t *testing.T) {
	t.Parallel()

	opener := &failingOpener{store: &failingStore{}}
	runner := createTestRunner(t, &mockBatchSynthesizer{}, opener)

	result, err := runner.Generate(
		context.Background(),
		"Doomed sentence.",
		core.VoiceSpec{},
	)
	require.ErrorIs(t, err, errMockPut)
	assert.Nil(t, result)
	assert.True(t, opener.store.destroyed)
}

func TestRunner_OpenRun_UnknownRun(t *testing.T) {
	t.Parallel()

	runner := createTestRunner(t, &mockBatchSynthesizer{}, runstore.NewMemoryOpener())

	_, err := runner.OpenRun(context.Background(), "no-such-run")
	require.ErrorIs(t, err, runstore.ErrRunNotFound)
}

func TestRunner_CleanupClips(t *testing.T) {
	t.Parallel()

	runner := createTestRunner(t, &mockBatchSynthesizer{}, runstore.NewMemoryOpener())
	ctx := context.Background()

	result, err := runner.Generate(ctx, "First one. Second two.", core.VoiceSpec{})
	require.NoError(t, err)

	store, err := runner.OpenRun(ctx, result.RunID)
	require.NoError(t, err)

	runner.CleanupClips(ctx, store, result.Clips)

	_, err = store.Get(ctx, "First one.mp3")
	require.ErrorIs(t, err, runstore.ErrObjectNotFound)

	// The archive must survive clip cleanup.
	archiveData, err := store.Get(ctx, result.ArchiveName)
	require.NoError(t, err)
	assert.NotEmpty(t, archiveData)

	// Cleaning up twice only logs; it never fails.
	runner.CleanupClips(ctx, store, result.Clips)
}
