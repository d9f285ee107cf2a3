// main package for the clips-cli, a one-shot command line front end for the
// sentence clips pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/dustin/go-humanize"

	"github.com/book-expert/sentence-clips-service/internal/config"
	"github.com/book-expert/sentence-clips-service/internal/core"
	"github.com/book-expert/sentence-clips-service/internal/pipeline"
	"github.com/book-expert/sentence-clips-service/internal/runstore"
	"github.com/book-expert/sentence-clips-service/internal/tts"
	"github.com/book-expert/sentence-clips-service/internal/tts/edge"
	"github.com/book-expert/sentence-clips-service/internal/tts/text"
	"github.com/book-expert/sentence-clips-service/internal/tts/ttsutils"
)

// Flag descriptions.
const (
	flagTextDesc       = "Text to split into sentence clips"
	flagInputDesc      = "Text file to split into sentence clips"
	flagOutputDesc     = "Output archive path (.zip)"
	flagVoiceDesc      = "Voice short name, e.g. en-US-JennyNeural"
	flagRateDesc       = "Speaking rate adjustment, e.g. +10%"
	flagVolumeDesc     = "Volume adjustment, e.g. -5%"
	flagTimeoutDesc    = "Per-sentence synthesis timeout in seconds"
	flagWorkersDesc    = "Number of parallel synthesis workers"
	flagLogDirDesc     = "Directory for the log file"
	flagPreviewDesc    = "Print the clip file names without synthesizing"
	flagListVoicesDesc = "List available voices and exit"
)

// Flag names.
const (
	flagText       = "text"
	flagInput      = "input"
	flagOutput     = "output"
	flagVoice      = "voice"
	flagRate       = "rate"
	flagVolume         = "volume"
	flagTimeoutSeconds = "timeout-seconds"
	flagWorkers        = "workers"
	flagLogDir         = "log-dir"
	flagPreview        = "preview"
	flagListVoices     = "list-voices"
)

// Error and log messages.
const (
	errFailedToCreateLogger = "Failed to create logger: %v"
	errFailedToCreateDirs   = "Failed to create directories: %v"
	errEitherTextOrInput    = "Either --text or --input must be provided"
	errCannotSpecifyBoth    = "Cannot specify both --text and --input"
	errFailedToReadInput    = "Failed to read input file: %v"
	errFailedToListVoices   = "Failed to list voices: %v"
	errFailedToGenerate     = "Failed to generate clips: %v"
	errFailedToFetchArchive = "Failed to fetch archive: %v"
	errFailedToWriteArchive = "Failed to write archive: %v"
)

// User-facing output formats.
const (
	voiceLineFormat   = "%-40s %-8s %s\n"
	previewLineFormat = "%3d  %s\n"
	summaryFormat     = "Generated %d clips in %s (%s, %s)\n"
)

// File names and defaults.
const (
	logFileName       = "clips-cli.log"
	defaultOutputFile = "sentences_mp3.zip"
	listVoicesTimeout = 10 * time.Second
	archiveFileMode   = 0o644
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text           string
	input          string
	output         string
	voice          string
	rate           string
	volume         string
	logDir         string
	timeoutSeconds int
	workers        int
	preview        bool
	listVoices     bool
}

func main() {
	err := run()
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

// run is the main application entry point, returning an error on failure.
func run() error {
	flags := parseFlags()

	validationErr := validateFlags(flags)
	if validationErr != nil {
		flag.Usage()

		return validationErr
	}

	cfg, logs, err := setup(flags)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := logs.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	if flags.listVoices {
		return handleListVoices(logs)
	}

	input, inputErr := readInputText(flags)
	if inputErr != nil {
		logs.Error(errFailedToReadInput, inputErr)

		return fmt.Errorf(errFailedToReadInput, inputErr)
	}

	runner := pipeline.NewRunner(
		text.NewSplitter(),
		tts.NewEngineWithSynthesizer(cfg, logs, edge.NewClient(logs)),
		runstore.NewMemoryOpener(),
		cfg.Naming.MaxStemLength,
		logs,
	)

	if flags.preview {
		return handlePreview(runner, input)
	}

	return handleGenerate(runner, cfg, logs, flags, input)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.input, flagInput, "", flagInputDesc)
	flag.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flag.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flag.StringVar(&flags.rate, flagRate, "", flagRateDesc)
	flag.StringVar(&flags.volume, flagVolume, "", flagVolumeDesc)
	flag.StringVar(&flags.logDir, flagLogDir, "", flagLogDirDesc)
	flag.IntVar(&flags.timeoutSeconds, flagTimeoutSeconds, 0, flagTimeoutDesc)
	flag.IntVar(&flags.workers, flagWorkers, 0, flagWorkersDesc)
	flag.BoolVar(&flags.preview, flagPreview, false, flagPreviewDesc)
	flag.BoolVar(&flags.listVoices, flagListVoices, false, flagListVoicesDesc)
	flag.Parse()

	return flags
}

// validateFlags checks the input selection rules before any work begins.
func validateFlags(flags appFlags) error {
	if flags.listVoices {
		return nil
	}

	if flags.text == "" && flags.input == "" {
		return errors.New(errEitherTextOrInput)
	}

	if flags.text != "" && flags.input != "" {
		return errors.New(errCannotSpecifyBoth)
	}

	return nil
}

// setup loads configuration, applies flag overrides, and builds the logger.
func setup(flags appFlags) (*config.Config, *logger.Logger, error) {
	bootstrapLog, err := logger.New(os.TempDir(), logFileName)
	if err != nil {
		return nil, nil, fmt.Errorf(errFailedToCreateLogger, err)
	}

	cfg, loadErr := config.Load(bootstrapLog)
	if loadErr != nil {
		bootstrapLog.Warn("Failed to load configuration, using defaults: %v", loadErr)
		cfg = config.Default()
	}

	if flags.timeoutSeconds > 0 {
		cfg.Synthesis.TimeoutSeconds = flags.timeoutSeconds
	}

	if flags.workers > 0 {
		cfg.Synthesis.Workers = flags.workers
	}

	if flags.logDir != "" {
		cfg.Paths.BaseLogsDir = flags.logDir
	}

	dirErr := ttsutils.EnsureDir(cfg.Paths.BaseLogsDir)
	if dirErr != nil {
		closeQuietly(bootstrapLog)

		return nil, nil, fmt.Errorf(errFailedToCreateDirs, dirErr)
	}

	logs, logErr := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if logErr != nil {
		closeQuietly(bootstrapLog)

		return nil, nil, fmt.Errorf(errFailedToCreateLogger, logErr)
	}

	closeQuietly(bootstrapLog)

	return cfg, logs, nil
}

func closeQuietly(logs *logger.Logger) {
	closeErr := logs.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
	}
}

// readInputText resolves the run's text from the flags. Bytes that are not
// valid UTF-8 become replacement runes instead of failing the run.
func readInputText(flags appFlags) (string, error) {
	if flags.text != "" {
		return flags.text, nil
	}

	data, err := os.ReadFile(flags.input)
	if err != nil {
		return "", fmt.Errorf("failed to read '%s': %w", flags.input, err)
	}

	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), nil
}

// handleListVoices prints the provider's voice catalog.
func handleListVoices(logs *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), listVoicesTimeout)
	defer cancel()

	voices, err := edge.NewCatalog(logs).List(ctx)
	if err != nil {
		logs.Error(errFailedToListVoices, err)

		return fmt.Errorf(errFailedToListVoices, err)
	}

	for _, voice := range voices {
		fmt.Printf(voiceLineFormat, voice.ShortName, voice.Gender, voice.Locale)
	}

	return nil
}

// handlePreview prints the clip file names a generation run would produce.
func handlePreview(runner *pipeline.Runner, input string) error {
	clips, err := runner.Preview(input)
	if err != nil {
		return fmt.Errorf(errFailedToGenerate, err)
	}

	for _, clip := range clips {
		fmt.Printf(previewLineFormat, clip.Index, clip.FileName)
	}

	return nil
}

// handleGenerate runs the full pipeline and writes the archive to disk.
func handleGenerate(
	runner *pipeline.Runner,
	cfg *config.Config,
	logs *logger.Logger,
	flags appFlags,
	input string,
) error {
	started := time.Now()

	voice := cfg.Synthesis.VoiceSpec()
	voice = applyVoiceOverrides(voice, flags)

	ctx := context.Background()

	result, genErr := runner.Generate(ctx, input, voice)
	if genErr != nil {
		logs.Error(errFailedToGenerate, genErr)

		return fmt.Errorf(errFailedToGenerate, genErr)
	}

	archiveData, fetchErr := fetchArchive(ctx, runner, result)
	if fetchErr != nil {
		logs.Error(errFailedToFetchArchive, fetchErr)

		return fmt.Errorf(errFailedToFetchArchive, fetchErr)
	}

	outputPath := flags.output
	if outputPath == "" {
		outputPath = defaultOutputFile
	}

	writeErr := os.WriteFile(outputPath, archiveData, archiveFileMode)
	if writeErr != nil {
		logs.Error(errFailedToWriteArchive, writeErr)

		return fmt.Errorf(errFailedToWriteArchive, writeErr)
	}

	logs.Info("Wrote archive to %s", outputPath)
	fmt.Printf(
		summaryFormat,
		len(result.Clips),
		outputPath,
		humanize.Bytes(uint64(result.ArchiveSize)),
		ttsutils.FormatDuration(time.Since(started).Seconds()),
	)

	return nil
}

// applyVoiceOverrides layers the flag values over the configured defaults.
func applyVoiceOverrides(voice core.VoiceSpec, flags appFlags) core.VoiceSpec {
	if flags.voice != "" {
		voice.Voice = flags.voice
	}

	if flags.rate != "" {
		voice.Rate = flags.rate
	}

	if flags.volume != "" {
		voice.Volume = flags.volume
	}

	return voice
}

// fetchArchive reads the finished archive back from the run's store.
func fetchArchive(
	ctx context.Context,
	runner *pipeline.Runner,
	result *core.RunResult,
) ([]byte, error) {
	store, bindErr := runner.OpenRun(ctx, result.RunID)
	if bindErr != nil {
		return nil, bindErr
	}

	data, getErr := store.Get(ctx, result.ArchiveName)
	if getErr != nil {
		return nil, getErr
	}

	return data, nil
}
