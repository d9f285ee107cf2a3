package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/book-expert/sentence-clips-service/internal/archive"
	"github.com/book-expert/sentence-clips-service/internal/core"
	"github.com/book-expert/sentence-clips-service/internal/runstore"
	"github.com/book-expert/sentence-clips-service/internal/tts/ttsutils"
)

// Form field names shared between the templates and the handlers.
const (
	formFieldText    = "text"
	formFieldFile    = "file"
	formFieldVoice   = "voice"
	formFieldRate    = "rate"
	formFieldVolume  = "volume"
	formFieldPlayers = "players"
	formFieldLoop    = "loop"
)

const (
	mimeZip                  = "application/zip"
	audioDataURIPrefix       = "data:audio/mpeg;base64,"
	contentDispositionFormat = "attachment; filename=%q"

	msgRunNotFound     = "run not found or expired"
	msgVoicesDown      = "voice catalog unavailable"
	playbackWarning    = "Playback unavailable for this clip; it is still in the archive."
	msgTextEmpty       = "Text cannot be empty."
	msgNoSentences     = "No sentences were detected in the input."
	msgSynthTimeout    = "Speech synthesis timed out. Please try again."
	msgSynthFailed     = "Speech synthesis failed. Please try again."
	msgBadUpload       = "Only .txt uploads are supported."
	msgInternalFailure = "Something went wrong. Please try again."
)

func (s *Server) handleIndex(c *fiber.Ctx) error {
	return s.renderForm(c, fiber.StatusOK, s.emptyForm())
}

func (s *Server) handlePreview(c *fiber.Ctx) error {
	form := s.formFromRequest(c)

	input, inputErr := s.readInput(c)
	if inputErr != nil {
		form.Error = userMessage(inputErr)

		return s.renderForm(c, statusForError(inputErr), form)
	}

	form.Text = input

	clips, previewErr := s.runner.Preview(input)
	if previewErr != nil {
		form.Error = userMessage(previewErr)

		return s.renderForm(c, statusForError(previewErr), form)
	}

	form.Clips = clips

	return s.renderForm(c, fiber.StatusOK, form)
}

func (s *Server) handleGenerate(c *fiber.Ctx) error {
	form := s.formFromRequest(c)

	input, inputErr := s.readInput(c)
	if inputErr != nil {
		form.Error = userMessage(inputErr)

		return s.renderForm(c, statusForError(inputErr), form)
	}

	form.Text = input
	voice := s.voiceFromForm(c)

	result, genErr := s.runner.Generate(c.Context(), input, voice)
	if genErr != nil {
		s.log.Error("Run failed: %v", genErr)
		form.Error = userMessage(genErr)

		return s.renderForm(c, statusForError(genErr), form)
	}

	data := resultsData{
		RunID:       result.RunID,
		ArchiveName: result.ArchiveName,
		ArchiveSize: humanize.Bytes(uint64(result.ArchiveSize)),
		ShowPlayers: form.ShowPlayers,
		Loop:        form.Loop,
		Players:     nil,
	}

	// Per-clip objects are removed either way; only the archive outlives
	// the render.
	if form.ShowPlayers {
		data.Players = s.collectPlayers(c.Context(), result)
	} else {
		s.removeClips(c.Context(), result)
	}

	return s.render(c, fiber.StatusOK, resultsTemplate, data)
}

func (s *Server) handleArchive(c *fiber.Ctx) error {
	runID := c.Params("id")

	_, parseErr := uuid.Parse(runID)
	if parseErr != nil {
		return fiber.NewError(fiber.StatusNotFound, msgRunNotFound)
	}

	store, bindErr := s.runner.OpenRun(c.Context(), runID)
	if bindErr != nil {
		return fiber.NewError(fiber.StatusNotFound, msgRunNotFound)
	}

	data, getErr := store.Get(c.Context(), archive.DefaultName)
	if getErr != nil {
		return fiber.NewError(fiber.StatusNotFound, msgRunNotFound)
	}

	c.Set(fiber.HeaderContentType, mimeZip)
	c.Set(
		fiber.HeaderContentDisposition,
		fmt.Sprintf(contentDispositionFormat, archive.DefaultName),
	)

	return c.Send(data)
}

func (s *Server) handleVoices(c *fiber.Ctx) error {
	voices, listErr := s.voices.List(c.Context())
	if listErr != nil {
		s.log.Error("Failed to list voices: %v", listErr)

		return fiber.NewError(fiber.StatusBadGateway, msgVoicesDown)
	}

	return c.JSON(voices)
}

// readInput resolves the run's text. An uploaded .txt file wins over the
// textarea; bytes that are not valid UTF-8 become replacement runes instead
// of failing the request.
func (s *Server) readInput(c *fiber.Ctx) (string, error) {
	fileHeader, fileErr := c.FormFile(formFieldFile)
	if fileErr != nil || fileHeader == nil || fileHeader.Filename == "" {
		return c.FormValue(formFieldText), nil
	}

	if !ttsutils.IsValidTextFile(fileHeader.Filename) {
		return "", ErrUnsupportedUpload
	}

	file, openErr := fileHeader.Open()
	if openErr != nil {
		return "", fmt.Errorf(
			"failed to open upload '%s': %w",
			fileHeader.Filename,
			openErr,
		)
	}

	defer func() { _ = file.Close() }()

	data, readErr := io.ReadAll(file)
	if readErr != nil {
		return "", fmt.Errorf(
			"failed to read upload '%s': %w",
			fileHeader.Filename,
			readErr,
		)
	}

	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), nil
}

// voiceFromForm starts from the configured defaults and applies any overrides
// the form carried.
func (s *Server) voiceFromForm(c *fiber.Ctx) core.VoiceSpec {
	voice := s.cfg.Synthesis.VoiceSpec()

	requestedVoice := c.FormValue(formFieldVoice)
	if requestedVoice != "" {
		voice.Voice = requestedVoice
	}

	requestedRate := c.FormValue(formFieldRate)
	if requestedRate != "" {
		voice.Rate = requestedRate
	}

	requestedVolume := c.FormValue(formFieldVolume)
	if requestedVolume != "" {
		voice.Volume = requestedVolume
	}

	return voice
}

func (s *Server) emptyForm() formData {
	voice := s.cfg.Synthesis.VoiceSpec()

	return formData{
		Error:       "",
		Text:        "",
		Voice:       voice.Voice,
		Rate:        voice.Rate,
		Volume:      voice.Volume,
		ShowPlayers: true,
		Loop:        false,
		Clips:       nil,
	}
}

// formFromRequest echoes the submitted form so error pages keep user input.
// Checkboxes are absent from the form when unchecked.
func (s *Server) formFromRequest(c *fiber.Ctx) formData {
	voice := s.voiceFromForm(c)

	return formData{
		Error:       "",
		Text:        c.FormValue(formFieldText),
		Voice:       voice.Voice,
		Rate:        voice.Rate,
		Volume:      voice.Volume,
		ShowPlayers: c.FormValue(formFieldPlayers) != "",
		Loop:        c.FormValue(formFieldLoop) != "",
		Clips:       nil,
	}
}

// collectPlayers reads each clip back for inline playback and then removes
// the per-sentence objects, leaving only the archive for download. A clip
// that cannot be read back gets a warning entry instead of a player; that
// never fails the run.
func (s *Server) collectPlayers(
	ctx context.Context,
	result *core.RunResult,
) []playerView {
	players := make([]playerView, len(result.Clips))

	store, bindErr := s.runner.OpenRun(ctx, result.RunID)
	if bindErr != nil {
		s.log.Warn(
			"Failed to open run %s for playback: %v",
			result.RunID,
			bindErr,
		)
	}

	for index, clip := range result.Clips {
		view := playerView{
			Index:    clip.Index,
			Sentence: clip.Sentence,
			FileName: clip.FileName,
			DataURI:  "",
			Warning:  "",
		}

		if bindErr != nil {
			view.Warning = playbackWarning
			players[index] = view

			continue
		}

		clipData, getErr := store.Get(ctx, clip.FileName)
		if getErr != nil {
			s.log.Warn(
				"Failed to read clip '%s' for playback: %v",
				clip.FileName,
				getErr,
			)

			view.Warning = playbackWarning
		} else {
			encoded := base64.StdEncoding.EncodeToString(clipData)
			view.DataURI = template.URL(audioDataURIPrefix + encoded)
		}

		players[index] = view
	}

	if bindErr == nil {
		s.runner.CleanupClips(ctx, store, result.Clips)
	}

	return players
}

// removeClips drops the per-sentence objects when no players are rendered.
func (s *Server) removeClips(ctx context.Context, result *core.RunResult) {
	store, bindErr := s.runner.OpenRun(ctx, result.RunID)
	if bindErr != nil {
		s.log.Warn(
			"Failed to open run %s for cleanup: %v",
			result.RunID,
			bindErr,
		)

		return
	}

	s.runner.CleanupClips(ctx, store, result.Clips)
}

func (s *Server) renderForm(c *fiber.Ctx, status int, data formData) error {
	return s.render(c, status, indexTemplate, data)
}

func (s *Server) render(
	c *fiber.Ctx,
	status int,
	tmpl *template.Template,
	data any,
) error {
	var buf bytes.Buffer

	execErr := tmpl.Execute(&buf, data)
	if execErr != nil {
		s.log.Error("Failed to render template: %v", execErr)

		return fiber.ErrInternalServerError
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)

	return c.Status(status).Send(buf.Bytes())
}

// statusForError maps the service error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrTextEmpty),
		errors.Is(err, core.ErrNoSentences),
		errors.Is(err, ErrUnsupportedUpload):
		return fiber.StatusBadRequest
	case errors.Is(err, core.ErrSynthesisTimeout):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, core.ErrSynthesis):
		return fiber.StatusBadGateway
	case errors.Is(err, runstore.ErrRunNotFound),
		errors.Is(err, runstore.ErrObjectNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// userMessage picks the banner text shown for a failed request.
func userMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrTextEmpty):
		return msgTextEmpty
	case errors.Is(err, core.ErrNoSentences):
		return msgNoSentences
	case errors.Is(err, core.ErrSynthesisTimeout):
		return msgSynthTimeout
	case errors.Is(err, core.ErrSynthesis):
		return msgSynthFailed
	case errors.Is(err, ErrUnsupportedUpload):
		return msgBadUpload
	default:
		return msgInternalFailure
	}
}
