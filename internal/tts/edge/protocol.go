// Package edge implements speech synthesis against the Microsoft Edge
// read-aloud service.
//
// The service speaks a framed protocol over a single WebSocket: the client
// sends one JSON configuration frame and one SSML request frame, then reads
// interleaved text status frames and binary audio frames until the service
// signals the end of the turn.
package edge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/book-expert/sentence-clips-service/internal/core"
)

// Public service endpoints.
const (
	// SynthesisEndpoint is the read-aloud WebSocket endpoint.
	SynthesisEndpoint = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"

	// VoicesEndpoint lists the voices the read-aloud service offers.
	VoicesEndpoint = "https://speech.platform.bing.com/consumer/speech/synthesize/readaloud/voices/list"
)

// Connection constants. The token identifies the Edge browser build the
// service expects; connections without it are rejected.
const (
	trustedClientToken  = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	connectionURLFormat = "%s?TrustedClientToken=%s&ConnectionId=%s"
	voicesURLFormat     = "%s?trustedclienttoken=%s"

	originExtension = "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold"
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/91.0.4472.77 Safari/537.36 Edg/91.0.864.41"
)

// Frame formats. Text frames carry MIME-style headers separated from the body
// by a blank line; the Path header names the frame type.
const (
	speechConfigFrameFormat = "X-Timestamp:%s\r\n" +
		"Content-Type:application/json; charset=utf-8\r\n" +
		"Path:speech.config\r\n\r\n%s"

	speechConfigPayloadFormat = `{"context":{"synthesis":{"audio":{` +
		`"metadataoptions":{"sentenceBoundaryEnabled":"false",` +
		`"wordBoundaryEnabled":"false"},"outputFormat":"%s"}}}}`

	ssmlFrameFormat = "X-RequestId:%s\r\n" +
		"Content-Type:application/ssml+xml\r\n" +
		"X-Timestamp:%sZ\r\n" +
		"Path:ssml\r\n\r\n%s"

	ssmlDocumentFormat = "<speak version='1.0' " +
		"xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>" +
		"<voice name='%s'><prosody pitch='%s' rate='%s' volume='%s'>" +
		"%s</prosody></voice></speak>"

	outputFormat = "audio-24khz-48kbitrate-mono-mp3"
	defaultPitch = "+0Hz"

	turnEndPath   = "Path:turn.end"
	audioPath     = "Path:audio"
	dashSeparator = "-"
)

// Timestamp constants. The service expects JavaScript Date strings pinned to
// UTC.
const (
	timestampLayout = "Mon Jan 02 2006 15:04:05"
	timestampSuffix = " GMT+0000 (Coordinated Universal Time)"
)

// Binary audio frames start with a big-endian header length, followed by the
// header bytes and the raw audio payload.
const binaryHeaderSizePrefix = 2

// ErrMalformedFrame is returned when a binary frame is shorter than its
// declared header.
var ErrMalformedFrame = errors.New("malformed binary audio frame")

// textEscaper rewrites the characters that terminate character data inside an
// SSML element. Quotes need no escaping because text never lands inside an
// attribute.
var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// requestID returns a fresh identifier in the dashless form the service
// expects for X-RequestId and ConnectionId values.
func requestID() string {
	return strings.ReplaceAll(uuid.NewString(), dashSeparator, "")
}

// jsTimestamp formats now as the JavaScript Date string used in frame headers.
func jsTimestamp(now time.Time) string {
	return now.UTC().Format(timestampLayout) + timestampSuffix
}

// speechConfigFrame builds the configuration frame selecting the MP3 output
// format.
func speechConfigFrame(timestamp string) []byte {
	payload := fmt.Sprintf(speechConfigPayloadFormat, outputFormat)

	return []byte(fmt.Sprintf(speechConfigFrameFormat, timestamp, payload))
}

// ssmlFrame builds the synthesis request frame for one sentence.
func ssmlFrame(requestID, timestamp string, voice core.VoiceSpec, text string) []byte {
	document := fmt.Sprintf(
		ssmlDocumentFormat,
		voice.Voice,
		defaultPitch,
		voice.Rate,
		voice.Volume,
		textEscaper.Replace(text),
	)

	return []byte(fmt.Sprintf(ssmlFrameFormat, requestID, timestamp, document))
}

// isTurnEnd reports whether a text frame closes the synthesis turn.
func isTurnEnd(payload []byte) bool {
	return strings.Contains(string(payload), turnEndPath)
}

// audioChunk extracts the audio payload from a binary frame. Binary frames
// whose header does not name the audio path carry no sound and yield nil.
func audioChunk(payload []byte) ([]byte, error) {
	if len(payload) < binaryHeaderSizePrefix {
		return nil, ErrMalformedFrame
	}

	headerLength := int(binary.BigEndian.Uint16(payload[:binaryHeaderSizePrefix]))

	bodyStart := binaryHeaderSizePrefix + headerLength
	if len(payload) < bodyStart {
		return nil, ErrMalformedFrame
	}

	header := string(payload[binaryHeaderSizePrefix:bodyStart])
	if !strings.Contains(header, audioPath) {
		return nil, nil
	}

	return payload[bodyStart:], nil
}
