package edge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/gorilla/websocket"

	"github.com/book-expert/sentence-clips-service/internal/core"
)

// handshakeTimeout bounds the WebSocket upgrade; the per-sentence deadline is
// carried by the caller's context.
const handshakeTimeout = 5 * time.Second

// ErrNoAudio is returned when a turn completes without any audio frames.
var ErrNoAudio = errors.New("no audio frames received before turn end")

// Log formats and error formats.
const (
	errFmtDial       = "failed to connect to synthesis endpoint: %w"
	errFmtSendConfig = "failed to send synthesis config: %w"
	errFmtSendSSML   = "failed to send ssml request: %w"
	errFmtReadFrame  = "failed to read synthesis frame: %w"
	errFmtAborted    = "synthesis aborted: %w"

	logFmtSynthesized = "Synthesized %d bytes for %d characters of text"
)

// Client synthesizes speech over the read-aloud WebSocket protocol. Each
// Synthesize call opens its own connection, so a Client is safe for
// concurrent use.
type Client struct {
	dialer   *websocket.Dialer
	endpoint string
	log      *logger.Logger
}

// NewClient creates a client against the public read-aloud endpoint.
func NewClient(log *logger.Logger) *Client {
	return NewClientWithEndpoint(SynthesisEndpoint, log)
}

// NewClientWithEndpoint creates a client against a custom endpoint. This
// constructor is primarily for testing purposes, allowing synthesis against
// an in-process WebSocket server.
func NewClientWithEndpoint(endpoint string, log *logger.Logger) *Client {
	return &Client{
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		endpoint: endpoint,
		log:      log,
	}
}

// Synthesize converts one sentence of text into MP3 audio.
//
// The context bounds the whole exchange. When it expires mid-stream the
// connection is torn down and the context error is returned wrapped, so
// callers can classify timeouts with errors.Is.
func (c *Client) Synthesize(
	ctx context.Context,
	text string,
	voice core.VoiceSpec,
) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.ErrTextEmpty
	}

	conn, dialErr := c.dial(ctx)
	if dialErr != nil {
		return nil, dialErr
	}

	defer func() { _ = conn.Close() }()

	// ReadMessage has no context support; closing the connection from a
	// watcher goroutine is the documented way to unblock it.
	watcherDone := make(chan struct{})
	defer close(watcherDone)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-watcherDone:
		}
	}()

	sendErr := c.sendRequest(conn, voice.WithDefaults(), text)
	if sendErr != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf(errFmtAborted, ctx.Err())
		}

		return nil, sendErr
	}

	audio, collectErr := c.collectAudio(ctx, conn)
	if collectErr != nil {
		return nil, collectErr
	}

	c.log.Info(logFmtSynthesized, len(audio), len(text))

	return audio, nil
}

// dial opens the WebSocket connection with a fresh connection identifier.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint := fmt.Sprintf(
		connectionURLFormat,
		c.endpoint,
		trustedClientToken,
		requestID(),
	)

	conn, _, dialErr := c.dialer.DialContext(ctx, endpoint, c.handshakeHeaders())
	if dialErr != nil {
		return nil, fmt.Errorf(errFmtDial, dialErr)
	}

	return conn, nil
}

// handshakeHeaders mimics the browser the service expects on the other end.
func (c *Client) handshakeHeaders() http.Header {
	headers := http.Header{}
	headers.Set("Pragma", "no-cache")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Origin", originExtension)
	headers.Set("Accept-Language", "en-US,en;q=0.9")
	headers.Set("User-Agent", userAgent)

	return headers
}

// sendRequest writes the configuration frame and the SSML request frame.
func (c *Client) sendRequest(
	conn *websocket.Conn,
	voice core.VoiceSpec,
	text string,
) error {
	timestamp := jsTimestamp(time.Now())

	configErr := conn.WriteMessage(
		websocket.TextMessage,
		speechConfigFrame(timestamp),
	)
	if configErr != nil {
		return fmt.Errorf(errFmtSendConfig, configErr)
	}

	ssmlErr := conn.WriteMessage(
		websocket.TextMessage,
		ssmlFrame(requestID(), timestamp, voice, text),
	)
	if ssmlErr != nil {
		return fmt.Errorf(errFmtSendSSML, ssmlErr)
	}

	return nil
}

// collectAudio reads frames until the turn ends, concatenating every audio
// payload in arrival order.
func (c *Client) collectAudio(
	ctx context.Context,
	conn *websocket.Conn,
) ([]byte, error) {
	var audio []byte

	for {
		messageType, payload, readErr := conn.ReadMessage()
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf(errFmtAborted, ctx.Err())
			}

			return nil, fmt.Errorf(errFmtReadFrame, readErr)
		}

		switch messageType {
		case websocket.TextMessage:
			if !isTurnEnd(payload) {
				continue
			}

			if len(audio) == 0 {
				return nil, ErrNoAudio
			}

			return audio, nil
		case websocket.BinaryMessage:
			chunk, chunkErr := audioChunk(payload)
			if chunkErr != nil {
				return nil, chunkErr
			}

			audio = append(audio, chunk...)
		}
	}
}
