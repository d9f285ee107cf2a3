package edge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/book-expert/logger"
)

// voicesRequestTimeout bounds catalog requests independently of the caller's
// context.
const voicesRequestTimeout = 10 * time.Second

// Error messages and log formats.
const (
	errFmtVoicesRequest = "failed to create voices request: %w"
	errFmtVoicesSend    = "failed to fetch voices list: %w"
	errFmtVoicesStatus  = "voices list returned non-OK status: %s"
	errFmtVoicesDecode  = "failed to decode voices list: %w"

	logFmtVoicesListed = "Listed %d voices from the read-aloud catalog"
)

// Voice describes one synthesis voice offered by the service.
type Voice struct {
	// Name is the full service identifier for the voice.
	Name string `json:"Name"`

	// ShortName is the identifier used in synthesis requests, such as
	// "en-US-JennyNeural".
	ShortName string `json:"ShortName"`

	// Gender and Locale classify the voice for display.
	Gender string `json:"Gender"`
	Locale string `json:"Locale"`

	// FriendlyName is a human-readable label.
	FriendlyName string `json:"FriendlyName"`

	// Status reports the rollout state of the voice.
	Status string `json:"Status"`
}

// Catalog lists the voices available to the synthesis endpoint.
type Catalog struct {
	httpClient *http.Client
	endpoint   string
	log        *logger.Logger
}

// NewCatalog creates a catalog client against the public voices endpoint.
func NewCatalog(log *logger.Logger) *Catalog {
	httpClient := &http.Client{
		Timeout: voicesRequestTimeout,
	}

	return NewCatalogWithClient(httpClient, VoicesEndpoint, log)
}

// NewCatalogWithClient creates a catalog client with a custom HTTP client and
// endpoint. This constructor is primarily for testing purposes.
func NewCatalogWithClient(
	httpClient *http.Client,
	endpoint string,
	log *logger.Logger,
) *Catalog {
	return &Catalog{
		httpClient: httpClient,
		endpoint:   endpoint,
		log:        log,
	}
}

// List fetches the voice catalog, sorted by short name for stable display.
func (c *Catalog) List(ctx context.Context) ([]Voice, error) {
	url := fmt.Sprintf(voicesURLFormat, c.endpoint, trustedClientToken)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if reqErr != nil {
		return nil, fmt.Errorf(errFmtVoicesRequest, reqErr)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, sendErr := c.httpClient.Do(req)
	if sendErr != nil {
		return nil, fmt.Errorf(errFmtVoicesSend, sendErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(errFmtVoicesStatus, resp.Status)
	}

	var voices []Voice

	decodeErr := json.NewDecoder(resp.Body).Decode(&voices)
	if decodeErr != nil {
		return nil, fmt.Errorf(errFmtVoicesDecode, decodeErr)
	}

	sort.Slice(voices, func(i, j int) bool {
		return voices[i].ShortName < voices[j].ShortName
	})

	c.log.Info(logFmtVoicesListed, len(voices))

	return voices, nil
}
