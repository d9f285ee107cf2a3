package edge_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/book-expert/sentence-clips-service/internal/tts/edge"
)

const voicesFixture = `[
  {
    "Name": "Microsoft Server Speech Text to Speech Voice (en-US, JennyNeural)",
    "ShortName": "en-US-JennyNeural",
    "Gender": "Female",
    "Locale": "en-US",
    "FriendlyName": "Microsoft Jenny Online (Natural) - English (United States)",
    "Status": "GA"
  },
  {
    "Name": "Microsoft Server Speech Text to Speech Voice (en-GB, SoniaNeural)",
    "ShortName": "en-GB-SoniaNeural",
    "Gender": "Female",
    "Locale": "en-GB",
    "FriendlyName": "Microsoft Sonia Online (Natural) - English (United Kingdom)",
    "Status": "GA"
  }
]`

func TestCatalog_List(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, request *http.Request) {
			if request.URL.Query().Get("trustedclienttoken") == "" {
				t.Error("Expected trustedclienttoken query parameter")
			}

			responseWriter.Header().Set("Content-Type", "application/json")

			_, writeErr := responseWriter.Write([]byte(voicesFixture))
			if writeErr != nil {
				t.Errorf("Failed to write fixture: %v", writeErr)
			}
		},
	))
	defer server.Close()

	log := createTestLogger(t)
	defer log.Close()

	catalog := edge.NewCatalogWithClient(server.Client(), server.URL, log)

	voices, err := catalog.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(voices) != 2 {
		t.Fatalf("Expected 2 voices, got %d", len(voices))
	}

	// Sorted by short name: en-GB before en-US.
	if voices[0].ShortName != "en-GB-SoniaNeural" {
		t.Errorf(
			"Expected first voice %q, got %q",
			"en-GB-SoniaNeural",
			voices[0].ShortName,
		)
	}

	if voices[1].ShortName != "en-US-JennyNeural" {
		t.Errorf(
			"Expected second voice %q, got %q",
			"en-US-JennyNeural",
			voices[1].ShortName,
		)
	}

	if voices[0].Locale != "en-GB" {
		t.Errorf("Expected locale %q, got %q", "en-GB", voices[0].Locale)
	}

	if voices[0].Gender != "Female" {
		t.Errorf("Expected gender %q, got %q", "Female", voices[0].Gender)
	}
}

func TestCatalog_List_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.WriteHeader(http.StatusServiceUnavailable)
		},
	))
	defer server.Close()

	log := createTestLogger(t)
	defer log.Close()

	catalog := edge.NewCatalogWithClient(server.Client(), server.URL, log)

	_, err := catalog.List(context.Background())
	if err == nil {
		t.Fatal("Expected error for non-OK status")
	}
}

func TestCatalog_List_MalformedBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			_, writeErr := responseWriter.Write([]byte("not json"))
			if writeErr != nil {
				t.Errorf("Failed to write body: %v", writeErr)
			}
		},
	))
	defer server.Close()

	log := createTestLogger(t)
	defer log.Close()

	catalog := edge.NewCatalogWithClient(server.Client(), server.URL, log)

	_, err := catalog.List(context.Background())
	if err == nil {
		t.Fatal("Expected error for malformed body")
	}
}
