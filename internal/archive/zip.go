// Package archive assembles the downloadable ZIP bundle for a run.
//
// Bundles are built entirely in memory. A run's clips are small MP3 files, so
// buffering the whole archive keeps the pipeline free of temp-file cleanup.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// DefaultName is the filename offered when the bundle is downloaded.
const DefaultName = "sentences_mp3.zip"

// Error message and format string constants.
const (
	errEntryNameEmptyMsg = "archive entry name cannot be empty"
	errFmtCreateEntry    = "failed to create archive entry %q: %w"
	errFmtWriteEntry     = "failed to write archive entry %q: %w"
	errFmtFinalize       = "failed to finalize archive: %w"
)

// ErrEntryNameEmpty is returned when an entry has no filename.
var ErrEntryNameEmpty = errors.New(errEntryNameEmptyMsg)

// Entry is one file in the bundle.
type Entry struct {
	// Name is the filename inside the archive, extension included.
	Name string

	// Data is the complete file content.
	Data []byte
}

// Build assembles entries into a deflate-compressed ZIP held fully in memory.
//
// Entries are written in the order given and names are used exactly as
// passed. Build does not deduplicate: callers wanting unique names must claim
// them before packaging. An empty entries slice produces a valid empty
// archive.
func Build(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)
	writer.RegisterCompressor(zip.Deflate, newDeflateWriter)

	for _, entry := range entries {
		if entry.Name == "" {
			return nil, ErrEntryNameEmpty
		}

		entryWriter, createErr := writer.Create(entry.Name)
		if createErr != nil {
			return nil, fmt.Errorf(errFmtCreateEntry, entry.Name, createErr)
		}

		_, writeErr := entryWriter.Write(entry.Data)
		if writeErr != nil {
			return nil, fmt.Errorf(errFmtWriteEntry, entry.Name, writeErr)
		}
	}

	closeErr := writer.Close()
	if closeErr != nil {
		return nil, fmt.Errorf(errFmtFinalize, closeErr)
	}

	return buf.Bytes(), nil
}

// newDeflateWriter wires the faster flate implementation into the zip writer.
func newDeflateWriter(out io.Writer) (io.WriteCloser, error) {
	return flate.NewWriter(out, flate.DefaultCompression)
}
