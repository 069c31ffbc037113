package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/playperu/realitybench/internal/realitybench"
)

// DocumentVersion is the format version Save writes and Load accepts.
const DocumentVersion = 1

// Document is the persisted, whole-file form of a log.
type Document struct {
	Version int      `json:"version"`
	Records []Record `json:"records"`
}

// Save writes the log as one JSON document.
func (s *Store) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Document{Version: DocumentVersion, Records: s.Records()})
}

// Load decodes a document into a fresh store.
func Load(r io.Reader, sinks ...Sink) (*Store, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decoding log: %v", realitybench.ErrMalformedReplay, err)
	}
	if doc.Version != DocumentVersion {
		return nil, fmt.Errorf("%w: unsupported log version %d", realitybench.ErrMalformedReplay, doc.Version)
	}
	s := New(sinks...)
	if err := s.Import(doc.Records); err != nil {
		return nil, err
	}
	return s, nil
}

// Import bulk-loads previously persisted records. It is only valid on an
// empty store, before any live append, and does not notify sinks.
func (s *Store) Import(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) > 0 {
		return fmt.Errorf("importing into a store holding %d records", len(s.records))
	}

	normalized := make([]Record, len(records))
	var prev int64
	for i, r := range records {
		if !r.Kind.valid() {
			return fmt.Errorf("%w: record %d has unknown kind %q", realitybench.ErrMalformedReplay, i, r.Kind)
		}
		if r.ID <= prev {
			return fmt.Errorf("%w: record %d id %d not increasing", realitybench.ErrMalformedReplay, i, r.ID)
		}
		if !json.Valid(r.Payload) {
			return fmt.Errorf("%w: record %d payload is not JSON", realitybench.ErrMalformedReplay, r.ID)
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, r.Payload); err != nil {
			return fmt.Errorf("%w: record %d payload: %v", realitybench.ErrMalformedReplay, r.ID, err)
		}
		r.Payload = compact.Bytes()
		if len(r.Tags) == 0 {
			r.Tags = nil
		}
		normalized[i] = r
		prev = r.ID
	}

	s.records = append(s.records, normalized...)
	return nil
}

// ReadFile loads a document from path.
func ReadFile(path string, sinks ...Sink) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, sinks...)
}

// WriteFile replaces path with the current log, via a temporary file so a
// crash never leaves a truncated document behind.
func (s *Store) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp log: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.Save(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
