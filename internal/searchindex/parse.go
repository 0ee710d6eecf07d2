package searchindex

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sha1n/mcp-docsearch-server/internal/domain"
)

var (
	// ErrEmptySource indicates the source contained no data
	ErrEmptySource = errors.New("search index source is empty")

	// ErrNoPayload indicates no JSON value follows the variable assignment
	ErrNoPayload = errors.New("search index source has no JSON payload")

	// ErrMissingDocs indicates a JSON object without a "docs" array
	ErrMissingDocs = errors.New(`search index object has no "docs" array`)
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Index is a parsed documentation search index.
type Index struct {
	// Source is the path the index was loaded from, empty when parsed from memory.
	Source string

	// Size is the size of the raw source in bytes.
	Size int64

	// Fingerprint is the hex SHA-256 of the raw source.
	Fingerprint string

	records []json.RawMessage
	entries []domain.Entry
	report  *Report
}

// Entries returns the structurally valid entries in source order.
func (idx *Index) Entries() []domain.Entry {
	return idx.entries
}

// Report returns the validation report produced while parsing.
func (idx *Index) Report() *Report {
	return idx.report
}

// Len returns the number of raw records, valid or not.
func (idx *Index) Len() int {
	return len(idx.records)
}

// Load reads and parses a search index file.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read search index: %w", err)
	}

	idx, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	idx.Source = path
	return idx, nil
}

// Parse decodes a search index from the generator's JavaScript form
// (var documenterSearchIndex = {"docs": [...]}), a {"docs": [...]} object
// or a bare JSON array, and validates every record.
func Parse(data []byte) (*Index, error) {
	payload, err := extractPayload(data)
	if err != nil {
		return nil, err
	}

	records, err := decodeRecords(payload)
	if err != nil {
		return nil, err
	}

	validator, err := defaultValidator()
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	report, entries := validator.Validate(records)

	return &Index{
		Size:        int64(len(data)),
		Fingerprint: hex.EncodeToString(sum[:]),
		records:     records,
		entries:     entries,
		report:      report,
	}, nil
}

// extractPayload strips an optional BOM, variable assignment and trailing semicolon.
func extractPayload(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(trimmed) == 0 {
		return nil, ErrEmptySource
	}

	if trimmed[0] != '{' && trimmed[0] != '[' {
		i := bytes.IndexByte(trimmed, '=')
		if i < 0 {
			return nil, ErrNoPayload
		}
		trimmed = bytes.TrimSpace(trimmed[i+1:])
	}

	trimmed = bytes.TrimSpace(bytes.TrimSuffix(trimmed, []byte(";")))
	if len(trimmed) == 0 {
		return nil, ErrNoPayload
	}
	return trimmed, nil
}

func decodeRecords(payload []byte) ([]json.RawMessage, error) {
	if payload[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(payload, &records); err != nil {
			return nil, fmt.Errorf("invalid search index JSON: %w", err)
		}
		return records, nil
	}

	var wrapper struct {
		Docs *[]json.RawMessage `json:"docs"`
	}
	if err := json.Unmarshal(payload, &wrapper); err != nil {
		return nil, fmt.Errorf("invalid search index JSON: %w", err)
	}
	if wrapper.Docs == nil {
		return nil, ErrMissingDocs
	}
	return *wrapper.Docs, nil
}
